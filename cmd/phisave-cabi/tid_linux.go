package main

import "golang.org/x/sys/unix"

// threadID identifies the OS thread of the current C caller. cgo keeps the
// goroutine on that thread for the duration of an exported call.
func threadID() int64 {
	return int64(unix.Gettid())
}
