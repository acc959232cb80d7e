//go:build !linux

package main

// threadID falls back to a single process-wide error slot.
func threadID() int64 {
	return 0
}
