package ffi

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/twinfer/phisave/pkg/codecerr"
)

// Allocator provides the memory handed across the boundary.
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Free(buf []byte)
}

// HeapAllocator allocates from the Go heap. Suitable when the caller lives in
// the same process and keeps buffers reachable through a Ledger.
type HeapAllocator struct{}

func (HeapAllocator) Alloc(n int) ([]byte, error) {
	return make([]byte, n), nil
}

func (HeapAllocator) Free([]byte) {}

// Ledger tracks every buffer the boundary has handed out so a release can be
// checked against the pointer and length the caller was given.
type Ledger struct {
	alloc Allocator
	mu    sync.Mutex
	live  map[unsafe.Pointer][]byte
}

func NewLedger(alloc Allocator) *Ledger {
	return &Ledger{
		alloc: alloc,
		live:  make(map[unsafe.Pointer][]byte),
	}
}

// Alloc returns an owned buffer of n bytes.
func (l *Ledger) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, codecerr.Boundary(fmt.Sprintf("invalid allocation length %d", n), nil)
	}
	buf, err := l.alloc.Alloc(n)
	if err != nil {
		return nil, codecerr.Boundary("allocation failed", err)
	}
	if len(buf) != n {
		return nil, codecerr.Boundary(fmt.Sprintf("allocator returned %d bytes, want %d", len(buf), n), nil)
	}
	l.mu.Lock()
	l.live[unsafe.Pointer(unsafe.SliceData(buf))] = buf
	l.mu.Unlock()
	return buf, nil
}

// Release frees the buffer at p if it is live and was handed out with length n.
func (l *Ledger) Release(p unsafe.Pointer, n int) error {
	if p == nil {
		return codecerr.Boundary("free of null pointer", nil)
	}
	l.mu.Lock()
	buf, ok := l.live[p]
	if ok && len(buf) == n {
		delete(l.live, p)
	}
	l.mu.Unlock()

	switch {
	case !ok:
		return codecerr.Boundary("free of a buffer not owned by the codec", nil)
	case len(buf) != n:
		return codecerr.Boundary(fmt.Sprintf("free length %d does not match allocation length %d", n, len(buf)), nil)
	}
	l.alloc.Free(buf)
	return nil
}

// Live reports the number of outstanding buffers.
func (l *Ledger) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}
