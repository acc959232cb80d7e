// Package ffi implements the foreign call boundary of the save codec: owned
// result buffers, input validation, and a per-thread last-error slot.
//
// Every entry point converts failures, including panics, into an empty Data
// and a message retrievable with LastError on the same thread. Nothing
// escapes as a Go panic.
package ffi

import (
	"context"
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/twinfer/phisave/pkg/codecerr"
	"github.com/twinfer/phisave/pkg/phisave"
)

// Data is an owned buffer returned to the caller. The zero Data signals failure
// or an empty result.
type Data struct {
	Len int
	Ptr unsafe.Pointer
}

func (d Data) Empty() bool {
	return d.Ptr == nil || d.Len == 0
}

// Bytes views the buffer. Valid until the buffer is freed.
func (d Data) Bytes() []byte {
	if d.Empty() {
		return nil
	}
	return unsafe.Slice((*byte)(d.Ptr), d.Len)
}

// Boundary serves the exported entry points.
type Boundary struct {
	codec    *phisave.Codec
	ledger   *Ledger
	slots    ErrorSlots
	logger   *slog.Logger
	threadID func() int64
}

type options struct {
	codec    *phisave.Codec
	logger   *slog.Logger
	threadID func() int64
}

type Option func(*options)

func WithCodec(c *phisave.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithThreadID sets the function identifying the calling thread. Error slots
// are keyed by its result.
func WithThreadID(f func() int64) Option {
	return func(o *options) {
		o.threadID = f
	}
}

// New creates a boundary over alloc. Without WithThreadID every caller shares
// one error slot, so a failure on one thread is visible to all of them.
func New(alloc Allocator, opts ...Option) *Boundary {
	o := options{
		logger:   slog.Default(),
		threadID: func() int64 { return 0 },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.codec == nil {
		o.codec = phisave.New(phisave.WithLogger(o.logger))
	}
	return &Boundary{
		codec:    o.codec,
		ledger:   NewLedger(alloc),
		logger:   o.logger.With("component", "ffi"),
		threadID: o.threadID,
	}
}

// Ledger exposes the allocation ledger.
func (b *Boundary) Ledger() *Ledger {
	return b.ledger
}

// Parse decodes n raw bytes at p as rt and returns the canonical form as MessagePack.
func (b *Boundary) Parse(rt phisave.RecordType, p unsafe.Pointer, n int) (out Data) {
	defer b.guard("parse_"+string(rt), &out)
	return b.convert("parse_"+string(rt), p, n, func(ctx context.Context, in []byte) ([]byte, error) {
		return b.codec.ParseMsgpack(ctx, rt, in)
	})
}

// Build decodes n MessagePack bytes at p as the canonical form of rt and returns the wire bytes.
func (b *Boundary) Build(rt phisave.RecordType, p unsafe.Pointer, n int) (out Data) {
	defer b.guard("build_"+string(rt), &out)
	return b.convert("build_"+string(rt), p, n, func(ctx context.Context, in []byte) ([]byte, error) {
		return b.codec.BuildMsgpack(ctx, rt, in)
	})
}

func (b *Boundary) convert(op string, p unsafe.Pointer, n int, f func(context.Context, []byte) ([]byte, error)) Data {
	if p == nil || n <= 0 {
		b.fail(op, codecerr.Boundary(fmt.Sprintf("invalid input buffer (null=%t, len=%d)", p == nil, n), nil))
		return Data{}
	}
	in := unsafe.Slice((*byte)(p), n)
	res, err := f(context.Background(), in)
	if err != nil {
		b.fail(op, err)
		return Data{}
	}
	return b.hand(op, res)
}

// hand copies res into an owned buffer.
func (b *Boundary) hand(op string, res []byte) Data {
	if len(res) == 0 {
		return Data{}
	}
	buf, err := b.ledger.Alloc(len(res))
	if err != nil {
		b.fail(op, err)
		return Data{}
	}
	copy(buf, res)
	return Data{Len: len(buf), Ptr: unsafe.Pointer(unsafe.SliceData(buf))}
}

// Malloc returns a caller-owned buffer of n bytes, or nil on failure.
func (b *Boundary) Malloc(n int) (p unsafe.Pointer) {
	defer func() {
		if r := recover(); r != nil {
			b.fail("malloc", fmt.Errorf("panic: %v", r))
			p = nil
		}
	}()
	buf, err := b.ledger.Alloc(n)
	if err != nil {
		b.fail("malloc", err)
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(buf))
}

// Free releases a buffer obtained from this boundary. n must be the length it was handed out with.
func (b *Boundary) Free(p unsafe.Pointer, n int) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.fail("free", fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()
	if err := b.ledger.Release(p, n); err != nil {
		b.fail("free", err)
		return false
	}
	return true
}

// LastError returns the calling thread's last error message as an owned
// buffer, or an empty Data when there is none.
func (b *Boundary) LastError() (out Data) {
	defer b.guard("get_last_error", &out)
	msg, ok := b.slots.Get(b.threadID())
	if !ok {
		return Data{}
	}
	buf, err := b.ledger.Alloc(len(msg))
	if err != nil {
		return Data{}
	}
	copy(buf, msg)
	return Data{Len: len(buf), Ptr: unsafe.Pointer(unsafe.SliceData(buf))}
}

// ClearLastError empties the calling thread's error slot.
func (b *Boundary) ClearLastError() bool {
	b.slots.Clear(b.threadID())
	return true
}

func (b *Boundary) fail(op string, err error) {
	b.logger.Debug("boundary call failed", "op", op, "kind", codecerr.KindOf(err), "error", err)
	b.slots.Set(b.threadID(), err.Error())
}

func (b *Boundary) guard(op string, out *Data) {
	if r := recover(); r != nil {
		b.logger.Error("panic in boundary call", "op", op, "panic", r)
		b.fail(op, codecerr.Boundary(fmt.Sprintf("internal failure in %s", op), fmt.Errorf("%v", r)))
		*out = Data{}
	}
}
