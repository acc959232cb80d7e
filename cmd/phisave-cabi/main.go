// Command phisave-cabi builds the codec as a C shared library:
//
//	go build -buildmode=c-shared -o libphisave.so ./cmd/phisave-cabi
//
// Every parse and build entry point returns a Data the caller owns and must
// release with psc_free using the same length. Failures return an empty Data
// and leave a message for psc_get_last_error on the calling thread.
package main

/*
#include <stdlib.h>
#include "exports.h"
*/
import "C"

import (
	"errors"
	"os"
	"sync"
	"unsafe"

	"github.com/twinfer/phisave/internal/config"
	"github.com/twinfer/phisave/pkg/ffi"
	"github.com/twinfer/phisave/pkg/phisave"
)

// cAllocator hands out memory from the C heap so the host can hold it past any Go GC cycle.
type cAllocator struct{}

func (cAllocator) Alloc(n int) ([]byte, error) {
	p := C.malloc(C.size_t(n))
	if p == nil {
		return nil, errors.New("malloc returned null")
	}
	return unsafe.Slice((*byte)(p), n), nil
}

func (cAllocator) Free(buf []byte) {
	C.free(unsafe.Pointer(unsafe.SliceData(buf)))
}

var boundary = sync.OnceValue(func() *ffi.Boundary {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{Logger: config.LoggerConfig{Level: "warn", Format: "text"}}
	}
	logger := cfg.NewLogger(os.Stderr).With("lib", "phisave")
	if err != nil {
		logger.Warn("ignoring invalid environment configuration", "error", err)
	}
	return ffi.New(cAllocator{},
		ffi.WithLogger(logger),
		ffi.WithThreadID(threadID),
		ffi.WithCodec(phisave.New(
			phisave.WithLogger(logger),
			phisave.WithStringPolicy(cfg.Strings()),
		)),
	)
})

func toC(d ffi.Data) C.Data {
	return C.Data{len: C.uintptr_t(d.Len), ptr: (*C.uint8_t)(d.Ptr)}
}

func parse(rt phisave.RecordType, ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return toC(boundary().Parse(rt, unsafe.Pointer(ptr), int(n)))
}

func build(rt phisave.RecordType, ptr *C.uint8_t, n C.uintptr_t) C.Data {
	return toC(boundary().Build(rt, unsafe.Pointer(ptr), int(n)))
}

func main() {}
