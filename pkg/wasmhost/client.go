// Package wasmhost drives a codec compiled to WebAssembly from Go.
//
// The guest must export the unprefixed boundary surface listed by
// ffi.Exports(""): parse_X and build_X per record type taking (ptr, len) and
// returning (len, ptr), plus malloc, free, get_last_error and clear_last_error.
//
//	client, err := wasmhost.New(ctx, wasmBytes)
//	if err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//	packed, err := client.Parse(ctx, phisave.GameKey, raw)
package wasmhost

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/twinfer/phisave/pkg/codecerr"
	"github.com/twinfer/phisave/pkg/ffi"
	"github.com/twinfer/phisave/pkg/phisave"
)

// Client owns one guest instance. Calls are serialized because the guest
// keeps a single last-error slot.
type Client struct {
	mu      sync.Mutex
	runtime wazero.Runtime
	mod     api.Module
	funcs   map[string]api.Function
	logger  *slog.Logger
}

type options struct {
	logger           *slog.Logger
	memoryLimitPages uint32
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMemoryLimitPages caps guest memory in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) {
		o.memoryLimitPages = pages
	}
}

// New compiles and instantiates wasm and checks that it exports the full
// boundary surface with the expected signatures.
func New(ctx context.Context, wasm []byte, opts ...Option) (*Client, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := wazero.NewRuntimeConfig()
	if o.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(o.memoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, cfg)

	compiled, err := runtime.CompileModule(ctx, wasm)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("compile failed: %w", err)
	}
	mod, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate failed: %w", err)
	}
	if mod.Memory() == nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("guest exports no memory")
	}

	funcs, err := resolve(mod)
	if err != nil {
		runtime.Close(ctx)
		return nil, err
	}

	return &Client{
		runtime: runtime,
		mod:     mod,
		funcs:   funcs,
		logger:  o.logger.With("component", "wasmhost"),
	}, nil
}

func resolve(mod api.Module) (map[string]api.Function, error) {
	defs := mod.ExportedFunctionDefinitions()
	funcs := make(map[string]api.Function)
	for _, e := range ffi.Exports("") {
		def, ok := defs[e.Name]
		if !ok {
			return nil, fmt.Errorf("guest does not export '%s'", e.Name)
		}
		if len(def.ParamTypes()) != e.Params || len(def.ResultTypes()) != e.Results {
			return nil, fmt.Errorf("guest export '%s' has %d params and %d results, want %d and %d",
				e.Name, len(def.ParamTypes()), len(def.ResultTypes()), e.Params, e.Results)
		}
		funcs[e.Name] = mod.ExportedFunction(e.Name)
	}
	return funcs, nil
}

// Parse converts raw record bytes to the guest's MessagePack canonical form.
func (c *Client) Parse(ctx context.Context, rt phisave.RecordType, raw []byte) ([]byte, error) {
	return c.call(ctx, "parse_"+string(rt), raw)
}

// Build converts MessagePack canonical bytes back to raw record bytes.
func (c *Client) Build(ctx context.Context, rt phisave.RecordType, packed []byte) ([]byte, error) {
	return c.call(ctx, "build_"+string(rt), packed)
}

func (c *Client) call(ctx context.Context, name string, in []byte) ([]byte, error) {
	fn, ok := c.funcs[name]
	if !ok {
		return nil, codecerr.Boundary(fmt.Sprintf("guest has no entry point '%s'", name), nil)
	}
	if len(in) == 0 {
		return nil, codecerr.Boundary("empty input", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ptr, err := c.malloc(ctx, uint32(len(in)))
	if err != nil {
		return nil, err
	}
	defer c.free(ctx, ptr, uint32(len(in)))

	if !c.mod.Memory().Write(ptr, in) {
		return nil, codecerr.Boundary(fmt.Sprintf("input of %d bytes at %#x is out of guest memory", len(in), ptr), nil)
	}

	res, err := fn.Call(ctx, uint64(ptr), uint64(len(in)))
	if err != nil {
		return nil, codecerr.Boundary(fmt.Sprintf("calling %s", name), err)
	}
	n, out := uint32(res[0]), uint32(res[1])
	if n == 0 || out == 0 {
		return nil, c.lastError(ctx, name)
	}

	c.logger.DebugContext(ctx, "guest call returned", "op", name, "in", len(in), "out", n)
	return c.take(ctx, out, n)
}

// take copies an owned guest buffer out and releases it.
func (c *Client) take(ctx context.Context, ptr, n uint32) ([]byte, error) {
	defer c.free(ctx, ptr, n)
	view, ok := c.mod.Memory().Read(ptr, n)
	if !ok {
		return nil, codecerr.Boundary(fmt.Sprintf("result of %d bytes at %#x is out of guest memory", n, ptr), nil)
	}
	return append([]byte(nil), view...), nil
}

func (c *Client) malloc(ctx context.Context, n uint32) (uint32, error) {
	res, err := c.funcs["malloc"].Call(ctx, uint64(n))
	if err != nil {
		return 0, codecerr.Boundary("guest malloc", err)
	}
	if res[0] == 0 {
		return 0, codecerr.Boundary(fmt.Sprintf("guest malloc of %d bytes failed", n), nil)
	}
	return uint32(res[0]), nil
}

func (c *Client) free(ctx context.Context, ptr, n uint32) {
	res, err := c.funcs["free"].Call(ctx, uint64(ptr), uint64(n))
	if err != nil || res[0] == 0 {
		c.logger.WarnContext(ctx, "guest free failed", "ptr", ptr, "len", n, "error", err)
	}
}

// lastError reads and clears the guest error slot after a failed call.
func (c *Client) lastError(ctx context.Context, op string) error {
	msg := "unknown guest failure"
	res, err := c.funcs["get_last_error"].Call(ctx)
	if err == nil && res[0] != 0 && res[1] != 0 {
		if b, terr := c.take(ctx, uint32(res[1]), uint32(res[0])); terr == nil {
			msg = string(b)
		}
	}
	if _, err := c.funcs["clear_last_error"].Call(ctx); err != nil {
		c.logger.WarnContext(ctx, "guest clear_last_error failed", "error", err)
	}
	return codecerr.Boundary(fmt.Sprintf("%s: %s", op, msg), nil)
}

// Close releases the guest instance and its runtime.
func (c *Client) Close(ctx context.Context) error {
	return c.runtime.Close(ctx)
}
