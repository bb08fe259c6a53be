package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/matzehuels/pipo/pkg/errors"
)

// WASMName is the registered name of the WebAssembly backend.
const WASMName = "wasm"

// The module ABI. Requests and responses are JSON in linear memory:
//
//	alloc(size u32) -> ptr u32
//	dealloc(ptr u32, size u32)
//	transform(ptr u32, size u32) -> (ptr << 32 | size) u64
type wasmRequest struct {
	Code            string `json:"code"`
	Filename        string `json:"filename"`
	Target          string `json:"target"`
	JSX             string `json:"jsx"`
	JSXImportSource string `json:"jsxImportSource,omitempty"`
	SourceMap       bool   `json:"sourceMap,omitempty"`
}

type wasmResponse struct {
	Code  string `json:"code"`
	Error *struct {
		Message   string `json:"message"`
		Line      int    `json:"line"`
		Column    int    `json:"column"`
		CodeFrame string `json:"codeFrame"`
	} `json:"error,omitempty"`
}

// WASM runs a compiler module under wazero. Calls into the module are
// serialized.
type WASM struct {
	opts   Options
	source []byte // module bytes, read from opts.Module when nil

	mu          sync.Mutex
	rt          wazero.Runtime
	mod         api.Module
	initialized bool
}

// NewWASM creates a WebAssembly backend loading opts.Module.
func NewWASM(opts Options) Strategy {
	return &WASM{opts: opts.withDefaults()}
}

// NewWASMFromBytes creates a WebAssembly backend from module bytes.
func NewWASMFromBytes(opts Options, module []byte) *WASM {
	return &WASM{opts: opts.withDefaults(), source: module}
}

func (w *WASM) Name() string { return WASMName }

// Initialize compiles and instantiates the module and checks its exports.
func (w *WASM) Initialize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.initialized {
		return nil
	}

	src := w.source
	if src == nil {
		if w.opts.Module == "" {
			return ErrNoModule
		}
		b, err := os.ReadFile(w.opts.Module)
		if err != nil {
			return fmt.Errorf("read wasm module: %w", err)
		}
		src = b
	}

	rt := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return fmt.Errorf("instantiate wasi: %w", err)
	}
	compiled, err := rt.CompileModule(ctx, src)
	if err != nil {
		rt.Close(ctx)
		return fmt.Errorf("compile wasm module: %w", err)
	}
	cfg := wazero.NewModuleConfig().WithName("compiler").WithStartFunctions("_initialize")
	mod, err := rt.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		rt.Close(ctx)
		return fmt.Errorf("instantiate wasm module: %w", err)
	}
	for _, fn := range []string{"alloc", "dealloc", "transform"} {
		if mod.ExportedFunction(fn) == nil {
			rt.Close(ctx)
			return fmt.Errorf("wasm module does not export %q", fn)
		}
	}

	w.rt, w.mod = rt, mod
	w.initialized = true
	return nil
}

func (w *WASM) Initialized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.initialized
}

func (w *WASM) IsSupported(filename string) bool { return isScript(filename) }

func (w *WASM) Transform(ctx context.Context, code string, opts TransformOptions) (string, error) {
	req, err := json.Marshal(wasmRequest{
		Code:            code,
		Filename:        opts.Filename,
		Target:          w.opts.Target,
		JSX:             string(w.opts.JSX),
		JSXImportSource: w.opts.JSXImportSource,
		SourceMap:       w.opts.SourceMap,
	})
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.initialized {
		return "", notInitialized(WASMName)
	}

	out, err := w.call(ctx, req)
	if err != nil {
		return "", fmt.Errorf("wasm transform %s: %w", opts.Filename, err)
	}

	var resp wasmResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return "", fmt.Errorf("decode wasm response: %w", err)
	}
	if resp.Error != nil {
		return "", &errors.CompileError{
			File:      opts.Filename,
			Line:      resp.Error.Line,
			Column:    resp.Error.Column,
			Message:   resp.Error.Message,
			CodeFrame: resp.Error.CodeFrame,
			Backend:   WASMName,
		}
	}
	return resp.Code, nil
}

// call copies req into module memory, runs transform and copies the
// response out. w.mu must be held.
func (w *WASM) call(ctx context.Context, req []byte) ([]byte, error) {
	alloc := w.mod.ExportedFunction("alloc")
	dealloc := w.mod.ExportedFunction("dealloc")
	transform := w.mod.ExportedFunction("transform")
	mem := w.mod.Memory()

	size := uint64(len(req))
	res, err := alloc.Call(ctx, size)
	if err != nil {
		return nil, err
	}
	in := res[0]
	defer dealloc.Call(ctx, in, size)

	if !mem.Write(uint32(in), req) {
		return nil, fmt.Errorf("request of %d bytes out of memory range", size)
	}
	res, err = transform.Call(ctx, in, size)
	if err != nil {
		return nil, err
	}
	outPtr, outLen := uint32(res[0]>>32), uint32(res[0])
	defer dealloc.Call(ctx, uint64(outPtr), uint64(outLen))

	view, ok := mem.Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("response of %d bytes out of memory range", outLen)
	}
	return append([]byte(nil), view...), nil
}

func (w *WASM) TransformWithPerformance(ctx context.Context, code string, opts TransformOptions) (*Result, error) {
	return timed(WASMName, func() (string, error) { return w.Transform(ctx, code, opts) })
}

// Close releases the runtime. The backend must be initialized again before
// further use.
func (w *WASM) Close(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rt == nil {
		return nil
	}
	err := w.rt.Close(ctx)
	w.rt, w.mod, w.initialized = nil, nil, false
	return err
}
