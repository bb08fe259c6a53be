package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/pipo/pkg/errors"
)

// Test modules implement the compiler ABI in a few instructions: alloc is a
// bump allocator, dealloc does nothing and transform either echoes its
// request or returns a response stored in a data segment.

const (
	wasmI32 = 0x7f
	wasmI64 = 0x7e

	responseOffset = 16
)

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func vec(items ...[]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmString(s string) []byte { return append(uleb(uint64(len(s))), s...) }

func section(id byte, content []byte) []byte {
	return append(append([]byte{id}, uleb(uint64(len(content)))...), content...)
}

func body(instrs ...byte) []byte {
	fn := append([]byte{0x00}, instrs...) // no locals
	fn = append(fn, 0x0b)
	return append(uleb(uint64(len(fn))), fn...)
}

// compilerModule builds a module that answers every transform with
// response, or echoes the request when response is empty.
func compilerModule(response string) []byte {
	transform := []byte{
		0x20, 0x00, // local.get ptr
		0xad,       // i64.extend_i32_u
		0x42, 0x20, // i64.const 32
		0x86,       // i64.shl
		0x20, 0x01, // local.get size
		0xad,       // i64.extend_i32_u
		0x84,       // i64.or
	}
	if response != "" {
		transform = append([]byte{0x42}, sleb(int64(responseOffset)<<32|int64(len(response)))...)
	}

	m := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	m = append(m, section(1, vec(
		[]byte{0x60, 0x01, wasmI32, 0x01, wasmI32},          // alloc
		[]byte{0x60, 0x02, wasmI32, wasmI32, 0x00},          // dealloc
		[]byte{0x60, 0x02, wasmI32, wasmI32, 0x01, wasmI64}, // transform
	))...)
	m = append(m, section(3, vec([]byte{0}, []byte{1}, []byte{2}))...)
	m = append(m, section(5, vec([]byte{0x00, 0x01}))...)
	m = append(m, section(6, vec(append([]byte{wasmI32, 0x01, 0x41}, append(sleb(1024), 0x0b)...)))...)
	m = append(m, section(7, vec(
		append(wasmString("memory"), 0x02, 0x00),
		append(wasmString("alloc"), 0x00, 0x00),
		append(wasmString("dealloc"), 0x00, 0x01),
		append(wasmString("transform"), 0x00, 0x02),
	))...)
	m = append(m, section(10, vec(
		body(0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00), // heap; heap += size
		body(),
		body(transform...),
	))...)
	if response != "" {
		seg := append([]byte{0x00, 0x41}, sleb(responseOffset)...)
		seg = append(seg, 0x0b)
		seg = append(seg, wasmString(response)...)
		m = append(m, section(11, vec(seg))...)
	}
	return m
}

func TestWASMTransform(t *testing.T) {
	ctx := context.Background()
	w := NewWASMFromBytes(Options{}, compilerModule(""))
	require.NoError(t, w.Initialize(ctx))
	t.Cleanup(func() { w.Close(ctx) })
	assert.True(t, w.Initialized())

	// The echo module returns the request, whose code field round-trips
	// through module memory.
	src := "export const greeting = \"héllo\";\n"
	for i := 0; i < 3; i++ {
		out, err := w.Transform(ctx, src, TransformOptions{Filename: "/a.ts"})
		require.NoError(t, err)
		assert.Equal(t, src, out)
	}

	res, err := w.TransformWithPerformance(ctx, src, TransformOptions{Filename: "/a.ts"})
	require.NoError(t, err)
	assert.Equal(t, WASMName, res.Performance.Backend)
	assert.Equal(t, len(src), res.Performance.OutputSize)
}

func TestWASMCompileError(t *testing.T) {
	ctx := context.Background()
	resp := `{"error":{"message":"Unexpected token","line":2,"column":4,"codeFrame":"> 2 | <div"}}`
	w := NewWASMFromBytes(Options{}, compilerModule(resp))
	require.NoError(t, w.Initialize(ctx))
	t.Cleanup(func() { w.Close(ctx) })

	_, err := w.Transform(ctx, "x", TransformOptions{Filename: "/Bad.tsx"})
	require.Error(t, err)
	ce, ok := errors.AsCompileError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "/Bad.tsx", ce.File)
	assert.Equal(t, 2, ce.Line)
	assert.Equal(t, 4, ce.Column)
	assert.Equal(t, "Unexpected token", ce.Message)
	assert.Equal(t, "> 2 | <div", ce.CodeFrame)
	assert.Equal(t, WASMName, ce.Backend)
}

func TestWASMFixedResponse(t *testing.T) {
	ctx := context.Background()
	w := NewWASMFromBytes(Options{}, compilerModule(`{"code":"compiled"}`))
	require.NoError(t, w.Initialize(ctx))
	t.Cleanup(func() { w.Close(ctx) })

	out, err := w.Transform(ctx, "anything", TransformOptions{Filename: "/a.js"})
	require.NoError(t, err)
	assert.Equal(t, "compiled", out)

	require.NoError(t, w.Close(ctx))
	_, err = w.Transform(ctx, "anything", TransformOptions{Filename: "/a.js"})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestWASMMissingExports(t *testing.T) {
	empty := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	err := NewWASMFromBytes(Options{}, empty).Initialize(context.Background())
	assert.ErrorContains(t, err, "does not export")
}

func TestCompareESBuildAndWASM(t *testing.T) {
	ctx := context.Background()
	m := NewManager(quiet())
	m.Register(ESBuildName, NewESBuild, Options{})
	m.Register(WASMName, func(o Options) Strategy {
		return NewWASMFromBytes(o, compilerModule(`{"code":"const x = 1;\n"}`))
	}, Options{})
	t.Cleanup(func() { m.Close(ctx) })

	cmp, err := m.Compare(ctx, "const x: number = 1;\n", TransformOptions{Filename: "/a.ts"})
	require.NoError(t, err)
	assert.Empty(t, cmp.Failures)
	require.Len(t, cmp.Results, 2)
	assert.Equal(t, ESBuildName, cmp.Results[0].Backend)
	assert.Equal(t, WASMName, cmp.Results[1].Backend)
	assert.Contains(t, []string{ESBuildName, WASMName}, cmp.Winner)
	assert.GreaterOrEqual(t, cmp.Speedup, 1.0)
}
