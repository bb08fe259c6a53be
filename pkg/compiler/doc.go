// Package compiler turns instrumented TypeScript/JSX into browser-loadable
// ES modules.
//
// Backends implement [Strategy]. Two are provided:
//
//   - [ESBuild] compiles in-process with esbuild. It is the baseline: it
//     needs no external assets and always initializes.
//   - [WASM] runs a compiler packaged as a WebAssembly module under wazero.
//
// A [Manager] owns the registered strategies. It initializes the requested
// one, falls back to the baseline when that fails, and dispatches each
// transform to the default or a per-call backend. [Manager.Compare] runs
// every backend on the same input and reports the faster one.
//
// Backends only rewrite syntax. Import resolution and instrumentation happen
// earlier, in package instrument.
package compiler
