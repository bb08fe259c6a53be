// Package modules holds compiled modules for one compilation pass.
//
// Each compiled file is registered under an opaque [Reference] whose URL the
// sandbox can import. All references of a pass form one disposal group: a
// [Registry] is created per pass and [Registry.Dispose] invalidates every
// reference it handed out.
//
// Compiled code lives in a [Store]:
//   - [MemoryStore]: process memory, for the CLI and tests
//   - [RedisStore]: Redis with a TTL on every key, for a preview server
//     shared by several processes
//
// Neither store outlives its session: groups are deleted on dispose and
// Redis keys expire on their own.
//
// # Usage
//
//	reg := modules.NewRegistry(modules.NewMemoryStore(), "http://localhost:5173", "3")
//	ref, err := reg.Register(ctx, "/App.tsx", code)
//	// ref.URL == "http://localhost:5173/m/3/<uuid>.js"
//	defer reg.Dispose(ctx)
package modules
