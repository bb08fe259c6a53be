// Package preview drives a live preview for a host.
//
// A [Session] owns a compilation runner, the error mapper and the inspect
// state. Every compile starts a new pass with a monotonically increasing id;
// the previous pass's modules are disposed first and any message the sandbox
// still sends for it is dropped. Host code observes a session through
// [Callbacks].
//
// # Usage
//
//	s := preview.New(preview.Config{
//	    Runner:    runner,
//	    Channel:   func(pass string) string { return "/ws/" + pass },
//	    Callbacks: preview.Callbacks{OnError: report},
//	}, logger)
//	pass, err := s.Compile(ctx, pipeline.Input{Files: files})
//
// The sandbox channel is attached with [Session.Attach] and served with
// [Session.Serve], usually from a websocket handler.
package preview
