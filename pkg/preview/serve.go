package preview

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pipo/pkg/protocol"
)

// Drop reasons reported to the channel hooks.
const (
	dropStale     = "stale pass"
	dropMalformed = "malformed"
	dropInspect   = "inspect disabled"
	dropUnknown   = "unexpected type"
	dropUnmapped  = "unmapped"
)

// Attach makes ch the sandbox channel. A previously attached channel is
// closed, which ends the Serve loop reading it.
func (s *Session) Attach(ch protocol.Channel) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	prev := s.ch
	s.ch = ch
	s.mu.Unlock()

	if prev != nil && prev != ch {
		_ = prev.Close()
	}
	s.logger.Debug("sandbox attached", "pass", ch.Pass())
	return nil
}

// detach clears ch if it is still the attached channel.
func (s *Session) detach(ch protocol.Channel) {
	s.mu.Lock()
	if s.ch == ch {
		s.ch = nil
	}
	s.mu.Unlock()
}

// Serve reads ch, a channel passed to [Session.Attach], and dispatches its
// messages until ctx is done or ch closes. Stale and malformed messages are
// dropped and the loop continues. A closed channel, including one replaced
// by a later Attach, ends Serve with a nil error.
func (s *Session) Serve(ctx context.Context, ch protocol.Channel) error {
	if ch == nil {
		return fmt.Errorf("serve: nil channel")
	}
	defer s.detach(ch)

	for {
		m, err := ch.Receive(ctx)
		switch {
		case err == nil:
		case stderrors.Is(err, protocol.ErrClosed):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case stderrors.Is(err, protocol.ErrStale):
			s.drop(ctx, ch.Pass(), "", dropStale)
			continue
		case protocol.IsProtocolError(err):
			s.logger.Warn("dropping sandbox message", "err", err)
			var pe *protocol.ProtocolError
			stderrors.As(err, &pe)
			s.drop(ctx, ch.Pass(), string(pe.Type), dropMalformed)
			continue
		default:
			return err
		}

		// The channel belongs to a pass that has since been replaced.
		if protocol.Stale(s.PassID(), ch.Pass()) {
			s.drop(ctx, ch.Pass(), string(m.Type()), dropStale)
			continue
		}
		s.hooks.OnMessage(ctx, ch.Pass(), string(m.Type()))
		s.dispatch(ctx, ch, m)
	}
}

func (s *Session) drop(ctx context.Context, pass, typ, reason string) {
	s.logger.Debug("dropped sandbox message", "pass", pass, "type", typ, "reason", reason)
	s.hooks.OnDrop(ctx, pass, typ, reason)
}

func (s *Session) dispatch(ctx context.Context, ch protocol.Channel, m protocol.Message) {
	switch m := m.(type) {
	case protocol.RuntimeError:
		info := s.mapper.ProcessRuntimeError(m)
		s.logger.Error("runtime error", "file", info.FileName, "line", info.Line, "msg", info.Message)
		s.cb.OnError(info)

	case protocol.ElementClick:
		if !s.Inspecting() {
			s.drop(ctx, ch.Pass(), string(m.Type()), dropInspect)
			return
		}
		info, ok := s.mapper.ResolveClick(m)
		if !ok {
			s.logger.Warn("click on unknown file", "file", m.File)
			s.drop(ctx, ch.Pass(), string(m.Type()), dropUnmapped)
			return
		}
		s.cb.OnElementClick(info)

	case protocol.ConsoleLog:
		s.console.Log(consoleLevel(m.Level), "console", "args", m.Args)
		s.cb.OnConsole(m)

	case protocol.DependencyError:
		s.logger.Warn("dependency failed to load", "name", m.Name, "url", m.URL, "err", m.Error)
		go s.cb.OnDependencyError(m)

	case protocol.RequestInspectState:
		if err := ch.Send(ctx, protocol.ToggleInspect{Enabled: s.Inspecting()}); err != nil {
			s.logger.Warn("reply inspect state", "err", err)
		}

	default:
		s.drop(ctx, ch.Pass(), string(m.Type()), dropUnknown)
	}
}

func consoleLevel(level string) log.Level {
	switch level {
	case "error":
		return log.ErrorLevel
	case "warn":
		return log.WarnLevel
	case "debug":
		return log.DebugLevel
	default:
		return log.InfoLevel
	}
}
