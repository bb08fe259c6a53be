package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type names a message variant.
type Type string

const (
	TypeRuntimeError        Type = "runtime-error"
	TypeElementClick        Type = "element-click"
	TypeConsoleLog          Type = "console-log"
	TypeToggleInspect       Type = "toggle-inspect"
	TypeDependencyError     Type = "dependency-error"
	TypeRequestInspectState Type = "request-inspect-state"
)

// Message is implemented by every variant.
type Message interface {
	Type() Type
}

// RuntimeError is sent by the sandbox for uncaught errors and rejections.
type RuntimeError struct {
	Message  string `json:"message,omitempty"`
	Filename string `json:"filename,omitempty"`
	Lineno   int    `json:"lineno,omitempty"`
	Colno    int    `json:"colno,omitempty"`
	Stack    string `json:"stack,omitempty"`
}

// ElementClick is sent when an instrumented element is clicked in inspect
// mode. Lines are 1-based, columns 0-based.
type ElementClick struct {
	File        string  `json:"file"`
	StartLine   int     `json:"startLine"`
	EndLine     int     `json:"endLine"`
	StartColumn int     `json:"startColumn"`
	EndColumn   int     `json:"endColumn"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// ConsoleLog mirrors a console call inside the sandbox.
type ConsoleLog struct {
	Level string `json:"level"`
	Args  []any  `json:"args"`
}

// ToggleInspect is sent by the host to switch inspect mode.
type ToggleInspect struct {
	Enabled bool `json:"enabled"`
}

// DependencyError reports an external module that failed to load.
type DependencyError struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

// RequestInspectState is sent by the sandbox after mounting to ask for
// the current inspect mode.
type RequestInspectState struct{}

func (RuntimeError) Type() Type        { return TypeRuntimeError }
func (ElementClick) Type() Type        { return TypeElementClick }
func (ConsoleLog) Type() Type          { return TypeConsoleLog }
func (ToggleInspect) Type() Type       { return TypeToggleInspect }
func (DependencyError) Type() Type     { return TypeDependencyError }
func (RequestInspectState) Type() Type { return TypeRequestInspectState }

// Envelope is the wire form of a message.
type Envelope struct {
	Type Type            `json:"type"`
	Pass string          `json:"pass,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ProtocolError describes a message that could not be decoded.
type ProtocolError struct {
	Type   Type // empty when the envelope itself was unreadable
	Reason string
	Cause  error
}

func (e *ProtocolError) Error() string {
	msg := "protocol: "
	if e.Type != "" {
		msg += string(e.Type) + ": "
	}
	msg += e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// IsProtocolError reports whether err is or wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// Encode returns the wire form of m for pass.
func Encode(pass string, m Message) ([]byte, error) {
	env := Envelope{Type: m.Type(), Pass: pass}
	if _, empty := m.(RequestInspectState); !empty {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", m.Type(), err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses and validates one wire message.
func Decode(raw []byte) (Envelope, Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, nil, &ProtocolError{Reason: "malformed envelope", Cause: err}
	}
	if env.Type == "" {
		return env, nil, &ProtocolError{Reason: "missing message type"}
	}
	m, err := decodeData(env.Type, env.Data)
	if err != nil {
		return env, nil, err
	}
	return env, m, nil
}

func decodeData(t Type, data json.RawMessage) (Message, error) {
	fail := func(reason string, cause error) error {
		return &ProtocolError{Type: t, Reason: reason, Cause: cause}
	}

	switch t {
	case TypeRuntimeError:
		var m RuntimeError
		if err := unmarshalObject(data, &m); err != nil {
			return nil, fail("invalid payload", err)
		}
		return m, nil

	case TypeElementClick:
		var w struct {
			File        *string  `json:"file"`
			StartLine   *float64 `json:"startLine"`
			EndLine     *float64 `json:"endLine"`
			StartColumn *float64 `json:"startColumn"`
			EndColumn   *float64 `json:"endColumn"`
			X           *float64 `json:"x"`
			Y           *float64 `json:"y"`
		}
		if err := unmarshalObject(data, &w); err != nil {
			return nil, fail("invalid payload", err)
		}
		if w.File == nil || w.StartLine == nil || w.EndLine == nil || w.StartColumn == nil ||
			w.EndColumn == nil || w.X == nil || w.Y == nil {
			return nil, fail("missing fields", nil)
		}
		return ElementClick{
			File:        *w.File,
			StartLine:   int(*w.StartLine),
			EndLine:     int(*w.EndLine),
			StartColumn: int(*w.StartColumn),
			EndColumn:   int(*w.EndColumn),
			X:           *w.X,
			Y:           *w.Y,
		}, nil

	case TypeConsoleLog:
		var w struct {
			Level string `json:"level"`
			Args  []any  `json:"args"`
		}
		if err := unmarshalObject(data, &w); err != nil {
			return nil, fail("invalid payload", err)
		}
		if w.Level == "" {
			w.Level = "log"
		}
		return ConsoleLog{Level: w.Level, Args: w.Args}, nil

	case TypeToggleInspect:
		var w struct {
			Enabled *bool `json:"enabled"`
		}
		if err := unmarshalObject(data, &w); err != nil {
			return nil, fail("invalid payload", err)
		}
		if w.Enabled == nil {
			return nil, fail("missing enabled", nil)
		}
		return ToggleInspect{Enabled: *w.Enabled}, nil

	case TypeDependencyError:
		var w struct {
			Name  *string `json:"name"`
			URL   *string `json:"url"`
			Error *string `json:"error"`
		}
		if err := unmarshalObject(data, &w); err != nil {
			return nil, fail("invalid payload", err)
		}
		if w.Name == nil || w.URL == nil || w.Error == nil {
			return nil, fail("missing fields", nil)
		}
		return DependencyError{Name: *w.Name, URL: *w.URL, Error: *w.Error}, nil

	case TypeRequestInspectState:
		return RequestInspectState{}, nil

	default:
		return nil, fail("unknown message type", nil)
	}
}

// unmarshalObject requires data to be a JSON object.
func unmarshalObject(data json.RawMessage, v any) error {
	if len(data) == 0 || data[0] != '{' {
		return errors.New("payload is not an object")
	}
	return json.Unmarshal(data, v)
}
