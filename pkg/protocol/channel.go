package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrClosed is returned by channel operations after Close.
	ErrClosed = errors.New("channel closed")

	// ErrStale is returned by Receive for a message of another pass.
	ErrStale = errors.New("message from a superseded pass")
)

// Channel carries messages of one pass between host and sandbox.
//
// Receive returns a *ProtocolError for a malformed message and an error
// wrapping ErrStale for a message of another pass; the channel stays
// usable after both.
type Channel interface {
	Send(ctx context.Context, m Message) error
	Receive(ctx context.Context) (Message, error)
	Pass() string
	Close() error
}

// Stale reports whether a message tagged with pass must be dropped by a
// receiver on current. Untagged messages are accepted.
func Stale(current, pass string) bool {
	return pass != "" && pass != current
}

// decodeFor decodes raw and applies the pass filter.
func decodeFor(current string, raw []byte) (Message, error) {
	env, m, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if Stale(current, env.Pass) {
		return nil, fmt.Errorf("%w: %s (pass %s, current %s)", ErrStale, env.Type, env.Pass, current)
	}
	return m, nil
}

// =============================================================================
// WebSocket
// =============================================================================

// WSChannel is a Channel over a websocket connection.
type WSChannel struct {
	conn *websocket.Conn
	pass string

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewWSChannel wraps an established connection.
func NewWSChannel(conn *websocket.Conn, pass string) *WSChannel {
	return &WSChannel{conn: conn, pass: pass}
}

// Dial connects to a sandbox channel endpoint.
func Dial(ctx context.Context, url, pass string) (*WSChannel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWSChannel(conn, pass), nil
}

func (c *WSChannel) Pass() string { return c.pass }

func (c *WSChannel) Send(ctx context.Context, m Message) error {
	data, err := Encode(c.pass, m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if d, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(d)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return c.wrap(err)
	}
	return nil
}

func (c *WSChannel) Receive(ctx context.Context) (Message, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, c.wrap(err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		return decodeFor(c.pass, data)
	}
}

func (c *WSChannel) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *WSChannel) wrap(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}

var _ Channel = (*WSChannel)(nil)

// =============================================================================
// Pipe
// =============================================================================

// pipeBuffer is the number of messages an end buffers before Send blocks.
const pipeBuffer = 64

// PipeEnd is one side of a [Pipe].
type PipeEnd struct {
	pass string
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once *sync.Once
}

// Pipe returns two connected in-memory ends for pass. Messages are
// encoded and decoded exactly as on a websocket. Closing either end
// closes both.
func Pipe(pass string) (host, sandbox *PipeEnd) {
	a := make(chan []byte, pipeBuffer)
	b := make(chan []byte, pipeBuffer)
	done := make(chan struct{})
	once := new(sync.Once)
	host = &PipeEnd{pass: pass, in: a, out: b, done: done, once: once}
	sandbox = &PipeEnd{pass: pass, in: b, out: a, done: done, once: once}
	return host, sandbox
}

func (p *PipeEnd) Pass() string { return p.pass }

func (p *PipeEnd) Send(ctx context.Context, m Message) error {
	data, err := Encode(p.pass, m)
	if err != nil {
		return err
	}
	return p.SendRaw(ctx, data)
}

// SendRaw sends bytes as they are, without encoding.
func (p *PipeEnd) SendRaw(ctx context.Context, data []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- data:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PipeEnd) Receive(ctx context.Context) (Message, error) {
	select {
	case data := <-p.in:
		return decodeFor(p.pass, data)
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

var _ Channel = (*PipeEnd)(nil)
