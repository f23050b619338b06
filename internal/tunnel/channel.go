package tunnel

import (
	"context"
	"io"
)

// Channel is the narrow capability a Handler needs from the dispatcher: read
// the next inbound frame, write an outbound frame, and nothing else. This is
// the design-notes fix for the Session/Dispatcher/Handler cycle: handlers
// hold a Channel, never a back-reference to the session or the dispatcher
// itself.
type Channel struct {
	id     uint64
	in     <-chan []byte
	outbox chan<- []byte
}

// ReadFrame blocks until the next inbound payload for this sub-RPC arrives,
// the context is canceled, or the attach stream closes. A closed channel
// with no pending data yields io.EOF, the signal handlers use to treat a
// peer write-half close as a graceful abort.
func (c *Channel) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case payload, ok := <-c.in:
		if !ok {
			return nil, io.EOF
		}
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WriteFrame enqueues an outbound payload on this sub-RPC's write lane. It
// blocks if the lane is full, providing the back-pressure the spec requires
// when a slow peer reader would otherwise let memory grow unbounded.
func (c *Channel) WriteFrame(ctx context.Context, payload []byte) error {
	select {
	case c.outbox <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler is the tagged-variant contract every callback kind implements:
// read framed request(s), write framed response(s), and return. The
// dispatcher sends the terminal status frame derived from the returned
// error; Handle itself never writes a status frame.
type Handler interface {
	Handle(ctx context.Context, ch *Channel) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, ch *Channel) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, ch *Channel) error {
	return f(ctx, ch)
}
