package tunnel

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arcbox-labs/buildkit-client/internal/codec"
)

// Stream is the narrow capability the dispatcher needs from the outer
// transport: send and receive opaque byte blobs on the attach stream. The
// control client adapts its grpc.ClientStream to this (pkg/buildkit's
// attachStream); tests supply an in-process fake.
type Stream interface {
	Send([]byte) error
	Recv() ([]byte, error)
}

// inboundBacklog bounds how many not-yet-consumed inbound payloads a
// sub-RPC may accumulate; once it is full the dispatcher's reader blocks,
// which stalls reading for every sub-RPC on the stream. outboundLane bounds the per-sub-RPC write queue the spec requires
// so a slow peer reader can't grow memory unboundedly.
const (
	inboundBacklog = 64
	outboundLane   = 16
)

type subState struct {
	id     uint64
	in     chan []byte
	outbox chan []byte
	done   chan struct{}
}

// Dispatcher owns the attach stream and routes inbound sub-RPC openings to
// registered handlers, per spec.md §4.5. It multiplexes an arbitrary number
// of concurrent sub-RPCs over the single byte stream: one reassembler runs
// over the whole stream and complete frames are demultiplexed by sub-RPC id,
// each sub-RPC has its own bounded write lane, and a single serializer goroutine
// owns the physical write side so frames from different sub-RPCs never
// interleave mid-message.
type Dispatcher struct {
	stream   Stream
	handlers map[string]Handler

	mu   sync.Mutex
	subs map[uint64]*subState

	writeQueue chan Frame
	wg         sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher bound to stream, dispatching inbound
// sub-RPC opens against handlers (method path -> Handler). handlers is not
// copied; the caller must not mutate it after the session has started (the
// registry is frozen at Session.start, see pkg/buildkit.Session).
func NewDispatcher(stream Stream, handlers map[string]Handler) *Dispatcher {
	return &Dispatcher{
		stream:     stream,
		handlers:   handlers,
		subs:       make(map[uint64]*subState),
		writeQueue: make(chan Frame, outboundLane),
	}
}

// Run drives the dispatcher until ctx is canceled or the attach stream
// errors. It blocks; callers typically invoke it from its own goroutine and
// cancel ctx to request an orderly shutdown.
func (d *Dispatcher) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		d.runWriter(runCtx)
	}()

	err := d.runReader(runCtx)

	cancel()
	d.closeAllSubs()
	d.wg.Wait()
	<-writerDone

	return err
}

// runReader pulls blobs off the attach stream, reassembles them into
// tunnel Frames, and routes each to the right sub-RPC.
func (d *Dispatcher) runReader(ctx context.Context) error {
	var reasm codec.Reassembler
	for {
		blob, err := d.stream.Recv()
		if err != nil {
			return err
		}

		frameBodies, err := reasm.Feed(blob)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}

		for _, body := range frameBodies {
			f, err := decodeFrame(body)
			if err != nil {
				return err
			}
			d.route(ctx, f)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) route(ctx context.Context, f Frame) {
	switch f.Kind {
	case FrameOpen:
		d.openSub(ctx, f)
	case FrameData:
		d.mu.Lock()
		sub, ok := d.subs[f.SubID]
		d.mu.Unlock()
		if !ok {
			return // sub already closed; peer frame raced the terminal status
		}
		select {
		case sub.in <- f.Payload:
		case <-sub.done:
		case <-ctx.Done():
		}
	case FrameStatus:
		// The dispatcher never expects an inbound terminal status on this
		// role (it is the one that emits them); treat it as the peer
		// aborting its half of the sub-RPC early.
		d.mu.Lock()
		sub, ok := d.subs[f.SubID]
		if ok {
			delete(d.subs, f.SubID)
		}
		d.mu.Unlock()
		if ok {
			close(sub.in)
		}
	}
}

// openSub looks up the handler for f.MethodPath and, if present, spawns it
// against a freshly constructed per-sub-RPC channel. If absent, it emits the
// UNIMPLEMENTED terminal status the spec requires without ever invoking a
// handler.
func (d *Dispatcher) openSub(ctx context.Context, f Frame) {
	handler, ok := d.handlers[f.MethodPath]
	if !ok {
		d.enqueueStatus(ctx, f.SubID, status.New(codes.Unimplemented, fmt.Sprintf("tunnel: no handler registered for %s", f.MethodPath)))
		return
	}

	sub := &subState{
		id:     f.SubID,
		in:     make(chan []byte, inboundBacklog),
		outbox: make(chan []byte, outboundLane),
		done:   make(chan struct{}),
	}

	d.mu.Lock()
	d.subs[f.SubID] = sub
	d.mu.Unlock()

	// Pump this sub-RPC's outbox into the shared write queue so the
	// serializer goroutine remains the sole writer of the physical stream,
	// while each sub-RPC still gets its own bounded lane to block against.
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer close(sub.done)
		d.pumpOutbox(ctx, sub)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runHandler(ctx, handler, sub)
	}()
}

func (d *Dispatcher) pumpOutbox(ctx context.Context, sub *subState) {
	for {
		select {
		case payload, ok := <-sub.outbox:
			if !ok {
				return
			}
			select {
			case d.writeQueue <- Frame{SubID: sub.id, Kind: FrameData, Payload: payload}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// runHandler constructs the Channel capability for sub, runs the handler to
// completion, ensures exactly one terminal status frame is emitted (the
// spec's termination invariant), then tears down the sub's bookkeeping.
func (d *Dispatcher) runHandler(ctx context.Context, handler Handler, sub *subState) {
	ch := &Channel{id: sub.id, in: sub.in, outbox: sub.outbox}

	err := handler.Handle(ctx, ch)

	close(sub.outbox)
	// Wait for pumpOutbox to drain every already-buffered payload into the
	// shared write queue before queuing the terminal status, so the status
	// frame can never race ahead of this sub-RPC's own data frames.
	<-sub.done

	d.mu.Lock()
	delete(d.subs, sub.id)
	d.mu.Unlock()

	st := statusFromError(err)
	d.enqueueStatus(ctx, sub.id, st)
}

func statusFromError(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if s, ok := status.FromError(err); ok {
		return s
	}
	return status.New(codes.Internal, err.Error())
}

// enqueueStatus queues subID's terminal status frame onto the shared write
// queue. The select against ctx is the other half of the cancellation
// handshake Run performs: once the attach stream dies, runWriter stops
// draining writeQueue, so without this escape a runHandler goroutine could
// block here forever and d.wg.Wait() in Run would never return.
func (d *Dispatcher) enqueueStatus(ctx context.Context, subID uint64, st *status.Status) {
	select {
	case d.writeQueue <- Frame{
		SubID:      subID,
		Kind:       FrameStatus,
		StatusCode: uint32(st.Code()),
		StatusMsg:  st.Message(),
	}:
	case <-ctx.Done():
	}
}

// runWriter is the single serializer goroutine that owns the attach
// stream's physical write side: it drains the shared write queue and
// encodes+sends one frame at a time, so frames from distinct sub-RPCs can
// interleave only at frame boundaries, never mid-message.
func (d *Dispatcher) runWriter(ctx context.Context) {
	for {
		select {
		case f, ok := <-d.writeQueue:
			if !ok {
				return
			}
			blob, err := encodeFrame(f)
			if err != nil {
				continue
			}
			if err := d.stream.Send(blob); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// closeAllSubs signals every still-open sub-RPC's inbound channel so
// blocked handlers observe io.EOF-equivalent cancellation promptly, per the
// spec's "attach stream dies first" termination path.
func (d *Dispatcher) closeAllSubs() {
	d.mu.Lock()
	subs := make([]*subState, 0, len(d.subs))
	for _, s := range d.subs {
		subs = append(subs, s)
	}
	d.subs = make(map[uint64]*subState)
	d.mu.Unlock()

	for _, s := range subs {
		close(s.in)
	}
}
