package tunnel

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

// fakeStream is an in-process Stream: the test drives it as the peer side
// of the attach stream, the same role a real grpc.ClientStream would play.
type fakeStream struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		in:   make(chan []byte, 16),
		out:  make(chan []byte, 16),
		done: make(chan struct{}),
	}
}

func (f *fakeStream) Send(b []byte) error {
	select {
	case f.out <- b:
		return nil
	case <-f.done:
		return io.ErrClosedPipe
	}
}

func (f *fakeStream) Recv() ([]byte, error) {
	select {
	case b, ok := <-f.in:
		if !ok {
			return nil, io.EOF
		}
		return b, nil
	case <-f.done:
		return nil, io.EOF
	}
}

// closePeer simulates the peer hanging up its side of the attach stream.
func (f *fakeStream) closePeer() {
	close(f.in)
}

func (f *fakeStream) sendFrame(t *testing.T, fr Frame) {
	t.Helper()
	blob, err := encodeFrame(fr)
	require.NoError(t, err)
	f.in <- blob
}

func (f *fakeStream) recvFrame(t *testing.T) Frame {
	t.Helper()
	select {
	case blob := <-f.out:
		fr, err := decodeFrame(blob)
		require.NoError(t, err)
		return fr
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame from the dispatcher")
		return Frame{}
	}
}

func TestDispatcherEchoesThenEmitsOKStatus(t *testing.T) {
	echo := HandlerFunc(func(ctx context.Context, ch *Channel) error {
		payload, err := ch.ReadFrame(ctx)
		if err != nil {
			return err
		}
		return ch.WriteFrame(ctx, payload)
	})

	stream := newFakeStream()
	d := NewDispatcher(stream, map[string]Handler{"/test/Echo": echo})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()

	stream.sendFrame(t, Frame{SubID: 1, Kind: FrameOpen, MethodPath: "/test/Echo"})
	stream.sendFrame(t, Frame{SubID: 1, Kind: FrameData, Payload: []byte("ping")})

	data := stream.recvFrame(t)
	assert.Equal(t, FrameData, data.Kind)
	assert.Equal(t, []byte("ping"), data.Payload)

	st := stream.recvFrame(t)
	assert.Equal(t, FrameStatus, st.Kind)
	assert.Equal(t, uint32(codes.OK), st.StatusCode)

	cancel()
	<-runDone
}

func TestDispatcherRejectsUnregisteredMethod(t *testing.T) {
	stream := newFakeStream()
	d := NewDispatcher(stream, map[string]Handler{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()

	stream.sendFrame(t, Frame{SubID: 7, Kind: FrameOpen, MethodPath: "/no/such/Method"})

	st := stream.recvFrame(t)
	assert.Equal(t, FrameStatus, st.Kind)
	assert.Equal(t, uint32(codes.Unimplemented), st.StatusCode)

	cancel()
	<-runDone
}

func TestDispatcherRunReturnsWhenPeerStreamCloses(t *testing.T) {
	blocked := make(chan struct{})
	handler := HandlerFunc(func(ctx context.Context, ch *Channel) error {
		_, err := ch.ReadFrame(ctx)
		close(blocked)
		return err
	})

	stream := newFakeStream()
	d := NewDispatcher(stream, map[string]Handler{"/test/Blocked": handler})

	ctx := context.Background()
	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()

	stream.sendFrame(t, Frame{SubID: 1, Kind: FrameOpen, MethodPath: "/test/Blocked"})
	stream.closePeer()

	select {
	case err := <-runDone:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not exit after the peer stream closed")
	}

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("handler was never unblocked by the shutdown path")
	}
}

func TestDispatcherConcurrentSubRPCsDoNotInterleaveMidMessage(t *testing.T) {
	echo := HandlerFunc(func(ctx context.Context, ch *Channel) error {
		payload, err := ch.ReadFrame(ctx)
		if err != nil {
			return err
		}
		return ch.WriteFrame(ctx, payload)
	})

	stream := newFakeStream()
	d := NewDispatcher(stream, map[string]Handler{"/test/Echo": echo})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- d.Run(ctx) }()

	const subs = 8
	for i := uint64(1); i <= subs; i++ {
		stream.sendFrame(t, Frame{SubID: i, Kind: FrameOpen, MethodPath: "/test/Echo"})
		stream.sendFrame(t, Frame{SubID: i, Kind: FrameData, Payload: []byte{byte(i)}})
	}

	gotData := map[uint64]bool{}
	gotStatus := map[uint64]bool{}
	for len(gotStatus) < subs {
		fr := stream.recvFrame(t)
		switch fr.Kind {
		case FrameData:
			assert.Equal(t, []byte{byte(fr.SubID)}, fr.Payload, "payload must match its own sub-RPC id, never a neighbor's")
			gotData[fr.SubID] = true
		case FrameStatus:
			assert.Equal(t, uint32(codes.OK), fr.StatusCode)
			gotStatus[fr.SubID] = true
		}
	}
	assert.Len(t, gotData, subs)
	assert.Len(t, gotStatus, subs)

	cancel()
	<-runDone
}
