// Package buildkit implements the session protocol plane client described
// in spec.md: session lifecycle, DiffCopy and other callback handlers, the
// tunnel-carrying attach stream, and the outer control client that drives
// a BuildKit-compatible daemon's Solve/Status/Session/Info RPCs.
package buildkit

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/arcbox-labs/buildkit-client/internal/grpcutil"
	"github.com/arcbox-labs/buildkit-client/internal/tunnel"
)

// The outer control surface's full method names (spec.md §6), invoked
// directly by name since no generated protobuf stub exists for them
// (SPEC_FULL.md §4.9): the client's JSON encoding.Codec lets grpc.ClientConn
// drive them with plain Go structs the same way a reflection-based dynamic
// client would.
const (
	methodSolve   = "/moby.buildkit.v1.Control/Solve"
	methodStatus  = "/moby.buildkit.v1.Control/Status"
	methodSession = "/moby.buildkit.v1.Control/Session"
	methodInfo    = "/moby.buildkit.v1.Control/Info"
)

// DaemonInfo is the Info RPC's response, used only for health checks.
type DaemonInfo struct {
	Version string `json:"version"`
}

// StatusRequest opens the Status stream for one in-flight build.
type StatusRequest struct {
	Ref string `json:"ref"`
}

// StatusEvent is one server-streamed progress update (spec.md §4.6).
type StatusEvent struct {
	Vertexes []VertexState `json:"vertexes,omitempty"`
	Logs     []LogLine     `json:"logs,omitempty"`
	Stats    []Stat        `json:"stats,omitempty"`
}

// LogLine is one log chunk attributed to a vertex.
type LogLine struct {
	Vertex string `json:"vertex"`
	Data   []byte `json:"data"`
}

// Client is the outer control client: it owns the gRPC connection to the
// daemon and exposes the four RPCs the session protocol plane needs
// (spec.md §6).
type Client struct {
	conn *grpc.ClientConn
}

// Dial establishes the outer transport to the daemon at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, err := grpcutil.Dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("buildkit: dialing %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the outer connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Info invokes the Info RPC, used only for health checks (spec.md §6).
func (c *Client) Info(ctx context.Context) (*DaemonInfo, error) {
	var resp DaemonInfo
	if err := c.conn.Invoke(ctx, methodInfo, &struct{}{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// solve invokes the Solve RPC with md attached as outgoing metadata, per
// spec.md §4.7's session metadata contract.
func (c *Client) solve(ctx context.Context, req SolveRequest, md metadata.MD) (*SolveResponse, error) {
	ctx = metadata.NewOutgoingContext(ctx, md)
	var resp SolveResponse
	if err := c.conn.Invoke(ctx, methodSolve, &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// subscribeStatus opens the server-streaming Status RPC for ref and
// forwards every event to sink until the stream closes, in daemon-emission
// order (spec.md §4.6, §5).
func (c *Client) subscribeStatus(ctx context.Context, ref string, sink ProgressSink) error {
	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{StreamName: "Status", ServerStreams: true}, methodStatus)
	if err != nil {
		return fmt.Errorf("buildkit: opening status stream: %w", err)
	}
	if err := stream.SendMsg(&StatusRequest{Ref: ref}); err != nil {
		return fmt.Errorf("buildkit: sending status request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("buildkit: closing status send side: %w", err)
	}

	for {
		var ev StatusEvent
		err := stream.RecvMsg(&ev)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("buildkit: receiving status event: %w", err)
		}
		for _, v := range ev.Vertexes {
			sink.OnVertex(v)
		}
		for _, l := range ev.Logs {
			sink.OnLog(l.Vertex, l.Data)
		}
		for _, s := range ev.Stats {
			sink.OnStat(s)
		}
	}
}

// openAttachStream opens the bidirectional Session RPC that carries the
// tunnel (spec.md §6).
func (c *Client) openAttachStream(ctx context.Context, md metadata.MD) (tunnel.Stream, error) {
	ctx = metadata.NewOutgoingContext(ctx, md)
	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{StreamName: "Session", ServerStreams: true, ClientStreams: true}, methodSession)
	if err != nil {
		return nil, fmt.Errorf("buildkit: opening attach stream: %w", err)
	}
	return &attachStream{s: stream}, nil
}

// attachStream adapts a raw grpc.ClientStream into tunnel.Stream: each
// BytesBlob exchanged over the Session RPC is an opaque []byte chunk of the
// tunnel byte stream (spec.md §6).
type attachStream struct {
	s grpc.ClientStream
}

func (a *attachStream) Send(b []byte) error {
	return a.s.SendMsg(&b)
}

func (a *attachStream) Recv() ([]byte, error) {
	var b []byte
	if err := a.s.RecvMsg(&b); err != nil {
		return nil, err
	}
	return b, nil
}

var _ tunnel.Stream = (*attachStream)(nil)
