// Package tunnel implements the server-side framing layer that interprets
// the attach stream's inbound bytes as a multiplexed transport carrying
// sub-RPC calls, dispatches them to registered handlers, and returns framed
// responses and terminal status on the same stream (spec.md §4.5).
package tunnel

import (
	"encoding/json"
	"fmt"

	"github.com/arcbox-labs/buildkit-client/internal/codec"
)

// FrameKind tags a multiplexed tunnel frame.
type FrameKind int

const (
	// FrameOpen is sent by the peer to open a sub-RPC against MethodPath.
	FrameOpen FrameKind = iota
	// FrameData carries one handler-level message in either direction.
	FrameData
	// FrameStatus is the terminal frame the dispatcher sends exactly once
	// per completed sub-RPC.
	FrameStatus
)

// Frame is the unit multiplexed over the attach stream: every frame names
// the sub-RPC id it belongs to so concurrent sub-RPCs can share one byte
// stream without their payloads interleaving mid-message.
type Frame struct {
	SubID      uint64     `json:"sub_id"`
	Kind       FrameKind  `json:"kind"`
	MethodPath string     `json:"method_path,omitempty"`
	Payload    []byte     `json:"payload,omitempty"`
	StatusCode uint32     `json:"status_code,omitempty"`
	StatusMsg  string     `json:"status_msg,omitempty"`
}

// encodeFrame serializes f and wraps it in the tunnel's length-prefixed
// frame layout (internal/codec.Encode), ready to push onto the attach
// stream.
func encodeFrame(f Frame) ([]byte, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("tunnel: marshaling frame: %w", err)
	}
	return codec.Encode(body), nil
}

// decodeFrame parses one reassembled frame body (already stripped of the
// length-prefix by codec.Reassembler) into a Frame.
func decodeFrame(body []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(body, &f); err != nil {
		return Frame{}, fmt.Errorf("tunnel: decoding frame: %w", err)
	}
	return f, nil
}
