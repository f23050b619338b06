// Package codec implements the wire encodings used inside the session
// tunnel: a length-prefixed frame layout for carrying arbitrary messages
// over the attach stream, and a pluggable gRPC codec for the outer control
// surface.
package codec

import (
	"encoding/binary"
	"fmt"
)

// MaxFrameSize is the safety ceiling on a single frame's declared payload
// length. A daemon announcing a larger frame is treated as a fatal protocol
// error rather than an invitation to allocate unbounded memory.
const MaxFrameSize = 16 << 20 // 16 MiB

const frameHeaderSize = 5 // 1 byte compression flag + 4 byte big-endian length

// Encode wraps payload in the tunnel's frame layout: [flag][len:u32 big
// endian][payload]. The compression flag is always zero; this system never
// compresses tunnel traffic.
func Encode(payload []byte) []byte {
	out := make([]byte, frameHeaderSize+len(payload))
	out[0] = 0
	binary.BigEndian.PutUint32(out[1:5], uint32(len(payload)))
	copy(out[5:], payload)
	return out
}

// Reassembler accumulates bytes read off the tunnel stream and yields
// complete frames as they become available, buffering any trailing partial
// frame for the next call.
type Reassembler struct {
	buf []byte
}

// Feed appends chunk to the reassembly buffer and returns every complete
// frame payload it can now extract, in order. Partial frames remain
// buffered. An error here is always fatal to the tunnel: the daemon declared
// a frame larger than MaxFrameSize.
func (r *Reassembler) Feed(chunk []byte) ([][]byte, error) {
	r.buf = append(r.buf, chunk...)

	var frames [][]byte
	for {
		if len(r.buf) < frameHeaderSize {
			break
		}
		length := binary.BigEndian.Uint32(r.buf[1:5])
		if length > MaxFrameSize {
			return frames, fmt.Errorf("codec: frame length %d exceeds ceiling %d", length, MaxFrameSize)
		}
		total := frameHeaderSize + int(length)
		if len(r.buf) < total {
			break
		}
		payload := make([]byte, length)
		copy(payload, r.buf[frameHeaderSize:total])
		frames = append(frames, payload)
		r.buf = r.buf[total:]
	}

	// Keep the residual tail from growing the backing array unboundedly
	// across many small Feed calls.
	if len(r.buf) == 0 {
		r.buf = nil
	}

	return frames, nil
}

// Residual returns the bytes currently buffered as an incomplete frame.
func (r *Reassembler) Residual() []byte {
	return r.buf
}
