package netadapter

import (
	"github.com/pkg/errors"
	"github.com/spvd/spvd/wire"
)

// ErrReassemblerPoisoned is returned by Feed once the stream has been found
// corrupt. A corrupt stream cannot be resynchronized.
var ErrReassemblerPoisoned = errors.New("reassembler was fed a corrupt stream")

// Reassembler turns the arbitrarily fragmented byte stream of a single
// connection into frames. It is not safe for concurrent use.
type Reassembler struct {
	codec  *wire.FrameCodec
	buf    []byte
	broken error
}

// NewReassembler returns a Reassembler decoding frames with codec.
func NewReassembler(codec *wire.FrameCodec) *Reassembler {
	return &Reassembler{codec: codec}
}

// Feed appends data to the pending bytes and returns every frame completed
// by it, in stream order. The returned payloads do not alias data or the
// internal buffer.
//
// When the stream turns out to be corrupt, Feed returns the frames that
// completed before the corrupt one together with the fatal *wire.MessageError.
// Every later call fails with ErrReassemblerPoisoned.
func (r *Reassembler) Feed(data []byte) ([]wire.Frame, error) {
	if r.broken != nil {
		return nil, errors.Wrap(ErrReassemblerPoisoned, r.broken.Error())
	}
	r.buf = append(r.buf, data...)

	var frames []wire.Frame
	consumed := 0
	for {
		result := r.codec.Decode(r.buf[consumed:])
		switch result.Status {
		case wire.FrameComplete:
			payload := make([]byte, len(result.Frame.Payload))
			copy(payload, result.Frame.Payload)
			frames = append(frames, wire.Frame{
				Command: result.Frame.Command,
				Payload: payload,
			})
			consumed += result.Consumed

		case wire.FrameIncomplete:
			r.compact(consumed)
			return frames, nil

		case wire.FrameCorrupt:
			r.broken = result.Err
			r.buf = nil
			return frames, result.Err
		}
	}
}

// Buffered returns the number of bytes waiting for the rest of their frame.
func (r *Reassembler) Buffered() int {
	return len(r.buf)
}

// compact drops the first n bytes of the buffer. The backing array is
// released once it has been drained.
func (r *Reassembler) compact(n int) {
	if n == 0 {
		return
	}
	if n == len(r.buf) {
		r.buf = nil
		return
	}
	remaining := make([]byte, len(r.buf)-n)
	copy(remaining, r.buf[n:])
	r.buf = remaining
}
