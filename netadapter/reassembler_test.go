package netadapter

import (
	"bytes"
	"testing"

	"github.com/spvd/spvd/wire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func drawFrames(t *rapid.T, codec *wire.FrameCodec) ([]wire.Frame, []byte) {
	commands := []string{wire.CmdVerAck, wire.CmdPing, wire.CmdInv, wire.CmdTx, "sendheaders"}
	count := rapid.IntRange(1, 8).Draw(t, "frameCount")

	frames := make([]wire.Frame, count)
	var stream []byte
	for i := range frames {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 300).Draw(t, "payload")
		if payload == nil {
			payload = []byte{}
		}
		frames[i] = wire.Frame{
			Command: rapid.SampledFrom(commands).Draw(t, "command"),
			Payload: payload,
		}
		framed, err := codec.Encode(frames[i].Command, frames[i].Payload)
		require.NoError(t, err)
		stream = append(stream, framed...)
	}
	return frames, stream
}

// TestReassemblerFragmentation checks that the frames decoded from a stream
// do not depend on how the stream is split into reads.
func TestReassemblerFragmentation(t *testing.T) {
	codec := wire.NewFrameCodec(wire.MainNet)

	rapid.Check(t, func(t *rapid.T) {
		frames, stream := drawFrames(t, codec)

		reassembler := NewReassembler(codec)
		var got []wire.Frame
		for rest := stream; len(rest) > 0; {
			n := rapid.IntRange(1, len(rest)).Draw(t, "chunk")
			decoded, err := reassembler.Feed(rest[:n])
			require.NoError(t, err)
			got = append(got, decoded...)
			rest = rest[n:]
		}

		require.Equal(t, frames, got)
		require.Zero(t, reassembler.Buffered())
	})
}

func TestReassemblerKeepsPartialFrame(t *testing.T) {
	codec := wire.NewFrameCodec(wire.TestNet3)
	framed, err := codec.Encode(wire.CmdPing, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)

	reassembler := NewReassembler(codec)
	frames, err := reassembler.Feed(framed[:wire.MessageHeaderSize])
	require.NoError(t, err)
	require.Empty(t, frames)
	require.Equal(t, wire.MessageHeaderSize, reassembler.Buffered())

	// A complete frame followed by the start of the next one.
	next := append(append([]byte{}, framed[wire.MessageHeaderSize:]...), framed[:10]...)
	frames, err = reassembler.Feed(next)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, wire.CmdPing, frames[0].Command)
	require.Equal(t, 10, reassembler.Buffered())
}

func TestReassemblerCopiesPayloads(t *testing.T) {
	codec := wire.NewFrameCodec(wire.MainNet)
	payload := []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 0}
	framed, err := codec.Encode(wire.CmdPong, payload)
	require.NoError(t, err)

	reassembler := NewReassembler(codec)
	frames, err := reassembler.Feed(framed)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	for i := range framed {
		framed[i] = 0xff
	}
	require.Equal(t, payload, frames[0].Payload)
}

func TestReassemblerCorruptStream(t *testing.T) {
	codec := wire.NewFrameCodec(wire.MainNet)
	good, err := codec.Encode(wire.CmdVerAck, nil)
	require.NoError(t, err)
	bad, err := wire.NewFrameCodec(wire.TestNet3).Encode(wire.CmdVerAck, nil)
	require.NoError(t, err)

	reassembler := NewReassembler(codec)
	frames, err := reassembler.Feed(append(append([]byte{}, good...), bad...))
	require.Len(t, frames, 1)
	require.True(t, wire.IsKind(err, wire.ErrInvalidMagic), "got %v", err)

	// The stream stays unusable even when valid frames follow.
	frames, err = reassembler.Feed(good)
	require.Empty(t, frames)
	require.ErrorIs(t, err, ErrReassemblerPoisoned)
	require.Zero(t, reassembler.Buffered())
}

func TestReassemblerChecksumMismatch(t *testing.T) {
	codec := wire.NewFrameCodec(wire.MainNet)
	framed, err := codec.Encode(wire.CmdPing, bytes.Repeat([]byte{7}, 8))
	require.NoError(t, err)
	framed[len(framed)-1] ^= 1

	reassembler := NewReassembler(codec)
	frames, err := reassembler.Feed(framed)
	require.Empty(t, frames)
	require.True(t, wire.IsKind(err, wire.ErrChecksumMismatch), "got %v", err)
}
