package wire

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// MessageHeaderSize is the number of bytes in a bitcoin message header.
// Bitcoin network (magic) 4 bytes + command 12 bytes + payload length 4 bytes +
// checksum 4 bytes.
const MessageHeaderSize = 24

// FrameStatus is the outcome of trying to decode a frame from a buffer.
type FrameStatus uint8

const (
	// FrameComplete means a whole frame was decoded.
	FrameComplete FrameStatus = iota

	// FrameIncomplete means the buffer holds a valid prefix of a frame
	// and more bytes are needed.
	FrameIncomplete

	// FrameCorrupt means the buffer can never become a valid frame. The
	// stream it came from is unusable.
	FrameCorrupt
)

func (s FrameStatus) String() string {
	switch s {
	case FrameComplete:
		return "complete"
	case FrameIncomplete:
		return "incomplete"
	case FrameCorrupt:
		return "corrupt"
	}
	return fmt.Sprintf("unknown FrameStatus (%d)", uint8(s))
}

// Frame is a single decoded envelope. Payload has not been parsed.
type Frame struct {
	Command string
	Payload []byte
}

// DecodeResult is returned by FrameCodec.Decode. Frame and Consumed are only
// set for FrameComplete and Err only for FrameCorrupt.
type DecodeResult struct {
	Status   FrameStatus
	Frame    Frame
	Consumed int
	Err      error
}

// FrameCodec converts between payloads and framed bytes for one network.
type FrameCodec struct {
	net BitcoinNet
}

// NewFrameCodec returns a FrameCodec for frames tagged with net's magic.
func NewFrameCodec(net BitcoinNet) *FrameCodec {
	return &FrameCodec{net: net}
}

// Net returns the network whose magic this codec writes and expects.
func (c *FrameCodec) Net() BitcoinNet {
	return c.net
}

// Checksum returns the first four bytes of the double SHA-256 of payload.
func Checksum(payload []byte) [4]byte {
	var checksum [4]byte
	copy(checksum[:], chainhash.DoubleHashB(payload)[0:4])
	return checksum
}

// Encode prefixes payload with a header carrying command, the payload length
// and its checksum.
func (c *FrameCodec) Encode(command string, payload []byte) ([]byte, error) {
	if err := validateCommand(command); err != nil {
		return nil, err
	}
	lenp := len(payload)
	if lenp > MaxMessagePayload {
		str := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload is %d bytes",
			lenp, MaxMessagePayload)
		return nil, messageError("FrameCodec.Encode", ErrInvalidArgument, str)
	}

	frame := make([]byte, MessageHeaderSize, MessageHeaderSize+lenp)
	littleEndian.PutUint32(frame[0:4], uint32(c.net))
	copy(frame[4:4+CommandSize], command)
	littleEndian.PutUint32(frame[16:20], uint32(lenp))
	checksum := Checksum(payload)
	copy(frame[20:24], checksum[:])
	frame = append(frame, payload...)
	return frame, nil
}

// Decode attempts to decode one frame from the start of buf. buf is not
// modified and the returned payload aliases it.
func (c *FrameCodec) Decode(buf []byte) DecodeResult {
	// The magic is checked as soon as it is available so a stream for the
	// wrong network fails fast.
	magicLen := len(buf)
	if magicLen > 4 {
		magicLen = 4
	}
	var magic [4]byte
	littleEndian.PutUint32(magic[:], uint32(c.net))
	if !bytes.Equal(buf[:magicLen], magic[:magicLen]) {
		return corrupt(ErrInvalidMagic, fmt.Sprintf("message from other "+
			"network [%x], expected %s", buf[:magicLen], c.net))
	}
	if len(buf) < MessageHeaderSize {
		return DecodeResult{Status: FrameIncomplete}
	}

	command := string(bytes.TrimRight(buf[4:4+CommandSize], "\x00"))
	length := littleEndian.Uint32(buf[16:20])
	if length > MaxMessagePayload {
		return corrupt(ErrPayloadTooLarge, fmt.Sprintf("message payload is "+
			"too large - header indicates %d bytes, but max message "+
			"payload is %d bytes.", length, MaxMessagePayload))
	}

	end := MessageHeaderSize + int(length)
	if len(buf) < end {
		return DecodeResult{Status: FrameIncomplete}
	}

	payload := buf[MessageHeaderSize:end]
	checksum := Checksum(payload)
	if !bytes.Equal(checksum[:], buf[20:24]) {
		return corrupt(ErrChecksumMismatch, fmt.Sprintf("payload checksum "+
			"failed - header indicates %x, but actual checksum is %x.",
			buf[20:24], checksum))
	}

	return DecodeResult{
		Status:   FrameComplete,
		Frame:    Frame{Command: command, Payload: payload},
		Consumed: end,
	}
}

func corrupt(kind ErrorKind, desc string) DecodeResult {
	return DecodeResult{
		Status: FrameCorrupt,
		Err:    messageError("FrameCodec.Decode", kind, desc),
	}
}

// validateCommand enforces the header's command field: at most CommandSize
// printable ASCII characters.
func validateCommand(command string) error {
	if len(command) == 0 || len(command) > CommandSize {
		str := fmt.Sprintf("command [%s] must be 1 to %d bytes long",
			command, CommandSize)
		return messageError("FrameCodec.Encode", ErrInvalidArgument, str)
	}
	for i := 0; i < len(command); i++ {
		if command[i] < 0x20 || command[i] > 0x7e {
			str := fmt.Sprintf("command [%q] contains a non-printable "+
				"character", command)
			return messageError("FrameCodec.Encode", ErrInvalidArgument, str)
		}
	}
	return nil
}
