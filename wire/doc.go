/*
Package wire implements the bitcoin peer-to-peer wire protocol.

Every message is a Message implementation registered by command name.
EncodePayload and DecodePayload convert between messages and their payload
bytes, and FrameCodec adds and strips the 24-byte envelope: network magic,
NUL padded command, payload length and checksum.

	payload, err := wire.EncodePayload(wire.NewMsgPing(nonce))
	frame, err := wire.NewFrameCodec(wire.MainNet).Encode(wire.CmdPing, payload)

FrameCodec.Decode never blocks and never consumes partial input: it reports
a complete frame, a valid prefix that needs more bytes, or a stream that can
never become valid.

Errors

Protocol errors are returned as *MessageError. Use KindOf or IsKind to tell
them apart and ErrorKind.IsFatal to decide whether the connection that
produced them has to go.
*/
package wire
