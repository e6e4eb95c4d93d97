// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"
)

// CommandSize is the fixed size of all commands in the common bitcoin message
// header. Shorter commands must be zero padded.
const CommandSize = 12

// Commands used in bitcoin message headers which describe the type of message.
const (
	CmdVersion     = "version"
	CmdVerAck      = "verack"
	CmdGetAddr     = "getaddr"
	CmdAddr        = "addr"
	CmdGetBlocks   = "getblocks"
	CmdInv         = "inv"
	CmdGetData     = "getdata"
	CmdNotFound    = "notfound"
	CmdBlock       = "block"
	CmdTx          = "tx"
	CmdGetHeaders  = "getheaders"
	CmdHeaders     = "headers"
	CmdPing        = "ping"
	CmdPong        = "pong"
	CmdAlert       = "alert"
	CmdMemPool     = "mempool"
	CmdFilterAdd   = "filteradd"
	CmdFilterClear = "filterclear"
	CmdFilterLoad  = "filterload"
	CmdMerkleBlock = "merkleblock"
	CmdReject      = "reject"
)

// Message is an interface that describes a bitcoin message. A type that
// implements Message has complete control over the representation of its
// payload.
type Message interface {
	BtcDecode(r io.Reader) error
	BtcEncode(w io.Writer) error
	Command() string
	MaxPayloadLength() uint32
}

// makeEmptyMessage creates a message of the appropriate concrete type based
// on the command.
func makeEmptyMessage(command string) (Message, error) {
	var msg Message
	switch command {
	case CmdVersion:
		msg = &MsgVersion{}

	case CmdVerAck:
		msg = &MsgVerAck{}

	case CmdGetAddr:
		msg = &MsgGetAddr{}

	case CmdAddr:
		msg = &MsgAddr{}

	case CmdGetBlocks:
		msg = &MsgGetBlocks{}

	case CmdBlock:
		msg = &MsgBlock{}

	case CmdInv:
		msg = &MsgInv{}

	case CmdGetData:
		msg = &MsgGetData{}

	case CmdNotFound:
		msg = &MsgNotFound{}

	case CmdTx:
		msg = &MsgTx{}

	case CmdPing:
		msg = &MsgPing{}

	case CmdPong:
		msg = &MsgPong{}

	case CmdGetHeaders:
		msg = &MsgGetHeaders{}

	case CmdHeaders:
		msg = &MsgHeaders{}

	case CmdAlert:
		msg = &MsgAlert{}

	case CmdMemPool:
		msg = &MsgMemPool{}

	case CmdFilterAdd:
		msg = &MsgFilterAdd{}

	case CmdFilterClear:
		msg = &MsgFilterClear{}

	case CmdFilterLoad:
		msg = &MsgFilterLoad{}

	case CmdMerkleBlock:
		msg = &MsgMerkleBlock{}

	case CmdReject:
		msg = &MsgReject{}

	default:
		str := fmt.Sprintf("unhandled command [%s]", command)
		return nil, messageError("makeEmptyMessage", ErrUnknownCommand, str)
	}
	return msg, nil
}

// IsKnownCommand returns whether command has a payload codec.
func IsKnownCommand(command string) bool {
	_, err := makeEmptyMessage(command)
	return err == nil
}

// EncodePayload serializes msg into its payload bytes, without the frame
// header.
func EncodePayload(msg Message) ([]byte, error) {
	var bw bytes.Buffer
	err := msg.BtcEncode(&bw)
	if err != nil {
		return nil, err
	}

	payload := bw.Bytes()
	lenp := len(payload)
	if lenp > MaxMessagePayload {
		str := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload is %d bytes",
			lenp, MaxMessagePayload)
		return nil, messageError("EncodePayload", ErrInvalidArgument, str)
	}

	// Enforce maximum message payload based on the message type.
	mpl := msg.MaxPayloadLength()
	if uint32(lenp) > mpl {
		str := fmt.Sprintf("message payload is too large - encoded "+
			"%d bytes, but maximum message payload size for "+
			"messages of type [%s] is %d.", lenp, msg.Command(), mpl)
		return nil, messageError("EncodePayload", ErrInvalidArgument, str)
	}
	return payload, nil
}

// DecodePayload decodes payload as the message identified by command.
// Unknown commands fail with ErrUnknownCommand and truncated or otherwise
// invalid payloads with ErrMalformedPayload. Bytes after the last field are
// ignored.
func DecodePayload(command string, payload []byte) (Message, error) {
	msg, err := makeEmptyMessage(command)
	if err != nil {
		return nil, err
	}

	// Check for maximum length based on the message type as a malicious client
	// could otherwise create a well-formed header and set the length to max
	// numbers in order to exhaust the machine's memory.
	mpl := msg.MaxPayloadLength()
	if uint32(len(payload)) > mpl {
		str := fmt.Sprintf("payload exceeds max length - header "+
			"indicates %v bytes, but max payload size for "+
			"messages of type [%v] is %v.", len(payload), command, mpl)
		return nil, messageError("DecodePayload", ErrMalformedPayload, str)
	}

	err = msg.BtcDecode(bytes.NewReader(payload))
	if err != nil {
		return nil, asMalformed("DecodePayload", err)
	}
	return msg, nil
}

// EncodeMessage serializes msg and wraps it in a frame for net.
func EncodeMessage(msg Message, net BitcoinNet) ([]byte, error) {
	payload, err := EncodePayload(msg)
	if err != nil {
		return nil, err
	}
	return NewFrameCodec(net).Encode(msg.Command(), payload)
}
