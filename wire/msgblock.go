package wire

import (
	"io"

	btcwire "github.com/btcsuite/btcd/wire"
)

// MsgBlock implements the Message interface and carries a full block, header
// and transactions, as parsed and serialized by btcd.
type MsgBlock struct {
	Block *btcwire.MsgBlock
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgBlock) BtcDecode(r io.Reader) error {
	msg.Block = &btcwire.MsgBlock{}
	return msg.Block.Deserialize(r)
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgBlock) BtcEncode(w io.Writer) error {
	if msg.Block == nil {
		return messageError("MsgBlock.BtcEncode", ErrInvalidArgument,
			"no block to encode")
	}
	return msg.Block.Serialize(w)
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgBlock) Command() string {
	return CmdBlock
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgBlock) MaxPayloadLength() uint32 {
	return btcwire.MaxBlockPayload
}

// NewMsgBlock returns a block message carrying block.
func NewMsgBlock(block *btcwire.MsgBlock) *MsgBlock {
	return &MsgBlock{Block: block}
}
