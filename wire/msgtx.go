package wire

import (
	"io"

	btcwire "github.com/btcsuite/btcd/wire"
)

// MsgTx implements the Message interface and carries a single transaction.
// The transaction itself is parsed and serialized by btcd, including any
// witness data.
type MsgTx struct {
	Tx *btcwire.MsgTx
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgTx) BtcDecode(r io.Reader) error {
	msg.Tx = &btcwire.MsgTx{}
	return msg.Tx.Deserialize(r)
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgTx) BtcEncode(w io.Writer) error {
	if msg.Tx == nil {
		return messageError("MsgTx.BtcEncode", ErrInvalidArgument,
			"no transaction to encode")
	}
	return msg.Tx.Serialize(w)
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgTx) Command() string {
	return CmdTx
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgTx) MaxPayloadLength() uint32 {
	return btcwire.MaxBlockPayload
}

// NewMsgTx returns a tx message carrying tx.
func NewMsgTx(tx *btcwire.MsgTx) *MsgTx {
	return &MsgTx{Tx: tx}
}
