// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcwire "github.com/btcsuite/btcd/wire"
)

const (
	// maxTxPerBlock is the maximum number of transactions that could
	// possibly fit into a block.
	maxTxPerBlock = (btcwire.MaxBlockPayload / minTxPayload) + 1

	// minTxPayload is the minimum payload size for a transaction. Note
	// that any realistically usable transaction must have at least one
	// input or output, but that is a rule enforced at a higher layer, so
	// it is intentionally not included here.
	// Version 4 bytes + Varint number of transaction inputs 1 byte + Varint
	// number of transaction outputs 1 byte + LockTime 4 bytes + min input
	// payload + min output payload.
	minTxPayload = 10

	// maxFlagsPerMerkleBlock is the maximum number of flag bytes that could
	// possibly fit into a merkle block. Since each transaction is
	// represented by a single bit, this is the max number of transactions
	// per block divided by 8 bits per byte. Then an extra one to cover
	// partials.
	maxFlagsPerMerkleBlock = maxTxPerBlock / 8
)

// MsgMerkleBlock implements the Message interface and represents a bitcoin
// merkleblock message. It carries a block header together with a partial
// merkle tree proving which of the block's transactions matched the
// filter loaded on the sending peer.
//
// The partial merkle tree is kept in its wire form: Hashes in depth-first
// order and Flags packed eight to a byte, least significant bit first. Use
// the merkle package to build and validate it.
type MsgMerkleBlock struct {
	Header       btcwire.BlockHeader
	Transactions uint32
	Hashes       []*chainhash.Hash
	Flags        []byte
}

// AddTxHash adds a new transaction hash to the message.
func (msg *MsgMerkleBlock) AddTxHash(hash *chainhash.Hash) error {
	if len(msg.Hashes)+1 > maxTxPerBlock {
		str := fmt.Sprintf("too many tx hashes for message [max %v]",
			maxTxPerBlock)
		return messageError("MsgMerkleBlock.AddTxHash", ErrInvalidArgument, str)
	}

	msg.Hashes = append(msg.Hashes, hash)
	return nil
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgMerkleBlock) BtcDecode(r io.Reader) error {
	err := msg.Header.Deserialize(r)
	if err != nil {
		return err
	}

	err = ReadElement(r, &msg.Transactions)
	if err != nil {
		return err
	}

	msg.Hashes, err = readHashes(r, maxTxPerBlock, "MsgMerkleBlock.BtcDecode",
		"tx hashes")
	if err != nil {
		return err
	}

	msg.Flags, err = ReadVarBytes(r, maxFlagsPerMerkleBlock,
		"merkle block flags size")
	return err
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgMerkleBlock) BtcEncode(w io.Writer) error {
	// Read num transaction hashes and limit to max.
	numHashes := len(msg.Hashes)
	if numHashes > maxTxPerBlock {
		str := fmt.Sprintf("too many transaction hashes for message "+
			"[count %v, max %v]", numHashes, maxTxPerBlock)
		return messageError("MsgMerkleBlock.BtcEncode", ErrInvalidArgument, str)
	}
	numFlagBytes := len(msg.Flags)
	if numFlagBytes > maxFlagsPerMerkleBlock {
		str := fmt.Sprintf("too many flag bytes for message [count %v, "+
			"max %v]", numFlagBytes, maxFlagsPerMerkleBlock)
		return messageError("MsgMerkleBlock.BtcEncode", ErrInvalidArgument, str)
	}

	err := msg.Header.Serialize(w)
	if err != nil {
		return err
	}

	err = WriteElement(w, msg.Transactions)
	if err != nil {
		return err
	}

	err = writeHashes(w, msg.Hashes)
	if err != nil {
		return err
	}

	return WriteVarBytes(w, msg.Flags)
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgMerkleBlock) Command() string {
	return CmdMerkleBlock
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgMerkleBlock) MaxPayloadLength() uint32 {
	return btcwire.MaxBlockPayload
}

// NewMsgMerkleBlock returns a new bitcoin merkleblock message that conforms to
// the Message interface. See MsgMerkleBlock for details.
func NewMsgMerkleBlock(bh *btcwire.BlockHeader) *MsgMerkleBlock {
	return &MsgMerkleBlock{
		Header:       *bh,
		Transactions: 0,
		Hashes:       make([]*chainhash.Hash, 0),
		Flags:        make([]byte, 0),
	}
}
