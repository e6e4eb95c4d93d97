package merkle

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcwire "github.com/btcsuite/btcd/wire"
	"github.com/spvd/spvd/wire"
)

// PackFlags packs flag bits eight to a byte, least significant bit first.
// The last byte is padded with zero bits.
func PackFlags(bits []bool) []byte {
	packed := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	return packed
}

// UnpackFlags is the inverse of PackFlags. It returns every bit of packed,
// padding included.
func UnpackFlags(packed []byte) []bool {
	bits := make([]bool, len(packed)*8)
	for i := range bits {
		bits[i] = packed[i/8]&(1<<(i%8)) != 0
	}
	return bits
}

// FromMsgMerkleBlock returns the partial tree carried by msg.
func FromMsgMerkleBlock(msg *wire.MsgMerkleBlock) *PartialTree {
	hashes := make([]chainhash.Hash, len(msg.Hashes))
	for i, hash := range msg.Hashes {
		hashes[i] = *hash
	}
	return &PartialTree{
		TxCount: msg.Transactions,
		Hashes:  hashes,
		Flags:   UnpackFlags(msg.Flags),
	}
}

// MsgMerkleBlock returns a merkleblock message carrying the tree under
// header.
func (t *PartialTree) MsgMerkleBlock(header *btcwire.BlockHeader) *wire.MsgMerkleBlock {
	msg := wire.NewMsgMerkleBlock(header)
	msg.Transactions = t.TxCount
	msg.Hashes = make([]*chainhash.Hash, len(t.Hashes))
	for i := range t.Hashes {
		hash := t.Hashes[i]
		msg.Hashes[i] = &hash
	}
	msg.Flags = PackFlags(t.Flags)
	return msg
}

// ValidateMerkleBlock extracts the tree carried by msg and checks that it
// commits to the merkle root in the message's header. It returns the hashes
// of the matched transactions.
func ValidateMerkleBlock(msg *wire.MsgMerkleBlock) ([]chainhash.Hash, error) {
	root, matched, err := FromMsgMerkleBlock(msg).Extract()
	if err != nil {
		return nil, err
	}
	if root != msg.Header.MerkleRoot {
		return nil, badProof(fmt.Sprintf("computed root %s does not match "+
			"header root %s of block %s", root, msg.Header.MerkleRoot,
			msg.Header.BlockHash()))
	}
	return matched, nil
}

// NewFromBlock builds the partial tree for block that proves every
// transaction for which match returns true.
func NewFromBlock(block *btcutil.Block, match func(tx *btcutil.Tx) bool) (*PartialTree, error) {
	txs := block.Transactions()
	txHashes := make([]chainhash.Hash, len(txs))
	matches := make([]bool, len(txs))
	for i, tx := range txs {
		txHashes[i] = *tx.Hash()
		matches[i] = match(tx)
	}
	return Build(uint32(len(txs)), txHashes, matches)
}
