// Package merkle builds and validates the partial merkle trees carried by
// merkleblock messages.
//
// A partial merkle tree proves that a set of transactions belongs to a block
// while revealing only the hashes needed to recompute the block's merkle
// root. The tree is walked depth first. Every visited node contributes one
// flag bit: set when the node is an ancestor of, or is, a matched
// transaction. Nodes whose bit is clear, and matched leaves, also contribute
// their hash; set interior nodes are recomputed from their children.
package merkle

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/spvd/spvd/wire"
)

// MaxBlockSize is the largest serialized block, without witness data, the
// tree bounds are derived from.
const MaxBlockSize = 1000000

// MaxTxCount is the largest transaction count a tree may claim. No block can
// hold more transactions than fit in MaxBlockSize at 60 bytes each.
const MaxTxCount = MaxBlockSize / 60

// PartialTree is a partial merkle tree over a block with TxCount
// transactions.
type PartialTree struct {
	TxCount uint32
	Hashes  []chainhash.Hash
	Flags   []bool
}

// treeHeight returns the height of the tree over txCount leaves, the
// smallest height whose width is one.
func treeHeight(txCount uint32) uint32 {
	var height uint32
	for treeWidth(txCount, height) > 1 {
		height++
	}
	return height
}

// treeWidth returns the number of nodes at height, leaves being height 0.
func treeWidth(txCount, height uint32) uint32 {
	return uint32((uint64(txCount) + (1 << height) - 1) >> height)
}

// hasRight reports whether the node at (height, pos) has a right child.
// Nodes without one are hashed with a copy of their left child.
func hasRight(txCount, height, pos uint32) bool {
	return uint64(pos)*2+1 < uint64(treeWidth(txCount, height-1))
}

// calcHash computes the hash of the node at (height, pos) from the full
// list of transaction hashes.
func calcHash(txCount, height, pos uint32, txHashes []chainhash.Hash) chainhash.Hash {
	if height == 0 {
		return txHashes[pos]
	}

	left := calcHash(txCount, height-1, pos*2, txHashes)
	right := left
	if hasRight(txCount, height, pos) {
		right = calcHash(txCount, height-1, pos*2+1, txHashes)
	}
	return blockchain.HashMerkleBranches(&left, &right)
}

// Build returns the partial tree proving the transactions flagged in matches.
// txHashes and matches must both hold txCount entries.
func Build(txCount uint32, txHashes []chainhash.Hash, matches []bool) (*PartialTree, error) {
	if txCount == 0 {
		return nil, invalidArgument("cannot build a tree without transactions")
	}
	if txCount > MaxTxCount {
		return nil, invalidArgument(fmt.Sprintf("tx count %d exceeds the "+
			"maximum of %d", txCount, MaxTxCount))
	}
	if uint32(len(txHashes)) != txCount || uint32(len(matches)) != txCount {
		return nil, invalidArgument(fmt.Sprintf("got %d hashes and %d match "+
			"flags for %d transactions", len(txHashes), len(matches), txCount))
	}

	b := builder{
		tree:     &PartialTree{TxCount: txCount},
		txHashes: txHashes,
		matches:  matches,
	}
	b.traverse(treeHeight(txCount), 0)
	return b.tree, nil
}

type builder struct {
	tree     *PartialTree
	txHashes []chainhash.Hash
	matches  []bool
}

func (b *builder) traverse(height, pos uint32) {
	txCount := b.tree.TxCount

	// Whether this node is the parent of at least one matched
	// transaction.
	var parentOfMatch bool
	for p := uint64(pos) << height; p < uint64(pos+1)<<height && p < uint64(txCount); p++ {
		if b.matches[p] {
			parentOfMatch = true
			break
		}
	}
	b.tree.Flags = append(b.tree.Flags, parentOfMatch)

	if height == 0 || !parentOfMatch {
		b.tree.Hashes = append(b.tree.Hashes, calcHash(txCount, height, pos, b.txHashes))
		return
	}

	b.traverse(height-1, pos*2)
	if hasRight(txCount, height, pos) {
		b.traverse(height-1, pos*2+1)
	}
}

// cursor tracks how much of the tree's flags and hashes a traversal has
// consumed. It is passed by value and returned updated.
type cursor struct {
	bits   int
	hashes int
}

// Extract validates the tree and returns the merkle root it commits to along
// with the hashes of the matched transactions, in block order. Any
// structural problem is reported as wire.ErrBadMerkleProof. Comparing the
// root with the block header is left to the caller.
func (t *PartialTree) Extract() (chainhash.Hash, []chainhash.Hash, error) {
	var root chainhash.Hash

	if t.TxCount == 0 {
		return root, nil, badProof("tree has no transactions")
	}
	if t.TxCount > MaxTxCount {
		return root, nil, badProof(fmt.Sprintf("tx count %d exceeds the "+
			"maximum of %d", t.TxCount, MaxTxCount))
	}
	// There can never be more hashes provided than one for every txid.
	if uint64(len(t.Hashes)) > uint64(t.TxCount) {
		return root, nil, badProof(fmt.Sprintf("%d hashes for %d "+
			"transactions", len(t.Hashes), t.TxCount))
	}
	// There must be at least one bit per node in the partial tree, and
	// at least one node per hash.
	if len(t.Flags) < len(t.Hashes) {
		return root, nil, badProof(fmt.Sprintf("%d flag bits for %d "+
			"hashes", len(t.Flags), len(t.Hashes)))
	}

	var matched []chainhash.Hash
	root, cur, matched, err := t.traverse(treeHeight(t.TxCount), 0, cursor{}, matched)
	if err != nil {
		return chainhash.Hash{}, nil, err
	}

	// Only padding up to the next whole byte may be left unread.
	if (cur.bits+7)/8 != (len(t.Flags)+7)/8 {
		return chainhash.Hash{}, nil, badProof(fmt.Sprintf("used %d of %d "+
			"flag bits", cur.bits, len(t.Flags)))
	}
	if cur.hashes != len(t.Hashes) {
		return chainhash.Hash{}, nil, badProof(fmt.Sprintf("used %d of %d "+
			"hashes", cur.hashes, len(t.Hashes)))
	}
	return root, matched, nil
}

func (t *PartialTree) traverse(height, pos uint32, cur cursor,
	matched []chainhash.Hash) (chainhash.Hash, cursor, []chainhash.Hash, error) {

	if cur.bits >= len(t.Flags) {
		return chainhash.Hash{}, cur, nil, badProof("ran out of flag bits")
	}
	parentOfMatch := t.Flags[cur.bits]
	cur.bits++

	if height == 0 || !parentOfMatch {
		if cur.hashes >= len(t.Hashes) {
			return chainhash.Hash{}, cur, nil, badProof("ran out of hashes")
		}
		hash := t.Hashes[cur.hashes]
		cur.hashes++
		if height == 0 && parentOfMatch {
			matched = append(matched, hash)
		}
		return hash, cur, matched, nil
	}

	left, cur, matched, err := t.traverse(height-1, pos*2, cur, matched)
	if err != nil {
		return chainhash.Hash{}, cur, nil, err
	}
	right := left
	if hasRight(t.TxCount, height, pos) {
		right, cur, matched, err = t.traverse(height-1, pos*2+1, cur, matched)
		if err != nil {
			return chainhash.Hash{}, cur, nil, err
		}
		// The left and right branches must never be identical, as the
		// transaction hashes covered by them must each be unique.
		if right == left {
			return chainhash.Hash{}, cur, nil, badProof(fmt.Sprintf(
				"identical branches at height %d position %d", height, pos))
		}
	}
	return blockchain.HashMerkleBranches(&left, &right), cur, matched, nil
}

func badProof(desc string) error {
	return &wire.MessageError{
		Func:        "merkle.Extract",
		Kind:        wire.ErrBadMerkleProof,
		Description: desc,
	}
}

func invalidArgument(desc string) error {
	return &wire.MessageError{
		Func:        "merkle.Build",
		Kind:        wire.ErrInvalidArgument,
		Description: desc,
	}
}
