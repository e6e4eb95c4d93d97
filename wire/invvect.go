// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// MaxInvPerMsg is the maximum number of inventory vectors that can be in a
	// single bitcoin inv message.
	MaxInvPerMsg = 50000

	// Maximum payload size for an inventory vector.
	maxInvVectPayload = 4 + chainhash.HashSize

	// defaultInvListAlloc is the default size used for the backing array
	// for an inventory list. The array will dynamically grow as needed,
	// but this figure is intended to provide enough space for the max
	// number of inventory vectors in a *typical* inventory message
	// without needing to grow the backing array multiple times.
	defaultInvListAlloc = 1000
)

// InvType represents the allowed types of inventory vectors. See InvVect.
type InvType uint32

// These constants define the various supported inventory vector types.
const (
	InvTypeError         InvType = 0
	InvTypeTx            InvType = 1
	InvTypeBlock         InvType = 2
	InvTypeFilteredBlock InvType = 3
)

// Map of service flags back to their constant names for pretty printing.
var ivStrings = map[InvType]string{
	InvTypeError:         "ERROR",
	InvTypeTx:            "MSG_TX",
	InvTypeBlock:         "MSG_BLOCK",
	InvTypeFilteredBlock: "MSG_FILTERED_BLOCK",
}

// String returns the InvType in human-readable form.
func (invtype InvType) String() string {
	if s, ok := ivStrings[invtype]; ok {
		return s
	}

	return fmt.Sprintf("Unknown InvType (%d)", uint32(invtype))
}

// InvVect defines a bitcoin inventory vector which is used to describe data,
// as specified by the Type field, that a peer wants, has, or does not have to
// another peer.
type InvVect struct {
	Type InvType        // Type of data
	Hash chainhash.Hash // Hash of the data
}

// NewInvVect returns a new InvVect using the provided type and hash.
func NewInvVect(typ InvType, hash *chainhash.Hash) *InvVect {
	return &InvVect{
		Type: typ,
		Hash: *hash,
	}
}

// IsTx returns whether the vector refers to a transaction.
func (iv *InvVect) IsTx() bool {
	return iv.Type == InvTypeTx
}

// IsBlock returns whether the vector refers to a full block.
func (iv *InvVect) IsBlock() bool {
	return iv.Type == InvTypeBlock
}

// IsFilteredBlock returns whether the vector refers to a merkle block.
func (iv *InvVect) IsFilteredBlock() bool {
	return iv.Type == InvTypeFilteredBlock
}

func (iv *InvVect) String() string {
	return fmt.Sprintf("%s %s", iv.Type, iv.Hash)
}

// readInvVect reads an encoded InvVect from r.
func readInvVect(r io.Reader, iv *InvVect) error {
	return ReadElements(r, &iv.Type, &iv.Hash)
}

// writeInvVect serializes an InvVect to w.
func writeInvVect(w io.Writer, iv *InvVect) error {
	return WriteElements(w, iv.Type, &iv.Hash)
}

// invList is the body shared by the inv, getdata and notfound messages.
type invList struct {
	InvList []*InvVect
}

// AddInvVect adds an inventory vector to the message.
func (l *invList) AddInvVect(iv *InvVect) error {
	if len(l.InvList)+1 > MaxInvPerMsg {
		str := fmt.Sprintf("too many invvect in message [max %v]",
			MaxInvPerMsg)
		return messageError("AddInvVect", ErrInvalidArgument, str)
	}

	l.InvList = append(l.InvList, iv)
	return nil
}

func (l *invList) decode(r io.Reader, f string) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}

	// Limit to max inventory vectors per message.
	if count > MaxInvPerMsg {
		str := fmt.Sprintf("too many invvect in message [%v]", count)
		return messageError(f, ErrMalformedPayload, str)
	}

	// Create a contiguous slice of inventory vectors to deserialize into in
	// order to reduce the number of allocations.
	invList := make([]InvVect, count)
	l.InvList = make([]*InvVect, 0, count)
	for i := uint64(0); i < count; i++ {
		iv := &invList[i]
		err := readInvVect(r, iv)
		if err != nil {
			return err
		}
		l.InvList = append(l.InvList, iv)
	}

	return nil
}

func (l *invList) encode(w io.Writer, f string) error {
	// Limit to max inventory vectors per message.
	count := len(l.InvList)
	if count > MaxInvPerMsg {
		str := fmt.Sprintf("too many invvect in message [%v]", count)
		return messageError(f, ErrInvalidArgument, str)
	}

	err := WriteVarInt(w, uint64(count))
	if err != nil {
		return err
	}

	for _, iv := range l.InvList {
		err := writeInvVect(w, iv)
		if err != nil {
			return err
		}
	}

	return nil
}

func (l *invList) maxPayloadLength() uint32 {
	// Num inventory vectors (varInt) + max allowed inventory vectors.
	return uint32(MaxVarIntPayload + (MaxInvPerMsg * maxInvVectPayload))
}
