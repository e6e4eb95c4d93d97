// Copyright (c) 2014-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	btcwire "github.com/btcsuite/btcd/wire"
)

const (
	// MaxFilterLoadHashFuncs is the maximum number of hash functions to
	// load into the Bloom filter.
	MaxFilterLoadHashFuncs = 50

	// MaxFilterLoadFilterSize is the maximum size in bytes a filter may be.
	MaxFilterLoadFilterSize = 36000
)

// MsgFilterLoad implements the Message interface and represents a bitcoin
// filterload message which is used to reset a Bloom filter.
type MsgFilterLoad struct {
	Filter    []byte
	HashFuncs uint32
	Tweak     uint32
	Flags     btcwire.BloomUpdateType
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
func (msg *MsgFilterLoad) BtcDecode(r io.Reader) error {
	var err error
	msg.Filter, err = ReadVarBytes(r, MaxFilterLoadFilterSize,
		"filterload filter size")
	if err != nil {
		return err
	}

	var flags uint8
	err = ReadElements(r, &msg.HashFuncs, &msg.Tweak, &flags)
	if err != nil {
		return err
	}
	msg.Flags = btcwire.BloomUpdateType(flags)

	if msg.HashFuncs > MaxFilterLoadHashFuncs {
		str := fmt.Sprintf("too many filter hash functions for message "+
			"[count %v, max %v]", msg.HashFuncs, MaxFilterLoadHashFuncs)
		return messageError("MsgFilterLoad.BtcDecode", ErrMalformedPayload, str)
	}

	return nil
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Message interface implementation.
func (msg *MsgFilterLoad) BtcEncode(w io.Writer) error {
	err := validateFilterLoad(msg.Filter, msg.HashFuncs)
	if err != nil {
		return err
	}

	err = WriteVarBytes(w, msg.Filter)
	if err != nil {
		return err
	}

	return WriteElements(w, msg.HashFuncs, msg.Tweak, uint8(msg.Flags))
}

// Command returns the protocol command string for the message. This is part
// of the Message interface implementation.
func (msg *MsgFilterLoad) Command() string {
	return CmdFilterLoad
}

// MaxPayloadLength returns the maximum length the payload can be for the
// receiver. This is part of the Message interface implementation.
func (msg *MsgFilterLoad) MaxPayloadLength() uint32 {
	// Num filter bytes (varInt) + filter + 4 bytes hash funcs +
	// 4 bytes tweak + 1 byte flags.
	return uint32(VarIntSerializeSize(MaxFilterLoadFilterSize)) +
		MaxFilterLoadFilterSize + 9
}

func validateFilterLoad(filter []byte, hashFuncs uint32) error {
	size := len(filter)
	if size > MaxFilterLoadFilterSize {
		str := fmt.Sprintf("filterload filter size too large for message "+
			"[size %v, max %v]", size, MaxFilterLoadFilterSize)
		return messageError("MsgFilterLoad", ErrInvalidArgument, str)
	}

	if hashFuncs > MaxFilterLoadHashFuncs {
		str := fmt.Sprintf("too many filter hash functions for message "+
			"[count %v, max %v]", hashFuncs, MaxFilterLoadHashFuncs)
		return messageError("MsgFilterLoad", ErrInvalidArgument, str)
	}
	return nil
}

// NewMsgFilterLoad returns a new bitcoin filterload message that conforms to
// the Message interface. See MsgFilterLoad for details. Oversized filters
// and too many hash functions fail with ErrInvalidArgument.
func NewMsgFilterLoad(filter []byte, hashFuncs uint32, tweak uint32,
	flags btcwire.BloomUpdateType) (*MsgFilterLoad, error) {

	err := validateFilterLoad(filter, hashFuncs)
	if err != nil {
		return nil, err
	}
	return &MsgFilterLoad{
		Filter:    filter,
		HashFuncs: hashFuncs,
		Tweak:     tweak,
		Flags:     flags,
	}, nil
}
