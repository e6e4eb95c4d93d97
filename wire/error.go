// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind identifies a class of protocol error.
type ErrorKind uint8

// These constants identify the protocol errors surfaced by the codecs and
// peer sessions.
const (
	// ErrIncomplete means more bytes are needed before a frame can be
	// decoded. It is never fatal.
	ErrIncomplete ErrorKind = iota

	// ErrInvalidMagic means a frame did not start with the network magic.
	ErrInvalidMagic

	// ErrChecksumMismatch means a frame's payload did not hash to the
	// checksum in its header.
	ErrChecksumMismatch

	// ErrUnknownCommand means a frame carried a command with no codec.
	ErrUnknownCommand

	// ErrNonCanonicalVarInt means a variable length integer was not
	// encoded in its shortest form.
	ErrNonCanonicalVarInt

	// ErrMalformedPayload means a payload was truncated or violated a
	// field constraint.
	ErrMalformedPayload

	// ErrPayloadTooLarge means a frame header declared a payload larger
	// than MaxMessagePayload.
	ErrPayloadTooLarge

	// ErrBadMerkleProof means a partial merkle tree failed validation.
	// The session that received it stays open.
	ErrBadMerkleProof

	// ErrHandshakeTimeout means the remote did not complete the handshake
	// in time.
	ErrHandshakeTimeout

	// ErrInvalidArgument means a message could not be built from the
	// arguments given. These errors are local and never reach the wire.
	ErrInvalidArgument
)

var errorKindStrings = map[ErrorKind]string{
	ErrIncomplete:         "ErrIncomplete",
	ErrInvalidMagic:       "ErrInvalidMagic",
	ErrChecksumMismatch:   "ErrChecksumMismatch",
	ErrUnknownCommand:     "ErrUnknownCommand",
	ErrNonCanonicalVarInt: "ErrNonCanonicalVarInt",
	ErrMalformedPayload:   "ErrMalformedPayload",
	ErrPayloadTooLarge:    "ErrPayloadTooLarge",
	ErrBadMerkleProof:     "ErrBadMerkleProof",
	ErrHandshakeTimeout:   "ErrHandshakeTimeout",
	ErrInvalidArgument:    "ErrInvalidArgument",
}

// String returns the ErrorKind as a human-readable name.
func (k ErrorKind) String() string {
	if s, ok := errorKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorKind (%d)", uint8(k))
}

// IsFatal returns whether an error of this kind must close the session that
// encountered it.
func (k ErrorKind) IsFatal() bool {
	switch k {
	case ErrIncomplete, ErrBadMerkleProof, ErrInvalidArgument:
		return false
	}
	return true
}

// MessageError describes an issue with a message.
// An example of some potential issues are messages from the wrong bitcoin
// network, invalid commands, mismatched checksums, and exceeding max payloads.
type MessageError struct {
	Func        string    // Function name
	Kind        ErrorKind // Class of the error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e *MessageError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("%s: %s", e.Func, e.Description)
	}
	return e.Description
}

// messageError creates an error for the given function, kind and
// description.
func messageError(f string, kind ErrorKind, desc string) *MessageError {
	return &MessageError{Func: f, Kind: kind, Description: desc}
}

// KindOf returns the kind of the first MessageError in err's chain. The
// second return value is false when there is none.
func KindOf(err error) (ErrorKind, bool) {
	var msgErr *MessageError
	if errors.As(err, &msgErr) {
		return msgErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries a MessageError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// asMalformed turns a decoding failure into a MessageError. Errors that
// already carry a kind keep it; everything else, such as a short read, is
// reported as ErrMalformedPayload.
func asMalformed(f string, err error) error {
	if _, ok := KindOf(err); ok {
		return err
	}
	return messageError(f, ErrMalformedPayload, err.Error())
}
