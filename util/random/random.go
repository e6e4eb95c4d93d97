package random

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/spvd/spvd/util/binaryserializer"
)

// Uint64 returns a cryptographically random uint64 value. Session nonces
// for version and ping messages come from here.
func Uint64() (uint64, error) {
	return binaryserializer.Uint64(rand.Reader, binary.LittleEndian)
}
