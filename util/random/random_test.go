package random

import (
	"crypto/rand"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeRandReader implements the io.Reader interface and is used to force
// errors in the Uint64 function.
type fakeRandReader struct {
	n   int
	err error
}

func (r *fakeRandReader) Read(p []byte) (int, error) {
	n := r.n
	if n > len(p) {
		n = len(p)
	}
	return n, r.err
}

// TestUint64 checks the distribution of generated values. A proper
// cryptographic RNG should produce a value below 2^56 about once in 2^8
// tries; five hits means the RNG is broken.
func TestUint64(t *testing.T) {
	tries := 1 << 8
	watermark := uint64(1 << 56)
	maxHits := 5

	numHits := 0
	for i := 0; i < tries; i++ {
		nonce, err := Uint64()
		require.NoError(t, err)
		if nonce < watermark {
			numHits++
		}
		require.LessOrEqualf(t, numHits, maxHits, "got %d values less than "+
			"%d in %d runs", numHits, watermark, i+1)
	}
}

func TestUint64ShortRead(t *testing.T) {
	reader := rand.Reader
	rand.Reader = &fakeRandReader{n: 2, err: io.EOF}
	defer func() { rand.Reader = reader }()

	nonce, err := Uint64()
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF), "got %v", err)
	require.Zero(t, nonce)
}
