package witness

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackBytesDeterministic(t *testing.T) {
	body := bytes.Repeat([]byte{0xAB}, MaxResponseBodyBytes)
	first := PackBytes(body, ResponseBlocks)
	second := PackBytes(body, ResponseBlocks)
	require.Len(t, first, ResponseBlocks)
	for i := range first {
		assert.True(t, first[i].Equal(&second[i]), "block %d should be identical across runs", i)
	}
}

func TestPackBytesZeroPadsShortInput(t *testing.T) {
	blocks := PackBytes([]byte("hello"), ServerNameBlocks)
	require.Len(t, blocks, ServerNameBlocks)
	// every block after the first (which holds "hello") must be zero.
	for i := 1; i < ServerNameBlocks; i++ {
		assert.True(t, blocks[i].IsZero(), "block %d should be zero-padded", i)
	}
}

func TestPackBytesLittleEndianWithinBlock(t *testing.T) {
	// A single 0x01 byte at position 0, little-endian, should decode to
	// field value 1, not 2^(30*8).
	blocks := PackBytes([]byte{0x01}, 1)
	require.Len(t, blocks, 1)
	var one = blocks[0].Uint64()
	assert.Equal(t, uint64(1), one)
}

func TestMaxSizesMatchSpec(t *testing.T) {
	assert.Equal(t, 527, MaxResponseBodyBytes)
	assert.Equal(t, 248, MaxServerNameBytes)
}
