package common

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString(t *testing.T) {
	for _, size := range []int{0, 1, 12, 32} {
		s, err := MakeRandHexString(size)
		require.NoError(t, err)
		assert.Len(t, s, size*2)

		raw, err := hex.DecodeString(s)
		require.NoError(t, err)
		assert.Len(t, raw, size)
	}
}

func TestMakeRandHexString_SaltsDiffer(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		s, err := MakeRandHexString(12)
		require.NoError(t, err)
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate salt %q after %d draws", s, i)
		}
		seen[s] = struct{}{}
	}
}

func TestGenerateRandByteArray(t *testing.T) {
	a := GenerateRandByteArray(32)
	b := GenerateRandByteArray(32)

	require.Len(t, a, 32)
	require.Len(t, b, 32)
	assert.False(t, bytes.Equal(a, b), "two pepper keys should not collide")
	assert.Empty(t, GenerateRandByteArray(0))
}

func TestWipeByteArray(t *testing.T) {
	key := GenerateRandByteArray(32)
	key[0] = 0xff

	WipeByteArray(key)
	assert.Equal(t, make([]byte, 32), key)

	WipeByteArray(nil)
}
