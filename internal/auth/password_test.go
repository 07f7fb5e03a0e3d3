package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher()

	hash, err := h.Hash("Aa1!aaaa")
	require.NoError(t, err)
	require.NotEqual(t, "Aa1!aaaa", hash)

	assert.True(t, h.Compare(hash, "Aa1!aaaa"))
	assert.False(t, h.Compare(hash, "Aa1!aaab"))
	assert.False(t, h.Compare("", "Aa1!aaaa"))
}

func TestBcryptHasherDistinctSalts(t *testing.T) {
	h := NewBcryptHasher()

	first, err := h.Hash("Aa1!aaaa")
	require.NoError(t, err)
	second, err := h.Hash("Aa1!aaaa")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHashTokenDeterministic(t *testing.T) {
	a := HashToken("raw-token")
	b := HashToken("raw-token")
	c := HashToken("other-token")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestNewOpaqueToken(t *testing.T) {
	first, err := NewOpaqueToken(32)
	require.NoError(t, err)
	second, err := NewOpaqueToken(32)
	require.NoError(t, err)

	assert.Len(t, first, 64)
	assert.NotEqual(t, first, second)
}
