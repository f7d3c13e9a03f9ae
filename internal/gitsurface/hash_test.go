package gitsurface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHashRejectsNonHex(t *testing.T) {
	_, err := NewHash("not-hex-zzzz")
	require.Error(t, err)
}

func TestNewHashRejectsWrongLength(t *testing.T) {
	_, err := NewHash("abcd")
	require.Error(t, err)
}

func TestZeroHashIsZero(t *testing.T) {
	assert.True(t, ZeroHash.IsZero())

	h, err := NewHash("da39a3ee5e6b4b0d3255bfef95601890afd80709")
	require.NoError(t, err)
	assert.False(t, h.IsZero())
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", h.String())
}
