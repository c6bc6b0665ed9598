package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	realKey, keyHash, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(realKey, Prefix()))
	// 32 random bytes hex-encoded after the prefix.
	assert.Len(t, realKey, len(Prefix())+64)
	// The stored hash can be recomputed from the raw key, and only from it.
	assert.Equal(t, keyHash, HashKey(realKey))
	assert.NotEqual(t, keyHash, HashKey(realKey+"x"))
}

func TestGenerateAPIKeyUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		key, _, err := GenerateAPIKey()
		require.NoError(t, err)
		assert.False(t, seen[key])
		seen[key] = true
	}
}
