package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const keyPrefix = "bk_live_"

// GenerateAPIKey creates a random API key and the SHA-256 hash that gets
// stored. The raw key is shown to the user exactly once.
func GenerateAPIKey() (realKey, keyHash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}

	realKey = keyPrefix + hex.EncodeToString(raw)
	return realKey, HashKey(realKey), nil
}

// HashKey hashes a raw key the same way stored keys were hashed; lookups
// never compare plain text.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Prefix identifies the key family in storage.
func Prefix() string { return keyPrefix }
