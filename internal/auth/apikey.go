package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// apiKeyPrefix marks raw keys so leaked credentials are recognizable in
// source scans.
const apiKeyPrefix = "lsk_"

// GenerateAPIKey returns a new raw key and the hash under which it is
// stored. The raw key is handed to the caller exactly once.
func GenerateAPIKey() (rawKey, keyHash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate api key: %w", err)
	}
	rawKey = apiKeyPrefix + hex.EncodeToString(buf)
	return rawKey, HashAPIKey(rawKey), nil
}

func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

func LooksLikeAPIKey(s string) bool {
	return strings.HasPrefix(s, apiKeyPrefix)
}
