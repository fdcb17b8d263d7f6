package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const tokenSecretSize = 32

// NewToken generates an opaque bearer secret and its storage hash. The raw
// token goes to the client; only the hash is ever persisted.
func NewToken() (raw string, hash string, err error) {
	var secret [tokenSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", "", err
	}

	// base64url, no padding, compact
	raw = base64.RawURLEncoding.EncodeToString(secret[:])
	return raw, HashToken(raw), nil
}

// HashToken maps a raw token to its hex-encoded SHA-256 storage hash.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
