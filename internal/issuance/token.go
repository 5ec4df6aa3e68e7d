package issuance

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// MintToken returns a URL-safe validation token with n bytes of
// cryptographically secure randomness. Uniqueness is not guaranteed here;
// the store's unique index on token is the correctness mechanism.
func MintToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
