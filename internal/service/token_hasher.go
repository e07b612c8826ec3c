package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// TokenHasher hashes sign-in link tokens with a keyed BLAKE2b-256.
type TokenHasher struct {
	key []byte
}

func NewTokenHasher(key string) (*TokenHasher, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("token hash key must be at least 16 bytes")
	}
	k := []byte(key)
	if len(k) > blake2b.Size {
		sum := blake2b.Sum256(k)
		k = sum[:]
	}
	return &TokenHasher{key: k}, nil
}

// Hash returns the hex digest of token.
func (h *TokenHasher) Hash(token string) string {
	mac, _ := blake2b.New256(h.key)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func generateRandomHex(byteLen int) (string, error) {
	if byteLen <= 0 {
		byteLen = 16
	}
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
