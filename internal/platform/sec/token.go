// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// secureTokenBytes is the entropy of one-time tokens (256 bits).
const secureTokenBytes = 32

// OneTimeToken is a freshly generated single-use credential.
// Raw goes to the user out of band, Hash is what gets stored.
type OneTimeToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// GenerateSecureToken returns a hex-encoded random value with 256 bits of entropy.
func GenerateSecureToken() (string, error) {
	buffer := make([]byte, secureTokenBytes)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec: failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

// HashToken returns the SHA-256 hex digest of a raw token.
//
// Tokens are high-entropy random values, so a fast unsalted digest is enough
// to make a leaked table useless while keeping lookups indexable.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewOneTimeToken generates a token that expires ttl after now.
func NewOneTimeToken(now time.Time, ttl time.Duration) (*OneTimeToken, error) {
	raw, err := GenerateSecureToken()
	if err != nil {
		return nil, err
	}
	return &OneTimeToken{
		Raw:       raw,
		Hash:      HashToken(raw),
		ExpiresAt: now.Add(ttl),
	}, nil
}
