// Package auth implements the PKCE primitives and the cookie sessions used
// by the OAuth authorization flow.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// VerifierLength is the length of a generated code verifier: 32 random bytes
// base64url-encoded without padding, the minimum the PKCE spec allows for a
// 256-bit verifier.
const VerifierLength = 43

// GenerateCodeVerifier produces a cryptographically random, URL-safe code
// verifier of exactly VerifierLength characters.
func GenerateCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CodeChallenge computes the S256 challenge for a verifier:
// base64url(SHA-256(verifier)), unpadded.
func CodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
