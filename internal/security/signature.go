// internal/security/signature.go
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

type SignatureAlgorithm string

const (
	HMACSHA256Hex    SignatureAlgorithm = "hmac-sha256-hex"
	HMACSHA256Base64 SignatureAlgorithm = "hmac-sha256-base64"
)

// Sign computes the signature of body under secret.
func Sign(alg SignatureAlgorithm, secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sum := mac.Sum(nil)

	if alg == HMACSHA256Base64 {
		return base64.StdEncoding.EncodeToString(sum)
	}
	return hex.EncodeToString(sum)
}

// VerifySignature compares in constant time. An empty secret or header never verifies.
func VerifySignature(alg SignatureAlgorithm, secret string, body []byte, header string) bool {
	header = strings.TrimSpace(header)
	if secret == "" || header == "" {
		return false
	}
	expected := Sign(alg, secret, body)
	if alg != HMACSHA256Base64 {
		header = strings.ToLower(header)
	}
	return hmac.Equal([]byte(expected), []byte(header))
}

// EqualToken compares a shared-secret header value in constant time.
func EqualToken(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
