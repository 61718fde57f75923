// internal/security/encryption.go
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

const currentVersion = "v1"

// KeyCipher seals wallet secrets with AES-256-GCM. The wallet address is
// bound as associated data, so a ciphertext copied onto another wallet row
// fails to open. A previous key may be kept to read rows written before a
// rotation.
type KeyCipher struct {
	primary  cipher.AEAD
	previous cipher.AEAD
}

// NewKeyCipher accepts base64 or raw 32-byte keys. previousKey may be empty.
func NewKeyCipher(masterKey, previousKey string) (*KeyCipher, error) {
	primary, err := newAEAD(masterKey)
	if err != nil {
		return nil, err
	}
	kc := &KeyCipher{primary: primary}

	if previousKey != "" {
		if kc.previous, err = newAEAD(previousKey); err != nil {
			return nil, fmt.Errorf("previous key: %w", err)
		}
	}
	return kc, nil
}

func newAEAD(key string) (cipher.AEAD, error) {
	keyBytes := []byte(key)
	if decoded, err := base64.StdEncoding.DecodeString(key); err == nil {
		keyBytes = decoded
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("invalid master key length: must be 32 bytes for AES-256, got %d", len(keyBytes))
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal returns "v1:" + base64(nonce || ciphertext).
func (k *KeyCipher) Seal(secret, address string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}

	nonce := make([]byte, k.primary.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := k.primary.Seal(nonce, nonce, []byte(secret), []byte(address))

	return currentVersion + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal, trying the previous key when the primary fails.
func (k *KeyCipher) Open(sealed, address string) (string, error) {
	version, payload, ok := strings.Cut(sealed, ":")
	if !ok || version != currentVersion {
		return "", fmt.Errorf("unsupported ciphertext version")
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	plaintext, err := open(k.primary, raw, address)
	if err != nil && k.previous != nil {
		plaintext, err = open(k.previous, raw, address)
	}
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Reseal re-encrypts a value under the primary key (key rotation).
func (k *KeyCipher) Reseal(sealed, address string) (string, error) {
	secret, err := k.Open(sealed, address)
	if err != nil {
		return "", err
	}
	return k.Seal(secret, address)
}

func open(aead cipher.AEAD, raw []byte, address string) ([]byte, error) {
	nonceSize := aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, body := raw[:nonceSize], raw[nonceSize:]

	plaintext, err := aead.Open(nil, nonce, body, []byte(address))
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// GenerateMasterKey returns a random base64 AES-256 key
func GenerateMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
