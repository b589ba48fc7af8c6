// Package fieldcrypt seals individual text columns before they are persisted.
package fieldcrypt

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// sealedPrefix marks values produced by Seal so plaintext rows written before
// encryption was enabled can still be read.
const sealedPrefix = "enc1:"

var errCiphertextTooShort = errors.New("ciphertext too short")

// Cipher seals and opens text fields.
type Cipher interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// AEAD implements Cipher with XChaCha20-Poly1305 and a key derived from a secret.
type AEAD struct {
	aead cipher.AEAD
}

// New derives a 256-bit key from secret and returns a Cipher.
func New(secret string) (*AEAD, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("empty encryption secret")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("manolo field encryption v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create aead: %w", err)
	}
	return &AEAD{aead: aead}, nil
}

// Seal encrypts plaintext and returns a printable representation.
func (c *AEAD) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Values without the sealed prefix are
// returned unchanged.
func (c *AEAD) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", errCiphertextTooShort
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plain), nil
}

// Plain is a Cipher that stores text as-is.
type Plain struct{}

// Seal returns plaintext unchanged.
func (Plain) Seal(plaintext string) (string, error) { return plaintext, nil }

// Open returns stored unchanged.
func (Plain) Open(stored string) (string, error) { return stored, nil }

var (
	_ Cipher = (*AEAD)(nil)
	_ Cipher = Plain{}
)
