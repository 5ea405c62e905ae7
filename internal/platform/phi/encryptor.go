// Package phi encrypts personally identifying patient fields before they are
// written to the store.
package phi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// prefix marks a stored value as ciphertext so rows written before
// encryption was enabled can still be read.
const prefix = "enc:v1:"

// FieldEncryptor encrypts and decrypts single string fields.
type FieldEncryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(stored string) (string, error)
}

// AESEncryptor is an AES-256-GCM FieldEncryptor. The nonce is prepended to
// the ciphertext and the result is base64 encoded.
type AESEncryptor struct {
	aead cipher.AEAD
}

func NewAESEncryptor(key []byte) (*AESEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("phi encryptor: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("phi encryptor: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("phi encryptor: create GCM: %w", err)
	}
	return &AESEncryptor{aead: aead}, nil
}

// NewAESEncryptorHex builds an encryptor from a 64-character hex key.
func NewAESEncryptorHex(hexKey string) (*AESEncryptor, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("phi encryptor: key is not valid hex: %w", err)
	}
	return NewAESEncryptor(key)
}

func (e *AESEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("phi encrypt: generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *AESEncryptor) Decrypt(stored string) (string, error) {
	if !strings.HasPrefix(stored, prefix) {
		return stored, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, prefix))
	if err != nil {
		return "", fmt.Errorf("phi decrypt: base64 decode: %w", err)
	}
	n := e.aead.NonceSize()
	if len(data) < n {
		return "", fmt.Errorf("phi decrypt: ciphertext too short")
	}
	plaintext, err := e.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("phi decrypt: %w", err)
	}
	return string(plaintext), nil
}

// Plain is the FieldEncryptor used when no key is configured. It stores
// values as-is but still reads back values written with a key prefix as an
// error, so a missing key is noticed.
type Plain struct{}

func (Plain) Encrypt(plaintext string) (string, error) { return plaintext, nil }

func (Plain) Decrypt(stored string) (string, error) {
	if strings.HasPrefix(stored, prefix) {
		return "", fmt.Errorf("phi decrypt: value is encrypted but no key is configured")
	}
	return stored, nil
}
