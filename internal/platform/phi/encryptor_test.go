package phi

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"
)

func generateTestKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate test key: %v", err)
	}
	return key
}

func TestNewAESEncryptor_KeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := NewAESEncryptor(make([]byte, n)); err == nil {
			t.Errorf("expected error for %d-byte key", n)
		}
	}
	if _, err := NewAESEncryptor(generateTestKey(t)); err != nil {
		t.Errorf("unexpected error for 32-byte key: %v", err)
	}
}

func TestNewAESEncryptorHex(t *testing.T) {
	if _, err := NewAESEncryptorHex("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
	if _, err := NewAESEncryptorHex(hex.EncodeToString(generateTestKey(t))); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	enc, err := NewAESEncryptor(generateTestKey(t))
	if err != nil {
		t.Fatalf("create encryptor: %v", err)
	}

	for _, plain := range []string{"123.456.789-09", "Rua das Flores, 10", "ção ñ 漢字"} {
		stored, err := enc.Encrypt(plain)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plain, err)
		}
		if !strings.HasPrefix(stored, prefix) || strings.Contains(stored, plain) {
			t.Errorf("expected opaque ciphertext for %q, got %q", plain, stored)
		}
		got, err := enc.Decrypt(stored)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if got != plain {
			t.Errorf("expected %q, got %q", plain, got)
		}
	}
}

func TestEncrypt_NonceIsRandom(t *testing.T) {
	enc, _ := NewAESEncryptor(generateTestKey(t))
	a, _ := enc.Encrypt("same")
	b, _ := enc.Encrypt("same")
	if a == b {
		t.Error("expected different ciphertexts for the same plaintext")
	}
}

func TestDecrypt_LegacyPlaintextPassesThrough(t *testing.T) {
	enc, _ := NewAESEncryptor(generateTestKey(t))
	got, err := enc.Decrypt("123.456.789-09")
	if err != nil || got != "123.456.789-09" {
		t.Errorf("expected plaintext passthrough, got %q err=%v", got, err)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	a, _ := NewAESEncryptor(generateTestKey(t))
	b, _ := NewAESEncryptor(generateTestKey(t))
	stored, _ := a.Encrypt("secret")
	if _, err := b.Decrypt(stored); err == nil {
		t.Error("expected error decrypting with the wrong key")
	}
}

func TestPlain(t *testing.T) {
	var p Plain
	stored, _ := p.Encrypt("x")
	if stored != "x" {
		t.Errorf("expected passthrough, got %q", stored)
	}
	if _, err := p.Decrypt(prefix + "abc"); err == nil {
		t.Error("expected error reading encrypted value without key")
	}
}
