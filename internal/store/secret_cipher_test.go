package store

import (
	"strings"
	"testing"
)

const testCipherKey = "4f839e2c11a6d07bb54fa2c43d9e881f09c3b7d2665a14e8d07c9fb2314a5e6d"

func TestSecretCipherRoundTrip(t *testing.T) {
	cipher, err := NewSecretCipher(testCipherKey)
	if err != nil {
		t.Fatalf("NewSecretCipher returned error: %v", err)
	}

	plaintext := "a9b8c7d6e5f40123456789abcdef0123456789abcdef0123456789abcdef0123"
	sealed, err := cipher.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if sealed == plaintext || strings.Contains(sealed, plaintext) {
		t.Fatal("ciphertext must not contain the plaintext")
	}

	opened, err := cipher.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt returned error: %v", err)
	}
	if opened != plaintext {
		t.Fatalf("Decrypt = %q, want %q", opened, plaintext)
	}
}

func TestSecretCipherEncryptionIsNotDeterministic(t *testing.T) {
	cipher, err := NewSecretCipher(testCipherKey)
	if err != nil {
		t.Fatalf("NewSecretCipher returned error: %v", err)
	}
	first, err := cipher.Encrypt("same secret")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	second, err := cipher.Encrypt("same secret")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if first == second {
		t.Fatal("repeated encryption must produce distinct ciphertexts")
	}
}

func TestSecretCipherRejectsWrongKey(t *testing.T) {
	cipher, err := NewSecretCipher(testCipherKey)
	if err != nil {
		t.Fatalf("NewSecretCipher returned error: %v", err)
	}
	sealed, err := cipher.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}

	otherKey := "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
	other, err := NewSecretCipher(otherKey)
	if err != nil {
		t.Fatalf("NewSecretCipher returned error: %v", err)
	}
	if _, err := other.Decrypt(sealed); err == nil {
		t.Fatal("decryption with the wrong key must fail")
	}
}

func TestNewSecretCipherRejectsBadKeys(t *testing.T) {
	if _, err := NewSecretCipher(""); err == nil {
		t.Fatal("empty key must be rejected")
	}
	if _, err := NewSecretCipher("abcd"); err == nil {
		t.Fatal("short key must be rejected")
	}
	if _, err := NewSecretCipher(strings.Repeat("zz", 32)); err == nil {
		t.Fatal("non-hex key must be rejected")
	}
}
