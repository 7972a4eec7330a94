/**
 * @description
 * AES-256-GCM encryption for webhook subscription secrets. The HMAC signing
 * secret shared with Dwolla must not sit in the database as plaintext; rows
 * are encrypted on write and decrypted on read, keyed by a 32-byte hex key
 * from configuration.
 */

package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// SecretCipher encrypts and decrypts webhook subscription secrets at rest.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher builds a cipher from a 64-character hex key (32 bytes).
func NewSecretCipher(hexKey string) (*SecretCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("secret encryption key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, errors.New("secret encryption key must be 32 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &SecretCipher{aead: aead}, nil
}

// Encrypt seals a plaintext secret into a hex-encoded nonce||ciphertext blob.
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *SecretCipher) Decrypt(encoded string) (string, error) {
	sealed, err := hex.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("stored secret is not valid hex: %w", err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", errors.New("stored secret is truncated")
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt stored secret: %w", err)
	}
	return string(plaintext), nil
}
