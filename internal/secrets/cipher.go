// Package secrets encrypts user credentials before they reach storage.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	nonceSize = 12
	scryptN   = 32768 // 2^15
	scryptR   = 8
	scryptP   = 1
	keySize   = 32 // AES-256
)

// appSalt is fixed so the same passphrase always derives the same key.
var appSalt = []byte("mavkus-api-keys-v1")

var (
	// ErrMissingPassphrase is returned by New when no passphrase is configured.
	ErrMissingPassphrase = errors.New("encryption key not configured")
	// ErrDecrypt is returned when a value cannot be authenticated.
	ErrDecrypt = errors.New("decryption failed (wrong key or corrupted value)")
)

// Cipher encrypts short strings with AES-256-GCM. Output is
// base64(nonce || ciphertext || tag). It is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// New derives the AES key from passphrase with scrypt.
func New(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, ErrMissingPassphrase
	}

	key, err := scrypt.Key([]byte(passphrase), appSalt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Cipher{aead: gcm}, nil
}

// Encrypt returns the encoded ciphertext of plaintext. An empty string
// stays empty.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. An empty string stays empty.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	if len(data) < nonceSize+c.aead.Overhead() {
		return "", ErrDecrypt
	}
	plaintext, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}

// Mask hides all but the last four characters of a credential.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	if len(r) <= 4 {
		return "****"
	}
	return "****" + string(r[len(r)-4:])
}
