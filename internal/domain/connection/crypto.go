package connection

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var hkdfInfo = []byte("nexuspm connection vault v1")

// ErrDecrypt is returned when a sealed token cannot be opened with the key.
var ErrDecrypt = errors.New("connection: token decryption failed")

// DeriveKey derives the 32-byte secretbox key from the configured vault
// secret with HKDF-SHA256.
func DeriveKey(secret string) (*[32]byte, error) {
	if secret == "" {
		return nil, errors.New("connection: empty vault secret")
	}
	var key [32]byte
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key[:]); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return &key, nil
}

// Seal encrypts plaintext with secretbox. The 24-byte nonce is prepended to
// the ciphertext.
func Seal(plaintext []byte, key *[32]byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("rand nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

// Open decrypts a value produced by Seal (nonce || ciphertext).
func Open(sealed []byte, key *[32]byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("ciphertext too short: %w", ErrDecrypt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
