// Package envelope implements the password based E2EE envelope applied to
// individual clipboard fields.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Prefix marks a field value as sealed.
const Prefix = "E2EE::"

const (
	saltSize   = 16
	nonceSize  = 12
	keySize    = 32
	iterations = 10000
)

var (
	// ErrAuthenticationFailed is returned for a wrong password or tampered ciphertext.
	ErrAuthenticationFailed = errors.New("envelope authentication failed")
	// ErrMalformed is returned when a blob is too short or not valid base64.
	ErrMalformed = errors.New("malformed envelope")
)

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext and returns salt || nonce || ciphertext.
func Seal(plaintext []byte, password string) ([]byte, error) {
	buf := make([]byte, saltSize+nonceSize, saltSize+nonceSize+len(plaintext)+16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	aead, err := newGCM(deriveKey(password, buf[:saltSize]))
	if err != nil {
		return nil, err
	}
	return aead.Seal(buf, buf[saltSize:], plaintext, nil), nil
}

// Open reverses Seal.
func Open(blob []byte, password string) ([]byte, error) {
	if len(blob) < saltSize+nonceSize+16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(blob))
	}
	aead, err := newGCM(deriveKey(password, blob[:saltSize]))
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, blob[saltSize:saltSize+nonceSize], blob[saltSize+nonceSize:], nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// IsSealed reports whether a field value carries the envelope prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

// SealField returns Prefix + base64(Seal(value)).
func SealField(value, password string) (string, error) {
	blob, err := Seal([]byte(value), password)
	if err != nil {
		return "", err
	}
	return Prefix + base64.StdEncoding.EncodeToString(blob), nil
}

// OpenField decrypts a sealed field. Values without the prefix are returned unchanged.
func OpenField(value, password string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	blob, err := base64.StdEncoding.DecodeString(value[len(Prefix):])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	plaintext, err := Open(blob, password)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
