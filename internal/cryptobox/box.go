// Package cryptobox seals session material into opaque cookie-safe strings.
//
// Two backends share one wire format so that either can open what the other
// sealed: base64(iv || ciphertext || tag), AES-256-GCM, key derived from the
// passphrase with PBKDF2-SHA256.
package cryptobox

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

const (
	keyLen     = 32
	ivLen      = 12
	tagLen     = 16
	iterations = 100_000
	salt       = "gatekeeper-salt"
)

// ErrDecrypt is the only error Open returns. It carries no detail about the cause.
var ErrDecrypt = errors.New("cryptobox: decrypt failed")

// Box seals and opens byte payloads.
type Box interface {
	Seal(plaintext []byte) (string, error)
	Open(blob string) ([]byte, error)
}

// Backend names a Box implementation.
type Backend string

const (
	BackendFull Backend = "full"
	BackendEdge Backend = "edge"
)

// Select returns the Box for backend. Unknown names fall back to the full backend.
func Select(backend Backend, passphrase string) (Box, error) {
	switch Backend(strings.ToLower(string(backend))) {
	case BackendEdge:
		return NewEdge(passphrase)
	default:
		return NewFull(passphrase)
	}
}

// normalizePassphrase pads with '0' or truncates to exactly 32 bytes.
func normalizePassphrase(passphrase string) []byte {
	if len(passphrase) >= keyLen {
		return []byte(passphrase[:keyLen])
	}
	return []byte(passphrase + strings.Repeat("0", keyLen-len(passphrase)))
}

func deriveKey(passphrase string) []byte {
	return pbkdf2.Key(normalizePassphrase(passphrase), []byte(salt), iterations, keyLen, sha256.New)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptobox: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptobox: new gcm: %w", err)
	}
	return aead, nil
}

func seal(aead cipher.AEAD, plaintext []byte) (string, error) {
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("cryptobox: read iv: %w", err)
	}
	out := aead.Seal(iv, iv, plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

func open(aead cipher.AEAD, blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, ErrDecrypt
	}
	if len(raw) < ivLen+tagLen {
		return nil, ErrDecrypt
	}
	plaintext, err := aead.Open(nil, raw[:ivLen], raw[ivLen:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func checkPassphrase(passphrase string) error {
	if passphrase == "" {
		return errors.New("cryptobox: passphrase must be provided")
	}
	return nil
}
