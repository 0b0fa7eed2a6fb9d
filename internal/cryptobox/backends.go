package cryptobox

import "crypto/cipher"

// Full derives the key once and reuses the AEAD. Safe for concurrent use.
type Full struct {
	aead cipher.AEAD
}

// NewFull constructs the long-lived backend.
func NewFull(passphrase string) (*Full, error) {
	if err := checkPassphrase(passphrase); err != nil {
		return nil, err
	}
	aead, err := newAEAD(deriveKey(passphrase))
	if err != nil {
		return nil, err
	}
	return &Full{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random IV.
func (b *Full) Seal(plaintext []byte) (string, error) {
	return seal(b.aead, plaintext)
}

// Open decrypts a blob produced by either backend.
func (b *Full) Open(blob string) ([]byte, error) {
	return open(b.aead, blob)
}

// Edge keeps nothing but the passphrase and derives the key on every call,
// for runtimes that cannot hold derived state between requests.
type Edge struct {
	passphrase string
}

// NewEdge constructs the stateless backend.
func NewEdge(passphrase string) (*Edge, error) {
	if err := checkPassphrase(passphrase); err != nil {
		return nil, err
	}
	return &Edge{passphrase: passphrase}, nil
}

// Seal encrypts plaintext under a fresh random IV.
func (b *Edge) Seal(plaintext []byte) (string, error) {
	aead, err := newAEAD(deriveKey(b.passphrase))
	if err != nil {
		return "", err
	}
	return seal(aead, plaintext)
}

// Open decrypts a blob produced by either backend.
func (b *Edge) Open(blob string) ([]byte, error) {
	aead, err := newAEAD(deriveKey(b.passphrase))
	if err != nil {
		return nil, ErrDecrypt
	}
	return open(aead, blob)
}
