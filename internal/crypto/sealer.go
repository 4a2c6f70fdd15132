// Package crypto seals provider credentials before they reach storage.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Argon2id parameters for deriving the master key from the operator passphrase.
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	KeyLen              = 32
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// DeriveMasterKey returns the Argon2id key for passphrase and salt.
func DeriveMasterKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// Sealer encrypts per-user secrets with XChaCha20-Poly1305 under keys derived from one master key.
type Sealer struct {
	master []byte
}

// NewSealer derives the master key from the operator passphrase.
func NewSealer(passphrase, salt []byte) (*Sealer, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("empty passphrase")
	}
	return &Sealer{master: DeriveMasterKey(passphrase, salt)}, nil
}

// NewSealerWithKey uses a ready master key.
func NewSealerWithKey(master []byte) (*Sealer, error) {
	if len(master) != KeyLen {
		return nil, errors.New("bad master key length")
	}
	return &Sealer{master: append([]byte(nil), master...)}, nil
}

// Seal encrypts plaintext for userID; the user id is bound as AAD. Output is nonce||ciphertext.
func (s *Sealer) Seal(userID int64, plaintext []byte) ([]byte, error) {
	aead, err := s.aead(userID)
	if err != nil {
		return nil, err
	}
	nonce, err := RandBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, userAAD(userID))...)
	return out, nil
}

// Open decrypts a value produced by Seal for the same user.
func (s *Sealer) Open(userID int64, sealed []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("sealed value too short")
	}
	aead, err := s.aead(userID)
	if err != nil {
		return nil, err
	}
	nonce := sealed[:chacha20poly1305.NonceSizeX]
	ct := sealed[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, userAAD(userID))
}

func (s *Sealer) aead(userID int64) (cipher.AEAD, error) {
	key, err := deriveUserKey(s.master, userID)
	if err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(key)
}

// deriveUserKey derives a per-user key via HKDF-SHA256 with the user id as info.
func deriveUserKey(master []byte, userID int64) ([]byte, error) {
	r := hkdf.New(sha256.New, master, nil, userAAD(userID))
	key := make([]byte, KeyLen)
	_, err := r.Read(key)
	return key, err
}

func userAAD(userID int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(userID))
	return b[:]
}
