// Package crypto provides AES-256-GCM authenticated encryption for the per-user
// Gemini API keys that must be stored at rest in the database. A user's API key
// grants billable access to their Google AI account, so a leaked database dump
// must not expose usable credentials. AES-256-GCM is chosen because it provides
// both confidentiality and authenticated integrity: a ciphertext sealed under a
// different key (for example after an unmigrated key rotation) fails decryption
// deterministically instead of yielding garbage that would surface later as a
// confusing upstream authentication error.
//
// The IV is returned to the caller as a sibling value rather than being
// prepended to the ciphertext, matching the storage schema where
// users.encrypted_credential and users.encryption_iv are separate columns.
// Both values are hex encoded. The IV is not secret; only the key is.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrKeyLengthInvalid is returned when a master key is not exactly 32 bytes (required for AES-256).
	ErrKeyLengthInvalid = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	// ErrCiphertextCorrupted is returned when the ciphertext or IV fails hex decoding or has an impossible length.
	ErrCiphertextCorrupted = errors.New("crypto: ciphertext or iv is corrupted")
	// ErrDecryptionFailed is returned when AES-GCM authentication fails, indicating tampering or a wrong key.
	ErrDecryptionFailed = errors.New("crypto: decryption operation failed")
	// ErrSaltTooShort is returned when the provided salt is fewer than 16 bytes, which would weaken PBKDF2 key derivation.
	ErrSaltTooShort = errors.New("crypto: salt must be at least 16 bytes")
)

// CredentialCipher seals and opens per-user API credentials.
// It is a pure function of its inputs plus the process-wide key and is safe
// for concurrent use without locking.
type CredentialCipher struct {
	aead cipher.AEAD
}

// NewCredentialCipher creates a cipher with a 32-byte master key. The key is
// not retained beyond the derived AEAD state, so callers may zero their copy.
func NewCredentialCipher(masterKey []byte) (*CredentialCipher, error) {
	if len(masterKey) != 32 {
		return nil, ErrKeyLengthInvalid
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &CredentialCipher{aead: aead}, nil
}

// DeriveCredentialCipher creates a cipher by deriving a 32-byte key from a
// passphrase with PBKDF2-SHA256. Used when the operator supplies a passphrase
// instead of a raw key.
func DeriveCredentialCipher(passphrase string, salt []byte, iterations int) (*CredentialCipher, error) {
	if len(salt) < 16 {
		return nil, ErrSaltTooShort
	}
	if iterations < 10000 {
		iterations = 100000
	}
	derivedKey := pbkdf2.Key([]byte(passphrase), salt, iterations, 32, sha256.New)
	return NewCredentialCipher(derivedKey)
}

// Seal encrypts plaintext with a fresh random IV and returns the hex-encoded
// ciphertext and IV as sibling values. The IV is never reused: two calls with
// the same plaintext produce different ciphertexts.
func (cc *CredentialCipher) Seal(plaintext string) (ciphertextHex, ivHex string, err error) {
	iv := make([]byte, cc.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", "", err
	}

	sealed := cc.aead.Seal(nil, iv, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), hex.EncodeToString(iv), nil
}

// Open decrypts a ciphertext/IV pair produced by Seal under the same key.
// It fails hard: a malformed pair returns ErrCiphertextCorrupted and a
// tampered or wrong-key ciphertext returns ErrDecryptionFailed. It never
// returns a usable-looking empty credential on failure.
func (cc *CredentialCipher) Open(ciphertextHex, ivHex string) (string, error) {
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", ErrCiphertextCorrupted
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", ErrCiphertextCorrupted
	}
	if len(iv) != cc.aead.NonceSize() || len(ciphertext) < cc.aead.Overhead() {
		return "", ErrCiphertextCorrupted
	}

	plaintext, err := cc.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// GenerateKey creates a cryptographically secure random 32-byte key
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateSalt creates a cryptographically secure random salt
func GenerateSalt(length int) ([]byte, error) {
	if length < 16 {
		length = 16
	}
	salt := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}
