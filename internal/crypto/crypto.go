package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize    = 16 // Salt size in bytes
	KeySize     = 32 // AES-256 key size
	NonceSize   = 12 // GCM nonce size
	AuthTagSize = 16 // GCM authentication tag size

	// PBKDF2Iterations is fixed per envelope version. It is not stored in
	// the envelope, so changing it makes existing ENCRYPTEDv1 files
	// undecryptable.
	PBKDF2Iterations = 390000
)

var (
	ErrFormat         = errors.New("invalid or unrecognized file format")
	ErrAuthentication = errors.New("authentication failed")
	ErrKeyLength      = errors.New("key must be exactly 32 bytes")
)

// DeriveKey derives an encryption key from a password
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, PBKDF2Iterations, KeySize, sha256.New)
}

// EncryptWithPassword encrypts plaintext under a key derived from password.
// Every call uses a fresh salt and nonce.
func EncryptWithPassword(plaintext, password []byte) ([]byte, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := DeriveKey(password, salt)
	defer ClearBytes(key)

	nonce, ciphertext, err := seal(key, plaintext)
	if err != nil {
		return nil, err
	}

	return BuildPasswordEnvelope(salt, nonce, ciphertext), nil
}

// DecryptWithPassword decrypts a password envelope
func DecryptWithPassword(envelope, password []byte) ([]byte, error) {
	salt, nonce, ciphertext, err := ParsePasswordEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	key := DeriveKey(password, salt)
	defer ClearBytes(key)

	return open(key, nonce, ciphertext)
}

// EncryptWithRawKey encrypts plaintext under a caller-supplied 32-byte key
func EncryptWithRawKey(plaintext, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrKeyLength
	}

	nonce, ciphertext, err := seal(key, plaintext)
	if err != nil {
		return nil, err
	}

	return BuildKeyEnvelope(nonce, ciphertext), nil
}

// DecryptWithRawKey decrypts a raw-key envelope
func DecryptWithRawKey(envelope, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, ErrKeyLength
	}

	nonce, ciphertext, err := ParseKeyEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	return open(key, nonce, ciphertext)
}

// GenerateRandomKey returns a new random 32-byte key
func GenerateRandomKey() ([]byte, error) {
	return GenerateRandom(KeySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func seal(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce, err = GenerateRandom(NonceSize)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return nonce, gcm.Seal(nil, nonce, plaintext, nil), nil
}

func open(key, nonce, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	// Open fails identically for a wrong key and for tampered bytes
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	if plaintext == nil {
		plaintext = []byte{}
	}

	return plaintext, nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
