package crypto

import (
	"bytes"
	"fmt"
)

// Envelope format tags. Both are 11 ASCII bytes.
const (
	PasswordTag = "ENCRYPTEDv1"
	KeyTag      = "ENCRYPTEDk1"
	TagLen      = 11
)

// Variant identifies which key path produced an envelope.
type Variant int

const (
	VariantPassword Variant = iota + 1
	VariantKey
)

func (v Variant) String() string {
	switch v {
	case VariantPassword:
		return "password"
	case VariantKey:
		return "keyfile"
	default:
		return "unknown"
	}
}

// BuildPasswordEnvelope concatenates tag, salt, nonce and ciphertext
func BuildPasswordEnvelope(salt, nonce, ciphertext []byte) []byte {
	out := make([]byte, 0, TagLen+len(salt)+len(nonce)+len(ciphertext))
	out = append(out, PasswordTag...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return append(out, ciphertext...)
}

// ParsePasswordEnvelope splits a password envelope at its fixed offsets.
// The returned slices alias blob.
func ParsePasswordEnvelope(blob []byte) (salt, nonce, ciphertext []byte, err error) {
	if len(blob) < TagLen+SaltSize+NonceSize {
		return nil, nil, nil, fmt.Errorf("%w: envelope too short", ErrFormat)
	}
	if !bytes.HasPrefix(blob, []byte(PasswordTag)) {
		return nil, nil, nil, fmt.Errorf("%w: not a password-encrypted file", ErrFormat)
	}

	off := TagLen
	salt = blob[off : off+SaltSize]
	off += SaltSize
	nonce = blob[off : off+NonceSize]
	off += NonceSize

	return salt, nonce, blob[off:], nil
}

// BuildKeyEnvelope concatenates tag, nonce and ciphertext
func BuildKeyEnvelope(nonce, ciphertext []byte) []byte {
	out := make([]byte, 0, TagLen+len(nonce)+len(ciphertext))
	out = append(out, KeyTag...)
	out = append(out, nonce...)
	return append(out, ciphertext...)
}

// ParseKeyEnvelope splits a raw-key envelope at its fixed offsets.
// The returned slices alias blob.
func ParseKeyEnvelope(blob []byte) (nonce, ciphertext []byte, err error) {
	if len(blob) < TagLen+NonceSize {
		return nil, nil, fmt.Errorf("%w: envelope too short", ErrFormat)
	}
	if !bytes.HasPrefix(blob, []byte(KeyTag)) {
		return nil, nil, fmt.Errorf("%w: not a keyfile-encrypted file", ErrFormat)
	}

	return blob[TagLen : TagLen+NonceSize], blob[TagLen+NonceSize:], nil
}

// DetectVariant reports which tag blob starts with
func DetectVariant(blob []byte) (Variant, error) {
	switch {
	case bytes.HasPrefix(blob, []byte(PasswordTag)):
		return VariantPassword, nil
	case bytes.HasPrefix(blob, []byte(KeyTag)):
		return VariantKey, nil
	default:
		return 0, ErrFormat
	}
}

// EnvelopeOverhead returns the number of bytes an envelope adds to its plaintext
func EnvelopeOverhead(v Variant) int {
	switch v {
	case VariantPassword:
		return TagLen + SaltSize + NonceSize + AuthTagSize
	case VariantKey:
		return TagLen + NonceSize + AuthTagSize
	default:
		return 0
	}
}
