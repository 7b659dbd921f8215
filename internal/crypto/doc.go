// Package crypto provides the lockbox envelope format and its cryptography.
//
// Encryption uses AES-256-GCM with:
//   - 32-byte key, derived from a password or supplied as a raw key
//   - 12-byte random nonce per encryption operation
//   - 16-byte authentication tag, no associated data
//
// Key derivation uses PBKDF2-HMAC-SHA256 with:
//   - 16-byte random salt per encryption (stored in the envelope)
//   - 390,000 iterations (PBKDF2Iterations, not stored in the envelope)
//
// Envelope layout:
//   - password variant: "ENCRYPTEDv1" | salt | nonce | ciphertext+tag
//   - raw-key variant:  "ENCRYPTEDk1" | nonce | ciphertext+tag
//
// Nonces are drawn fresh from crypto/rand on every call. Uniqueness under a
// given key rests on that; a deterministic nonce scheme would need its own
// uniqueness guarantee.
//
// Memory safety:
//   - Derived keys are zeroed with ClearBytes once the AEAD is built
//   - Callers should ClearBytes passwords and raw keys they own
package crypto
