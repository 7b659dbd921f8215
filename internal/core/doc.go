// Package core provides the request boundary shared by the lockbox web form
// and command line.
//
// A request carries the input bytes, an action and exactly one secret:
//   - A keyfile (base64 text of a 32-byte key), which wins when present
//   - Otherwise a password, which must not be empty
//
// Output naming:
//   - Encrypt appends ".enc"
//   - Decrypt strips a trailing ".enc"
//
// UserMessage maps every error to a message safe to show to the user; it
// never distinguishes a wrong secret from tampered data.
package core
