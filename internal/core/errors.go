package core

import (
	"errors"
	"strings"

	"github.com/illarion/lockbox/internal/crypto"
)

// ErrInput matches every missing or malformed input error
var ErrInput = errors.New("invalid input")

var (
	ErrNoFile          error = &InputError{msg: "please upload a file"}
	ErrPasswordMissing error = &InputError{msg: "password required if no keyfile provided"}
	ErrInvalidKeyFile  error = &InputError{msg: "keyfile is not valid base64"}
	ErrUnknownAction   error = &InputError{msg: "action must be encrypt or decrypt"}
)

// InputError reports a request the user has to fix before it can be processed
type InputError struct {
	msg string
}

func (e *InputError) Error() string { return e.msg }

func (e *InputError) Is(target error) bool { return target == ErrInput }

// UserMessage returns the text shown to a user for err
func UserMessage(err error) string {
	var in *InputError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &in):
		return sentence(in.msg)
	case errors.Is(err, crypto.ErrFormat):
		return "Invalid or unrecognized file format."
	case errors.Is(err, crypto.ErrAuthentication):
		return "Decryption failed: wrong password or key, or the file is corrupted."
	case errors.Is(err, crypto.ErrKeyLength):
		return "Key must be exactly 32 bytes."
	default:
		return "Unexpected error."
	}
}

func sentence(msg string) string {
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
