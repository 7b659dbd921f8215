package core

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/illarion/lockbox/internal/crypto"
)

const (
	EncryptedSuffix = ".enc"
	KeyFileName     = "keyfile.key"
	decryptedName   = "decrypted"
)

// Action selects the direction of a request
type Action string

const (
	ActionEncrypt Action = "encrypt"
	ActionDecrypt Action = "decrypt"
)

// ParseAction validates a user-supplied action
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionEncrypt:
		return ActionEncrypt, nil
	case ActionDecrypt:
		return ActionDecrypt, nil
	default:
		return "", ErrUnknownAction
	}
}

// Request is one encrypt or decrypt call as received from the web form or CLI
type Request struct {
	Action   Action
	Filename string
	Data     []byte
	Password []byte
	KeyFile  []byte // base64 text, as downloaded from keygen
}

// Result is the transformed file
type Result struct {
	Filename string
	Data     []byte
	Variant  crypto.Variant
}

// Process runs a request through the envelope engine.
// A keyfile takes precedence over a password.
func Process(req Request) (*Result, error) {
	if req.Filename == "" && req.Data == nil {
		return nil, ErrNoFile
	}
	if req.Action != ActionEncrypt && req.Action != ActionDecrypt {
		return nil, ErrUnknownAction
	}

	var (
		out     []byte
		variant crypto.Variant
		err     error
	)

	if len(req.KeyFile) > 0 {
		key, kerr := DecodeKeyFile(req.KeyFile)
		if kerr != nil {
			return nil, kerr
		}
		defer crypto.ClearBytes(key)

		variant = crypto.VariantKey
		if req.Action == ActionEncrypt {
			out, err = crypto.EncryptWithRawKey(req.Data, key)
		} else {
			out, err = crypto.DecryptWithRawKey(req.Data, key)
		}
	} else {
		password := bytes.TrimSpace(req.Password)
		if len(password) == 0 {
			return nil, ErrPasswordMissing
		}

		variant = crypto.VariantPassword
		if req.Action == ActionEncrypt {
			out, err = crypto.EncryptWithPassword(req.Data, password)
		} else {
			out, err = crypto.DecryptWithPassword(req.Data, password)
		}
	}
	if err != nil {
		return nil, err
	}

	return &Result{
		Filename: OutputName(req.Filename, req.Action),
		Data:     out,
		Variant:  variant,
	}, nil
}

// OutputName applies the .enc naming convention
func OutputName(name string, action Action) string {
	if action == ActionEncrypt {
		return name + EncryptedSuffix
	}

	name = strings.TrimSuffix(name, EncryptedSuffix)
	if name == "" {
		return decryptedName
	}
	return name
}

// DecodeKeyFile decodes keyfile text into raw key bytes.
// Surrounding whitespace is ignored; the length is checked by the engine.
func DecodeKeyFile(text []byte) ([]byte, error) {
	text = bytes.TrimSpace(text)
	key := make([]byte, base64.StdEncoding.DecodedLen(len(text)))

	n, err := base64.StdEncoding.Decode(key, text)
	if err != nil {
		return nil, ErrInvalidKeyFile
	}
	return key[:n], nil
}

// EncodeKeyFile encodes a raw key as keyfile text
func EncodeKeyFile(key []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(key)))
	base64.StdEncoding.Encode(out, key)
	return out
}

// NewKeyFile generates a random key and returns it as keyfile text
func NewKeyFile() ([]byte, error) {
	key, err := crypto.GenerateRandomKey()
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(key)

	return EncodeKeyFile(key), nil
}
