// Package keyring keeps the web session secret in the OS keyring.
package keyring

import (
	"encoding/hex"
	"fmt"

	"github.com/illarion/lockbox/internal/crypto"
	"github.com/zalando/go-keyring"
)

const (
	serviceName   = "lockbox"
	secretUser    = "session-secret"
	secretByteLen = 32
)

// Source tells where a session secret came from
type Source string

const (
	SourceEnv       Source = "env"
	SourceKeyring   Source = "keyring"
	SourceGenerated Source = "generated"
)

// Store is the subset of the OS keyring lockbox uses
type Store interface {
	Get(service, user string) (string, error)
	Set(service, user, password string) error
	Delete(service, user string) error
}

type osStore struct{}

func (osStore) Get(service, user string) (string, error) { return keyring.Get(service, user) }

func (osStore) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}

func (osStore) Delete(service, user string) error { return keyring.Delete(service, user) }

// OS returns the platform keyring
func OS() Store {
	return osStore{}
}

// ResolveSecret returns the session secret: configured first, then the
// keyring, then a freshly generated one. A generated secret is saved to the
// keyring when possible; saveErr reports a failed save and is not fatal.
func ResolveSecret(store Store, configured string) (secret string, src Source, saveErr error) {
	if configured != "" {
		return configured, SourceEnv, nil
	}

	if s, err := store.Get(serviceName, secretUser); err == nil && s != "" {
		return s, SourceKeyring, nil
	}

	b, err := crypto.GenerateRandom(secretByteLen)
	if err != nil {
		return "", "", err
	}
	secret = hex.EncodeToString(b)

	if err := store.Set(serviceName, secretUser, secret); err != nil {
		saveErr = fmt.Errorf("failed to save session secret to keyring: %w", err)
	}
	return secret, SourceGenerated, saveErr
}

// ForgetSecret removes a stored session secret
func ForgetSecret(store Store) error {
	return store.Delete(serviceName, secretUser)
}

// HasSecret checks if a session secret is stored
func HasSecret(store Store) bool {
	_, err := store.Get(serviceName, secretUser)
	return err == nil
}
