package cmd

import (
	"fmt"

	"github.com/illarion/lockbox/internal/keyring"
)

// SecretStatus reports whether a session secret is stored in the OS keyring
func SecretStatus() {
	if keyring.HasSecret(keyring.OS()) {
		fmt.Println("Session secret: stored in keyring")
	} else {
		fmt.Println("Session secret: not stored")
	}
}

// SecretForget removes the stored session secret.
// Pending flash messages from the old secret are dropped on next start.
func SecretForget() {
	if err := keyring.ForgetSecret(keyring.OS()); err != nil {
		fmt.Println("No session secret stored in keyring")
		return
	}
	fmt.Println("Session secret removed from keyring")
}
