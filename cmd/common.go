package cmd

import (
	"fmt"
	"os"

	"github.com/illarion/lockbox/internal/core"
)

// GetPassword returns the password from the environment, or prompts for it.
// With confirm set the password is asked for twice.
// The caller is responsible for calling crypto.ClearBytes on the returned password.
func GetPassword(confirm bool) ([]byte, error) {
	password, err := core.PasswordFromEnv()
	if err != nil || password != nil {
		return password, err
	}

	prompter, err := core.OpenPrompter()
	if err != nil {
		return nil, err
	}
	defer prompter.Close()

	if confirm {
		return prompter.NewPassword()
	}
	return prompter.Password("Enter password: ")
}

// HandleError prints err the way users should see it and exits
func HandleError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
	os.Exit(1)
}
