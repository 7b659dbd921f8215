package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/illarion/lockbox/internal/core"
)

// Keygen writes a new base64 keyfile to path, or to stdout when path is empty
func Keygen(path string, force bool) {
	keyFile, err := core.NewKeyFile()
	if err != nil {
		HandleError(err)
	}

	if path == "" {
		fmt.Println(string(keyFile))
		return
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			fmt.Fprintf(os.Stderr, "Error: %s already exists\n", path)
			fmt.Fprintf(os.Stderr, "Use --force to overwrite it\n")
			os.Exit(1)
		}
		HandleError(err)
	}

	if _, err := f.Write(keyFile); err != nil {
		f.Close()
		HandleError(err)
	}
	if err := f.Close(); err != nil {
		HandleError(err)
	}

	fmt.Printf("keyfile written: %s\n", path)
	fmt.Println("Keep it safe: files encrypted with it cannot be recovered without it.")
}
