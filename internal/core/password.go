package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/illarion/lockbox/internal/crypto"
	"golang.org/x/term"
)

const (
	// PasswordEnv holds the password itself
	PasswordEnv = "LOCKBOX_PASSWORD"
	// PasswordFileEnv names a file whose first line is the password
	PasswordFileEnv = "LOCKBOX_PASSWORD_FILE"
)

var (
	ErrNoTerminal       = errors.New("no terminal to prompt for a password; set " + PasswordEnv + " or " + PasswordFileEnv)
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// Prompter reads passwords from the user's terminal without echo.
// Stdin is used when it is a terminal, otherwise the controlling tty is
// opened, so files piped into a batch do not swallow the password.
type Prompter struct {
	out   io.Writer
	read  func() ([]byte, error)
	close func() error
}

// OpenPrompter finds a terminal to prompt on
func OpenPrompter() (*Prompter, error) {
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		return &Prompter{
			out:   os.Stderr,
			read:  func() ([]byte, error) { return term.ReadPassword(fd) },
			close: func() error { return nil },
		}, nil
	}

	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return nil, ErrNoTerminal
	}
	fd := int(tty.Fd())
	if !term.IsTerminal(fd) {
		tty.Close()
		return nil, ErrNoTerminal
	}
	return &Prompter{
		out:   tty,
		read:  func() ([]byte, error) { return term.ReadPassword(fd) },
		close: tty.Close,
	}, nil
}

// Close releases the tty opened by OpenPrompter
func (p *Prompter) Close() error {
	return p.close()
}

// Password shows prompt and reads one password
func (p *Prompter) Password(prompt string) ([]byte, error) {
	fmt.Fprint(p.out, prompt)
	password, err := p.read()
	fmt.Fprintln(p.out)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// NewPassword reads a password twice and requires both entries to match.
// An empty password is rejected before asking for confirmation.
func (p *Prompter) NewPassword() ([]byte, error) {
	first, err := p.Password("Enter password: ")
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(first)) == 0 {
		crypto.ClearBytes(first)
		return nil, ErrPasswordMissing
	}

	second, err := p.Password("Confirm password: ")
	if err != nil {
		crypto.ClearBytes(first)
		return nil, err
	}
	defer crypto.ClearBytes(second)

	if !crypto.ConstantTimeCompare(first, second) {
		crypto.ClearBytes(first)
		return nil, ErrPasswordMismatch
	}
	return first, nil
}

// PasswordFromEnv returns the password from PasswordEnv, or the first line
// of the file named by PasswordFileEnv. It returns nil if neither is set.
func PasswordFromEnv() ([]byte, error) {
	if password := os.Getenv(PasswordEnv); password != "" {
		return []byte(password), nil
	}

	path := os.Getenv(PasswordFileEnv)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", PasswordFileEnv, err)
	}
	defer crypto.ClearBytes(data)

	line, _, _ := bytes.Cut(data, []byte("\n"))
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return nil, fmt.Errorf("%s: %w", PasswordFileEnv, ErrPasswordMissing)
	}
	return append([]byte(nil), line...), nil
}
