package security

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/illarion/lockbox/internal/crypto"
)

var (
	ErrPathEscapes  = errors.New("path escapes output directory")
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	ErrEmptyPath    = errors.New("empty path not allowed")
)

const fallbackName = "download"

// OutputDir writes files confined to a single directory
type OutputDir struct {
	root *os.Root
	path string
}

// New opens dir as an output directory, creating it if needed
func New(dir string) (*OutputDir, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	root, err := os.OpenRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open output directory: %w", err)
	}

	return &OutputDir{root: root, path: absPath}, nil
}

// Close releases the directory handle
func (o *OutputDir) Close() error {
	if o.root != nil {
		return o.root.Close()
	}
	return nil
}

// Path returns the absolute directory path
func (o *OutputDir) Path() string {
	return o.path
}

// Validate rejects names that are empty, absolute or escape the directory.
// It returns the cleaned relative name.
func (o *OutputDir) Validate(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyPath
	}

	if !filepath.IsLocal(name) {
		if filepath.IsAbs(name) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, name)
		}
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}

	return filepath.Clean(name), nil
}

// WriteFileAtomic writes data to name via a temporary file and a rename,
// replacing any existing file. On any error nothing is left at name.
func (o *OutputDir) WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	return o.writeAtomic(name, data, perm, true)
}

// CreateFileAtomic is WriteFileAtomic for a name that must not exist yet.
// It fails with an error matching fs.ErrExist and leaves the existing file alone.
func (o *OutputDir) CreateFileAtomic(name string, data []byte, perm os.FileMode) error {
	return o.writeAtomic(name, data, perm, false)
}

func (o *OutputDir) writeAtomic(name string, data []byte, perm os.FileMode, replace bool) (err error) {
	clean, err := o.Validate(name)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if dir := filepath.Dir(clean); dir != "." {
		if err := o.root.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	suffix, err := crypto.GenerateRandom(6)
	if err != nil {
		return err
	}
	tmpName := filepath.Join(filepath.Dir(clean), ".tmp-"+hex.EncodeToString(suffix))

	f, err := o.root.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	closed := false
	defer func() {
		if !closed {
			f.Close()
		}
		if err != nil || !replace {
			o.root.Remove(tmpName)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("failed to sync output: %w", err)
	}
	closed = true
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}

	if replace {
		if err = o.root.Rename(tmpName, clean); err != nil {
			return fmt.Errorf("failed to move output into place: %w", err)
		}
		return nil
	}

	// A hard link fails if clean exists; the temporary name is removed either way.
	if err = o.root.Link(tmpName, clean); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", fs.ErrExist, clean)
		}
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// ReadFile reads name from inside the directory
func (o *OutputDir) ReadFile(name string) ([]byte, error) {
	clean, err := o.Validate(name)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	return o.root.ReadFile(clean)
}

// SanitizeFilename reduces a client-supplied name to a safe base name
func SanitizeFilename(name string) string {
	// Some browsers send the full client path
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '"' {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." {
		return fallbackName
	}
	return name
}
