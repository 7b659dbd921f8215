package security

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOutputDir_Validate(t *testing.T) {
	dir, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open output dir: %v", err)
	}
	defer dir.Close()

	tests := []struct {
		name      string
		input     string
		shouldErr bool
		errType   error
	}{
		{"simple file", "test.txt.enc", false, nil},
		{"file in subdirectory", "subdir/test.txt", false, nil},
		{"hidden file", ".env.enc", false, nil},
		{"dot slash", "./test.txt", false, nil},

		{"parent directory", "../test.txt", true, ErrPathEscapes},
		{"nested parent", "a/../../test.txt", true, ErrPathEscapes},
		{"absolute path unix", "/etc/passwd", true, ErrAbsolutePath},
		{"empty path", "", true, ErrEmptyPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := dir.Validate(tt.input)

			if tt.shouldErr {
				if err == nil {
					t.Errorf("Expected error for input %q, got none", tt.input)
					return
				}
				if !errors.Is(err, tt.errType) {
					t.Errorf("Expected error type %v, got %v", tt.errType, err)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error for input %q: %v", tt.input, err)
				return
			}
			if strings.HasPrefix(result, "..") || filepath.IsAbs(result) {
				t.Errorf("Result escapes directory: %q", result)
			}
		})
	}
}

func TestOutputDir_WriteFileAtomic(t *testing.T) {
	tmpDir := t.TempDir()
	outDir := filepath.Join(tmpDir, "out")

	dir, err := New(outDir)
	if err != nil {
		t.Fatalf("Failed to open output dir: %v", err)
	}
	defer dir.Close()

	tests := []struct {
		name      string
		path      string
		data      []byte
		shouldErr bool
	}{
		{"valid file", "test.txt.enc", []byte("hello"), false},
		{"nested file", "a/b/test.txt", []byte("world"), false},
		{"empty content", "empty.enc", []byte{}, false},
		{"path traversal attempt", "../outside.txt", []byte("bad"), true},
		{"absolute path", "/etc/shadow", []byte("bad"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dir.WriteFileAtomic(tt.path, tt.data, 0600)

			if tt.shouldErr {
				if err == nil {
					t.Errorf("Expected error when writing to %q, got none", tt.path)
				}
				if _, statErr := os.Stat(filepath.Join(tmpDir, "outside.txt")); statErr == nil {
					t.Error("File was created outside the output directory")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error writing to %q: %v", tt.path, err)
			}

			content, err := os.ReadFile(filepath.Join(outDir, filepath.FromSlash(tt.path)))
			if err != nil {
				t.Fatalf("Failed to read written file: %v", err)
			}
			if string(content) != string(tt.data) {
				t.Errorf("File content mismatch: got %q, want %q", content, tt.data)
			}

			read, err := dir.ReadFile(tt.path)
			if err != nil || string(read) != string(tt.data) {
				t.Errorf("ReadFile mismatch: %q, %v", read, err)
			}
		})
	}

	// No temporary files are left behind
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("Failed to list output dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("Temporary file left behind: %s", e.Name())
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"report.pdf", "report.pdf"},
		{"C:\\Users\\me\\report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"a\"b\r\n.txt", "ab.txt"},
		{"", "download"},
		{"..", "download"},
		{"dir/", "download"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.input); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestOutputDir_CreateFileAtomic(t *testing.T) {
	dir, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open output dir: %v", err)
	}
	defer dir.Close()

	if err := dir.CreateFileAtomic("data.enc", []byte("first"), 0600); err != nil {
		t.Fatalf("CreateFileAtomic failed: %v", err)
	}

	err = dir.CreateFileAtomic("data.enc", []byte("second"), 0600)
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("Expected fs.ErrExist, got %v", err)
	}

	got, err := dir.ReadFile("data.enc")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "first" {
		t.Errorf("Existing file changed: got %q", got)
	}

	entries, err := os.ReadDir(dir.Path())
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Temporary files left behind: %v", entries)
	}

	if err := dir.WriteFileAtomic("data.enc", []byte("third"), 0600); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if got, _ := dir.ReadFile("data.enc"); string(got) != "third" {
		t.Errorf("Replace: got %q", got)
	}
}
