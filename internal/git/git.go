package git

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// PlaintextStatus describes how git sees decrypted output files
type PlaintextStatus struct {
	IsRepo    bool
	Tracked   []string // Plaintext tracked by git (bad)
	Unignored []string // Plaintext not in .gitignore (warning)
}

// IsGitRepo checks if the working directory is inside a git repository
func IsGitRepo(workDir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workDir
	err := cmd.Run()
	return err == nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(workDir, path string) bool {
	cmd := exec.Command("git", "ls-files", "--", path)
	cmd.Dir = workDir
	output, err := cmd.Output()

	if err != nil {
		return false
	}

	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a file is ignored by git (handles all .gitignore files)
func IsIgnored(workDir, path string) bool {
	cmd := exec.Command("git", "check-ignore", "-q", "--", path)
	cmd.Dir = workDir
	err := cmd.Run()

	// git check-ignore returns exit code 0 if file is ignored
	return err == nil
}

// CheckPlaintext inspects decrypted files written under workDir
func CheckPlaintext(workDir string, files []string) *PlaintextStatus {
	status := &PlaintextStatus{}
	if _, err := exec.LookPath("git"); err != nil || !IsGitRepo(workDir) {
		return status
	}
	status.IsRepo = true

	for _, file := range files {
		rel := file
		if filepath.IsAbs(file) {
			r, err := filepath.Rel(workDir, file)
			if err != nil || strings.HasPrefix(r, "..") {
				continue
			}
			rel = r
		}

		if IsTracked(workDir, rel) {
			status.Tracked = append(status.Tracked, rel)
		} else if !IsIgnored(workDir, rel) {
			status.Unignored = append(status.Unignored, rel)
		}
	}

	return status
}

// FormatWarnings formats the status as warning lines, or "" when clean
func FormatWarnings(status *PlaintextStatus) string {
	if !status.IsRepo || (len(status.Tracked) == 0 && len(status.Unignored) == 0) {
		return ""
	}

	var result strings.Builder
	for _, file := range status.Tracked {
		result.WriteString(fmt.Sprintf("warning: decrypted %s is tracked by git (run: git rm --cached %s)\n", file, file))
	}
	for _, file := range status.Unignored {
		result.WriteString(fmt.Sprintf("warning: decrypted %s is not in .gitignore\n", file))
	}

	return result.String()
}
