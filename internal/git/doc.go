// Package git checks decrypted outputs against the surrounding git work tree.
//
// Checks performed for each plaintext file:
//   - Whether it is tracked by git (should not be)
//   - Whether it is matched by .gitignore (should be)
//
// Outside a git work tree, or when git is not installed, no checks run.
package git
