//go:build darwin

package secrets

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// IsKeychainLockedError reports whether msg is the locked keychain error.
func IsKeychainLockedError(msg string) bool {
	return lockedKeychainMessage(msg)
}

func loginKeychainPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "login.keychain-db"
	}
	return filepath.Join(home, "Library", "Keychains", "login.keychain-db")
}

// CheckKeychainLocked reports whether the login keychain is locked.
func CheckKeychainLocked() bool {
	return exec.Command("security", "show-keychain-info", loginKeychainPath()).Run() != nil
}

// UnlockKeychain prompts for the keychain password on the terminal.
func UnlockKeychain() error {
	cmd := exec.Command("security", "unlock-keychain", loginKeychainPath())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("unlock keychain: %w", err)
	}
	return nil
}

// EnsureKeychainAccess unlocks the login keychain when it is locked.
func EnsureKeychainAccess() error {
	if !CheckKeychainLocked() {
		return nil
	}
	return UnlockKeychain()
}
