//go:build !darwin

package secrets

// IsKeychainLockedError is always false off macOS.
func IsKeychainLockedError(string) bool { return false }

func loginKeychainPath() string { return "" }

// CheckKeychainLocked is always false off macOS.
func CheckKeychainLocked() bool { return false }

// UnlockKeychain is a no-op off macOS.
func UnlockKeychain() error { return nil }

// EnsureKeychainAccess is a no-op off macOS.
func EnsureKeychainAccess() error { return nil }
