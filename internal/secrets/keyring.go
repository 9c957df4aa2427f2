package secrets

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/99designs/keyring"
)

var keyringOpenFunc = keyring.Open

var errKeyringTimeout = errors.New("timed out opening keyring")

type openResult struct {
	ring keyring.Keyring
	err  error
}

// openKeyringWithTimeout gives up on a keyring that does not open within
// timeout. The open call itself keeps running in the background.
func openKeyringWithTimeout(cfg keyring.Config, timeout time.Duration) (keyring.Keyring, error) {
	done := make(chan openResult, 1)
	go func() {
		ring, err := keyringOpenFunc(cfg)
		done <- openResult{ring: ring, err: err}
	}()

	select {
	case res := <-done:
		return res.ring, res.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %s; the Secret Service may be unresponsive. "+
			"Set WIKINAV_KEYRING_BACKEND=file to store credentials in an encrypted file instead",
			errKeyringTimeout, timeout)
	}
}

// lockedKeychainMessage matches the macOS error for a locked keychain.
func lockedKeychainMessage(msg string) bool {
	return strings.Contains(msg, "errSecInteractionNotAllowed") || strings.Contains(msg, "-25308")
}

// wrapKeychainError adds unlock instructions to locked keychain errors
// and returns other errors unchanged.
func wrapKeychainError(err error) error {
	if err == nil {
		return nil
	}
	if !lockedKeychainMessage(err.Error()) {
		return err
	}
	path := loginKeychainPath()
	if path == "" {
		path = "login.keychain-db"
	}
	return fmt.Errorf("%w\n\nThe keychain is locked. Unlock it and retry:\n  security unlock-keychain %s", err, path)
}
