// Package secrets keeps Roam credentials in the system keyring.
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/term"

	"github.com/salmonumbrella/wikinav/internal/config"
)

// Credential modes.
const (
	// ModeCloud reads the graph through the cloud API with a token.
	ModeCloud = "cloud"
	// ModeEncrypted reads an encrypted graph through the desktop app.
	ModeEncrypted = "encrypted"
)

const (
	tokenKeyPrefix    = "token:"
	defaultAccountKey = "default_account"

	keyringTimeout = 10 * time.Second
)

// ErrNotFound is returned for a profile without a stored token.
var ErrNotFound = errors.New("credentials not found")

// Token is a stored credential.
type Token struct {
	Profile string `json:"profile"`
	// RefreshToken holds the API token, or the graph name for graph entries.
	RefreshToken string    `json:"refresh_token"`
	Mode         string    `json:"mode,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists tokens by profile.
type Store interface {
	Keys() ([]string, error)
	SetToken(profile string, tok Token) error
	GetToken(profile string) (Token, error)
	DeleteToken(profile string) error
	SetDefaultAccount(profile string) error
	GetDefaultAccount() (string, error)
}

// KeyringStore is a Store backed by 99designs/keyring.
type KeyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore wraps an open keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// Keys lists the profiles with a stored token.
func (s *KeyringStore) Keys() ([]string, error) {
	keys, err := s.ring.Keys()
	if err != nil {
		return nil, wrapKeychainError(err)
	}
	var profiles []string
	for _, k := range keys {
		if p, ok := strings.CutPrefix(k, tokenKeyPrefix); ok {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

// SetToken stores tok under profile.
func (s *KeyringStore) SetToken(profile string, tok Token) error {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return errors.New("missing profile")
	}
	tok.Profile = profile
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	err = s.ring.Set(keyring.Item{
		Key:   tokenKeyPrefix + profile,
		Data:  data,
		Label: config.AppName + " " + profile,
	})
	return wrapKeychainError(err)
}

// GetToken returns the token of profile, or ErrNotFound.
func (s *KeyringStore) GetToken(profile string) (Token, error) {
	item, err := s.ring.Get(tokenKeyPrefix + profile)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return Token{}, ErrNotFound
		}
		return Token{}, wrapKeychainError(err)
	}
	var tok Token
	if err := json.Unmarshal(item.Data, &tok); err != nil {
		return Token{}, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

// DeleteToken removes the token of profile. Removing a missing token is
// not an error.
func (s *KeyringStore) DeleteToken(profile string) error {
	err := s.ring.Remove(tokenKeyPrefix + profile)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !os.IsNotExist(err) {
		return wrapKeychainError(err)
	}
	return nil
}

// SetDefaultAccount records the profile used when none is named.
func (s *KeyringStore) SetDefaultAccount(profile string) error {
	return wrapKeychainError(s.ring.Set(keyring.Item{Key: defaultAccountKey, Data: []byte(profile)}))
}

// GetDefaultAccount returns the default profile, or ErrNotFound.
func (s *KeyringStore) GetDefaultAccount() (string, error) {
	item, err := s.ring.Get(defaultAccountKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", wrapKeychainError(err)
	}
	return string(item.Data), nil
}

// KeyringBackendInfo is the selected keyring backend and where the
// selection came from.
type KeyringBackendInfo struct {
	Value  string
	Source string
}

// Backend selection sources.
const (
	SourceEnv     = "env"
	SourceConfig  = "config"
	SourceDefault = "default"
)

// ResolveKeyringBackend picks the backend from WIKINAV_KEYRING_BACKEND,
// then the config file, then "auto".
func ResolveKeyringBackend() (KeyringBackendInfo, error) {
	if v := strings.TrimSpace(os.Getenv("WIKINAV_KEYRING_BACKEND")); v != "" {
		return KeyringBackendInfo{Value: strings.ToLower(v), Source: SourceEnv}, nil
	}
	cfg, err := config.ReadConfig()
	if err != nil {
		return KeyringBackendInfo{}, err
	}
	if v := strings.TrimSpace(cfg.KeyringBackend); v != "" {
		return KeyringBackendInfo{Value: strings.ToLower(v), Source: SourceConfig}, nil
	}
	return KeyringBackendInfo{Value: "auto", Source: SourceDefault}, nil
}

func allowedBackends(info KeyringBackendInfo) ([]keyring.BackendType, error) {
	switch info.Value {
	case "", "auto":
		return nil, nil
	case "keychain":
		return []keyring.BackendType{keyring.KeychainBackend}, nil
	case "secret-service":
		return []keyring.BackendType{keyring.SecretServiceBackend}, nil
	case "kwallet":
		return []keyring.BackendType{keyring.KWalletBackend}, nil
	case "wincred":
		return []keyring.BackendType{keyring.WinCredBackend}, nil
	case "pass":
		return []keyring.BackendType{keyring.PassBackend}, nil
	case "file":
		return []keyring.BackendType{keyring.FileBackend}, nil
	default:
		return nil, fmt.Errorf("invalid keyring backend %q (from %s)", info.Value, info.Source)
	}
}

// shouldForceFileBackend reports whether auto selection must fall back to
// the file backend because no session bus is available.
func shouldForceFileBackend(goos string, info KeyringBackendInfo, dbusAddr string) bool {
	return goos == "linux" && info.Value == "auto" && dbusAddr == ""
}

// shouldUseKeyringTimeout reports whether opening the keyring can hang on
// an unresponsive Secret Service.
func shouldUseKeyringTimeout(goos string, info KeyringBackendInfo, dbusAddr string) bool {
	return goos == "linux" && info.Value == "auto" && dbusAddr != ""
}

// filePassword unlocks the file backend from WIKINAV_KEYRING_PASSWORD or
// an interactive prompt.
func filePassword(prompt string) (string, error) {
	if v, ok := os.LookupEnv("WIKINAV_KEYRING_PASSWORD"); ok {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("keyring password required: set WIKINAV_KEYRING_PASSWORD")
	}
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read keyring password: %w", err)
	}
	return string(pw), nil
}

// OpenDefault opens the keyring selected by ResolveKeyringBackend.
func OpenDefault() (Store, error) {
	info, err := ResolveKeyringBackend()
	if err != nil {
		return nil, err
	}
	backends, err := allowedBackends(info)
	if err != nil {
		return nil, err
	}

	dbusAddr := os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	if shouldForceFileBackend(runtime.GOOS, info, dbusAddr) {
		backends = []keyring.BackendType{keyring.FileBackend}
	}

	cfg := keyring.Config{
		ServiceName:              config.AppName,
		AllowedBackends:          backends,
		KeychainTrustApplication: true,
		FilePasswordFunc:         filePassword,
	}
	if len(backends) == 0 || containsBackend(backends, keyring.FileBackend) {
		dir, err := config.EnsureKeyringDir()
		if err != nil {
			return nil, err
		}
		cfg.FileDir = dir
	}

	if err := EnsureKeychainAccess(); err != nil {
		return nil, err
	}

	var ring keyring.Keyring
	if shouldUseKeyringTimeout(runtime.GOOS, info, dbusAddr) {
		ring, err = openKeyringWithTimeout(cfg, keyringTimeout)
	} else {
		ring, err = keyringOpenFunc(cfg)
	}
	if err != nil {
		return nil, wrapKeychainError(err)
	}
	return NewKeyringStore(ring), nil
}

func containsBackend(backends []keyring.BackendType, b keyring.BackendType) bool {
	for _, v := range backends {
		if v == b {
			return true
		}
	}
	return false
}
