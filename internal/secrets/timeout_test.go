package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/99designs/keyring"

	"github.com/salmonumbrella/wikinav/internal/config"
)

// fakeKeyring implements keyring.Keyring for testing
type fakeKeyring struct{}

func (f *fakeKeyring) Get(_ string) (keyring.Item, error) {
	return keyring.Item{}, nil
}

func (f *fakeKeyring) GetMetadata(_ string) (keyring.Metadata, error) {
	return keyring.Metadata{}, nil
}

func (f *fakeKeyring) Set(_ keyring.Item) error {
	return nil
}

func (f *fakeKeyring) Remove(_ string) error {
	return nil
}

func (f *fakeKeyring) Keys() ([]string, error) {
	return nil, nil
}

// stubKeyringOpen replaces keyringOpenFunc with one that records the
// config it was given and returns ring.
func stubKeyringOpen(t *testing.T, ring keyring.Keyring, err error) *[]keyring.Config {
	t.Helper()
	if runtime.GOOS == "darwin" {
		t.Skip("OpenDefault checks the login keychain through security(1) on macOS")
	}
	var calls []keyring.Config
	originalOpen := keyringOpenFunc
	t.Cleanup(func() { keyringOpenFunc = originalOpen })
	keyringOpenFunc = func(cfg keyring.Config) (keyring.Keyring, error) {
		calls = append(calls, cfg)
		return ring, err
	}
	return &calls
}

func TestOpenDefaultUsesAppService(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("WIKINAV_KEYRING_BACKEND", "file")
	ring := keyring.NewArrayKeyring(nil)
	calls := stubKeyringOpen(t, ring, nil)

	store, err := OpenDefault()
	if err != nil {
		t.Fatalf("OpenDefault: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected one keyring open, got %d", len(*calls))
	}
	cfg := (*calls)[0]
	if cfg.ServiceName != "wikinav" || config.AppName != "wikinav" {
		t.Fatalf("expected service wikinav, got %q", cfg.ServiceName)
	}
	if len(cfg.AllowedBackends) != 1 || cfg.AllowedBackends[0] != keyring.FileBackend {
		t.Fatalf("expected file backend only, got %v", cfg.AllowedBackends)
	}
	wantDir := filepath.Join(home, ".config", "wikinav", "keyring")
	if cfg.FileDir != wantDir {
		t.Fatalf("expected FileDir %q, got %q", wantDir, cfg.FileDir)
	}
	if info, err := os.Stat(wantDir); err != nil || !info.IsDir() {
		t.Fatalf("expected keyring dir to exist: %v", err)
	}

	if err := store.SetToken("work", Token{RefreshToken: "roam-graph-token-xyz"}); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	item, err := ring.Get("token:work")
	if err != nil {
		t.Fatalf("expected token stored under token:work: %v", err)
	}
	if item.Label != "wikinav work" {
		t.Fatalf("expected label %q, got %q", "wikinav work", item.Label)
	}
}

func TestOpenDefaultBackendFromConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("WIKINAV_KEYRING_BACKEND", "")
	dir := filepath.Join(home, ".config", "wikinav")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("keyring_backend: kwallet\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	calls := stubKeyringOpen(t, &fakeKeyring{}, nil)

	if _, err := OpenDefault(); err != nil {
		t.Fatalf("OpenDefault: %v", err)
	}
	cfg := (*calls)[0]
	if len(cfg.AllowedBackends) != 1 || cfg.AllowedBackends[0] != keyring.KWalletBackend {
		t.Fatalf("expected kwallet backend, got %v", cfg.AllowedBackends)
	}
	if cfg.FileDir != "" {
		t.Fatalf("expected no file dir for kwallet, got %q", cfg.FileDir)
	}
}

func TestOpenDefaultForcesFileWithoutSessionBus(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("session bus fallback only applies on linux")
	}
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WIKINAV_KEYRING_BACKEND", "auto")
	t.Setenv("DBUS_SESSION_BUS_ADDRESS", "")
	calls := stubKeyringOpen(t, &fakeKeyring{}, nil)

	if _, err := OpenDefault(); err != nil {
		t.Fatalf("OpenDefault: %v", err)
	}
	cfg := (*calls)[0]
	if len(cfg.AllowedBackends) != 1 || cfg.AllowedBackends[0] != keyring.FileBackend {
		t.Fatalf("expected forced file backend, got %v", cfg.AllowedBackends)
	}
}

func TestOpenDefaultRejectsUnknownBackend(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WIKINAV_KEYRING_BACKEND", "vault")
	calls := stubKeyringOpen(t, &fakeKeyring{}, nil)

	_, err := OpenDefault()
	if err == nil || !strings.Contains(err.Error(), `"vault"`) || !strings.Contains(err.Error(), SourceEnv) {
		t.Fatalf("expected invalid backend error naming vault and env, got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("keyring should not be opened, got %d calls", len(*calls))
	}
}

func TestOpenDefaultWrapsLockedKeychain(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WIKINAV_KEYRING_BACKEND", "keychain")
	stubKeyringOpen(t, nil, errors.New("open failed: -25308"))

	_, err := OpenDefault()
	if err == nil || !strings.Contains(err.Error(), "security unlock-keychain") {
		t.Fatalf("expected unlock instructions, got %v", err)
	}
}

func TestOpenKeyringWithTimeout(t *testing.T) {
	originalOpen := keyringOpenFunc
	defer func() { keyringOpenFunc = originalOpen }()

	t.Run("opens in time", func(t *testing.T) {
		keyringOpenFunc = func(cfg keyring.Config) (keyring.Keyring, error) {
			if cfg.ServiceName != config.AppName {
				t.Errorf("unexpected service %q", cfg.ServiceName)
			}
			return &fakeKeyring{}, nil
		}
		ring, err := openKeyringWithTimeout(keyring.Config{ServiceName: config.AppName}, 100*time.Millisecond)
		if err != nil || ring == nil {
			t.Fatalf("expected ring, got %v, %v", ring, err)
		}
	})

	t.Run("open error passes through", func(t *testing.T) {
		openErr := errors.New("secret service refused")
		keyringOpenFunc = func(keyring.Config) (keyring.Keyring, error) {
			return nil, openErr
		}
		if _, err := openKeyringWithTimeout(keyring.Config{}, 100*time.Millisecond); !errors.Is(err, openErr) {
			t.Fatalf("expected open error, got %v", err)
		}
	})

	t.Run("gives up on a hung service", func(t *testing.T) {
		mockDone := make(chan struct{})
		keyringOpenFunc = func(keyring.Config) (keyring.Keyring, error) {
			defer close(mockDone)
			time.Sleep(300 * time.Millisecond)
			return &fakeKeyring{}, nil
		}
		_, err := openKeyringWithTimeout(keyring.Config{}, 30*time.Millisecond)
		<-mockDone
		if !errors.Is(err, errKeyringTimeout) {
			t.Fatalf("expected errKeyringTimeout, got %v", err)
		}
		if !strings.Contains(err.Error(), "30ms") {
			t.Fatalf("expected timeout duration in error, got %v", err)
		}
	})
}

func TestKeyringBackendSelection(t *testing.T) {
	const bus = "unix:path=/run/user/1000/bus"
	tests := []struct {
		name      string
		goos      string
		backend   string
		dbusAddr  string
		forceFile bool
		timeout   bool
	}{
		{"linux auto headless", "linux", "auto", "", true, false},
		{"linux auto desktop", "linux", "auto", bus, false, true},
		{"linux secret-service", "linux", "secret-service", bus, false, false},
		{"linux pass", "linux", "pass", "", false, false},
		{"linux file", "linux", "file", bus, false, false},
		{"darwin auto", "darwin", "auto", "", false, false},
		{"windows auto", "windows", "auto", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := KeyringBackendInfo{Value: tt.backend}
			if got := shouldForceFileBackend(tt.goos, info, tt.dbusAddr); got != tt.forceFile {
				t.Errorf("shouldForceFileBackend() = %v, want %v", got, tt.forceFile)
			}
			if got := shouldUseKeyringTimeout(tt.goos, info, tt.dbusAddr); got != tt.timeout {
				t.Errorf("shouldUseKeyringTimeout() = %v, want %v", got, tt.timeout)
			}
		})
	}
}
