// Package config reads and writes the wikinav YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppName is the application name used for keyring and config
const AppName = "wikinav"

// Page store backends.
const (
	BackendDir  = "dir"
	BackendRoam = "roam"
)

// Config holds CLI configuration
type Config struct {
	// Page store
	Backend  string `yaml:"backend,omitempty"`   // dir, roam
	PagesDir string `yaml:"pages_dir,omitempty"` // root of the dir backend
	PageExt  string `yaml:"page_ext,omitempty"`  // file extension of the dir backend

	// Rendering
	WikiURL       string   `yaml:"wiki_url,omitempty"` // prefix of page links
	Title         string   `yaml:"title,omitempty"`
	DefaultTOC    string   `yaml:"default_toc,omitempty"`
	AllowedMacros []string `yaml:"allowed_macros,omitempty"`

	// Roam backend
	BaseURL        string `yaml:"base_url,omitempty"`
	GraphName      string `yaml:"graph_name,omitempty"`
	Token          string `yaml:"token,omitempty"`
	KeyringBackend string `yaml:"keyring_backend,omitempty"` // auto, keychain, file

	OutputFormat string `yaml:"output_format,omitempty"` // text, json, yaml, table, html
	LogLevel     string `yaml:"log_level,omitempty"`     // none, normal, debug
}

// field binds a config key to its struct field.
type field struct {
	get   func(*Config) string
	set   func(*Config, string)
	check func(string) error
}

func oneOf(values ...string) func(string) error {
	return func(v string) error {
		for _, allowed := range values {
			if v == allowed {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s", strings.Join(values, ", "))
	}
}

var fields = map[string]field{
	"backend": {
		get:   func(c *Config) string { return c.Backend },
		set:   func(c *Config, v string) { c.Backend = v },
		check: oneOf(BackendDir, BackendRoam),
	},
	"pages_dir": {
		get: func(c *Config) string { return c.PagesDir },
		set: func(c *Config, v string) { c.PagesDir = v },
	},
	"page_ext": {
		get: func(c *Config) string { return c.PageExt },
		set: func(c *Config, v string) { c.PageExt = v },
	},
	"wiki_url": {
		get: func(c *Config) string { return c.WikiURL },
		set: func(c *Config, v string) { c.WikiURL = v },
	},
	"title": {
		get: func(c *Config) string { return c.Title },
		set: func(c *Config, v string) { c.Title = v },
	},
	"default_toc": {
		get: func(c *Config) string { return c.DefaultTOC },
		set: func(c *Config, v string) { c.DefaultTOC = v },
	},
	"allowed_macros": {
		get: func(c *Config) string { return strings.Join(c.AllowedMacros, ",") },
		set: func(c *Config, v string) { c.AllowedMacros = SplitList(v) },
	},
	"base_url": {
		get: func(c *Config) string { return c.BaseURL },
		set: func(c *Config, v string) { c.BaseURL = v },
	},
	"graph_name": {
		get: func(c *Config) string { return c.GraphName },
		set: func(c *Config, v string) { c.GraphName = v },
	},
	"token": {
		get: func(c *Config) string { return c.Token },
		set: func(c *Config, v string) { c.Token = v },
	},
	"keyring_backend": {
		get:   func(c *Config) string { return c.KeyringBackend },
		set:   func(c *Config, v string) { c.KeyringBackend = v },
		check: oneOf("auto", "keychain", "secret-service", "kwallet", "wincred", "pass", "file"),
	},
	"output_format": {
		get:   func(c *Config) string { return c.OutputFormat },
		set:   func(c *Config, v string) { c.OutputFormat = v },
		check: oneOf("text", "json", "ndjson", "yaml", "table", "html"),
	},
	"log_level": {
		get:   func(c *Config) string { return c.LogLevel },
		set:   func(c *Config, v string) { c.LogLevel = v },
		check: oneOf("none", "normal", "debug"),
	},
}

// Keys returns the supported configuration keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	return f.get(c), nil
}

// Set assigns value to key after validating it.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	if f.check != nil && value != "" {
		if err := f.check(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
	}
	f.set(c, value)
	return nil
}

// Unset clears key.
func (c *Config) Unset(key string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	f.set(c, "")
	return nil
}

// Validate reports the first key holding a value it does not accept.
func (c *Config) Validate() error {
	for _, key := range Keys() {
		f := fields[key]
		if v := f.get(c); f.check != nil && v != "" {
			if err := f.check(v); err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
		}
	}
	return nil
}

// SplitList splits a comma separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

// DefaultConfigPath returns the default config file path
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureKeyringDir ensures the keyring directory exists and returns its path
func EnsureKeyringDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	keyringDir := filepath.Join(dir, "keyring")
	if err := os.MkdirAll(keyringDir, 0o700); err != nil {
		return "", fmt.Errorf("creating keyring directory: %w", err)
	}
	return keyringDir, nil
}

// ReadConfig reads the config file from the default location
func ReadConfig() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Load loads config from the given path. A missing file is an empty config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// Save saves config to the given path
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
