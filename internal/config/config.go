// Package config handles the configuration directory, its files and
// environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// AppName is the application directory name.
	AppName = "todo"

	// SettingsFile holds backend selection and connection settings.
	SettingsFile = "config.json"

	// SessionFile is the stored session filename.
	SessionFile = "session.json"

	// OAuthClientFile is the Google OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"
)

// Backend names.
const (
	BackendSupabase    = "supabase"
	BackendGoogleTasks = "googletasks"
)

// Environment variables that override config.json.
const (
	EnvConfigDir = "TODO_CONFIG_DIR"
	EnvBackend   = "TODO_BACKEND"
	EnvURL       = "TODO_URL"
	EnvAnonKey   = "TODO_ANON_KEY"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Backend selects the remote store implementation.
	Backend string

	// URL is the Supabase project URL.
	URL string

	// AnonKey is the Supabase public API key.
	AnonKey string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool
}

// settings is the on-disk shape of config.json.
type settings struct {
	Backend string `json:"backend"`
	URL     string `json:"url"`
	AnonKey string `json:"anon_key"`
}

// New creates a Config for configDir, or the default directory when empty.
// Settings come from config.json and are overridden by the environment.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = getenv(EnvConfigDir, DefaultConfigDir())
	}
	cfg := &Config{Dir: dir, Backend: BackendSupabase}

	if err := cfg.loadSettings(); err != nil {
		return nil, err
	}

	cfg.Backend = getenv(EnvBackend, cfg.Backend)
	cfg.URL = getenv(EnvURL, cfg.URL)
	cfg.AnonKey = getenv(EnvAnonKey, cfg.AnonKey)

	if err := cfg.SetBackend(cfg.Backend); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetBackend selects the remote store by name.
func (c *Config) SetBackend(name string) error {
	switch name {
	case BackendSupabase, BackendGoogleTasks:
		c.Backend = name
		return nil
	default:
		return fmt.Errorf("unknown backend: %s", name)
	}
}

func (c *Config) loadSettings() error {
	data, err := os.ReadFile(c.SettingsPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", SettingsFile, err)
	}
	var s settings
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid %s: %w", SettingsFile, err)
	}
	if s.Backend != "" {
		c.Backend = s.Backend
	}
	c.URL = s.URL
	c.AnonKey = s.AnonKey
	return nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// SettingsPath returns the path to config.json.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// SessionPath returns the path to the stored session.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// OAuthClientPath returns the path to the Google OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// Validate checks that the selected backend has what it needs to connect.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSupabase:
		if c.URL == "" || c.AnonKey == "" {
			return fmt.Errorf("supabase url and anon key not configured (set %s and %s or edit %s)", EnvURL, EnvAnonKey, c.SettingsPath())
		}
	case BackendGoogleTasks:
		if !c.HasOAuthClient() {
			return fmt.Errorf("%s not found in %s", OAuthClientFile, c.Dir)
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
