// Package config manages steward configuration and the .steward directory.
// It handles loading, saving, and initializing the workspace configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	StewardDir   = ".steward"
	ConfigFile   = "config"
	DatabaseFile = "steward.db"
)

// Defaults for the change-management pipeline.
const (
	DefaultMaxChanges        = 100
	DefaultMaxSnapshots      = 10
	DefaultPendingTTL        = 5 * time.Minute
	DefaultCriticalThreshold = 10
	DefaultListenAddr        = "0.0.0.0:8450"
)

// Config represents the steward configuration
type Config struct {
	SheetsURL     string `toml:"sheets_url"`     // base URL of the spreadsheet service
	SpreadsheetID string `toml:"spreadsheet_id"` // document holding the fundraising tables
	APITokenEnv   string `toml:"api_token_env"`  // env var holding the sheets bearer token
	GeminiModel   string `toml:"gemini_model"`   // model used by the command interpreter

	MaxChanges        int    `toml:"max_changes"`        // change ledger capacity
	MaxSnapshots      int    `toml:"max_snapshots"`      // snapshot ring capacity
	PendingTTLSeconds int    `toml:"pending_ttl_seconds"` // confirmation wait window
	CriticalThreshold int    `toml:"critical_threshold"`  // affected-record count marking a change critical
	ListenAddr        string `toml:"listen_addr"`        // HTTP API listen address
	ServerTokenEnv    string `toml:"server_token_env"`   // env var holding the API bearer token

	path string // path to the .steward directory
}

// FindRoot finds the .steward directory by walking up from the current directory
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		p := filepath.Join(dir, StewardDir)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a steward workspace (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads the configuration from the .steward directory
func Load() (*Config, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(root)
}

// LoadFrom loads the configuration from a specific .steward directory
func LoadFrom(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.path = root
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxChanges <= 0 {
		c.MaxChanges = DefaultMaxChanges
	}
	if c.MaxSnapshots <= 0 {
		c.MaxSnapshots = DefaultMaxSnapshots
	}
	if c.PendingTTLSeconds <= 0 {
		c.PendingTTLSeconds = int(DefaultPendingTTL.Seconds())
	}
	if c.CriticalThreshold <= 0 {
		c.CriticalThreshold = DefaultCriticalThreshold
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.GeminiModel == "" {
		c.GeminiModel = "gemini-2.0-flash"
	}
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0644)
}

// Path returns the path to the .steward directory
func (c *Config) Path() string {
	return c.path
}

// DatabasePath returns the path to the embedded database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// PendingTTL returns the confirmation wait window as a duration
func (c *Config) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLSeconds) * time.Second
}

// APIToken resolves the sheets service bearer token from the environment
func (c *Config) APIToken() string {
	if c.APITokenEnv == "" {
		return os.Getenv("STEWARD_SHEETS_TOKEN")
	}
	return os.Getenv(c.APITokenEnv)
}

// ServerToken resolves the HTTP API bearer token from the environment
func (c *Config) ServerToken() string {
	if c.ServerTokenEnv == "" {
		return os.Getenv("STEWARD_API_TOKEN")
	}
	return os.Getenv(c.ServerTokenEnv)
}

// GeminiAPIKey resolves the interpreter API key from the environment
func (c *Config) GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// Initialize creates a new .steward directory with initial configuration
func Initialize(sheetsURL, spreadsheetID string) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root := filepath.Join(cwd, StewardDir)

	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("steward workspace already exists")
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create .steward directory: %w", err)
	}

	cfg := &Config{
		SheetsURL:     sheetsURL,
		SpreadsheetID: spreadsheetID,
		path:          root,
	}
	cfg.applyDefaults()

	if err := cfg.Save(); err != nil {
		os.RemoveAll(root)
		return nil, err
	}

	return cfg, nil
}
