package config

import (
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	DatabasePath     string `json:"database_path"`
	APIPort          string `json:"api_port"`
	LogLevel         string `json:"log_level"`
	DataDir          string `json:"data_dir"`
	JWTSecret        string `json:"jwt_secret"`
	EncryptionKey    string `json:"encryption_key"`    // encrypts account passwords; empty derives from JWTSecret
	CORSOrigins      string `json:"cors_origins"`      // comma separated, * for all
	OutboundEnabled  bool   `json:"outbound_enabled"`  // global gate for send actions
	SchedulerSeconds int    `json:"scheduler_seconds"` // delayed-action poll interval
}

// Default configuration values
const (
	DefaultDatabasePath     = "data/inbox_agent.db"
	DefaultAPIPort          = "8080"
	DefaultLogLevel         = "INFO"
	DefaultDataDir          = "data"
	DefaultJWTSecret        = "inbox-agent-default-secret-change-in-production"
	DefaultEncryptionKey    = ""
	DefaultCORSOrigins      = "*"
	DefaultOutboundEnabled  = false
	DefaultSchedulerSeconds = 30
)

// Load loads configuration from environment variables and config file
// Priority: Environment variables > Config file > Default values
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:     DefaultDatabasePath,
		APIPort:          DefaultAPIPort,
		LogLevel:         DefaultLogLevel,
		DataDir:          DefaultDataDir,
		JWTSecret:        DefaultJWTSecret,
		EncryptionKey:    DefaultEncryptionKey,
		CORSOrigins:      DefaultCORSOrigins,
		OutboundEnabled:  DefaultOutboundEnabled,
		SchedulerSeconds: DefaultSchedulerSeconds,
	}

	// Config file is optional
	_ = cfg.loadFromFile()

	// Override with environment variables
	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json file
func (c *Config) loadFromFile() error {
	// Look for config file in current directory and data directory
	configPaths := []string{
		"config.json",
		filepath.Join(c.DataDir, "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		if err := json.Unmarshal(data, c); err != nil {
			return err
		}
		return nil
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if val := os.Getenv("INBOX_AGENT_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("INBOX_AGENT_API_PORT"); val != "" {
		c.APIPort = val
	}
	if val := os.Getenv("INBOX_AGENT_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("INBOX_AGENT_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("INBOX_AGENT_JWT_SECRET"); val != "" {
		c.JWTSecret = val
	}
	if val := os.Getenv("INBOX_AGENT_ENCRYPTION_KEY"); val != "" {
		c.EncryptionKey = val
	}
	if val := os.Getenv("INBOX_AGENT_CORS_ORIGINS"); val != "" {
		c.CORSOrigins = val
	}
	if val := os.Getenv("INBOX_AGENT_OUTBOUND_ENABLED"); val != "" {
		c.OutboundEnabled = val == "true" || val == "1"
	}
	if val := os.Getenv("INBOX_AGENT_SCHEDULER_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.SchedulerSeconds = n
		}
	}
}

// GetEncryptionKey returns the encryption key for account password encryption
// If EncryptionKey is set, use it; otherwise derive from JWTSecret
func (c *Config) GetEncryptionKey() []byte {
	if c.EncryptionKey != "" {
		hash := sha256.Sum256([]byte(c.EncryptionKey))
		return hash[:]
	}
	hash := sha256.Sum256([]byte(c.JWTSecret + "-encryption"))
	return hash[:]
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
