package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Supported database/sql driver names
const (
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3 (cgo)
	DriverModernc = "sqlite"  // modernc.org/sqlite (pure Go)
)

// DefaultQuotaBytes is reported as the available quota when neither the
// configuration nor the device can provide one
const DefaultQuotaBytes int64 = 5 * 1024 * 1024

// parseBoolEnv reads an environment variable and parses it as a boolean.
// Returns the parsed value and a boolean indicating if the variable was present.
// Supports common boolean representations: true/false, 1/0, yes/no, on/off, t/f, y/n (case-insensitive).
func parseBoolEnv(key string) (bool, bool) {
	value := os.Getenv(key)
	if value == "" {
		return false, false
	}

	if parsed, err := strconv.ParseBool(value); err == nil {
		return parsed, true
	}

	switch strings.ToLower(value) {
	case "yes", "y", "on":
		return true, true
	case "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

// Config holds all store configuration options
type Config struct {
	// Medium settings
	Path   string `json:"path" yaml:"path" toml:"path"`       // Database file path
	Driver string `json:"driver" yaml:"driver" toml:"driver"` // sqlite3 (mattn) or sqlite (modernc)

	// Performance settings
	JournalMode     string `json:"journalMode" yaml:"journalMode" toml:"journal_mode"`             // SQLite journal mode (WAL, DELETE, etc.)
	SynchronousMode string `json:"synchronousMode" yaml:"synchronousMode" toml:"synchronous_mode"` // SQLite synchronous mode (FULL, NORMAL, OFF)
	CacheSize       int    `json:"cacheSize" yaml:"cacheSize" toml:"cache_size"`                   // SQLite cache size in KB
	BusyTimeout     int    `json:"busyTimeout" yaml:"busyTimeout" toml:"busy_timeout"`             // SQLite busy timeout in milliseconds
	ForeignKeys     bool   `json:"foreignKeys" yaml:"foreignKeys" toml:"foreign_keys"`             // Enable foreign key constraints

	// Quota settings
	MaxPageCount     int64   `json:"maxPageCount" yaml:"maxPageCount" toml:"max_page_count"`             // Hard page cap (0 = SQLite default)
	QuotaBytes       int64   `json:"quotaBytes" yaml:"quotaBytes" toml:"quota_bytes"`                    // Reported quota (0 = ask the device)
	QuotaWarnPercent float64 `json:"quotaWarnPercent" yaml:"quotaWarnPercent" toml:"quota_warn_percent"` // CLI warning threshold

	// Data retention settings
	RetentionDays     int           `json:"retentionDays" yaml:"retentionDays" toml:"retention_days"`             // Window used when preferences do not set one
	RetentionInterval time.Duration `json:"retentionInterval" yaml:"retentionInterval" toml:"retention_interval"` // Background sweep interval (0 = only after writes)
	EnableCleanup     bool          `json:"enableCleanup" yaml:"enableCleanup" toml:"enable_cleanup"`             // Whether the background sweep runs at all

	// Environment and runtime settings
	Environment string `json:"environment" yaml:"environment" toml:"environment"` // development, production, test
	LogLevel    string `json:"logLevel" yaml:"logLevel" toml:"log_level"`         // debug, info, warn, error
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path:   "scrollguard.db",
		Driver: DriverMattn,

		JournalMode:     "WAL",
		SynchronousMode: "NORMAL",
		CacheSize:       2000,
		BusyTimeout:     5000,
		ForeignKeys:     true,

		MaxPageCount:     0,
		QuotaBytes:       0,
		QuotaWarnPercent: 80,

		RetentionDays:     90,
		RetentionInterval: 6 * time.Hour,
		EnableCleanup:     true,

		Environment: "production",
		LogLevel:    "info",
	}
}

// DevelopmentConfig returns a configuration optimized for development
func DevelopmentConfig() *Config {
	config := DefaultConfig()
	config.Path = "scrollguard_dev.db"
	config.Environment = "development"
	config.LogLevel = "debug"
	config.EnableCleanup = false
	return config
}

// TestConfig returns a configuration optimized for testing
func TestConfig() *Config {
	config := DefaultConfig()
	config.Path = ":memory:"
	config.Environment = "test"
	config.LogLevel = "error"
	config.EnableCleanup = false
	config.RetentionInterval = 0

	config.JournalMode = "MEMORY"
	config.SynchronousMode = "OFF"
	config.CacheSize = 1000
	config.BusyTimeout = 1000

	return config
}

// LoadFromEnvironment applies SCROLLGUARD_* environment overrides.
// Malformed values are ignored and the current value is kept.
func (c *Config) LoadFromEnvironment() error {
	if path := os.Getenv("SCROLLGUARD_DB_PATH"); path != "" {
		c.Path = path
	}

	if driver := os.Getenv("SCROLLGUARD_DB_DRIVER"); driver != "" {
		c.Driver = driver
	}

	if journalMode := os.Getenv("SCROLLGUARD_DB_JOURNAL_MODE"); journalMode != "" {
		c.JournalMode = journalMode
	}

	if syncMode := os.Getenv("SCROLLGUARD_DB_SYNCHRONOUS_MODE"); syncMode != "" {
		c.SynchronousMode = syncMode
	}

	if cacheSize := os.Getenv("SCROLLGUARD_DB_CACHE_SIZE"); cacheSize != "" {
		if val, err := strconv.Atoi(cacheSize); err == nil && val > 0 {
			c.CacheSize = val
		}
	}

	if busyTimeout := os.Getenv("SCROLLGUARD_DB_BUSY_TIMEOUT"); busyTimeout != "" {
		if val, err := strconv.Atoi(busyTimeout); err == nil && val >= 0 {
			c.BusyTimeout = val
		}
	}

	if foreignKeys, present := parseBoolEnv("SCROLLGUARD_DB_FOREIGN_KEYS"); present {
		c.ForeignKeys = foreignKeys
	}

	if maxPages := os.Getenv("SCROLLGUARD_DB_MAX_PAGE_COUNT"); maxPages != "" {
		if val, err := strconv.ParseInt(maxPages, 10, 64); err == nil && val >= 0 {
			c.MaxPageCount = val
		}
	}

	if quota := os.Getenv("SCROLLGUARD_QUOTA_BYTES"); quota != "" {
		if val, err := strconv.ParseInt(quota, 10, 64); err == nil && val >= 0 {
			c.QuotaBytes = val
		}
	}

	if warn := os.Getenv("SCROLLGUARD_QUOTA_WARN_PERCENT"); warn != "" {
		if val, err := strconv.ParseFloat(warn, 64); err == nil && val >= 0 {
			c.QuotaWarnPercent = val
		}
	}

	if retentionDays := os.Getenv("SCROLLGUARD_RETENTION_DAYS"); retentionDays != "" {
		if val, err := strconv.Atoi(retentionDays); err == nil && val >= 0 {
			c.RetentionDays = val
		}
	}

	if interval := os.Getenv("SCROLLGUARD_RETENTION_INTERVAL"); interval != "" {
		if val, err := time.ParseDuration(interval); err == nil {
			c.RetentionInterval = val
		}
	}

	if enableCleanup, present := parseBoolEnv("SCROLLGUARD_ENABLE_CLEANUP"); present {
		c.EnableCleanup = enableCleanup
	}

	if environment := os.Getenv("SCROLLGUARD_ENVIRONMENT"); environment != "" {
		c.Environment = environment
	}

	if logLevel := os.Getenv("SCROLLGUARD_LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}

	return nil
}

// Validate validates the configuration parameters
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	// For file-based databases, ensure directory exists
	if !c.IsInMemory() {
		dir := filepath.Dir(c.Path)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create database directory %s: %w", dir, err)
				}
			}
		}
	}

	switch c.Driver {
	case DriverMattn, DriverModernc:
	default:
		return fmt.Errorf("invalid driver: %q (expected %q or %q)", c.Driver, DriverMattn, DriverModernc)
	}

	validJournalModes := []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}
	journalModeValid := false
	for _, validMode := range validJournalModes {
		if strings.EqualFold(c.JournalMode, validMode) {
			journalModeValid = true
			break
		}
	}
	if !journalModeValid {
		return fmt.Errorf("invalid journalMode: %s", c.JournalMode)
	}

	if c.IsInMemory() && strings.EqualFold(c.JournalMode, "WAL") {
		return fmt.Errorf("journalMode cannot be WAL when using in-memory database")
	}

	validSyncModes := map[string]bool{
		"OFF":    true,
		"NORMAL": true,
		"FULL":   true,
		"EXTRA":  true,
	}
	if !validSyncModes[strings.ToUpper(c.SynchronousMode)] {
		return fmt.Errorf("invalid synchronousMode: %s", c.SynchronousMode)
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf("cacheSize must be positive, got %d", c.CacheSize)
	}

	if c.BusyTimeout < 0 {
		return fmt.Errorf("busyTimeout cannot be negative, got %d", c.BusyTimeout)
	}

	if c.MaxPageCount < 0 {
		return fmt.Errorf("maxPageCount cannot be negative, got %d", c.MaxPageCount)
	}

	if c.QuotaBytes < 0 {
		return fmt.Errorf("quotaBytes cannot be negative, got %d", c.QuotaBytes)
	}

	if c.QuotaWarnPercent < 0 || c.QuotaWarnPercent > 100 {
		return fmt.Errorf("quotaWarnPercent must be between 0 and 100, got %v", c.QuotaWarnPercent)
	}

	if c.RetentionDays < 0 {
		return fmt.Errorf("retentionDays cannot be negative, got %d", c.RetentionDays)
	}

	if c.RetentionInterval < 0 {
		return fmt.Errorf("retentionInterval cannot be negative, got %v", c.RetentionInterval)
	}

	validEnvironments := map[string]bool{
		"development": true,
		"test":        true,
		"production":  true,
	}
	if !validEnvironments[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid logLevel: %s", c.LogLevel)
	}

	return nil
}

// GetConnectionString builds the driver-specific DSN.
// mattn takes underscore parameters, modernc takes repeated _pragma=name(value).
func (c *Config) GetConnectionString() string {
	foreignKeys := "off"
	if c.ForeignKeys {
		foreignKeys = "on"
	}

	values := url.Values{}
	if c.Driver == DriverModernc {
		fk := "0"
		if c.ForeignKeys {
			fk = "1"
		}
		values.Add("_pragma", fmt.Sprintf("foreign_keys(%s)", fk))
		values.Add("_pragma", fmt.Sprintf("journal_mode(%s)", c.JournalMode))
		values.Add("_pragma", fmt.Sprintf("synchronous(%s)", c.SynchronousMode))
		values.Add("_pragma", fmt.Sprintf("cache_size(%d)", -c.CacheSize))
		values.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout))
	} else {
		values.Set("_foreign_keys", foreignKeys)
		values.Set("_journal_mode", c.JournalMode)
		values.Set("_synchronous", c.SynchronousMode)
		// negative so SQLite interprets it as KB
		values.Set("_cache_size", fmt.Sprintf("%d", -c.CacheSize))
		values.Set("_busy_timeout", fmt.Sprintf("%d", c.BusyTimeout))
	}

	// Escape only the characters that would break query string parsing
	path := c.Path
	if strings.ContainsAny(path, "?&") {
		path = strings.ReplaceAll(path, "?", "%3F")
		path = strings.ReplaceAll(path, "&", "%26")
	}

	return "file:" + path + "?" + values.Encode()
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// IsInMemory returns true if the database is configured to use in-memory storage
func (c *Config) IsInMemory() bool {
	return c.Path == ":memory:"
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsTest returns true if the environment is set to test
func (c *Config) IsTest() bool {
	return c.Environment == "test"
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ConfigForEnvironment returns a configuration optimized for the given environment
func ConfigForEnvironment(env string) *Config {
	switch env {
	case "development":
		return DevelopmentConfig()
	case "test":
		return TestConfig()
	default:
		config := DefaultConfig()
		config.Path = filepath.Join(".", "scrollguard.db")
		return config
	}
}
