package database

import (
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate_DefaultConfigurations(t *testing.T) {
	for name, config := range map[string]*Config{
		"default":     DefaultConfig(),
		"development": DevelopmentConfig(),
		"test":        TestConfig(),
	} {
		t.Run(name, func(t *testing.T) {
			config.Path = filepath.Join(t.TempDir(), "store.db")
			if name == "test" {
				config.Path = ":memory:"
			}
			assert.NoError(t, config.Validate())
		})
	}
}

func TestConfig_Validate_CreatesDirectory(t *testing.T) {
	config := DefaultConfig()
	config.Path = filepath.Join(t.TempDir(), "nested", "dir", "store.db")

	require.NoError(t, config.Validate())
	assert.DirExists(t, filepath.Dir(config.Path))
}

func TestConfig_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"empty path", func(c *Config) { c.Path = "" }, "path cannot be empty"},
		{"unknown driver", func(c *Config) { c.Driver = "postgres" }, "invalid driver"},
		{"journal mode", func(c *Config) { c.JournalMode = "FAST" }, "invalid journalMode"},
		{"wal in memory", func(c *Config) { c.Path = ":memory:"; c.JournalMode = "WAL" }, "cannot be WAL"},
		{"synchronous mode", func(c *Config) { c.SynchronousMode = "SOMETIMES" }, "invalid synchronousMode"},
		{"cache size", func(c *Config) { c.CacheSize = 0 }, "cacheSize must be positive"},
		{"busy timeout", func(c *Config) { c.BusyTimeout = -1 }, "busyTimeout cannot be negative"},
		{"max page count", func(c *Config) { c.MaxPageCount = -1 }, "maxPageCount cannot be negative"},
		{"quota bytes", func(c *Config) { c.QuotaBytes = -5 }, "quotaBytes cannot be negative"},
		{"quota warn", func(c *Config) { c.QuotaWarnPercent = 101 }, "quotaWarnPercent"},
		{"retention days", func(c *Config) { c.RetentionDays = -1 }, "retentionDays cannot be negative"},
		{"retention interval", func(c *Config) { c.RetentionInterval = -time.Second }, "retentionInterval cannot be negative"},
		{"environment", func(c *Config) { c.Environment = "staging" }, "invalid environment"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid logLevel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.Path = filepath.Join(t.TempDir(), "store.db")
			tt.mutate(config)

			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestConfig_Validate_JournalModeCaseInsensitive(t *testing.T) {
	config := DefaultConfig()
	config.Path = filepath.Join(t.TempDir(), "store.db")
	config.JournalMode = "wal"
	config.SynchronousMode = "normal"
	assert.NoError(t, config.Validate())
}

func TestConfig_LoadFromEnvironment(t *testing.T) {
	t.Setenv("SCROLLGUARD_DB_PATH", "/tmp/env.db")
	t.Setenv("SCROLLGUARD_DB_DRIVER", "sqlite")
	t.Setenv("SCROLLGUARD_DB_JOURNAL_MODE", "DELETE")
	t.Setenv("SCROLLGUARD_DB_SYNCHRONOUS_MODE", "FULL")
	t.Setenv("SCROLLGUARD_DB_CACHE_SIZE", "4096")
	t.Setenv("SCROLLGUARD_DB_BUSY_TIMEOUT", "250")
	t.Setenv("SCROLLGUARD_DB_FOREIGN_KEYS", "off")
	t.Setenv("SCROLLGUARD_DB_MAX_PAGE_COUNT", "1024")
	t.Setenv("SCROLLGUARD_QUOTA_BYTES", "10485760")
	t.Setenv("SCROLLGUARD_QUOTA_WARN_PERCENT", "75.5")
	t.Setenv("SCROLLGUARD_RETENTION_DAYS", "30")
	t.Setenv("SCROLLGUARD_RETENTION_INTERVAL", "15m")
	t.Setenv("SCROLLGUARD_ENABLE_CLEANUP", "no")
	t.Setenv("SCROLLGUARD_ENVIRONMENT", "development")
	t.Setenv("SCROLLGUARD_LOG_LEVEL", "debug")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnvironment())

	assert.Equal(t, "/tmp/env.db", config.Path)
	assert.Equal(t, DriverModernc, config.Driver)
	assert.Equal(t, "DELETE", config.JournalMode)
	assert.Equal(t, "FULL", config.SynchronousMode)
	assert.Equal(t, 4096, config.CacheSize)
	assert.Equal(t, 250, config.BusyTimeout)
	assert.False(t, config.ForeignKeys)
	assert.Equal(t, int64(1024), config.MaxPageCount)
	assert.Equal(t, int64(10485760), config.QuotaBytes)
	assert.Equal(t, 75.5, config.QuotaWarnPercent)
	assert.Equal(t, 30, config.RetentionDays)
	assert.Equal(t, 15*time.Minute, config.RetentionInterval)
	assert.False(t, config.EnableCleanup)
	assert.Equal(t, "development", config.Environment)
	assert.Equal(t, "debug", config.LogLevel)
}

func TestConfig_LoadFromEnvironment_IgnoresMalformed(t *testing.T) {
	t.Setenv("SCROLLGUARD_DB_CACHE_SIZE", "lots")
	t.Setenv("SCROLLGUARD_RETENTION_DAYS", "-3")
	t.Setenv("SCROLLGUARD_RETENTION_INTERVAL", "soon")
	t.Setenv("SCROLLGUARD_ENABLE_CLEANUP", "maybe")

	config := DefaultConfig()
	require.NoError(t, config.LoadFromEnvironment())

	defaults := DefaultConfig()
	assert.Equal(t, defaults.CacheSize, config.CacheSize)
	assert.Equal(t, defaults.RetentionDays, config.RetentionDays)
	assert.Equal(t, defaults.RetentionInterval, config.RetentionInterval)
	assert.Equal(t, defaults.EnableCleanup, config.EnableCleanup)
}

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value   string
		want    bool
		present bool
	}{
		{"true", true, true},
		{"1", true, true},
		{"Yes", true, true},
		{"ON", true, true},
		{"false", false, true},
		{"n", false, true},
		{"off", false, true},
		{"", false, false},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("SCROLLGUARD_TEST_BOOL", tt.value)
			got, present := parseBoolEnv("SCROLLGUARD_TEST_BOOL")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.present, present)
		})
	}
}

func TestConfig_GetConnectionString_Mattn(t *testing.T) {
	config := DefaultConfig()
	config.Path = "data/store.db"

	dsn := config.GetConnectionString()
	require.True(t, strings.HasPrefix(dsn, "file:data/store.db?"), dsn)

	query, err := url.ParseQuery(dsn[strings.Index(dsn, "?")+1:])
	require.NoError(t, err)
	assert.Equal(t, "on", query.Get("_foreign_keys"))
	assert.Equal(t, "WAL", query.Get("_journal_mode"))
	assert.Equal(t, "NORMAL", query.Get("_synchronous"))
	assert.Equal(t, "-2000", query.Get("_cache_size"))
	assert.Equal(t, "5000", query.Get("_busy_timeout"))
}

func TestConfig_GetConnectionString_Modernc(t *testing.T) {
	config := DefaultConfig()
	config.Path = "store.db"
	config.Driver = DriverModernc
	config.ForeignKeys = false

	dsn := config.GetConnectionString()
	query, err := url.ParseQuery(dsn[strings.Index(dsn, "?")+1:])
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"foreign_keys(0)",
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"cache_size(-2000)",
		"busy_timeout(5000)",
	}, query["_pragma"])
	assert.Empty(t, query.Get("_foreign_keys"))
}

func TestConfig_GetConnectionString_EscapesQueryCharacters(t *testing.T) {
	config := DefaultConfig()
	config.Path = "odd?name&x.db"

	dsn := config.GetConnectionString()
	assert.True(t, strings.HasPrefix(dsn, "file:odd%3Fname%26x.db?"), dsn)
}

func TestConfig_Clone(t *testing.T) {
	original := DefaultConfig()
	clone := original.Clone()
	clone.Path = "other.db"
	clone.RetentionDays = 7

	assert.Equal(t, "scrollguard.db", original.Path)
	assert.Equal(t, 90, original.RetentionDays)
}

func TestConfigForEnvironment(t *testing.T) {
	assert.True(t, ConfigForEnvironment("development").IsDevelopment())
	assert.True(t, ConfigForEnvironment("test").IsTest())
	assert.True(t, ConfigForEnvironment("test").IsInMemory())
	assert.True(t, ConfigForEnvironment("anything").IsProduction())
}
