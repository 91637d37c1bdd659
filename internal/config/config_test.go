package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"scrollguard/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_NoFileUsesPreset(t *testing.T) {
	cfg, err := Load("", "test")
	require.NoError(t, err)
	assert.Equal(t, database.TestConfig(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCROLLGUARD_TEST_DIR", dir)

	path := writeFile(t, "scrollguard.yaml", `
path: ${SCROLLGUARD_TEST_DIR}/data.db
driver: sqlite
journalMode: DELETE
quotaBytes: 1048576
retentionDays: 30
retentionInterval: 90m
enableCleanup: true
`)

	cfg, err := Load(path, "production")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data.db"), cfg.Path)
	assert.Equal(t, database.DriverModernc, cfg.Driver)
	assert.Equal(t, "DELETE", cfg.JournalMode)
	assert.Equal(t, int64(1048576), cfg.QuotaBytes)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.Equal(t, 90*time.Minute, cfg.RetentionInterval)
	assert.True(t, cfg.EnableCleanup)
	// untouched keys keep the preset
	assert.Equal(t, database.DefaultConfig().BusyTimeout, cfg.BusyTimeout)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "scrollguard.toml", `
path = ":memory:"
journal_mode = "MEMORY"
retention_days = 14
retention_interval = "2h"
quota_warn_percent = 95.0
log_level = "warn"
`)

	cfg, err := Load(path, "development")
	require.NoError(t, err)
	assert.True(t, cfg.IsInMemory())
	assert.Equal(t, 14, cfg.RetentionDays)
	assert.Equal(t, 2*time.Hour, cfg.RetentionInterval)
	assert.Equal(t, 95.0, cfg.QuotaWarnPercent)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("SCROLLGUARD_RETENTION_DAYS", "7")
	path := writeFile(t, "scrollguard.yml", "path: \":memory:\"\njournalMode: MEMORY\nretentionDays: 30\n")

	cfg, err := Load(path, "test")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RetentionDays)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{name: "unknown extension", file: "config.json", content: "{}", wantErr: "unsupported config file extension"},
		{name: "malformed yaml", file: "config.yaml", content: "path: [unterminated", wantErr: "parsing config file"},
		{name: "malformed toml", file: "config.toml", content: "path = ", wantErr: "parsing config file"},
		{name: "invalid values", file: "config.yaml", content: "driver: postgres\n", wantErr: "validating config"},
		{name: "wal in memory", file: "config.toml", content: "path = \":memory:\"\njournal_mode = \"WAL\"\n", wantErr: "validating config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content), "production")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("SCROLLGUARD_TEST_VALUE", "abc")
	assert.Equal(t, "x=abc y=", expandEnvVars("x=${SCROLLGUARD_TEST_VALUE} y=${SCROLLGUARD_TEST_UNSET_VALUE}"))
}
