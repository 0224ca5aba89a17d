package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DefaultAPIURL, cfg.Remote.URL)
	assert.Equal(t, 100, cfg.Remote.PageSize)
	assert.Equal(t, 3, cfg.Remote.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Remote.RetryDelay)
	assert.Equal(t, 10*time.Second, cfg.Remote.RequestTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Remote.MinPageDelay)
	assert.Equal(t, 2*time.Second, cfg.Remote.MaxPageDelay)
	assert.Equal(t, time.Second, cfg.AutoSync.CheckInterval)
	assert.Equal(t, 30, cfg.History.RetentionDays)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BILLSYNC_PORT", "9090")
	t.Setenv("BILLSYNC_REMOTE_URL", "http://127.0.0.1:1/bills")
	t.Setenv("BILLSYNC_REMOTE_RETRY_DELAY", "250ms")
	t.Setenv("BILLSYNC_AUTOSYNC_CHECK_INTERVAL", "2s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://127.0.0.1:1/bills", cfg.Remote.URL)
	assert.Equal(t, 250*time.Millisecond, cfg.Remote.RetryDelay)
	assert.Equal(t, 2*time.Second, cfg.AutoSync.CheckInterval)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "billsync.yaml")
	content := []byte("data_dir: /var/lib/billsync\nremote:\n  page_size: 50\nlog:\n  format: text\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/billsync", cfg.DataDir)
	assert.Equal(t, 50, cfg.Remote.PageSize)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Remote.MaxAttempts)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsInvertedDelayRange(t *testing.T) {
	t.Setenv("BILLSYNC_REMOTE_MIN_PAGE_DELAY", "3s")
	t.Setenv("BILLSYNC_REMOTE_MAX_PAGE_DELAY", "1s")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page delay range")
}

func TestValidateRejectsZeroAttempts(t *testing.T) {
	t.Setenv("BILLSYNC_REMOTE_MAX_ATTEMPTS", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_attempts")
}
