package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	require.NoError(t, err)

	assert.Equal(t, BackendHTTP, cfg.Remote.Backend)
	assert.Equal(t, time.Duration(0), cfg.Remote.CallTimeout)
	assert.Equal(t, 0, cfg.Remote.RetryMax)
	assert.Equal(t, 95, cfg.Progress.Ceiling)
	assert.Equal(t, 100*time.Millisecond, cfg.Progress.Tick)
	assert.Equal(t, 1500*time.Millisecond, cfg.Progress.Ramp)
	assert.Equal(t, time.Second, cfg.Progress.SettleDelay)
	assert.False(t, cfg.Notifications.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	content := `
[remote]
backend = S3
call_timeout = 30s
retry_max = 2
share_base_url = https://files.example

[proxy]
mode = basic
host = proxy.corp
port = 3128
user = alice
no_proxy = localhost

[s3]
bucket = team-files
region = eu-west-1
prefix = canfiles/
path_style = true

[downloads]
dir = /tmp/dl

[notifications]
enabled = true

[progress]
tick = 50ms
ramp = 2s
ceiling = 90
settle_delay = 500ms

[logging]
level = debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendS3, cfg.Remote.Backend)
	assert.Equal(t, 30*time.Second, cfg.Remote.CallTimeout)
	assert.Equal(t, 2, cfg.Remote.RetryMax)
	assert.Equal(t, "https://files.example", cfg.Remote.ShareBaseURL)
	assert.Equal(t, ProxyConfig{Mode: "basic", Host: "proxy.corp", Port: 3128, User: "alice", NoProxy: "localhost"}, cfg.Proxy)
	assert.Equal(t, S3Config{Bucket: "team-files", Region: "eu-west-1", Prefix: "canfiles/", PathStyle: true}, cfg.S3)
	assert.Equal(t, "/tmp/dl", cfg.Downloads.Dir)
	assert.True(t, cfg.Notifications.Enabled)
	assert.Equal(t, ProgressConfig{Tick: 50 * time.Millisecond, Ramp: 2 * time.Second, Ceiling: 90, SettleDelay: 500 * time.Millisecond}, cfg.Progress)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.NeedsProxyPassword())
	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ini")
	require.NoError(t, os.WriteFile(path, []byte("[remote\nbackend"), 0600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTripOmitsPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.ini")

	cfg := New()
	cfg.Remote.Backend = BackendAzure
	cfg.Azure = AzureConfig{ServiceURL: "https://acct.blob.core.windows.net/", Container: "files"}
	cfg.Proxy = ProxyConfig{Mode: "ntlm", Host: "proxy", Port: 8080, User: "bob", Password: "secret"}
	cfg.Remote.CallTimeout = 15 * time.Second

	require.NoError(t, Save(cfg, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Azure, loaded.Azure)
	assert.Equal(t, 15*time.Second, loaded.Remote.CallTimeout)
	assert.Equal(t, "", loaded.Proxy.Password)
	assert.True(t, loaded.NeedsProxyPassword())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"unknown backend", func(c *Config) { c.Remote.Backend = "ftp" }, ErrUnknownBackend},
		{"http without endpoint", func(c *Config) { c.Remote.Endpoint = "" }, ErrMissingEndpoint},
		{"s3 without bucket", func(c *Config) { c.Remote.Backend = BackendS3 }, ErrMissingBucket},
		{"azure without container", func(c *Config) { c.Remote.Backend = BackendAzure }, ErrMissingContainer},
		{"negative timeout", func(c *Config) { c.Remote.CallTimeout = -time.Second }, ErrInvalidTimeout},
		{"too many retries", func(c *Config) { c.Remote.RetryMax = 11 }, ErrInvalidRetryMax},
		{"bad proxy mode", func(c *Config) { c.Proxy.Mode = "socks" }, ErrInvalidProxyMode},
		{"basic proxy without host", func(c *Config) { c.Proxy.Mode = "basic" }, ErrMissingProxyHost},
		{"ceiling at 100", func(c *Config) { c.Progress.Ceiling = 100 }, ErrInvalidCeiling},
		{"tick longer than ramp", func(c *Config) { c.Progress.Tick = 2 * c.Progress.Ramp }, ErrInvalidProgressTun},
		{"negative settle", func(c *Config) { c.Progress.SettleDelay = -1 }, ErrInvalidSettle},
		{"memory backend", func(c *Config) { c.Remote.Backend = BackendMemory; c.Remote.Endpoint = "" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Downloads"), ExpandHome("~/Downloads"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
}

func TestResolveLogFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/var/state")
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	assert.Equal(t, "", resolveLogFile("  "))
	assert.Equal(t, "/var/log/canfiles.log", resolveLogFile("/var/log/canfiles.log"))
	if runtime.GOOS != "windows" {
		assert.Equal(t, filepath.Join("/var/state", "canfiles", "canfiles.log"), resolveLogFile("canfiles.log"))
	}
}

func TestDefaultPathUnderConfigHome(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Windows paths use separators the expectation does not")
	}
	t.Setenv("XDG_CONFIG_HOME", "/etc/xdg-test")
	xdg.Reload()
	t.Cleanup(xdg.Reload)

	assert.Equal(t, filepath.Join("/etc/xdg-test", "canfiles", "config.ini"), DefaultPath())
}
