// Package config provides configuration management for canfiles.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/canfiles/canfiles/internal/constants"
)

// Config is the full client configuration.
//
// Config file location: <user config dir>/canfiles/config.ini
//
// INI format:
//
//	[remote]
//	backend = http            ; http | s3 | azure | memory
//	endpoint = http://127.0.0.1:8765
//	call_timeout = 0s         ; 0 waits as long as the store takes
//	retry_max = 0
//	share_base_url = https://files.example.com
//
//	[proxy]
//	mode = no-proxy           ; no-proxy | system | basic | ntlm
//	host = proxy.corp
//	port = 8080
//	user = alice
//	no_proxy = localhost,10.0.0.0/8
//
//	[s3]
//	bucket = my-files
//	region = us-east-1
//	prefix = canfiles/
//
//	[azure]
//	service_url = https://account.blob.core.windows.net/
//	container = files
//
//	[downloads]
//	dir = ~/Downloads
//
//	[notifications]
//	enabled = false
//
//	[progress]
//	tick = 100ms
//	ramp = 1.5s
//	ceiling = 95
//	settle_delay = 1s
//
//	[logging]
//	level = info
//	file = ~/.local/state/canfiles/canfiles.log
type Config struct {
	Remote        RemoteConfig
	Proxy         ProxyConfig
	S3            S3Config
	Azure         AzureConfig
	Downloads     DownloadsConfig
	Notifications NotificationConfig
	Progress      ProgressConfig
	Logging       LoggingConfig
}

// Backends
const (
	BackendHTTP   = "http"
	BackendS3     = "s3"
	BackendAzure  = "azure"
	BackendMemory = "memory"
)

// RemoteConfig selects and tunes the remote store.
type RemoteConfig struct {
	Backend      string
	Endpoint     string
	CallTimeout  time.Duration
	RetryMax     int
	ShareBaseURL string
}

// ProxyConfig is used by the HTTP backend.
type ProxyConfig struct {
	Mode     string
	Host     string
	Port     int
	User     string
	Password string // never written back to disk
	NoProxy  string
}

// S3Config addresses the object-store backend on S3.
type S3Config struct {
	Bucket    string
	Region    string
	Prefix    string
	Endpoint  string // optional, for S3-compatible stores
	PathStyle bool

	// Static credentials. When empty the default AWS chain is used.
	AccessKeyID     string
	SecretAccessKey string // never written back to disk
}

// AzureConfig addresses the object-store backend on Azure Blob Storage.
type AzureConfig struct {
	ServiceURL string
	Container  string
	Prefix     string
}

// DownloadsConfig controls where retrieved files are saved.
type DownloadsConfig struct {
	Dir string
}

// NotificationConfig contains settings for desktop notifications.
type NotificationConfig struct {
	// Enabled sends notifications to the desktop in addition to the terminal.
	// Default: false
	Enabled bool
}

// ProgressConfig tunes the upload progress illusion.
type ProgressConfig struct {
	Tick        time.Duration
	Ramp        time.Duration
	Ceiling     int
	SettleDelay time.Duration
}

// LoggingConfig controls log level and the optional log file.
type LoggingConfig struct {
	Level string
	File  string
}

// Validation errors
var (
	ErrUnknownBackend     = errors.New("remote.backend must be one of http, s3, azure, memory")
	ErrMissingEndpoint    = errors.New("remote.endpoint is required for the http backend")
	ErrMissingBucket      = errors.New("s3.bucket is required for the s3 backend")
	ErrMissingContainer   = errors.New("azure.service_url and azure.container are required for the azure backend")
	ErrInvalidTimeout     = errors.New("remote.call_timeout must not be negative")
	ErrInvalidRetryMax    = errors.New("remote.retry_max must be between 0 and 10")
	ErrInvalidProxyMode   = errors.New("proxy.mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost   = errors.New("proxy.host is required for basic and ntlm proxy modes")
	ErrInvalidCeiling     = errors.New("progress.ceiling must be between 1 and 99")
	ErrInvalidProgressTun = errors.New("progress.tick and progress.ramp must be positive, with tick <= ramp")
	ErrInvalidSettle      = errors.New("progress.settle_delay must not be negative")
)

// New returns a Config with default values.
func New() *Config {
	return &Config{
		Remote: RemoteConfig{
			Backend:  BackendHTTP,
			Endpoint: "http://" + constants.DevStoreDefaultAddr,
		},
		Proxy: ProxyConfig{
			Mode: "no-proxy",
			Port: 8080,
		},
		Downloads: DownloadsConfig{
			Dir: DefaultDownloadDir(),
		},
		Progress: ProgressConfig{
			Tick:        constants.ProgressTickInterval,
			Ramp:        constants.ProgressRampDuration,
			Ceiling:     constants.ProgressCeiling,
			SettleDelay: constants.SettleDelay,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads an INI file over the defaults.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	remote := iniFile.Section("remote")
	cfg.Remote.Backend = strings.ToLower(remote.Key("backend").MustString(cfg.Remote.Backend))
	cfg.Remote.Endpoint = remote.Key("endpoint").MustString(cfg.Remote.Endpoint)
	cfg.Remote.CallTimeout = remote.Key("call_timeout").MustDuration(0)
	cfg.Remote.RetryMax = remote.Key("retry_max").MustInt(0)
	cfg.Remote.ShareBaseURL = remote.Key("share_base_url").String()

	proxy := iniFile.Section("proxy")
	cfg.Proxy.Mode = strings.ToLower(proxy.Key("mode").MustString(cfg.Proxy.Mode))
	cfg.Proxy.Host = proxy.Key("host").String()
	cfg.Proxy.Port = proxy.Key("port").MustInt(cfg.Proxy.Port)
	cfg.Proxy.User = proxy.Key("user").String()
	cfg.Proxy.Password = proxy.Key("password").String()
	cfg.Proxy.NoProxy = proxy.Key("no_proxy").String()

	s3 := iniFile.Section("s3")
	cfg.S3.Bucket = s3.Key("bucket").String()
	cfg.S3.Region = s3.Key("region").String()
	cfg.S3.Prefix = s3.Key("prefix").String()
	cfg.S3.Endpoint = s3.Key("endpoint").String()
	cfg.S3.PathStyle = s3.Key("path_style").MustBool(false)
	cfg.S3.AccessKeyID = s3.Key("access_key_id").String()
	cfg.S3.SecretAccessKey = s3.Key("secret_access_key").String()

	azure := iniFile.Section("azure")
	cfg.Azure.ServiceURL = azure.Key("service_url").String()
	cfg.Azure.Container = azure.Key("container").String()
	cfg.Azure.Prefix = azure.Key("prefix").String()

	cfg.Downloads.Dir = ExpandHome(iniFile.Section("downloads").Key("dir").MustString(cfg.Downloads.Dir))

	cfg.Notifications.Enabled = iniFile.Section("notifications").Key("enabled").MustBool(false)

	progress := iniFile.Section("progress")
	cfg.Progress.Tick = progress.Key("tick").MustDuration(cfg.Progress.Tick)
	cfg.Progress.Ramp = progress.Key("ramp").MustDuration(cfg.Progress.Ramp)
	cfg.Progress.Ceiling = progress.Key("ceiling").MustInt(cfg.Progress.Ceiling)
	cfg.Progress.SettleDelay = progress.Key("settle_delay").MustDuration(cfg.Progress.SettleDelay)

	logging := iniFile.Section("logging")
	cfg.Logging.Level = logging.Key("level").MustString(cfg.Logging.Level)
	cfg.Logging.File = resolveLogFile(logging.Key("file").String())

	return cfg, nil
}

// Save writes cfg to path as INI. The proxy password and the S3 secret key
// are never persisted.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()
	sections := []struct {
		name string
		keys [][2]string
	}{
		{"remote", [][2]string{
			{"backend", cfg.Remote.Backend},
			{"endpoint", cfg.Remote.Endpoint},
			{"call_timeout", cfg.Remote.CallTimeout.String()},
			{"retry_max", strconv.Itoa(cfg.Remote.RetryMax)},
			{"share_base_url", cfg.Remote.ShareBaseURL},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.Proxy.Mode},
			{"host", cfg.Proxy.Host},
			{"port", strconv.Itoa(cfg.Proxy.Port)},
			{"user", cfg.Proxy.User},
			{"no_proxy", cfg.Proxy.NoProxy},
		}},
		{"s3", [][2]string{
			{"bucket", cfg.S3.Bucket},
			{"region", cfg.S3.Region},
			{"prefix", cfg.S3.Prefix},
			{"endpoint", cfg.S3.Endpoint},
			{"path_style", strconv.FormatBool(cfg.S3.PathStyle)},
			{"access_key_id", cfg.S3.AccessKeyID},
		}},
		{"azure", [][2]string{
			{"service_url", cfg.Azure.ServiceURL},
			{"container", cfg.Azure.Container},
			{"prefix", cfg.Azure.Prefix},
		}},
		{"downloads", [][2]string{{"dir", cfg.Downloads.Dir}}},
		{"notifications", [][2]string{{"enabled", strconv.FormatBool(cfg.Notifications.Enabled)}}},
		{"progress", [][2]string{
			{"tick", cfg.Progress.Tick.String()},
			{"ramp", cfg.Progress.Ramp.String()},
			{"ceiling", strconv.Itoa(cfg.Progress.Ceiling)},
			{"settle_delay", cfg.Progress.SettleDelay.String()},
		}},
		{"logging", [][2]string{
			{"level", cfg.Logging.Level},
			{"file", cfg.Logging.File},
		}},
	}
	for _, s := range sections {
		sec, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.keys {
			sec.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Validate checks the settings the selected backend needs.
func (cfg *Config) Validate() error {
	switch cfg.Remote.Backend {
	case BackendHTTP:
		if strings.TrimSpace(cfg.Remote.Endpoint) == "" {
			return ErrMissingEndpoint
		}
	case BackendS3:
		if strings.TrimSpace(cfg.S3.Bucket) == "" {
			return ErrMissingBucket
		}
	case BackendAzure:
		if strings.TrimSpace(cfg.Azure.ServiceURL) == "" || strings.TrimSpace(cfg.Azure.Container) == "" {
			return ErrMissingContainer
		}
	case BackendMemory:
	default:
		return ErrUnknownBackend
	}

	if cfg.Remote.CallTimeout < 0 {
		return ErrInvalidTimeout
	}
	if cfg.Remote.RetryMax < 0 || cfg.Remote.RetryMax > 10 {
		return ErrInvalidRetryMax
	}

	switch cfg.Proxy.Mode {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if strings.TrimSpace(cfg.Proxy.Host) == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	if cfg.Progress.Ceiling < 1 || cfg.Progress.Ceiling >= constants.ProgressComplete {
		return ErrInvalidCeiling
	}
	if cfg.Progress.Tick <= 0 || cfg.Progress.Ramp <= 0 || cfg.Progress.Tick > cfg.Progress.Ramp {
		return ErrInvalidProgressTun
	}
	if cfg.Progress.SettleDelay < 0 {
		return ErrInvalidSettle
	}
	return nil
}

// NeedsProxyPassword reports whether an authenticating proxy is configured
// with a user but no password, so the CLI should prompt for one.
func (cfg *Config) NeedsProxyPassword() bool {
	mode := strings.ToLower(cfg.Proxy.Mode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return cfg.Proxy.User != "" && cfg.Proxy.Password == ""
}
