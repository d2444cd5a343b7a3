package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used for the config directory, notification titles and the user agent.
	AppName = "canfiles"

	// ConfigFileName is the INI file looked up under the user config directory.
	ConfigFileName = "config.ini"
)

// Progress illusion
const (
	// ProgressTickInterval - cadence of the upload progress illusion (100ms)
	ProgressTickInterval = 100 * time.Millisecond

	// ProgressRampDuration - time for the illusion to climb from 0 to the ceiling (1.5s)
	ProgressRampDuration = 1500 * time.Millisecond

	// ProgressCeiling - highest value the illusion may show before the remote settles.
	// Must stay below ProgressComplete.
	ProgressCeiling = 95

	// ProgressComplete - shown only after the remote accepted the upload
	ProgressComplete = 100
)

// Session lifecycle
const (
	// SettleDelay - time a successful upload stays visible before its transient state clears (1s)
	SettleDelay = 1 * time.Second
)

// Event System
const (
	// EventBusDefaultBuffer - default buffer size for event channels (1000)
	EventBusDefaultBuffer = 1000

	// EventBusMaxBuffer - maximum buffer size for high-throughput scenarios (5000)
	EventBusMaxBuffer = 5000
)

// Remote transport
const (
	// HTTPDialTimeout - TCP connect timeout for the HTTP actor transport
	HTTPDialTimeout = 10 * time.Second

	// HTTPTLSHandshakeTimeout - TLS handshake timeout for the HTTP actor transport
	HTTPTLSHandshakeTimeout = 10 * time.Second

	// HTTPIdleConnTimeout - how long idle keep-alive connections are kept
	HTTPIdleConnTimeout = 90 * time.Second

	// RetryWaitMin / RetryWaitMax - backoff bounds, used only when retry_max > 0
	RetryWaitMin = 200 * time.Millisecond
	RetryWaitMax = 5 * time.Second

	// MaxContentBytes - upper bound on a single retrieved payload (1 GiB)
	MaxContentBytes = 1 << 30
)

// Development store
const (
	// DevStoreDefaultAddr - listen address of `canfiles dev-store`
	DevStoreDefaultAddr = "127.0.0.1:8765"

	// DevStoreReadHeaderTimeout bounds slow clients on the dev store
	DevStoreReadHeaderTimeout = 5 * time.Second
)

// Logging
const (
	// LogFileMaxSizeMB - rotate the log file when it reaches this size
	LogFileMaxSizeMB = 10

	// LogFileMaxBackups - rotated files to keep
	LogFileMaxBackups = 5

	// LogFileMaxAgeDays - days to keep rotated files
	LogFileMaxAgeDays = 30
)
