package http

import (
	"crypto/tls"
	"fmt"
	nethttp "net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http2"

	"github.com/canfiles/canfiles/internal/config"
	"github.com/canfiles/canfiles/internal/constants"
	"github.com/canfiles/canfiles/internal/logging"
)

// retryLogger routes retryablehttp's leveled logging into zerolog.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// NewRemoteClient returns the HTTP client used by the HTTP actor: proxy
// aware, HTTP/2 when talking directly, and wrapped by retryablehttp.
//
// retryMax defaults to 0 so every user action issues exactly one request.
// Non-2xx responses are returned to the caller, never retried on status.
func NewRemoteClient(remote config.RemoteConfig, proxy config.ProxyConfig, logger *logging.Logger) (*nethttp.Client, error) {
	logger = logging.OrDefault(logger).Component("http")

	base, err := ConfigureHTTPClient(proxy, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	if tr, ok := base.Transport.(*nethttp.Transport); ok {
		direct := proxy.Mode == "" || proxy.Mode == "no-proxy"
		if direct && os.Getenv("DISABLE_HTTP2") != "true" {
			tr.ForceAttemptHTTP2 = true
			if err := http2.ConfigureTransport(tr); err != nil {
				logger.Debug().Err(err).Msg("HTTP/2 not configured")
			}
		} else {
			// Proxies often mishandle HTTP/2 multiplexing.
			tr.ForceAttemptHTTP2 = false
			tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
		}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = base
	retryClient.RetryMax = remote.RetryMax
	retryClient.RetryWaitMin = constants.RetryWaitMin
	retryClient.RetryWaitMax = constants.RetryWaitMax
	retryClient.Logger = &retryLogger{logger: logger}
	retryClient.CheckRetry = connectionErrorsOnly
	// Hand the last response back instead of an opaque "giving up" error.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return retryClient.StandardClient(), nil
}
