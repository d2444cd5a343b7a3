package http

import (
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/canfiles/canfiles/internal/config"
	"github.com/canfiles/canfiles/internal/constants"
	"github.com/canfiles/canfiles/internal/logging"
)

// ConfigureHTTPClient builds an HTTP client for the remote actor with the
// configured proxy mode. The client has no overall timeout; per-call
// deadlines come from the caller's context.
func ConfigureHTTPClient(cfg config.ProxyConfig, logger *logging.Logger) (*nethttp.Client, error) {
	logger = logging.OrDefault(logger).Component("http")

	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout: constants.HTTPTLSHandshakeTimeout,
	}

	switch strings.ToLower(cfg.Mode) {
	case "no-proxy", "":
		transport.Proxy = nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment

	case "ntlm":
		if cfg.Host == "" {
			logger.Warn().Msg("Proxy mode is NTLM but host is missing, falling back to no-proxy mode")
			return &nethttp.Client{Transport: transport}, nil
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy, logger)
		return &nethttp.Client{
			Transport: ntlmssp.Negotiator{RoundTripper: transport},
		}, nil

	case "basic":
		if cfg.Host == "" {
			logger.Warn().Msg("Proxy mode is basic but host is missing, falling back to no-proxy mode")
			return &nethttp.Client{Transport: transport}, nil
		}
		if cfg.User != "" && cfg.Password == "" {
			logger.Warn().Msg("Proxy user configured but password missing, proxy auth disabled until password is set")
		}
		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy, logger)

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.Mode)
	}

	return &nethttp.Client{Transport: transport}, nil
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(cfg config.ProxyConfig) *url.URL {
	port := cfg.Port
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
	}

	// Only embed credentials if both user AND password are provided
	if cfg.User != "" && cfg.Password != "" {
		proxyURL.User = url.UserPassword(cfg.User, cfg.Password)
	}

	return proxyURL
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// With an empty list it behaves like nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string, logger *logging.Logger) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	pc := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := pc.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			logger.Debug().Str("host", req.URL.Host).Msg("Proxy bypass, direct connection")
		} else {
			logger.Debug().Str("host", req.URL.Host).Str("proxy", result.Host).Msg("Proxied")
		}
		return result, err
	}
}
