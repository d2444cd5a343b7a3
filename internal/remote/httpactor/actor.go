// Package httpactor reaches a remote file store over JSON/HTTP.
package httpactor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"

	"github.com/canfiles/canfiles/internal/config"
	"github.com/canfiles/canfiles/internal/constants"
	transport "github.com/canfiles/canfiles/internal/http"
	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/remote"
	"github.com/canfiles/canfiles/internal/version"
)

// Actor implements remote.Actor against a store speaking the protocol in wire.go.
type Actor struct {
	client  *nethttp.Client
	baseURL string
	logger  *logging.Logger
}

// New creates an actor for baseURL using client.
func New(baseURL string, client *nethttp.Client, logger *logging.Logger) (*Actor, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", baseURL)
	}
	if client == nil {
		client = nethttp.DefaultClient
	}
	return &Actor{
		client:  client,
		baseURL: strings.TrimRight(u.String(), "/"),
		logger:  logging.OrDefault(logger).Component("httpactor"),
	}, nil
}

// Dialer returns a remote.Dialer that builds the configured HTTP client and
// checks the store's health endpoint once.
func Dialer(remoteCfg config.RemoteConfig, proxyCfg config.ProxyConfig, logger *logging.Logger) remote.Dialer {
	return func(ctx context.Context) (remote.Actor, error) {
		client, err := transport.NewRemoteClient(remoteCfg, proxyCfg, logger)
		if err != nil {
			return nil, err
		}
		a, err := New(remoteCfg.Endpoint, client, logger)
		if err != nil {
			return nil, err
		}
		if err := a.Health(ctx); err != nil {
			return nil, err
		}
		return a, nil
	}
}

// Health checks that the store answers.
func (a *Actor) Health(ctx context.Context) error {
	resp, err := a.do(ctx, nethttp.MethodGet, PathHealth, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != nethttp.StatusOK {
		return fmt.Errorf("health check failed: %s", statusError(resp))
	}
	var body HealthBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		a.logger.Debug().Str("status", body.Status).Str("store_version", body.Version).Msg("Store healthy")
	}
	return nil
}

// ListFiles fetches the full listing.
func (a *Actor) ListFiles(ctx context.Context) ([]models.FileRecord, error) {
	const op = "listFiles"
	resp, err := a.do(ctx, nethttp.MethodGet, PathFiles, nil)
	if err != nil {
		return nil, models.Reject(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, models.Reject(op, statusError(resp))
	}

	var files []models.FileRecord
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, models.Reject(op, fmt.Errorf("failed to decode listing: %w", err))
	}
	return files, nil
}

// AddFile registers name and size. Only metadata is sent.
func (a *Actor) AddFile(ctx context.Context, name string, size models.ByteCount) (models.FileRecord, error) {
	const op = "addFile"
	resp, err := a.do(ctx, nethttp.MethodPost, PathFiles, AddFileBody{Name: name, Size: size})
	if err != nil {
		return models.FileRecord{}, models.Reject(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusCreated && resp.StatusCode != nethttp.StatusOK {
		return models.FileRecord{}, models.Reject(op, statusError(resp))
	}

	var rec models.FileRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return models.FileRecord{}, models.Reject(op, fmt.Errorf("failed to decode record: %w", err))
	}
	return rec, nil
}

// GetFileContent fetches the bytes of id. A 404 means the store has none.
func (a *Actor) GetFileContent(ctx context.Context, id models.FileID) (*models.RetrievedContent, error) {
	const op = "getFileContent"
	path := strings.Replace(PathContent, "{id}", id.String(), 1)
	resp, err := a.do(ctx, nethttp.MethodGet, path, nil)
	if err != nil {
		return nil, models.Reject(op, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case nethttp.StatusOK:
	case nethttp.StatusNotFound:
		return nil, nil
	default:
		return nil, models.Reject(op, statusError(resp))
	}

	var body ContentBody
	dec := json.NewDecoder(io.LimitReader(resp.Body, constants.MaxContentBytes*4/3+1024))
	if err := dec.Decode(&body); err != nil {
		return nil, models.Reject(op, fmt.Errorf("failed to decode content: %w", err))
	}
	return &models.RetrievedContent{Name: body.Name, Bytes: body.Bytes}, nil
}

func (a *Actor) do(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("Request failed")
		return nil, fmt.Errorf("request failed: %w", unwrapURLError(err))
	}
	a.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("Store responded")
	return resp, nil
}

// statusError turns a non-2xx response into an error carrying the store's
// message, or the status text when the body has none.
func statusError(resp *nethttp.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb ErrorBody
	if json.Unmarshal(data, &eb) == nil && eb.Error != "" {
		return errors.New(eb.Error)
	}
	if msg := strings.TrimSpace(string(data)); msg != "" && len(msg) < 512 {
		return fmt.Errorf("%s: %s", resp.Status, msg)
	}
	return errors.New(resp.Status)
}

// unwrapURLError drops the *url.Error wrapper so messages read "connection
// refused" rather than repeating method and URL.
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}
