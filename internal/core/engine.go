// Package core wires the sync layer together and owns its lifetime.
//
// The engine builds every component once, hands collaborators to each by
// reference, and tears them down in reverse order on Close.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/canfiles/canfiles/internal/config"
	"github.com/canfiles/canfiles/internal/constants"
	"github.com/canfiles/canfiles/internal/deletion"
	"github.com/canfiles/canfiles/internal/diskspace"
	"github.com/canfiles/canfiles/internal/download"
	"github.com/canfiles/canfiles/internal/events"
	"github.com/canfiles/canfiles/internal/filecache"
	inthttp "github.com/canfiles/canfiles/internal/http"
	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/notify"
	"github.com/canfiles/canfiles/internal/progress"
	"github.com/canfiles/canfiles/internal/remote"
	"github.com/canfiles/canfiles/internal/remote/httpactor"
	"github.com/canfiles/canfiles/internal/remote/memstore"
	"github.com/canfiles/canfiles/internal/remote/objectstore"
	"github.com/canfiles/canfiles/internal/transfer"
	"github.com/canfiles/canfiles/internal/upload"
)

// Option customizes NewEngine.
type Option func(*options)

type options struct {
	dialer remote.Dialer
	fs     afero.Fs
	logger *logging.Logger
	store  *memstore.Store
}

// WithDialer replaces the dialer derived from the backend config.
func WithDialer(d remote.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithFs replaces the filesystem downloads are written to.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMemoryStore backs the memory backend with store instead of a new one.
func WithMemoryStore(store *memstore.Store) Option {
	return func(o *options) { o.store = store }
}

// Engine owns the event bus, binding, cache, session tracker, coordinators,
// deletion handler and notifier.
type Engine struct {
	config   *config.Config
	logger   *logging.Logger
	eventBus *events.EventBus
	dial     remote.Dialer

	binding   *remote.Binding
	cache     *filecache.Cache
	tracker   *transfer.Tracker
	uploads   *upload.Coordinator
	downloads *download.Coordinator
	deletions *deletion.Handler
	notifier  *notify.Notifier

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// NewEngine validates cfg and builds the components. Nothing touches the
// network until Start or Connect.
func NewEngine(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	logger := logging.OrDefault(o.logger)
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}

	dial := o.dialer
	if dial == nil {
		var err error
		dial, err = dialerFor(cfg, o.store, logger)
		if err != nil {
			return nil, err
		}
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	binding := remote.NewBinding(bus, logger)
	binding.SetCallTimeout(cfg.Remote.CallTimeout)
	cache := filecache.New(binding, bus, logger)
	tracker := transfer.NewTracker(bus)

	uploads := upload.New(binding, cache, tracker, bus, logger, upload.Options{
		Illusion: progress.Illusion{
			Tick:    cfg.Progress.Tick,
			Ramp:    cfg.Progress.Ramp,
			Ceiling: cfg.Progress.Ceiling,
		},
		SettleDelay: cfg.Progress.SettleDelay,
	})
	mat := download.NewDirMaterializer(o.fs, config.ExpandHome(cfg.Downloads.Dir), logger)
	if _, onDisk := o.fs.(*afero.OsFs); onDisk {
		mat.CheckSpace(diskspace.Check)
	}
	downloads := download.New(binding, mat, tracker, bus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		config:    cfg,
		logger:    logger.Component("engine"),
		eventBus:  bus,
		dial:      dial,
		binding:   binding,
		cache:     cache,
		tracker:   tracker,
		uploads:   uploads,
		downloads: downloads,
		deletions: deletion.New(bus, logger),
		notifier:  notify.NewNotifier(cfg.Notifications, logger),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// dialerFor picks the remote actor for cfg.Remote.Backend.
func dialerFor(cfg *config.Config, store *memstore.Store, logger *logging.Logger) (remote.Dialer, error) {
	switch cfg.Remote.Backend {
	case config.BackendHTTP:
		return httpactor.Dialer(cfg.Remote, cfg.Proxy, logger), nil

	case config.BackendS3:
		s3cfg := cfg.S3
		open := func(ctx context.Context) (objectstore.Bucket, error) {
			httpClient, err := inthttp.ConfigureHTTPClient(cfg.Proxy, logger)
			if err != nil {
				return nil, err
			}
			client, err := objectstore.NewS3Client(ctx, s3cfg, httpClient)
			if err != nil {
				return nil, err
			}
			return objectstore.NewS3Bucket(client, s3cfg.Bucket), nil
		}
		return objectstore.Dialer(open, s3cfg.Prefix, logger), nil

	case config.BackendAzure:
		azcfg := cfg.Azure
		open := func(ctx context.Context) (objectstore.Bucket, error) {
			httpClient, err := inthttp.ConfigureHTTPClient(cfg.Proxy, logger)
			if err != nil {
				return nil, err
			}
			return objectstore.NewAzureBucket(azcfg, httpClient)
		}
		return objectstore.Dialer(open, azcfg.Prefix, logger), nil

	case config.BackendMemory:
		if store == nil {
			store = memstore.New()
		}
		return func(context.Context) (remote.Actor, error) { return store, nil }, nil
	}
	return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Remote.Backend)
}

// Start connects in the background and performs the initial refresh once
// the binding is ready. Until then coordinators report
// ErrBindingUnavailable. Desktop notifications start forwarding too.
func (e *Engine) Start() {
	e.startOnce.Do(func() {
		e.wg.Add(2)
		go func() {
			defer e.wg.Done()
			e.notifier.Run(e.ctx, e.eventBus)
		}()
		go func() {
			defer e.wg.Done()
			if err := e.Connect(e.ctx); err != nil && !errors.Is(err, context.Canceled) {
				e.logger.Error().Err(err).Msg("Startup failed")
			}
		}()
	})
}

// Connect dials the remote store and refreshes the file list, blocking
// until both finish.
func (e *Engine) Connect(ctx context.Context) error {
	if err := e.binding.Connect(ctx, e.dial); err != nil {
		e.eventBus.NotifyError("Connection failed", err)
		return err
	}
	if err := e.cache.Refresh(ctx); err != nil {
		e.eventBus.NotifyError("Could not load files", err)
		return fmt.Errorf("initial refresh: %w", err)
	}
	e.logger.Info().Int("files", e.cache.Count()).Msg("File list loaded")
	return nil
}

// Close stops background work and tears components down in reverse order
// of construction. Pending upload sessions are released immediately.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		e.downloads.Close()
		e.uploads.Close()
		e.wg.Wait()
		e.cache.Close()
		e.binding.Unbind("closed")
		e.eventBus.Close()
		e.logger.Debug().Msg("Engine closed")
	})
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config { return e.config }

// Events returns the event bus.
func (e *Engine) Events() *events.EventBus { return e.eventBus }

// Binding returns the remote binding.
func (e *Engine) Binding() *remote.Binding { return e.binding }

// Cache returns the file cache.
func (e *Engine) Cache() *filecache.Cache { return e.cache }

// Tracker returns the session tracker.
func (e *Engine) Tracker() *transfer.Tracker { return e.tracker }

// Uploads returns the upload coordinator.
func (e *Engine) Uploads() *upload.Coordinator { return e.uploads }

// Downloads returns the download coordinator.
func (e *Engine) Downloads() *download.Coordinator { return e.downloads }

// Deletions returns the deletion intent handler.
func (e *Engine) Deletions() *deletion.Handler { return e.deletions }

// Notifier returns the desktop notifier.
func (e *Engine) Notifier() *notify.Notifier { return e.notifier }
