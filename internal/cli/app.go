package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/roadmap/internal/config"
	"github.com/roach88/roadmap/internal/fetch"
	"github.com/roach88/roadmap/internal/rpc"
	"github.com/roach88/roadmap/internal/search"
	"github.com/roach88/roadmap/internal/store"
	"github.com/roach88/roadmap/internal/syncer"
)

// app bundles the explicitly constructed components a command works with.
// Commands own the lifetime: build with newApp, release with Close.
type app struct {
	cfg     config.Config
	store   *store.Store
	handler *rpc.Handler
	logger  *zap.Logger
}

// newApp loads configuration, opens (or bootstraps) the store, and wires
// fetcher, coordinator, search engine and handler together.
func newApp(opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.Database != "" {
		cfg.DatabasePath = opts.Database
	}

	logger, err := newLogger(opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	st, err := store.EnsureDatabase(cfg.DatabasePath, cfg.SeedPath)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}

	fetcher := fetch.New(cfg.FeedURL, logger.Named("fetch"),
		fetch.WithTimeout(cfg.FetchTimeout()))
	coordinator := syncer.New(st, fetcher, logger.Named("sync"))
	engine := search.New(st, cfg.LinkBaseURL)
	handler := rpc.NewHandler(st, engine, coordinator, cfg.StaleHours, logger.Named("rpc"))

	return &app{
		cfg:     cfg,
		store:   st,
		handler: handler,
		logger:  logger,
	}, nil
}

// Close releases the store and flushes logs.
func (a *app) Close() error {
	a.logger.Sync()
	return a.store.Close()
}

// newLogger builds the application logger. Verbose mode enables debug
// output; everything goes to stderr so JSON command output stays clean.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
