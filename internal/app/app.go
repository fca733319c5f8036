// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the crawl command.
package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	gcsclient "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/legal-decisions-crawler/internal/config"
	"github.com/JakeFAU/legal-decisions-crawler/internal/crawler"
	pgindex "github.com/JakeFAU/legal-decisions-crawler/internal/index/postgres"
	"github.com/JakeFAU/legal-decisions-crawler/internal/logging"
	"github.com/JakeFAU/legal-decisions-crawler/internal/metrics"
	pubsubpublisher "github.com/JakeFAU/legal-decisions-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/legal-decisions-crawler/internal/records"
	"github.com/JakeFAU/legal-decisions-crawler/internal/storage"
	"github.com/JakeFAU/legal-decisions-crawler/internal/storage/gcs"
	"github.com/JakeFAU/legal-decisions-crawler/internal/storage/local"
	"github.com/JakeFAU/legal-decisions-crawler/internal/storage/memory"
)

// RunIndex is the index surface the app drives: per-record upserts plus the
// run bookkeeping around each crawl.
type RunIndex interface {
	crawler.Indexer
	StartRun(ctx context.Context, runID, job string, startedAt time.Time) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, stats crawler.Stats, errMsg *string) error
	Close()
}

// Publisher is a notifier that owns a connection.
type Publisher interface {
	crawler.Notifier
	Close() error
}

// Option overrides a service New would otherwise build from configuration.
type Option func(*App)

// WithIndex uses ix instead of connecting to index.dsn.
func WithIndex(ix RunIndex) Option {
	return func(a *App) { a.index = ix }
}

// WithPublisher uses p instead of connecting to pubsub.topic.
func WithPublisher(p Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithBlobStore uses blobs for every job instead of storage.backend.
func WithBlobStore(blobs storage.BlobStore) Option {
	return func(a *App) { a.blobs = blobs }
}

// App holds the shared, long-lived services for one process.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	gcs        *gcsclient.Client
	blobs      storage.BlobStore
	index      RunIndex
	publisher  Publisher
	metricsSrv *metrics.Server
}

// New builds the services enabled in cfg. It fails fast when a configured
// backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	if a.blobs == nil && cfg.Storage.Backend == config.BackendGCS {
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.gcs = client
		logger.Info("using gcs storage", zap.String("bucket", cfg.Storage.GCSBucket))
	}

	if a.index == nil && cfg.Index.DSN != "" {
		ix, err := pgindex.New(ctx, pgindex.Config{
			DSN:             cfg.Index.DSN,
			Table:           cfg.Index.Table,
			MaxConns:        cfg.Index.MaxConns,
			MaxConnLifetime: cfg.Index.MaxConnLifetime,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init index: %w", err)
		}
		if err := ix.EnsureSchema(ctx); err != nil {
			ix.Close()
			a.Close()
			return nil, fmt.Errorf("init index: %w", err)
		}
		a.index = ix
		logger.Info("decision index enabled", zap.String("table", cfg.Index.Table))
	}

	if a.publisher == nil && cfg.PubSub.Topic != "" {
		pub, err := pubsubpublisher.New(ctx, pubsubpublisher.Config{
			ProjectID: cfg.PubSub.ProjectID,
			Topic:     cfg.PubSub.Topic,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		a.publisher = pub
		logger.Info("pubsub notifications enabled", zap.String("topic", cfg.PubSub.Topic))
	}

	if cfg.Metrics.ListenAddr != "" {
		srv, err := metrics.Listen(cfg.Metrics.ListenAddr, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.metricsSrv = srv
	}
	return a, nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// BlobStore returns the store a job's records are written to. Local output
// goes to the job's output directory; GCS output goes under
// <storage.prefix>/<output dir>.
func (a *App) BlobStore(job crawler.Job) (storage.BlobStore, error) {
	if a.blobs != nil {
		return a.blobs, nil
	}
	dir := a.cfg.OutputDir(job.Name, job.DefaultOutputDir)
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		store, err := gcs.New(a.gcs, gcs.Config{
			Bucket: a.cfg.Storage.GCSBucket,
			Prefix: path.Join(a.cfg.Storage.Prefix, path.Base(dir)),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	default:
		store, err := local.New(local.Config{BaseDir: dir})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// Crawl runs the named job to completion and returns its counters.
func (a *App) Crawl(ctx context.Context, jobName string) (crawler.Stats, error) {
	job, err := crawler.Lookup(jobName)
	if err != nil {
		return crawler.Stats{}, err
	}
	blobs, err := a.BlobStore(job)
	if err != nil {
		return crawler.Stats{}, fmt.Errorf("init blob store: %w", err)
	}
	store, err := records.New(blobs)
	if err != nil {
		return crawler.Stats{}, err
	}
	runID, err := uuid.NewV7()
	if err != nil {
		return crawler.Stats{}, fmt.Errorf("generate run id: %w", err)
	}
	id := runID.String()
	logger := logging.ForRun(a.logger, job.Name, id)

	opts := []crawler.Option{crawler.WithLogger(a.logger.Named("crawler")), crawler.WithRunID(id)}
	if a.index != nil {
		opts = append(opts, crawler.WithIndexer(a.index))
	}
	if a.publisher != nil {
		opts = append(opts, crawler.WithNotifier(a.publisher))
	}
	engine, err := crawler.NewEngine(a.engineConfig(), job, store, opts...)
	if err != nil {
		return crawler.Stats{}, err
	}

	if a.index != nil {
		if err := a.index.StartRun(ctx, id, job.Name, time.Now().UTC()); err != nil {
			logger.Error("record run start failed", zap.Error(err))
		}
	}

	stats, runErr := engine.Run(ctx)

	if a.index != nil {
		var msg *string
		if runErr != nil {
			s := runErr.Error()
			msg = &s
		}
		// The run row is finalized even when ctx was canceled.
		if err := a.index.FinishRun(context.WithoutCancel(ctx), id, time.Now().UTC(), stats, msg); err != nil {
			logger.Error("record run finish failed", zap.Error(err))
		}
	}
	return stats, runErr
}

func (a *App) engineConfig() crawler.Config {
	c := a.cfg.Crawler
	return crawler.Config{
		StartURL:        c.StartURL,
		BaseURL:         c.BaseURL,
		UserAgent:       c.UserAgent,
		Parallelism:     c.Parallelism,
		Delay:           c.Delay,
		RequestTimeout:  c.RequestTimeout,
		IgnoreRobots:    c.IgnoreRobots,
		MaxListingPages: c.MaxListingPages,
	}
}

// Close shuts down every service the App owns.
func (a *App) Close() {
	var errs []error
	if a.metricsSrv != nil {
		errs = append(errs, a.metricsSrv.Shutdown(context.Background()))
	}
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.index != nil {
		a.index.Close()
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gcs client: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error shutting down services", zap.Error(err))
	}
	_ = a.logger.Sync()
}
