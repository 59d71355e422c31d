// Package app assembles the content store components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prn-tf/contentstore/internal/config"
	"github.com/prn-tf/contentstore/internal/domain"
	"github.com/prn-tf/contentstore/internal/metrics"
	"github.com/prn-tf/contentstore/internal/queue"
	"github.com/prn-tf/contentstore/internal/repository"
	"github.com/prn-tf/contentstore/internal/repository/postgres"
	"github.com/prn-tf/contentstore/internal/repository/sqlite"
	"github.com/prn-tf/contentstore/internal/service"
	"github.com/prn-tf/contentstore/internal/splitter"
	"github.com/prn-tf/contentstore/internal/storage"
	"github.com/prn-tf/contentstore/internal/storage/filesystem"
	s3store "github.com/prn-tf/contentstore/internal/storage/s3"
)

// App holds the wired components. Usage and Database are nil when the
// segment index is disabled.
type App struct {
	Config      *config.Config
	Store       storage.ObjectStore
	Metrics     *metrics.Metrics
	Content     *service.ContentStorageService
	Splitter    *splitter.Splitter
	SplitParams splitter.Params
	Usage       *service.UsageService
	Publisher   queue.Publisher
	Database    repository.DatabaseHealth

	// Queue is the Redis event queue, nil when redis is disabled.
	Queue *queue.RedisQueue

	redis  *redis.Client
	logger zerolog.Logger
}

// NewLogger builds a logger from the logging section.
func NewLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = timeFormat

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: timeFormat})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// New wires every component described by cfg.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		logger: logger,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
	}

	store, err := newObjectStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	a.Store = store

	var index repository.SegmentIndex
	if !cfg.Database.IsDisabled() {
		repos, db, err := newRepositories(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		a.Database = db
		index = repos.Segments
		a.Usage = service.NewUsageService(index, logger)
	}

	a.Content = service.NewContentStorageService(store, index, a.Metrics, logger, service.ContentStorageConfig{
		Bucket: cfg.Storage.Bucket,
	})
	a.Splitter = splitter.New(a.Content, a.Metrics, logger)

	a.SplitParams, err = splitter.ParamsFromConfig(cfg.Splitter)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("splitter config: %w", err)
	}

	if cfg.Redis.Enabled {
		a.redis = queue.NewRedisClient(cfg.Redis)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr(), err)
		}
		a.Queue = queue.NewRedisQueue(a.redis, cfg.Redis.EventQueue, logger)
		a.Publisher = a.Queue
	} else {
		a.Publisher = queue.NewLogPublisher(logger)
	}

	logger.Info().
		Str("storage", cfg.Storage.Backend).
		Str("bucket", a.Content.Bucket()).
		Str("database", cfg.Database.Driver).
		Bool("redis", cfg.Redis.Enabled).
		Bool("metrics", cfg.Metrics.Enabled).
		Msg("content store initialized")

	return a, nil
}

// Action names reported in published events.
const (
	ActionIngest = "ingest"
	ActionSplit  = "split"
)

// Ingest saves r as new content of ownerID and publishes an ingress event.
func (a *App) Ingest(ctx context.Context, ownerID uuid.UUID, r io.Reader, name, mediaType string) (domain.Content, *domain.ActionEvent, error) {
	var content domain.Content
	event, err := a.Content.RunAction(ctx, a.Publisher, ownerID, ActionIngest, domain.ActionEventIngress,
		func(ctx context.Context, action *service.ActionContentStorage) ([]domain.Content, error) {
			var err error
			content, err = action.Save(ctx, ownerID, r, name, mediaType)
			if err != nil {
				return nil, err
			}
			return []domain.Content{content}, nil
		})
	if err != nil {
		return domain.Content{}, event, err
	}
	return content, event, nil
}

// Split splits stored content and publishes a transform event carrying the
// children. With record set, the children are indexed for usage accounting.
func (a *App) Split(ctx context.Context, content domain.Content, params splitter.Params, record bool) ([]domain.Content, *domain.ActionEvent, error) {
	if record && a.Usage == nil {
		return nil, nil, errors.New("recording split children requires a segment index")
	}

	var owner uuid.UUID
	if len(content.Segments) > 0 {
		owner = content.Segments[0].OwnerID
	}

	event, err := a.Content.RunAction(ctx, a.Publisher, owner, ActionSplit, domain.ActionEventTransform,
		func(ctx context.Context, _ *service.ActionContentStorage) ([]domain.Content, error) {
			children, err := a.Splitter.SplitContent(ctx, content, params)
			if err != nil {
				return nil, err
			}
			if record {
				if err := a.Usage.RecordContent(ctx, children...); err != nil {
					return nil, err
				}
			}
			return children, nil
		})
	if err != nil {
		return nil, event, err
	}
	return event.Content, event, nil
}

// Close releases database and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.Database != nil {
		errs = append(errs, a.Database.Close())
	}
	return errors.Join(errs...)
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (storage.ObjectStore, error) {
	switch cfg.Backend {
	case "filesystem":
		store, err := filesystem.New(cfg.DataDir, logger)
		if err != nil {
			return nil, fmt.Errorf("filesystem store: %w", err)
		}
		return store, nil
	case "s3":
		client, err := s3store.NewClient(ctx, s3store.ClientConfigFrom(cfg.S3))
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		store, err := s3store.New(client, logger)
		if err != nil {
			return nil, fmt.Errorf("s3 store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func newRepositories(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*repository.Repositories, repository.DatabaseHealth, error) {
	if cfg.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.ConfigFrom(cfg), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return &repository.Repositories{Segments: sqlite.NewSegmentRepository(db)}, db, nil
	}

	db, err := postgres.NewDB(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &repository.Repositories{Segments: postgres.NewSegmentRepository(db)}, db, nil
}
