// Package app builds the long-lived services of a run from the loaded
// configuration and tears them down afterwards.
package app

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/builder"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/clock/system"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/config"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/corpus"
	collyfetcher "github.com/djfrancesco/poesie-francaise-scraper/internal/fetcher/colly"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/hash/sha256"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/id/uuid"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/metrics"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/policy/ratelimit"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/policy/simple"
	gcppublisher "github.com/djfrancesco/poesie-francaise-scraper/internal/publisher/pubsub"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/server"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/site"
	archive "github.com/djfrancesco/poesie-francaise-scraper/internal/storage"
	gcsstorage "github.com/djfrancesco/poesie-francaise-scraper/internal/storage/gcs"
	localstorage "github.com/djfrancesco/poesie-francaise-scraper/internal/storage/local"
	memorystorage "github.com/djfrancesco/poesie-francaise-scraper/internal/storage/memory"
	memorystore "github.com/djfrancesco/poesie-francaise-scraper/internal/store/memory"
	pgstore "github.com/djfrancesco/poesie-francaise-scraper/internal/store/postgres"
	sqlitestore "github.com/djfrancesco/poesie-francaise-scraper/internal/store/sqlite"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/telemetry"
)

// Step names one of the runnable build steps.
type Step string

// Build steps.
const (
	StepPoets Step = "fetch_poets"
	StepPoems Step = "fetch_poems"
	StepAll   Step = "build_all"
)

// archiveDigestLength is the number of hex characters kept in archive keys.
const archiveDigestLength = 16

// App contains the services of one run.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	runID   string
	clock   corpus.Clock
	layout  site.Layout
	fetcher corpus.Fetcher
	sink    corpus.Sink
	builder *builder.Builder
	tracker *server.Tracker
	server  *server.Server

	pubsubClient  *pubsub.Client
	publisher     *gcppublisher.Publisher
	storageClient *storage.Client
	blobs         corpus.BlobStore
	tracer        *sdktrace.TracerProvider
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))

	layout, err := site.NewLayout(cfg.Site.BaseURL, cfg.Site.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("site layout: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		runID:   runID,
		clock:   system.New(),
		layout:  layout,
		tracker: server.NewTracker(runID),
	}

	a.tracer, err = telemetry.InitTracerProvider(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}

	if err := a.setupFetcher(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if err := a.setupStore(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	var pub corpus.Publisher
	if err := a.setupPublisher(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if a.publisher != nil {
		pub = a.publisher
	}

	a.builder = builder.New(a.fetcher, a.sink, pub, a.clock, layout, builder.Config{
		RunID:      runID,
		BatchSize:  cfg.Builder.BatchSize,
		Topic:      cfg.Publish.Topic,
		Poets:      cfg.Builder.Poets,
		OnPoetDone: a.tracker.PoetDone,
	}, logger.Named("builder"))

	if cfg.Metrics.ListenAddr != "" {
		a.server = server.New(cfg.Metrics.ListenAddr, a.tracker, logger.Named("http"))
		a.server.Start()
	}

	logger.Info("application services initialized",
		zap.String("base_url", layout.BaseURL()),
		zap.String("store", cfg.Store.Driver),
		zap.String("archive", cfg.Archive.Driver),
		zap.Bool("publish", a.publisher != nil),
	)
	return a, nil
}

func (a *App) setupFetcher(ctx context.Context) error {
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: a.cfg.HTTP.RequestsPerSecond,
		Burst:             a.cfg.HTTP.Burst,
	})
	var fetcher corpus.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.HTTP.UserAgent,
		RespectRobots: a.cfg.HTTP.RespectRobots,
		Timeout:       a.cfg.HTTP.Timeout(),
		MaxRetries:    a.cfg.HTTP.MaxRetries,
		RetryBackoff:  a.cfg.HTTP.Backoff(),
	}, limiter, a.logger.Named("fetcher"))

	blobs, err := a.setupArchive(ctx)
	if err != nil {
		return err
	}
	if blobs != nil {
		a.blobs = blobs
		fetcher = archive.NewArchivingFetcher(fetcher, blobs, sha256.NewShort(archiveDigestLength),
			a.runID, a.logger.Named("archive"))
	}

	a.fetcher = simple.New(a.layout.BaseURL()).Guard(fetcher)
	return nil
}

func (a *App) setupArchive(ctx context.Context) (corpus.BlobStore, error) {
	switch a.cfg.Archive.Driver {
	case config.ArchiveLocal:
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local archive init failed: %w", err)
		}
		a.logger.Debug("local archive", zap.String("path", a.cfg.Archive.BaseDir))
		return blobs, nil
	case config.ArchiveGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storageClient = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: a.cfg.Archive.Bucket,
			Prefix: a.cfg.Archive.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs archive init failed: %w", err)
		}
		a.logger.Debug("GCS archive", zap.String("bucket", a.cfg.Archive.Bucket))
		return blobs, nil
	case config.ArchiveMemory:
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, nil
	}
}

func (a *App) setupStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case config.StorePostgres:
		s, err := pgstore.New(ctx, pgstore.Config{
			DSN:      a.cfg.Store.DSN,
			MaxConns: int32(a.cfg.Store.MaxConns),
		}, a.logger.Named("postgres"))
		if err != nil {
			return fmt.Errorf("postgres store init failed: %w", err)
		}
		a.sink = s
	case config.StoreMemory:
		a.sink = memorystore.New()
	default:
		s, err := sqlitestore.Open(a.cfg.Store.Path, a.logger.Named("sqlite"))
		if err != nil {
			return fmt.Errorf("sqlite store init failed: %w", err)
		}
		a.sink = s
	}
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.cfg.Publish.Topic == "" {
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.Publish.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.publisher = gcppublisher.New(client)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.Publish.ProjectID),
		zap.String("topic", a.cfg.Publish.Topic),
	)
	return nil
}

// RunID returns the identifier shared by every log line and event of the run.
func (a *App) RunID() string { return a.runID }

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Sink returns the configured store.
func (a *App) Sink() corpus.Sink { return a.sink }

// Archive returns the blob store raw pages are archived in, or nil.
func (a *App) Archive() corpus.BlobStore { return a.blobs }

// Tracker returns the progress tracker backing /v1/status.
func (a *App) Tracker() *server.Tracker { return a.tracker }

// Run executes one build step inside a trace span.
func (a *App) Run(ctx context.Context, step Step, rebuild bool) (builder.Summary, error) {
	ctx, span := telemetry.StartRun(ctx, string(step))
	defer span.End()
	a.tracker.Begin(string(step), a.clock.Now())

	var (
		sum builder.Summary
		err error
	)
	switch step {
	case StepPoets:
		var poets []corpus.Poet
		poets, err = a.builder.BuildPoets(ctx)
		sum = builder.Summary{RunID: a.runID, PoetsInRoster: len(poets)}
	case StepPoems:
		sum, err = a.builder.BuildPoems(ctx)
	case StepAll:
		sum, err = a.builder.BuildAll(ctx, rebuild)
	default:
		err = fmt.Errorf("unknown step %q", step)
	}

	a.tracker.Finish(&sum, err, a.clock.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return sum, err
}

// Close shuts down every service that was started. It is safe to call on a
// partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher close: %w", err))
		}
	} else if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pubsub client close: %w", err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gcs client close: %w", err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
