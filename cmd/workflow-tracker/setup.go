package main

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/config"
	"github.com/aide-monitoring/workflow-tracker/internal/events"
	"github.com/aide-monitoring/workflow-tracker/internal/orthanc"
	"github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/pkg/log"
	"github.com/aide-monitoring/workflow-tracker/pkg/migrations"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	dbInitAttempts  = 10
	dbInitWait      = 2 * time.Second
	upstreamTimeout = 5 * time.Second
)

// loadConfig reads the dotenv file when present, then the environment, and installs the
// global zap logger. The returned func flushes and restores the previous logger.
func loadConfig() (*config.Config, func(), error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, err
	}

	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	logger := log.InitLog(log.ParseLevel(cfg.Service.LogLevel))
	undo := zap.ReplaceGlobals(logger)

	return cfg, func() {
		_ = logger.Sync()
		undo()
	}, nil
}

// openStore connects with retries and brings the schema up to date: goose migrations on
// PostgreSQL, model auto-migration on SQLite.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	zap.S().Info("Initializing data store")
	db, err := store.InitDBWithRetry(cfg, dbInitAttempts, dbInitWait)
	if err != nil {
		return nil, err
	}

	s := store.NewStore(db)

	if cfg.Database.Type == "sqlite" {
		err = s.InitialMigration(ctx)
	} else {
		err = migrations.MigrateStore(db, cfg.Service.MigrationFolder)
	}
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

func newGatewayClient(cfg *config.Config) *orthanc.Client {
	return orthanc.NewClient("gateway", cfg.Orthanc.URL, cfg.Orthanc.User, cfg.Orthanc.Password, orthanc.JobTimeout)
}

func newUpstreamClient(cfg *config.Config) *orthanc.Client {
	return orthanc.NewClient("upstream", cfg.Upstream.URL, cfg.Upstream.User, cfg.Upstream.Password, upstreamTimeout)
}

// newEventProducer publishes to NATS when NATS_URL is set and logs events otherwise.
// A broker that cannot be reached at boot degrades to logging.
func newEventProducer(cfg *config.Config) *events.EventProducer {
	var writer events.Writer = &events.StdoutWriter{}

	if cfg.Service.NatsURL != "" {
		natsWriter, err := events.NewNatsWriter(cfg.Service.NatsURL)
		if err != nil {
			zap.S().Warnw("nats unavailable, events will be logged", "url", cfg.Service.NatsURL, "error", err)
		} else {
			writer = natsWriter
		}
	}

	return events.NewEventProducer(writer, events.WithOutputTopic(cfg.Service.EventsSubject), events.WithSource("workflow-tracker"))
}
