package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/config"
	"github.com/aide-monitoring/workflow-tracker/pkg/log"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteBusyTimeout = "_busy_timeout=5000"

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	var dia gorm.Dialector

	instrumentedDrivers()

	if cfg.Database.Type == "pgsql" {
		dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s",
			cfg.Database.Hostname,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.Port,
		)
		if cfg.Database.Name != "" {
			dsn = fmt.Sprintf("%s dbname=%s", dsn, cfg.Database.Name)
		}
		dia = postgres.New(postgres.Config{DriverName: pgxInstrumentedDriver, DSN: dsn})
	} else {
		dia = sqlite.New(sqlite.Config{DriverName: sqliteInstrumentedDriver, DSN: sqliteDSN(cfg.Database.Name)})
	}

	newLogger := logger.New(
		log.NewPrintfLogger("gorm"),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true, // Don't include params in the SQL log
			Colorful:                  false,
		},
	)

	newDB, err := gorm.Open(dia, &gorm.Config{Logger: newLogger, TranslateError: true})
	if err != nil {
		zap.S().Named("gorm").Errorf("failed to connect database: %v", err)
		return nil, err
	}

	sqlDB, err := newDB.DB()
	if err != nil {
		zap.S().Named("gorm").Errorf("failed to configure connections: %v", err)
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	if cfg.Database.Type == "pgsql" {
		var minorVersion string
		if result := newDB.Raw("SELECT version()").Scan(&minorVersion); result.Error != nil {
			zap.S().Named("gorm").Infoln(result.Error.Error())
			return nil, result.Error
		}

		zap.S().Named("gorm").Infof("PostgreSQL information: '%s'", minorVersion)
	}

	return newDB, nil
}

// InitDBWithRetry keeps trying while the database container is still starting.
func InitDBWithRetry(cfg *config.Config, attempts int, wait time.Duration) (*gorm.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := InitDB(cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err
		zap.S().Named("gorm").Warnw("database not ready", "attempt", attempt, "max_attempts", attempts, "error", err)
		if attempt < attempts {
			time.Sleep(wait)
		}
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempts, lastErr)
}

func sqliteDSN(name string) string {
	if strings.Contains(name, "_busy_timeout") {
		return name
	}
	if strings.Contains(name, "?") {
		return name + "&" + sqliteBusyTimeout
	}
	return name + "?" + sqliteBusyTimeout
}
