package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database   *dbConfig
	Bookkeeper *bookkeeperConfig
	Orthanc    *orthancConfig
	Upstream   *upstreamConfig
	Service    *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"workflow-db"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"workflow_tracking"`
	User     string `envconfig:"DB_USER" default:"workflow"`
	Password string `envconfig:"DB_PASS" default:"workflow123"`
}

// bookkeeperConfig points at the read-only Mercure Bookkeeper database.
// Empty Hostname and Password means the integration is not configured.
type bookkeeperConfig struct {
	Hostname string `envconfig:"BOOKKEEPER_DB_HOST" default:""`
	Port     string `envconfig:"BOOKKEEPER_DB_PORT" default:""`
	Name     string `envconfig:"BOOKKEEPER_DB_NAME" default:""`
	User     string `envconfig:"BOOKKEEPER_DB_USER" default:""`
	Password string `envconfig:"BOOKKEEPER_DB_PASS" default:""`
}

// orthancConfig is the job-status endpoint of the processing gateway.
type orthancConfig struct {
	URL      string `envconfig:"ORTHANC_URL" default:"http://orthanc:8042"`
	User     string `envconfig:"ORTHANC_USER" default:"orthanc_admin"`
	Password string `envconfig:"ORTHANC_PASS" default:""`
}

// upstreamConfig is the source-of-truth study API used for existence checks.
type upstreamConfig struct {
	URL      string `envconfig:"ORTHANC_API_URL" default:"http://172.17.0.1:9011"`
	User     string `envconfig:"ORTHANC_USERNAME" default:""`
	Password string `envconfig:"ORTHANC_PASSWORD" default:""`
}

type svcConfig struct {
	Address         string   `envconfig:"WORKFLOW_TRACKER_ADDRESS" default:":5000"`
	MetricsAddress  string   `envconfig:"WORKFLOW_TRACKER_METRICS_ADDRESS" default:":8080"`
	LogLevel        string   `envconfig:"WORKFLOW_TRACKER_LOG_LEVEL" default:"info"`
	MigrationFolder string   `envconfig:"WORKFLOW_TRACKER_MIGRATIONS_FOLDER" default:""`
	JobPollInterval int      `envconfig:"JOB_POLL_INTERVAL" default:"10"`
	EnrichInterval  int      `envconfig:"ENRICH_INTERVAL" default:"30"`
	EnrichBatchSize int      `envconfig:"ENRICH_BATCH_SIZE" default:"50"`
	NatsURL         string   `envconfig:"NATS_URL" default:""`
	EventsSubject   string   `envconfig:"WORKFLOW_EVENTS_SUBJECT" default:"workflow.events"`
	AllowedOrigins  []string `envconfig:"WORKFLOW_TRACKER_ALLOWED_ORIGINS" default:"*"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			singleConfig = nil
			return nil, err
		}
		singleConfig.Bookkeeper.applyLegacyEnv()
	}
	return singleConfig, nil
}

// NewDefault returns a configuration backed by a local SQLite file. Used by tests and dev runs.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type: "sqlite",
			Name: "workflow_tracking.db",
		},
		Bookkeeper: &bookkeeperConfig{Port: "5432", Name: "mercure", User: "mercure"},
		Orthanc:    &orthancConfig{URL: "http://localhost:8042"},
		Upstream:   &upstreamConfig{URL: "http://localhost:9011"},
		Service: &svcConfig{
			Address:         ":5000",
			MetricsAddress:  ":8080",
			LogLevel:        "info",
			JobPollInterval: 10,
			EnrichInterval:  30,
			EnrichBatchSize: 50,
			EventsSubject:   "workflow.events",
			AllowedOrigins:  []string{"*"},
		},
	}
}

// applyLegacyEnv fills unset fields from the MERCURE_DB_* variables older deployments still export.
func (b *bookkeeperConfig) applyLegacyEnv() {
	fallback := func(current *string, legacyKey, defaultValue string) {
		if *current != "" {
			return
		}
		if v, ok := os.LookupEnv(legacyKey); ok && v != "" {
			*current = v
			return
		}
		*current = defaultValue
	}

	fallback(&b.Hostname, "MERCURE_DB_HOST", "")
	fallback(&b.Port, "MERCURE_DB_PORT", "5432")
	fallback(&b.Name, "MERCURE_DB_NAME", "mercure")
	fallback(&b.User, "MERCURE_DB_USER", "mercure")
	fallback(&b.Password, "MERCURE_DB_PASS", "")
}

// Configured reports whether the Bookkeeper integration has been set up.
func (b *bookkeeperConfig) Configured() bool {
	return b != nil && (b.Hostname != "" || b.Password != "")
}

func (s *svcConfig) PollInterval() time.Duration {
	return time.Duration(s.JobPollInterval) * time.Second
}

func (s *svcConfig) EnrichmentInterval() time.Duration {
	return time.Duration(s.EnrichInterval) * time.Second
}

// String renders the config with credentials masked.
func (c *Config) String() string {
	masked := struct {
		Database   dbConfig
		Bookkeeper bookkeeperConfig
		Orthanc    orthancConfig
		Upstream   upstreamConfig
		Service    svcConfig
	}{*c.Database, *c.Bookkeeper, *c.Orthanc, *c.Upstream, *c.Service}
	masked.Database.Password = mask(masked.Database.Password)
	masked.Bookkeeper.Password = mask(masked.Bookkeeper.Password)
	masked.Orthanc.Password = mask(masked.Orthanc.Password)
	masked.Upstream.Password = mask(masked.Upstream.Password)

	val, _ := json.Marshal(masked)
	return string(val)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "*****"
}
