package bookkeeper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/config"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	applicationName  = "workflow-tracker"
	statementTimeout = 10 * time.Second
)

// ErrNotConfigured is returned by every query when no Bookkeeper connection was configured.
var ErrNotConfigured = errors.New("bookkeeper not configured")

// Reader is the read-only view of the Mercure Bookkeeper database.
type Reader interface {
	Configured() bool
	Ping(ctx context.Context) error
	ProcessingTimes(ctx context.Context, studyUID string) (model.ProcessingTimes, error)
	StudySeries(ctx context.Context, studyUID string) ([]Series, error)
	StudyTasks(ctx context.Context, studyUID string) ([]Task, error)
	TaskEvents(ctx context.Context, taskIDs []string) ([]TaskEvent, error)
	RecentStudies(ctx context.Context, since time.Time, limit int) ([]RecentStudy, error)
	LatestTask(ctx context.Context, studyUID string) (*Task, error)
	StudySummary(ctx context.Context, studyUID string) (SeriesSummary, error)
	RecentTaskEvents(ctx context.Context, studyUID string, limit int) ([]TaskEvent, error)
	AllSeries(ctx context.Context) ([]SeriesRecord, error)
}

type Client struct {
	pool *pgxpool.Pool
}

var _ Reader = (*Client)(nil)

// New builds the pool without dialing; connections are opened on first use so an unreachable
// Bookkeeper never blocks boot. A missing configuration yields a client that answers ErrNotConfigured.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if !cfg.Bookkeeper.Configured() {
		zap.S().Named("bookkeeper").Info("bookkeeper not configured, mercure enrichment disabled")
		return &Client{}, nil
	}

	dsn := connString(
		"host", cfg.Bookkeeper.Hostname,
		"user", cfg.Bookkeeper.User,
		"password", cfg.Bookkeeper.Password,
		"port", cfg.Bookkeeper.Port,
		"dbname", cfg.Bookkeeper.Name,
	)

	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse bookkeeper config")
	}

	pc.MaxConns = 4
	pc.MinConns = 0
	pc.MaxConnLifetime = time.Hour
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.ConnConfig.ConnectTimeout = 5 * time.Second
	pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", statementTimeout.Milliseconds())
	pc.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bookkeeper pool")
	}

	zap.S().Named("bookkeeper").Infof("bookkeeper configured at %s:%s/%s", cfg.Bookkeeper.Hostname, cfg.Bookkeeper.Port, cfg.Bookkeeper.Name)
	return &Client{pool: pool}, nil
}

// connString renders keyword/value pairs as a libpq connection string. Empty values are
// left out so pgx falls back to its defaults, the rest are quoted.
func connString(pairs ...string) string {
	quote := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s='%s'", pairs[i], quote.Replace(pairs[i+1])))
	}
	return strings.Join(parts, " ")
}

func (c *Client) Configured() bool {
	return c != nil && c.pool != nil
}

func (c *Client) Close() {
	if c.Configured() {
		c.pool.Close()
	}
}

func (c *Client) Ping(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	return c.pool.Ping(ctx)
}

// ProcessingTimes returns the earliest received series and the earliest PROCESS_BEGIN and
// PROCESS_COMPLETE task events for the study. Tasks are matched by study uid or by any of its series.
func (c *Client) ProcessingTimes(ctx context.Context, studyUID string) (model.ProcessingTimes, error) {
	var times model.ProcessingTimes
	if !c.Configured() {
		return times, ErrNotConfigured
	}

	if err := c.pool.QueryRow(ctx, receivedAtQuery, studyUID).Scan(&times.ReceivedAt); err != nil {
		return times, errors.Wrapf(err, "failed to read received time of %s", studyUID)
	}

	if err := c.pool.QueryRow(ctx, processingTimesQuery, studyUID).Scan(&times.StartedAt, &times.CompletedAt); err != nil {
		return times, errors.Wrapf(err, "failed to read processing events of %s", studyUID)
	}

	return times, nil
}

func (c *Client) StudySeries(ctx context.Context, studyUID string) ([]Series, error) {
	return collect[Series](ctx, c, studySeriesQuery, studyUID)
}

func (c *Client) StudyTasks(ctx context.Context, studyUID string) ([]Task, error) {
	return collect[Task](ctx, c, studyTasksQuery, studyUID)
}

// TaskEvents returns the events of the given tasks in ascending time order.
func (c *Client) TaskEvents(ctx context.Context, taskIDs []string) ([]TaskEvent, error) {
	if len(taskIDs) == 0 {
		if !c.Configured() {
			return nil, ErrNotConfigured
		}
		return []TaskEvent{}, nil
	}
	return collect[TaskEvent](ctx, c, taskEventsQuery, taskIDs)
}

func (c *Client) RecentStudies(ctx context.Context, since time.Time, limit int) ([]RecentStudy, error) {
	return collect[RecentStudy](ctx, c, recentStudiesQuery, since, limit)
}

// LatestTask returns nil without error when the study has no task.
func (c *Client) LatestTask(ctx context.Context, studyUID string) (*Task, error) {
	tasks, err := collect[Task](ctx, c, latestTaskQuery, studyUID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

func (c *Client) StudySummary(ctx context.Context, studyUID string) (SeriesSummary, error) {
	var summary SeriesSummary
	if !c.Configured() {
		return summary, ErrNotConfigured
	}
	if err := c.pool.QueryRow(ctx, studySummaryQuery, studyUID).Scan(&summary.Count, &summary.ReceivedAt); err != nil {
		return summary, errors.Wrapf(err, "failed to summarize series of %s", studyUID)
	}
	return summary, nil
}

// RecentTaskEvents returns the newest events first.
func (c *Client) RecentTaskEvents(ctx context.Context, studyUID string, limit int) ([]TaskEvent, error) {
	return collect[TaskEvent](ctx, c, recentTaskEventsQuery, studyUID, limit)
}

// AllSeries lists every (study, series) pair with the time of the study's last task.
func (c *Client) AllSeries(ctx context.Context) ([]SeriesRecord, error) {
	return collect[SeriesRecord](ctx, c, allSeriesQuery)
}

func collect[T any](ctx context.Context, c *Client, query string, args ...any) ([]T, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "bookkeeper query failed")
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, errors.Wrap(err, "failed to read bookkeeper rows")
	}
	return items, nil
}
