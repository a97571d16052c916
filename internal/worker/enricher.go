package worker

import (
	"context"

	"github.com/aide-monitoring/workflow-tracker/internal/events"
	"github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"github.com/aide-monitoring/workflow-tracker/pkg/metrics"
	"go.uber.org/zap"
)

const (
	enrichmentApplied   = "applied"
	enrichmentNoData    = "no_data"
	enrichmentFailed    = "failed"
	enrichmentUnchanged = "unchanged"
)

// ProcessingTimesReader is the part of Bookkeeper the enricher reads.
type ProcessingTimesReader interface {
	Configured() bool
	ProcessingTimes(ctx context.Context, studyUID string) (model.ProcessingTimes, error)
}

// Enricher backfills Mercure processing timestamps for studies sent to the gateway.
type Enricher struct {
	store      store.Store
	bookkeeper ProcessingTimesReader
	publisher  events.Publisher
	batchSize  int
	log        *zap.SugaredLogger
}

func NewEnricher(s store.Store, bookkeeper ProcessingTimesReader, publisher events.Publisher, batchSize int) *Enricher {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Enricher{
		store:      s,
		bookkeeper: bookkeeper,
		publisher:  publisher,
		batchSize:  batchSize,
		log:        zap.S().Named("enricher"),
	}
}

// Enrich runs one cycle and returns the number of studies updated. Each study is written
// in its own transaction; a failing study is skipped and retried on the next cycle.
func (e *Enricher) Enrich(ctx context.Context) (int, error) {
	if !e.bookkeeper.Configured() {
		e.log.Debug("bookkeeper not configured, skipping enrichment cycle")
		return 0, nil
	}

	candidates, err := e.store.Workflow().ListEnrichmentCandidates(ctx, e.batchSize)
	if err != nil {
		return 0, err
	}

	enriched := 0
	for _, w := range candidates {
		ok, err := e.enrichOne(ctx, w)
		if err != nil {
			metrics.IncreaseEnrichmentsMetric(enrichmentFailed)
			e.log.Warnw("failed to enrich study", "study_id", w.StudyID, "error", err)
			continue
		}
		if ok {
			enriched++
		}
	}

	if enriched > 0 {
		e.log.Infof("enriched %d of %d studies", enriched, len(candidates))
	}
	return enriched, nil
}

func (e *Enricher) enrichOne(ctx context.Context, w model.StudyWorkflow) (bool, error) {
	uid := *w.StudyInstanceUID

	times, err := e.bookkeeper.ProcessingTimes(ctx, uid)
	if err != nil {
		return false, err
	}
	if times.Empty() {
		metrics.IncreaseEnrichmentsMetric(enrichmentNoData)
		return false, nil
	}

	txCtx, err := e.store.NewTransactionContext(ctx)
	if err != nil {
		return false, err
	}

	updated, err := e.store.Workflow().EnrichProcessing(txCtx, w.StudyID, times)
	if err != nil {
		_, _ = store.Rollback(txCtx)
		return false, err
	}

	if _, err := store.Commit(txCtx); err != nil {
		return false, err
	}

	if !updated {
		metrics.IncreaseEnrichmentsMetric(enrichmentUnchanged)
		return false, nil
	}

	metrics.IncreaseEnrichmentsMetric(enrichmentApplied)
	e.publisher.Publish(ctx, events.StudyEnrichedKind, events.StudyEnrichedEvent{
		StudyID:     w.StudyID,
		StudyUID:    uid,
		ReceivedAt:  times.ReceivedAt,
		StartedAt:   times.StartedAt,
		CompletedAt: times.CompletedAt,
	})
	return true, nil
}
