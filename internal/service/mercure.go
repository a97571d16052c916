package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/bookkeeper"
	"github.com/aide-monitoring/workflow-tracker/internal/events"
	"github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"go.uber.org/zap"
)

const (
	mercureNotConfigured    = "Mercure integration not configured"
	bookkeeperNotConfigured = "Bookkeeper not configured. Set BOOKKEEPER_DB_HOST/PASS environment variables."

	enrichEventLimit = 10
)

type MercureStatus struct {
	Available bool
	Message   string
}

// MercureStudy is everything Bookkeeper knows about one study.
type MercureStudy struct {
	StudyUID   string
	Series     []bookkeeper.Series
	Tasks      []bookkeeper.Task
	Events     []bookkeeper.TaskEvent
	Processing bookkeeper.Processing
}

type RecentMercureStudy struct {
	bookkeeper.RecentStudy
	Status  string
	HasTask bool
}

type MercureEnrichment struct {
	StudyID     string
	StudyUID    string
	InMercure   bool
	ReceivedAt  *time.Time
	SeriesCount int64
	Events      []bookkeeper.TaskEvent
	Outcome     bookkeeper.Outcome
}

// MercureService answers on-demand questions about studies from the Bookkeeper database.
type MercureService struct {
	store      store.Store
	bookkeeper bookkeeper.Reader
	publisher  events.Publisher
}

func NewMercureService(s store.Store, reader bookkeeper.Reader, publisher events.Publisher) *MercureService {
	return &MercureService{store: s, bookkeeper: reader, publisher: publisher}
}

func (m *MercureService) Status(ctx context.Context) MercureStatus {
	if !m.bookkeeper.Configured() {
		return MercureStatus{Available: false, Message: bookkeeperNotConfigured}
	}
	if err := m.bookkeeper.Ping(ctx); err != nil {
		return MercureStatus{Available: false, Message: fmt.Sprintf("Bookkeeper DB connection failed: %s", err)}
	}
	return MercureStatus{Available: true, Message: "Bookkeeper DB connected"}
}

func (m *MercureService) Study(ctx context.Context, studyUID string) (*MercureStudy, error) {
	series, err := m.bookkeeper.StudySeries(ctx, studyUID)
	if err != nil {
		return nil, mapBookkeeperErr(err)
	}

	tasks, err := m.bookkeeper.StudyTasks(ctx, studyUID)
	if err != nil {
		return nil, mapBookkeeperErr(err)
	}

	taskIDs := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != "" {
			taskIDs = append(taskIDs, t.ID)
		}
	}

	taskEvents, err := m.bookkeeper.TaskEvents(ctx, taskIDs)
	if err != nil {
		return nil, mapBookkeeperErr(err)
	}

	return &MercureStudy{
		StudyUID:   studyUID,
		Series:     series,
		Tasks:      tasks,
		Events:     taskEvents,
		Processing: bookkeeper.Classify(tasks, taskEvents),
	}, nil
}

// Recent lists studies received by Mercure in the last hours with the status of their latest task.
func (m *MercureService) Recent(ctx context.Context, hours, limit int) ([]RecentMercureStudy, error) {
	studies, err := m.bookkeeper.RecentStudies(ctx, windowStart(hours), limit)
	if err != nil {
		return nil, mapBookkeeperErr(err)
	}

	result := make([]RecentMercureStudy, 0, len(studies))
	for _, study := range studies {
		task, err := m.bookkeeper.LatestTask(ctx, study.StudyUID)
		if err != nil {
			return nil, mapBookkeeperErr(err)
		}
		result = append(result, RecentMercureStudy{
			RecentStudy: study,
			Status:      bookkeeper.TaskStatus(task),
			HasTask:     task != nil,
		})
	}
	return result, nil
}

// Enrich reads the Bookkeeper state of a tracked study and backfills its received and
// completed timestamps when they are still unknown.
func (m *MercureService) Enrich(ctx context.Context, studyID string) (*MercureEnrichment, error) {
	workflow, err := m.store.Workflow().Get(ctx, studyID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrStudyNotCorrelated()
		}
		return nil, err
	}
	if workflow.StudyInstanceUID == nil || *workflow.StudyInstanceUID == "" {
		return nil, NewErrStudyNotCorrelated()
	}
	uid := *workflow.StudyInstanceUID

	summary, err := m.bookkeeper.StudySummary(ctx, uid)
	if err != nil {
		return nil, mapBookkeeperErr(err)
	}

	recent, err := m.bookkeeper.RecentTaskEvents(ctx, uid, enrichEventLimit)
	if err != nil {
		return nil, mapBookkeeperErr(err)
	}

	enrichment := &MercureEnrichment{
		StudyID:     studyID,
		StudyUID:    uid,
		InMercure:   summary.Count > 0,
		ReceivedAt:  summary.ReceivedAt,
		SeriesCount: summary.Count,
		Events:      recent,
		Outcome:     bookkeeper.LatestOutcome(recent),
	}

	times := model.ProcessingTimes{ReceivedAt: summary.ReceivedAt, CompletedAt: enrichment.Outcome.CompletedAt}
	if !times.Empty() {
		updated, err := m.store.Workflow().EnrichProcessing(ctx, studyID, times)
		if err != nil {
			return nil, err
		}
		if updated {
			m.publisher.Publish(ctx, events.StudyEnrichedKind, events.StudyEnrichedEvent{
				StudyID:     studyID,
				StudyUID:    uid,
				ReceivedAt:  times.ReceivedAt,
				CompletedAt: times.CompletedAt,
			})
		}
	}

	return enrichment, nil
}

func mapBookkeeperErr(err error) error {
	if errors.Is(err, bookkeeper.ErrNotConfigured) {
		return NewErrNotConfigured(mercureNotConfigured)
	}
	zap.S().Named("mercure_service").Errorw("bookkeeper query failed", "error", err)
	return err
}
