package service

import (
	"context"
	"strings"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/events"
	"github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"go.uber.org/zap"
)

type StartForm struct {
	StudyID          string
	StudyInstanceUID *string
	PatientName      *string
	StudyDescription *string
}

type OutcomeForm struct {
	StudyID     string
	Destination string
	Success     bool
	Error       *string
}

type JobForm struct {
	JobID       string
	StudyID     string
	Destination string
}

// TrackingService applies the events reported by the pipeline instrumentation.
type TrackingService struct {
	store     store.Store
	publisher events.Publisher
}

func NewTrackingService(s store.Store, publisher events.Publisher) *TrackingService {
	return &TrackingService{store: s, publisher: publisher}
}

func (t *TrackingService) Start(ctx context.Context, form StartForm) error {
	return t.store.Workflow().Start(ctx, model.StudyWorkflow{
		StudyID:          form.StudyID,
		StudyInstanceUID: nonEmpty(form.StudyInstanceUID),
		PatientName:      nonEmpty(form.PatientName),
		StudyDescription: nonEmpty(form.StudyDescription),
	})
}

// RecordOutcome stores the latest outcome reported for a destination. Unknown destinations
// return *model.ErrUnknownDestination. Reports for untracked studies are accepted and dropped.
func (t *TrackingService) RecordOutcome(ctx context.Context, form OutcomeForm) error {
	dest, err := model.ParseDestination(form.Destination)
	if err != nil {
		return err
	}

	updated, err := t.store.Workflow().RecordOutcome(ctx, form.StudyID, dest, store.Outcome{
		Success: form.Success,
		Error:   form.Error,
		At:      time.Now(),
	})
	if err != nil {
		return err
	}
	if !updated {
		zap.S().Named("tracking_service").Debugw("outcome reported for untracked study", "study_id", form.StudyID, "destination", dest)
		return nil
	}

	t.publisher.Publish(ctx, events.StageRecordedKind, events.StageRecordedEvent{
		StudyID:     form.StudyID,
		Destination: dest.String(),
		Success:     form.Success,
		Error:       form.Error,
	})
	return nil
}

func (t *TrackingService) MarkAIResults(ctx context.Context, studyID string) error {
	updated, err := t.store.Workflow().MarkAIResults(ctx, studyID, time.Now())
	if err != nil {
		return err
	}
	if updated {
		t.publisher.Publish(ctx, events.AIResultsKind, events.AIResultsEvent{StudyID: studyID})
	}
	return nil
}

// RegisterJob queues a gateway job for the poller. Destinations are stored upper-cased.
func (t *TrackingService) RegisterJob(ctx context.Context, form JobForm) error {
	err := t.store.PendingJob().Register(ctx, model.PendingJob{
		JobID:       form.JobID,
		StudyID:     form.StudyID,
		Destination: strings.ToUpper(strings.TrimSpace(form.Destination)),
	})
	if err != nil {
		return err
	}

	zap.S().Named("tracking_service").Infow("registered pending job", "job_id", form.JobID, "study_id", form.StudyID, "destination", form.Destination)
	return nil
}

// Reset forgets the study and its pending jobs so it can go through the pipeline again.
func (t *TrackingService) Reset(ctx context.Context, studyID string) (int64, error) {
	deleted, err := t.store.ResetStudy(ctx, studyID)
	if err != nil {
		return 0, err
	}

	zap.S().Named("tracking_service").Infow("study reset", "study_id", studyID, "deleted", deleted)
	t.publisher.Publish(ctx, events.StudyResetKind, events.StudyResetEvent{StudyID: studyID, Deleted: deleted})
	return deleted, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
