package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outcome is a terminal result observed for one destination.
type Outcome struct {
	Success bool
	Error   *string
	At      time.Time
	// KeepFirstSentAt leaves an existing sent_at untouched. The poller resolves jobs long after
	// they were queued and must not move the timestamp of the original send.
	KeepFirstSentAt bool
}

type Workflow interface {
	Start(ctx context.Context, workflow model.StudyWorkflow) error
	RecordOutcome(ctx context.Context, studyID string, destination model.Destination, outcome Outcome) (bool, error)
	MarkAIResults(ctx context.Context, studyID string, at time.Time) (bool, error)
	EnrichProcessing(ctx context.Context, studyID string, times model.ProcessingTimes) (bool, error)
	CreateIfAbsent(ctx context.Context, workflow model.StudyWorkflow) (bool, error)
	Get(ctx context.Context, studyID string) (*model.StudyWorkflow, error)
	Exists(ctx context.Context, studyID string) (bool, error)
	List(ctx context.Context, filter *WorkflowQueryFilter, opts *WorkflowQueryOptions) (model.StudyWorkflowList, error)
	ListEnrichmentCandidates(ctx context.Context, limit int) (model.StudyWorkflowList, error)
	Delete(ctx context.Context, studyID string) (int64, error)
	Count(ctx context.Context) (int64, error)
	InitialMigration(ctx context.Context) error
}

type WorkflowStore struct {
	db *gorm.DB
}

// Make sure we conform to Workflow interface
var _ Workflow = (*WorkflowStore)(nil)

func NewWorkflowStore(db *gorm.DB) Workflow {
	return &WorkflowStore{db: db}
}

func (w *WorkflowStore) InitialMigration(ctx context.Context) error {
	return w.getDB(ctx).AutoMigrate(&model.StudyWorkflow{})
}

// Start inserts the study or, when it is already tracked, fills only the descriptive fields
// that are still null. A restart never erases history.
func (w *WorkflowStore) Start(ctx context.Context, workflow model.StudyWorkflow) error {
	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	tx := w.getDB(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "study_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"study_instance_uid": gorm.Expr("COALESCE(excluded.study_instance_uid, study_workflows.study_instance_uid)"),
			"patient_name":       gorm.Expr("COALESCE(excluded.patient_name, study_workflows.patient_name)"),
			"study_description":  gorm.Expr("COALESCE(excluded.study_description, study_workflows.study_description)"),
			"updated_at":         now,
		}),
	}).Create(&workflow)

	return tx.Error
}

// RecordOutcome overwrites the success and error of the destination with the latest known
// outcome. The returned bool is false when the study is not tracked.
func (w *WorkflowStore) RecordOutcome(ctx context.Context, studyID string, destination model.Destination, outcome Outcome) (bool, error) {
	prefix := destination.ColumnPrefix()
	at := outcome.At.UTC()

	var sentAt interface{} = at
	if outcome.KeepFirstSentAt {
		sentAt = gorm.Expr(fmt.Sprintf("COALESCE(%s_sent_at, ?)", prefix), at)
	}

	updates := map[string]interface{}{
		prefix + "_sent_at":      sentAt,
		prefix + "_send_success": outcome.Success,
		prefix + "_send_error":   outcome.Error,
		"updated_at":             time.Now().UTC(),
	}

	return w.update(ctx, studyID, updates)
}

// MarkAIResults records that AI results came back. Results imply Mercure received the study,
// so the gateway send is marked successful as well, covering sends the poller never resolved.
func (w *WorkflowStore) MarkAIResults(ctx context.Context, studyID string, at time.Time) (bool, error) {
	at = at.UTC()
	updates := map[string]interface{}{
		"ai_results_received":    true,
		"ai_results_received_at": gorm.Expr("COALESCE(ai_results_received_at, ?)", at),
		"mercure_sent_at":        gorm.Expr("COALESCE(mercure_sent_at, ?)", at),
		"mercure_send_success":   true,
		"updated_at":             time.Now().UTC(),
	}

	return w.update(ctx, studyID, updates)
}

// EnrichProcessing is first-write-wins: each timestamp is only set while it is still null.
func (w *WorkflowStore) EnrichProcessing(ctx context.Context, studyID string, times model.ProcessingTimes) (bool, error) {
	updates := map[string]interface{}{
		"mercure_received_at":             gorm.Expr("COALESCE(mercure_received_at, ?)", utcOrNil(times.ReceivedAt)),
		"mercure_processing_started_at":   gorm.Expr("COALESCE(mercure_processing_started_at, ?)", utcOrNil(times.StartedAt)),
		"mercure_processing_completed_at": gorm.Expr("COALESCE(mercure_processing_completed_at, ?)", utcOrNil(times.CompletedAt)),
		"updated_at":                      time.Now().UTC(),
	}

	return w.update(ctx, studyID, updates)
}

// CreateIfAbsent inserts the workflow unless the study is already tracked.
func (w *WorkflowStore) CreateIfAbsent(ctx context.Context, workflow model.StudyWorkflow) (bool, error) {
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = time.Now()
	}
	if workflow.UpdatedAt.IsZero() {
		workflow.UpdatedAt = workflow.CreatedAt
	}
	workflow.CreatedAt = workflow.CreatedAt.UTC()
	workflow.UpdatedAt = workflow.UpdatedAt.UTC()

	tx := w.getDB(ctx).WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&workflow)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (w *WorkflowStore) Get(ctx context.Context, studyID string) (*model.StudyWorkflow, error) {
	var workflow model.StudyWorkflow
	if err := w.getDB(ctx).WithContext(ctx).First(&workflow, "study_id = ?", studyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &workflow, nil
}

func (w *WorkflowStore) Exists(ctx context.Context, studyID string) (bool, error) {
	var count int64
	if err := w.getDB(ctx).WithContext(ctx).Model(&model.StudyWorkflow{}).Where("study_id = ?", studyID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (w *WorkflowStore) List(ctx context.Context, filter *WorkflowQueryFilter, opts *WorkflowQueryOptions) (model.StudyWorkflowList, error) {
	var workflows model.StudyWorkflowList
	tx := w.getDB(ctx).WithContext(ctx)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if err := tx.Model(&workflows).Find(&workflows).Error; err != nil {
		return nil, err
	}

	return workflows, nil
}

// ListEnrichmentCandidates returns the newest studies still missing a processing timestamp.
func (w *WorkflowStore) ListEnrichmentCandidates(ctx context.Context, limit int) (model.StudyWorkflowList, error) {
	return w.List(ctx,
		NewWorkflowQueryFilter().NeedsEnrichment(),
		NewWorkflowQueryOptions().WithSortOrder(SortByCreatedTimeDesc).WithLimit(limit),
	)
}

func (w *WorkflowStore) Delete(ctx context.Context, studyID string) (int64, error) {
	tx := w.getDB(ctx).WithContext(ctx).Where("study_id = ?", studyID).Delete(&model.StudyWorkflow{})
	return tx.RowsAffected, tx.Error
}

func (w *WorkflowStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := w.getDB(ctx).WithContext(ctx).Model(&model.StudyWorkflow{}).Count(&count).Error
	return count, err
}

func (w *WorkflowStore) update(ctx context.Context, studyID string, updates map[string]interface{}) (bool, error) {
	tx := w.getDB(ctx).WithContext(ctx).Model(&model.StudyWorkflow{}).Where("study_id = ?", studyID).Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (w *WorkflowStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return w.db
}

func utcOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
