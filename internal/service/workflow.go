package service

import (
	"context"
	"errors"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/orthanc"
	"github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"go.uber.org/zap"
)

// StudyVerifier tells whether a study still exists in the upstream archive.
// It must answer false only when the archive positively reports the study as gone.
type StudyVerifier interface {
	StudyExists(ctx context.Context, studyID string) (bool, error)
}

type WorkflowService struct {
	store    store.Store
	verifier StudyVerifier
}

func NewWorkflowService(s store.Store, verifier StudyVerifier) *WorkflowService {
	return &WorkflowService{store: s, verifier: verifier}
}

// List returns the newest studies created in the last hours, minus the ones deleted upstream.
// The limit applies before the upstream filter.
func (w *WorkflowService) List(ctx context.Context, hours, limit int) (model.StudyWorkflowList, error) {
	workflows, err := w.store.Workflow().List(ctx,
		store.NewWorkflowQueryFilter().CreatedSince(windowStart(hours)),
		store.NewWorkflowQueryOptions().WithSortOrder(store.SortByCreatedTimeDesc).WithLimit(limit),
	)
	if err != nil {
		return nil, err
	}

	return filterExisting(ctx, w.verifier, workflows), nil
}

func (w *WorkflowService) Get(ctx context.Context, studyID string) (*model.StudyWorkflow, error) {
	workflow, err := w.store.Workflow().Get(ctx, studyID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrStudyNotFound(studyID)
		}
		return nil, err
	}
	return workflow, nil
}

// filterExisting makes one existence call per study. Studies are dropped only when the
// archive answers that they are gone; any other failure keeps them.
func filterExisting(ctx context.Context, verifier StudyVerifier, workflows model.StudyWorkflowList) model.StudyWorkflowList {
	existing := make(model.StudyWorkflowList, 0, len(workflows))
	for _, workflow := range workflows {
		checkCtx, cancel := context.WithTimeout(ctx, orthanc.ExistenceTimeout)
		exists, err := verifier.StudyExists(checkCtx, workflow.StudyID)
		cancel()

		if err != nil {
			zap.S().Named("workflow_service").Debugw("existence check failed, keeping study", "study_id", workflow.StudyID, "error", err)
			existing = append(existing, workflow)
			continue
		}
		if exists {
			existing = append(existing, workflow)
		}
	}
	return existing
}

func windowStart(hours int) time.Time {
	return time.Now().Add(-time.Duration(hours) * time.Hour)
}
