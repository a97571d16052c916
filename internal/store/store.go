package store

import (
	"context"

	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Workflow() Workflow
	PendingJob() PendingJob
	InitialMigration(ctx context.Context) error
	ResetStudy(ctx context.Context, studyID string) (int64, error)
	Close() error
}

type DataStore struct {
	db         *gorm.DB
	workflow   Workflow
	pendingJob PendingJob
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:         db,
		workflow:   NewWorkflowStore(db),
		pendingJob: NewPendingJobStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Workflow() Workflow {
	return s.workflow
}

func (s *DataStore) PendingJob() PendingJob {
	return s.pendingJob
}

// InitialMigration creates the schema from the models. Postgres deployments run the goose
// migrations instead; this path serves sqlite and local runs.
func (s *DataStore) InitialMigration(ctx context.Context) error {
	ctx, err := s.NewTransactionContext(ctx)
	if err != nil {
		return err
	}

	if err := s.Workflow().InitialMigration(ctx); err != nil {
		_, _ = Rollback(ctx)
		return err
	}

	if err := s.PendingJob().InitialMigration(ctx); err != nil {
		_, _ = Rollback(ctx)
		return err
	}

	_, err = Commit(ctx)
	return err
}

// ResetStudy removes the study and its pending jobs in one transaction and returns
// the total number of rows deleted.
func (s *DataStore) ResetStudy(ctx context.Context, studyID string) (int64, error) {
	ctx, err := s.NewTransactionContext(ctx)
	if err != nil {
		return 0, err
	}

	jobs, err := s.PendingJob().DeleteByStudyID(ctx, studyID)
	if err != nil {
		_, _ = Rollback(ctx)
		return 0, err
	}

	workflows, err := s.Workflow().Delete(ctx, studyID)
	if err != nil {
		_, _ = Rollback(ctx)
		return 0, err
	}

	if _, err := Commit(ctx); err != nil {
		return 0, err
	}

	return jobs + workflows, nil
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
