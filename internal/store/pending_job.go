package store

import (
	"context"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PendingJob interface {
	Register(ctx context.Context, job model.PendingJob) error
	List(ctx context.Context, filter *PendingJobQueryFilter) (model.PendingJobList, error)
	Delete(ctx context.Context, jobID string) error
	DeleteByStudyID(ctx context.Context, studyID string) (int64, error)
	Count(ctx context.Context) (int64, error)
	InitialMigration(ctx context.Context) error
}

type pendingJobStore struct {
	db *gorm.DB
}

var _ PendingJob = (*pendingJobStore)(nil)

func NewPendingJobStore(db *gorm.DB) PendingJob {
	return &pendingJobStore{db: db}
}

func (p *pendingJobStore) InitialMigration(ctx context.Context) error {
	return p.getDB(ctx).AutoMigrate(&model.PendingJob{})
}

// Register queues the job. Registering the same job id again refreshes its study,
// destination and queue time.
func (p *pendingJobStore) Register(ctx context.Context, job model.PendingJob) error {
	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now()
	}
	job.QueuedAt = job.QueuedAt.UTC()

	return p.getDB(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"study_id", "destination", "queued_at"}),
	}).Create(&job).Error
}

// List returns jobs oldest first.
func (p *pendingJobStore) List(ctx context.Context, filter *PendingJobQueryFilter) (model.PendingJobList, error) {
	var jobs model.PendingJobList
	tx := p.getDB(ctx).WithContext(ctx)

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if err := applySortOrder(tx, SortByQueuedTime).Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (p *pendingJobStore) Delete(ctx context.Context, jobID string) error {
	return p.getDB(ctx).WithContext(ctx).Where("job_id = ?", jobID).Delete(&model.PendingJob{}).Error
}

func (p *pendingJobStore) DeleteByStudyID(ctx context.Context, studyID string) (int64, error) {
	tx := p.getDB(ctx).WithContext(ctx).Where("study_id = ?", studyID).Delete(&model.PendingJob{})
	return tx.RowsAffected, tx.Error
}

func (p *pendingJobStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := p.getDB(ctx).WithContext(ctx).Model(&model.PendingJob{}).Count(&count).Error
	return count, err
}

func (p *pendingJobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return p.db
}
