package model

import "time"

// PendingJob is a send job submitted to Orthanc whose terminal state has not been observed yet.
type PendingJob struct {
	JobID       string    `gorm:"primaryKey;column:job_id;type:VARCHAR(64)"`
	StudyID     string    `gorm:"column:study_id;type:VARCHAR(64);not null;index:idx_pending_jobs_study"`
	Destination string    `gorm:"column:destination;type:VARCHAR(32);not null"`
	QueuedAt    time.Time `gorm:"column:queued_at;index:idx_pending_jobs_queued"`
}

func (PendingJob) TableName() string {
	return "pending_jobs"
}

type PendingJobList []PendingJob
