package store

import (
	"time"

	"gorm.io/gorm"
)

type SortOrder int

const (
	Unsorted SortOrder = iota
	SortByCreatedTime
	SortByCreatedTimeDesc
	SortByUpdatedTime
	SortByQueuedTime
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type WorkflowQueryFilter BaseQuerier

func NewWorkflowQueryFilter() *WorkflowQueryFilter {
	return &WorkflowQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

// CreatedSince keeps studies created strictly after t.
func (f *WorkflowQueryFilter) CreatedSince(t time.Time) *WorkflowQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("created_at > ?", t.UTC())
	})
	return f
}

// NeedsEnrichment selects studies sent to Mercure that still miss a processing timestamp
// and carry a correlation UID to look them up with.
func (f *WorkflowQueryFilter) NeedsEnrichment() *WorkflowQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("mercure_sent_at IS NOT NULL").
			Where("study_instance_uid IS NOT NULL AND study_instance_uid <> ''").
			Where("mercure_received_at IS NULL OR mercure_processing_started_at IS NULL OR mercure_processing_completed_at IS NULL")
	})
	return f
}

type WorkflowQueryOptions BaseQuerier

func NewWorkflowQueryOptions() *WorkflowQueryOptions {
	return &WorkflowQueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (o *WorkflowQueryOptions) WithLimit(limit int) *WorkflowQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Limit(limit)
	})
	return o
}

func (o *WorkflowQueryOptions) WithSortOrder(sort SortOrder) *WorkflowQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return applySortOrder(tx, sort)
	})
	return o
}

type PendingJobQueryFilter BaseQuerier

func NewPendingJobQueryFilter() *PendingJobQueryFilter {
	return &PendingJobQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *PendingJobQueryFilter) ByStudyID(studyID string) *PendingJobQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("study_id = ?", studyID)
	})
	return f
}

func applySortOrder(tx *gorm.DB, sort SortOrder) *gorm.DB {
	switch sort {
	case SortByCreatedTime:
		return tx.Order("created_at")
	case SortByCreatedTimeDesc:
		return tx.Order("created_at DESC")
	case SortByUpdatedTime:
		return tx.Order("updated_at")
	case SortByQueuedTime:
		return tx.Order("queued_at")
	default:
		return tx
	}
}
