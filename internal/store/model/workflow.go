package model

import (
	"encoding/json"
	"time"
)

// StageOutcome is the send record of one pipeline hop. Success is tri-state:
// nil until a terminal outcome has been observed.
type StageOutcome struct {
	SentAt  *time.Time `gorm:"column:sent_at"`
	Success *bool      `gorm:"column:send_success"`
	Error   *string    `gorm:"column:send_error;type:TEXT"`
}

type StageStatus string

const (
	StageStatusPending  StageStatus = "pending"
	StageStatusSuccess  StageStatus = "success"
	StageStatusFailed   StageStatus = "failed"
	StageStatusReceived StageStatus = "received"
	StageStatusWaiting  StageStatus = "waiting"
)

func (s StageOutcome) Status() StageStatus {
	switch {
	case s.Success == nil:
		return StageStatusPending
	case *s.Success:
		return StageStatusSuccess
	default:
		return StageStatusFailed
	}
}

func (s StageOutcome) Succeeded() bool {
	return s.Success != nil && *s.Success
}

func (s StageOutcome) Failed() bool {
	return s.Success != nil && !*s.Success
}

type StudyWorkflow struct {
	StudyID          string  `gorm:"primaryKey;column:study_id;type:VARCHAR(64)"`
	StudyInstanceUID *string `gorm:"column:study_instance_uid;type:VARCHAR(128)"`
	PatientName      *string `gorm:"column:patient_name;type:TEXT"`
	StudyDescription *string `gorm:"column:study_description;type:TEXT"`

	Mercure StageOutcome `gorm:"embedded;embeddedPrefix:mercure_"`

	MercureReceivedAt            *time.Time `gorm:"column:mercure_received_at"`
	MercureProcessingStartedAt   *time.Time `gorm:"column:mercure_processing_started_at"`
	MercureProcessingCompletedAt *time.Time `gorm:"column:mercure_processing_completed_at"`

	AIResultsReceivedAt *time.Time `gorm:"column:ai_results_received_at"`
	AIResultsReceived   bool       `gorm:"column:ai_results_received;not null;default:false"`

	Lpch    StageOutcome `gorm:"embedded;embeddedPrefix:lpch_"`
	Lpcht   StageOutcome `gorm:"embedded;embeddedPrefix:lpcht_"`
	Modlink StageOutcome `gorm:"embedded;embeddedPrefix:modlink_"`

	CreatedAt time.Time `gorm:"column:created_at;index:idx_workflows_created"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (StudyWorkflow) TableName() string {
	return "study_workflows"
}

type StudyWorkflowList []StudyWorkflow

func (w StudyWorkflow) String() string {
	val, _ := json.Marshal(w)
	return string(val)
}

// Stage returns the send record for d.
func (w StudyWorkflow) Stage(d Destination) StageOutcome {
	switch d {
	case DestinationMercure:
		return w.Mercure
	case DestinationLpch:
		return w.Lpch
	case DestinationLpcht:
		return w.Lpcht
	case DestinationModlink:
		return w.Modlink
	}
	return StageOutcome{}
}

func (w StudyWorkflow) AIResultsStatus() StageStatus {
	if w.AIResultsReceived {
		return StageStatusReceived
	}
	return StageStatusWaiting
}

// FullyComplete requires AI results and a successful send to every routing destination.
func (w StudyWorkflow) FullyComplete() bool {
	if !w.AIResultsReceived {
		return false
	}
	for _, d := range RoutingDestinations {
		if !w.Stage(d).Succeeded() {
			return false
		}
	}
	return true
}

// NeedsEnrichment is true while any processing timestamp is still unknown.
func (w StudyWorkflow) NeedsEnrichment() bool {
	return w.MercureReceivedAt == nil || w.MercureProcessingStartedAt == nil || w.MercureProcessingCompletedAt == nil
}

// ProcessingTimes are the Mercure-side timestamps recovered from Bookkeeper.
type ProcessingTimes struct {
	ReceivedAt  *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func (p ProcessingTimes) Empty() bool {
	return p.ReceivedAt == nil && p.StartedAt == nil && p.CompletedAt == nil
}
