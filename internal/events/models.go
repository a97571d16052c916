package events

import "time"

// Event is the envelope handed to writers.
type Event struct {
	ID     string    `json:"id"`
	Source string    `json:"source"`
	Type   string    `json:"type"`
	Time   time.Time `json:"time"`
	Data   []byte    `json:"data"`
}

type StageRecordedEvent struct {
	StudyID     string  `json:"study_id"`
	Destination string  `json:"destination"`
	Success     bool    `json:"success"`
	Error       *string `json:"error,omitempty"`
}

type AIResultsEvent struct {
	StudyID string `json:"study_id"`
}

type JobResolvedEvent struct {
	JobID       string  `json:"job_id"`
	StudyID     string  `json:"study_id"`
	Destination string  `json:"destination"`
	Outcome     string  `json:"outcome"`
	Error       *string `json:"error,omitempty"`
}

type StudyEnrichedEvent struct {
	StudyID     string     `json:"study_id"`
	StudyUID    string     `json:"study_uid"`
	ReceivedAt  *time.Time `json:"received_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type StudyResetEvent struct {
	StudyID string `json:"study_id"`
	Deleted int64  `json:"deleted"`
}

type StudiesSyncedEvent struct {
	Synced   int      `json:"synced"`
	StudyIDs []string `json:"study_ids"`
}
