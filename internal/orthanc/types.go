package orthanc

import (
	"encoding/json"
	"strings"
)

type JobState string

const (
	JobStateSuccess JobState = "Success"
	JobStateFailure JobState = "Failure"
	JobStateRunning JobState = "Running"
	JobStatePending JobState = "Pending"
	JobStatePaused  JobState = "Paused"
)

// InProgress reports the states a job can leave on its own.
func (s JobState) InProgress() bool {
	switch s {
	case JobStateRunning, JobStatePending, JobStatePaused:
		return true
	}
	return false
}

const unknownError = "Unknown error"

// Job is the subset of GET /jobs/{id} the tracker reads.
type Job struct {
	ID               string          `json:"ID"`
	Type             string          `json:"Type"`
	State            JobState        `json:"State"`
	ErrorCode        json.RawMessage `json:"ErrorCode,omitempty"`
	ErrorDescription string          `json:"ErrorDescription,omitempty"`
}

// ErrorMessage prefers the description, then the code, and never returns an empty string.
func (j Job) ErrorMessage() string {
	if j.ErrorDescription != "" {
		return j.ErrorDescription
	}

	code := strings.Trim(strings.TrimSpace(string(j.ErrorCode)), `"`)
	switch code {
	case "", "0", "null", "false":
		return unknownError
	}
	return code
}

type Study struct {
	ID                   string      `json:"ID"`
	MainDicomTags        StudyTags   `json:"MainDicomTags"`
	PatientMainDicomTags PatientTags `json:"PatientMainDicomTags"`
	Series               []string    `json:"Series,omitempty"`
}

type StudyTags struct {
	StudyInstanceUID string `json:"StudyInstanceUID"`
	StudyDescription string `json:"StudyDescription,omitempty"`
	StudyDate        string `json:"StudyDate,omitempty"`
}

type PatientTags struct {
	PatientName string `json:"PatientName,omitempty"`
	PatientID   string `json:"PatientID,omitempty"`
}
