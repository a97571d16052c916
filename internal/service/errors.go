package service

import (
	"fmt"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrStudyNotFound(studyID string) *ErrResourceNotFound {
	return NewErrResourceNotFound(studyID, "study")
}

// NewErrStudyNotCorrelated is returned when a study is unknown or has no StudyInstanceUID to
// look it up with in Bookkeeper.
func NewErrStudyNotCorrelated() *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("Study not found or no StudyInstanceUID")}
}

type ErrNotConfigured struct {
	error
}

func NewErrNotConfigured(message string) *ErrNotConfigured {
	return &ErrNotConfigured{fmt.Errorf("%s", message)}
}

type ErrUpstreamUnavailable struct {
	error
}

func NewErrUpstreamUnavailable(err error) *ErrUpstreamUnavailable {
	return &ErrUpstreamUnavailable{fmt.Errorf("Cannot reach Orthanc: %w", err)}
}

type ErrInvalidInterval struct {
	error
}

func NewErrInvalidInterval(interval string) *ErrInvalidInterval {
	return &ErrInvalidInterval{fmt.Errorf("invalid interval %q: expected hour or day", interval)}
}

type ErrInvalidRequest struct {
	error
}

func NewErrInvalidRequest(format string, args ...any) *ErrInvalidRequest {
	return &ErrInvalidRequest{fmt.Errorf(format, args...)}
}
