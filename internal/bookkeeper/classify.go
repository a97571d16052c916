package bookkeeper

import (
	"strings"
	"time"
)

type ProcessingStatus string

const (
	ProcessingUnknown   ProcessingStatus = "unknown"
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
)

type eventClass int

const (
	classNone eventClass = iota
	classStart
	classEnd
	classFailure
)

// classificationRules are evaluated in order against the lower-cased event type; the first rule
// with a matching substring decides the class of that event.
var classificationRules = []struct {
	substrings []string
	class      eventClass
}{
	{substrings: []string{"received"}, class: classStart},
	{substrings: []string{"complete", "dispatch"}, class: classEnd},
	{substrings: []string{"error", "fail"}, class: classFailure},
}

func classifyEvent(eventType string) eventClass {
	return classify(eventType, false)
}

func classifyTerminal(eventType string) eventClass {
	return classify(eventType, true)
}

func classify(eventType string, terminalOnly bool) eventClass {
	lower := strings.ToLower(eventType)
	for _, rule := range classificationRules {
		if terminalOnly && rule.class == classStart {
			continue
		}
		for _, sub := range rule.substrings {
			if strings.Contains(lower, sub) {
				return rule.class
			}
		}
	}
	return classNone
}

// Processing is the status of a study inside Mercure derived from its tasks and events.
type Processing struct {
	Status          string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	DurationSeconds *float64
	Error           *string
	DispatchTarget  *string
}

// Classify folds task data and then events, both in ascending time order. Every match
// overwrites the previous one, so the last matching event of a class wins.
func Classify(tasks []Task, events []TaskEvent) Processing {
	p := Processing{Status: string(ProcessingUnknown)}

	for _, task := range tasks {
		data := task.ParsedData()
		if data.HasStatus {
			p.Status = data.Status
		}
		if data.HasError {
			p.Error = data.Error
		}
		if data.HasDispatch {
			p.DispatchTarget = data.DispatchTarget
		}
	}

	for _, event := range events {
		switch classifyEvent(event.EventType()) {
		case classStart:
			p.StartedAt = event.Time
		case classEnd:
			p.CompletedAt = event.Time
			p.Status = string(ProcessingCompleted)
		case classFailure:
			p.Status = string(ProcessingFailed)
			p.Error = event.Info
		}
	}

	if p.StartedAt != nil && p.CompletedAt != nil {
		d := p.CompletedAt.Sub(*p.StartedAt).Seconds()
		p.DurationSeconds = &d
	}

	return p
}

// Outcome is the latest terminal signal among a study's recent events.
type Outcome struct {
	Completed   bool
	CompletedAt *time.Time
	Failed      bool
	Error       *string
}

// LatestOutcome scans events newest first and stops at the first completion or failure.
// The start rule does not take part.
func LatestOutcome(eventsNewestFirst []TaskEvent) Outcome {
	var o Outcome
	for _, event := range eventsNewestFirst {
		switch classifyTerminal(event.EventType()) {
		case classEnd:
			o.Completed = true
			o.CompletedAt = event.Time
			return o
		case classFailure:
			o.Failed = true
			o.Error = event.Info
			return o
		}
	}
	return o
}

// TaskStatus is the status reported for a study's most recent task: "received" without a task,
// "processing" when the task carries no status.
func TaskStatus(task *Task) string {
	if task == nil {
		return "received"
	}
	data := task.ParsedData()
	if data.Empty {
		return "received"
	}
	if !data.HasStatus {
		return "processing"
	}
	return data.Status
}
