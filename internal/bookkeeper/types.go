package bookkeeper

import (
	"encoding/json"
	"strings"
	"time"
)

// Series is a row of dicom_series.
type Series struct {
	SeriesUID         string     `db:"series_uid"`
	StudyUID          *string    `db:"study_uid"`
	ReceivedAt        *time.Time `db:"received_at"`
	PatientName       *string    `db:"tag_patientname"`
	PatientID         *string    `db:"tag_patientid"`
	StudyDescription  *string    `db:"tag_studydescription"`
	SeriesDescription *string    `db:"tag_seriesdescription"`
	Modality          *string    `db:"tag_modality"`
}

type Task struct {
	ID        string     `db:"task_id"`
	ParentID  *string    `db:"parent_id"`
	CreatedAt *time.Time `db:"created_at"`
	SeriesUID *string    `db:"series_uid"`
	StudyUID  *string    `db:"study_uid"`
	Data      *string    `db:"data"`
}

// ParsedData decodes the task's JSON data column.
func (t Task) ParsedData() TaskData {
	if t.Data == nil {
		return TaskData{Empty: true}
	}
	return ParseTaskData([]byte(*t.Data))
}

type TaskEvent struct {
	TaskID *string    `db:"task_id"`
	Time   *time.Time `db:"time"`
	Sender *string    `db:"sender"`
	Event  *string    `db:"event"`
	Target *string    `db:"target"`
	Info   *string    `db:"info"`
}

func (e TaskEvent) EventType() string {
	if e.Event == nil {
		return ""
	}
	return *e.Event
}

type RecentStudy struct {
	StudyUID         string     `db:"study_uid"`
	FirstReceived    *time.Time `db:"first_received"`
	LastReceived     *time.Time `db:"last_received"`
	SeriesCount      int64      `db:"series_count"`
	PatientName      *string    `db:"patient_name"`
	StudyDescription *string    `db:"study_description"`
}

type SeriesSummary struct {
	Count      int64
	ReceivedAt *time.Time
}

// SeriesRecord is one (study, series) pair seen by Mercure, used to rebuild lost workflows.
type SeriesRecord struct {
	StudyUID         string     `db:"study_uid"`
	SeriesUID        string     `db:"series_uid"`
	PatientName      *string    `db:"tag_patientname"`
	StudyDescription *string    `db:"tag_studydescription"`
	ReceivedTime     *time.Time `db:"received_time"`
	LastTaskTime     *time.Time `db:"last_task_time"`
}

// TaskData holds the fields of a task's data document the tracker reports on.
// Each Has* flag tells whether the key was present at all.
type TaskData struct {
	Empty          bool
	Status         string
	HasStatus      bool
	Error          *string
	HasError       bool
	DispatchTarget *string
	HasDispatch    bool
}

// ParseTaskData is lenient: malformed documents decode to an empty TaskData and
// non-string values are rendered as their JSON text.
func ParseTaskData(raw []byte) TaskData {
	var data TaskData

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || len(doc) == 0 {
		data.Empty = true
		return data
	}

	if v, ok := doc["status"]; ok {
		data.HasStatus = true
		if s := jsonText(v); s != nil {
			data.Status = *s
		}
	}

	if v, ok := doc["error"]; ok {
		data.HasError = true
		data.Error = jsonText(v)
	}

	if v, ok := doc["dispatch"]; ok {
		data.HasDispatch = true
		var dispatch struct {
			TargetName json.RawMessage `json:"target_name"`
		}
		if err := json.Unmarshal(v, &dispatch); err == nil && dispatch.TargetName != nil {
			data.DispatchTarget = jsonText(dispatch.TargetName)
		}
	}

	return data
}

func jsonText(v json.RawMessage) *string {
	trimmed := strings.TrimSpace(string(v))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return &s
	}
	return &trimmed
}
