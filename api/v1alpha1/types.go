package v1alpha1

// Tracking requests sent by the pipeline instrumentation.

type TrackStartRequest struct {
	StudyID          string  `json:"study_id" validate:"required"`
	StudyInstanceUID *string `json:"study_instance_uid,omitempty"`
	PatientName      *string `json:"patient_name,omitempty"`
	StudyDescription *string `json:"study_description,omitempty"`
}

type TrackDestinationRequest struct {
	StudyID     string  `json:"study_id" validate:"required"`
	Destination string  `json:"destination" validate:"required,destination"`
	Success     *bool   `json:"success" validate:"required"`
	Error       *string `json:"error,omitempty"`
}

type TrackMercureSentRequest struct {
	StudyID string  `json:"study_id" validate:"required"`
	Success *bool   `json:"success" validate:"required"`
	Error   *string `json:"error,omitempty"`
}

type TrackAIResultsRequest struct {
	StudyID string `json:"study_id" validate:"required"`
}

type TrackJobRequest struct {
	JobID       string `json:"job_id" validate:"required"`
	StudyID     string `json:"study_id" validate:"required"`
	Destination string `json:"destination" validate:"required,destination"`
}

type TrackResetRequest struct {
	StudyID string `json:"study_id" validate:"required"`
}

type OkResponse struct {
	Ok      bool    `json:"ok"`
	Message *string `json:"message,omitempty"`
}

type ResetResponse struct {
	Ok      bool  `json:"ok"`
	Deleted int64 `json:"deleted"`
}

type Error struct {
	Error string `json:"error"`
}

type Health struct {
	Status string `json:"status"`
}

// Workflows

type StageView struct {
	Status    string  `json:"status"`
	Timestamp *string `json:"timestamp,omitempty"`
	Error     *string `json:"error,omitempty"`
}

type AIResultsView struct {
	Status    string  `json:"status"`
	Timestamp *string `json:"timestamp,omitempty"`
}

type WorkflowStages struct {
	Mercure   StageView     `json:"mercure"`
	AIResults AIResultsView `json:"ai_results"`
	Lpch      StageView     `json:"lpch"`
	Lpcht     StageView     `json:"lpcht"`
	Modlink   StageView     `json:"modlink"`
}

type Workflow struct {
	StudyID          string         `json:"study_id"`
	StudyInstanceUID *string        `json:"study_instance_uid,omitempty"`
	PatientName      *string        `json:"patient_name"`
	StudyDescription *string        `json:"study_description"`
	CreatedAt        *string        `json:"created_at,omitempty"`
	Stages           WorkflowStages `json:"stages"`
}

type WorkflowList []Workflow

type SyncedStudy struct {
	StudyID     string  `json:"study_id"`
	StudyUID    string  `json:"study_uid"`
	PatientName *string `json:"patient_name"`
	SyncedAt    string  `json:"synced_at"`
}

type SyncResponse struct {
	Synced  int           `json:"synced"`
	Studies []SyncedStudy `json:"studies"`
	Message string        `json:"message"`
}

// Funnel and statistics

type FunnelChild struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
	Failed  int     `json:"failed"`
}

type FunnelStage struct {
	Stage     string        `json:"stage"`
	Name      string        `json:"name"`
	Count     int           `json:"count"`
	Percent   float64       `json:"percent"`
	BaseCount *int          `json:"base_count,omitempty"`
	Failed    *int          `json:"failed,omitempty"`
	Status    string        `json:"status"`
	Children  []FunnelChild `json:"children,omitempty"`
}

type DropOff struct {
	MercureSend   int `json:"mercure_send"`
	AINoResponse  int `json:"ai_no_response"`
	RoutingFailed int `json:"routing_failed"`
}

type FunnelSummary struct {
	MercureSuccessRate float64 `json:"mercure_success_rate"`
	RoutingSuccessRate float64 `json:"routing_success_rate"`
	OverallSuccessRate float64 `json:"overall_success_rate"`
	DropOff            DropOff `json:"drop_off"`
}

type Funnel struct {
	TimeRangeHours int           `json:"time_range_hours"`
	TotalStudies   int           `json:"total_studies"`
	Pipeline       []FunnelStage `json:"pipeline"`
	Summary        FunnelSummary `json:"summary"`
}

type TimeBucket struct {
	TimeBucket      string `json:"time_bucket"`
	StudiesReceived int    `json:"studies_received"`
	MercureSent     int    `json:"mercure_sent"`
	AIResults       int    `json:"ai_results"`
	LpchRouted      int    `json:"lpch_routed"`
	LpchtRouted     int    `json:"lpcht_routed"`
	ModlinkRouted   int    `json:"modlink_routed"`
	FullyComplete   int    `json:"fully_complete"`
}

type Timeseries struct {
	Interval string       `json:"interval"`
	Hours    int          `json:"hours"`
	Data     []TimeBucket `json:"data"`
}

type DestinationStats struct {
	Destination string   `json:"destination"`
	Success     int      `json:"success"`
	Failed      int      `json:"failed"`
	Pending     int      `json:"pending"`
	SuccessRate *float64 `json:"success_rate"`
}

// Mercure Bookkeeper

type MercureStatus struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

type MercureSeries struct {
	SeriesUID   string  `json:"series_uid"`
	ReceivedAt  *string `json:"received_at"`
	Description *string `json:"description"`
	Modality    *string `json:"modality"`
}

type MercureTask struct {
	TaskID    string  `json:"task_id"`
	CreatedAt *string `json:"created_at"`
	SeriesUID *string `json:"series_uid"`
}

type MercureProcessing struct {
	Status          string   `json:"status"`
	StartedAt       *string  `json:"started_at"`
	CompletedAt     *string  `json:"completed_at"`
	DurationSeconds *float64 `json:"duration_seconds"`
	Error           *string  `json:"error"`
	DispatchTarget  *string  `json:"dispatch_target"`
}

type MercureEvent struct {
	Time   *string `json:"time"`
	Event  *string `json:"event"`
	Sender *string `json:"sender,omitempty"`
	Target *string `json:"target,omitempty"`
	Info   *string `json:"info"`
}

type MercureStudy struct {
	StudyUID    string            `json:"study_uid"`
	SeriesCount int               `json:"series_count"`
	Series      []MercureSeries   `json:"series"`
	Tasks       []MercureTask     `json:"tasks"`
	Processing  MercureProcessing `json:"processing"`
	Events      []MercureEvent    `json:"events"`
}

type MercureRecentStudy struct {
	StudyUID         string  `json:"study_uid"`
	PatientName      *string `json:"patient_name"`
	StudyDescription *string `json:"study_description"`
	SeriesCount      int64   `json:"series_count"`
	ReceivedAt       *string `json:"received_at"`
	MercureStatus    string  `json:"mercure_status"`
	HasTask          bool    `json:"has_task"`
}

type MercureRecent struct {
	Hours   int                  `json:"hours"`
	Count   int                  `json:"count"`
	Studies []MercureRecentStudy `json:"studies"`
}

type MercureEnrichmentStatus struct {
	InMercure          bool           `json:"in_mercure"`
	ReceivedAt         *string        `json:"received_at"`
	SeriesCount        int64          `json:"series_count"`
	Events             []MercureEvent `json:"events"`
	ProcessingComplete *bool          `json:"processing_complete,omitempty"`
	CompletedAt        *string        `json:"completed_at,omitempty"`
	ProcessingFailed   *bool          `json:"processing_failed,omitempty"`
	Error              *string        `json:"error,omitempty"`
}

type MercureEnrichment struct {
	StudyID  string                  `json:"study_id"`
	StudyUID string                  `json:"study_uid"`
	Mercure  MercureEnrichmentStatus `json:"mercure"`
}
