package mappers

import (
	"fmt"
	"time"

	api "github.com/aide-monitoring/workflow-tracker/api/v1alpha1"
	"github.com/aide-monitoring/workflow-tracker/internal/bookkeeper"
	"github.com/aide-monitoring/workflow-tracker/internal/service"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
)

// routingStatsNames keeps the router names the dashboards were built against.
var routingStatsNames = map[model.Destination]string{
	model.DestinationMercure: "MERCURE",
	model.DestinationLpch:    "LPCHROUTER",
	model.DestinationLpcht:   "LPCHTROUTER",
	model.DestinationModlink: "MODLINK",
}

func isoTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func stageToApi(s model.StageOutcome) api.StageView {
	return api.StageView{
		Status:    string(s.Status()),
		Timestamp: isoTime(s.SentAt),
		Error:     s.Error,
	}
}

func WorkflowToApi(w model.StudyWorkflow) api.Workflow {
	return api.Workflow{
		StudyID:          w.StudyID,
		StudyInstanceUID: w.StudyInstanceUID,
		PatientName:      w.PatientName,
		StudyDescription: w.StudyDescription,
		CreatedAt:        isoTime(&w.CreatedAt),
		Stages: api.WorkflowStages{
			Mercure: stageToApi(w.Mercure),
			AIResults: api.AIResultsView{
				Status:    string(w.AIResultsStatus()),
				Timestamp: isoTime(w.AIResultsReceivedAt),
			},
			Lpch:    stageToApi(w.Lpch),
			Lpcht:   stageToApi(w.Lpcht),
			Modlink: stageToApi(w.Modlink),
		},
	}
}

func WorkflowListToApi(workflows model.StudyWorkflowList) api.WorkflowList {
	list := make(api.WorkflowList, 0, len(workflows))
	for _, w := range workflows {
		list = append(list, WorkflowToApi(w))
	}
	return list
}

func SyncToApi(result *service.SyncResult) api.SyncResponse {
	studies := make([]api.SyncedStudy, 0, len(result.Studies))
	for _, s := range result.Studies {
		studies = append(studies, api.SyncedStudy{
			StudyID:     s.StudyID,
			StudyUID:    s.StudyUID,
			PatientName: s.PatientName,
			SyncedAt:    s.SyncedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return api.SyncResponse{
		Synced:  result.Synced,
		Studies: studies,
		Message: fmt.Sprintf("Recovered %d studies from Mercure Bookkeeper", result.Synced),
	}
}

func FunnelToApi(f *service.Funnel) api.Funnel {
	pipeline := make([]api.FunnelStage, 0, len(f.Pipeline))
	for _, stage := range f.Pipeline {
		var children []api.FunnelChild
		for _, c := range stage.Children {
			children = append(children, api.FunnelChild{Name: c.Name, Count: c.Count, Percent: c.Percent, Failed: c.Failed})
		}
		pipeline = append(pipeline, api.FunnelStage{
			Stage:     stage.Stage,
			Name:      stage.Name,
			Count:     stage.Count,
			Percent:   stage.Percent,
			BaseCount: stage.BaseCount,
			Failed:    stage.Failed,
			Status:    stage.Status,
			Children:  children,
		})
	}

	return api.Funnel{
		TimeRangeHours: f.Hours,
		TotalStudies:   f.Total,
		Pipeline:       pipeline,
		Summary: api.FunnelSummary{
			MercureSuccessRate: f.Summary.MercureSuccessRate,
			RoutingSuccessRate: f.Summary.RoutingSuccessRate,
			OverallSuccessRate: f.Summary.OverallSuccessRate,
			DropOff: api.DropOff{
				MercureSend:   f.Summary.DropOffMercureSend,
				AINoResponse:  f.Summary.DropOffAINoResponse,
				RoutingFailed: f.Summary.DropOffRoutingFailed,
			},
		},
	}
}

func TimeseriesToApi(interval string, hours int, buckets []service.TimeBucket) api.Timeseries {
	data := make([]api.TimeBucket, 0, len(buckets))
	for _, b := range buckets {
		data = append(data, api.TimeBucket{
			TimeBucket:      b.Bucket,
			StudiesReceived: b.StudiesReceived,
			MercureSent:     b.MercureSent,
			AIResults:       b.AIResults,
			LpchRouted:      b.LpchRouted,
			LpchtRouted:     b.LpchtRouted,
			ModlinkRouted:   b.ModlinkRouted,
			FullyComplete:   b.FullyComplete,
		})
	}
	return api.Timeseries{Interval: interval, Hours: hours, Data: data}
}

func RoutingStatsToApi(stats []service.DestinationStats) []api.DestinationStats {
	result := make([]api.DestinationStats, 0, len(stats))
	for _, s := range stats {
		name, ok := routingStatsNames[s.Destination]
		if !ok {
			name = s.Destination.String()
		}
		result = append(result, api.DestinationStats{
			Destination: name,
			Success:     s.Succeeded,
			Failed:      s.Failed,
			Pending:     s.Pending,
			SuccessRate: s.SuccessRate(),
		})
	}
	return result
}

func MercureStatusToApi(s service.MercureStatus) api.MercureStatus {
	return api.MercureStatus{Available: s.Available, Message: s.Message}
}

func mercureEventsToApi(events []bookkeeper.TaskEvent, detailed bool) []api.MercureEvent {
	result := make([]api.MercureEvent, 0, len(events))
	for _, e := range events {
		event := api.MercureEvent{Time: isoTime(e.Time), Event: e.Event, Info: e.Info}
		if detailed {
			event.Sender = e.Sender
			event.Target = e.Target
		}
		result = append(result, event)
	}
	return result
}

func MercureStudyToApi(s *service.MercureStudy) api.MercureStudy {
	series := make([]api.MercureSeries, 0, len(s.Series))
	for _, sr := range s.Series {
		series = append(series, api.MercureSeries{
			SeriesUID:   sr.SeriesUID,
			ReceivedAt:  isoTime(sr.ReceivedAt),
			Description: sr.SeriesDescription,
			Modality:    sr.Modality,
		})
	}

	tasks := make([]api.MercureTask, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		tasks = append(tasks, api.MercureTask{TaskID: t.ID, CreatedAt: isoTime(t.CreatedAt), SeriesUID: t.SeriesUID})
	}

	return api.MercureStudy{
		StudyUID:    s.StudyUID,
		SeriesCount: len(series),
		Series:      series,
		Tasks:       tasks,
		Processing: api.MercureProcessing{
			Status:          s.Processing.Status,
			StartedAt:       isoTime(s.Processing.StartedAt),
			CompletedAt:     isoTime(s.Processing.CompletedAt),
			DurationSeconds: s.Processing.DurationSeconds,
			Error:           s.Processing.Error,
			DispatchTarget:  s.Processing.DispatchTarget,
		},
		Events: mercureEventsToApi(s.Events, true),
	}
}

func MercureRecentToApi(hours int, studies []service.RecentMercureStudy) api.MercureRecent {
	result := make([]api.MercureRecentStudy, 0, len(studies))
	for _, s := range studies {
		result = append(result, api.MercureRecentStudy{
			StudyUID:         s.StudyUID,
			PatientName:      s.PatientName,
			StudyDescription: s.StudyDescription,
			SeriesCount:      s.SeriesCount,
			ReceivedAt:       isoTime(s.FirstReceived),
			MercureStatus:    s.Status,
			HasTask:          s.HasTask,
		})
	}
	return api.MercureRecent{Hours: hours, Count: len(result), Studies: result}
}

func MercureEnrichmentToApi(e *service.MercureEnrichment) api.MercureEnrichment {
	status := api.MercureEnrichmentStatus{
		InMercure:   e.InMercure,
		ReceivedAt:  isoTime(e.ReceivedAt),
		SeriesCount: e.SeriesCount,
		Events:      mercureEventsToApi(e.Events, false),
	}

	switch {
	case e.Outcome.Completed:
		status.ProcessingComplete = &e.Outcome.Completed
		status.CompletedAt = isoTime(e.Outcome.CompletedAt)
	case e.Outcome.Failed:
		status.ProcessingFailed = &e.Outcome.Failed
		status.Error = e.Outcome.Error
	}

	return api.MercureEnrichment{StudyID: e.StudyID, StudyUID: e.StudyUID, Mercure: status}
}
