package mappers

import (
	"github.com/aide-monitoring/workflow-tracker/api/v1alpha1"
	"github.com/aide-monitoring/workflow-tracker/internal/service"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
)

func StartFormApi(req v1alpha1.TrackStartRequest) service.StartForm {
	return service.StartForm{
		StudyID:          req.StudyID,
		StudyInstanceUID: req.StudyInstanceUID,
		PatientName:      req.PatientName,
		StudyDescription: req.StudyDescription,
	}
}

func OutcomeFormApi(req v1alpha1.TrackDestinationRequest) service.OutcomeForm {
	return service.OutcomeForm{
		StudyID:     req.StudyID,
		Destination: req.Destination,
		Success:     derefBool(req.Success),
		Error:       req.Error,
	}
}

// MercureSentFormApi maps the legacy gateway report onto a destination outcome.
func MercureSentFormApi(req v1alpha1.TrackMercureSentRequest) service.OutcomeForm {
	return service.OutcomeForm{
		StudyID:     req.StudyID,
		Destination: model.DestinationMercure.String(),
		Success:     derefBool(req.Success),
		Error:       req.Error,
	}
}

func JobFormApi(req v1alpha1.TrackJobRequest) service.JobForm {
	return service.JobForm{
		JobID:       req.JobID,
		StudyID:     req.StudyID,
		Destination: req.Destination,
	}
}

func derefBool(b *bool) bool {
	return b != nil && *b
}
