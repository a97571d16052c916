package v1alpha1

import (
	"fmt"
	"net/http"

	api "github.com/aide-monitoring/workflow-tracker/api/v1alpha1"
	"github.com/aide-monitoring/workflow-tracker/internal/handlers/v1alpha1/mappers"
)

const trackingHandler = "tracking_handler"

var okResponse = api.OkResponse{Ok: true}

// (POST /track/start)
func (h *ServiceHandler) TrackStart(w http.ResponseWriter, r *http.Request) {
	var form api.TrackStartRequest
	if err := h.decode(r, &form); err != nil {
		handleError(w, r, trackingHandler, err)
		return
	}

	if err := h.trackingSrv.Start(r.Context(), mappers.StartFormApi(form)); err != nil {
		handleError(w, r, trackingHandler, err)
		return
	}

	respond(w, r, http.StatusOK, okResponse)
}

// (POST /track/destination)
func (h *ServiceHandler) TrackDestination(w http.ResponseWriter, r *http.Request) {
	var form api.TrackDestinationRequest
	if err := h.decode(r, &form); err != nil {
		handleError(w, r, trackingHandler, err)
		return
	}

	if err := h.trackingSrv.RecordOutcome(r.Context(), mappers.OutcomeFormApi(form)); err != nil {
		handleError(w, r, trackingHandler, err)
		return
	}

	respond(w, r, http.StatusOK, okResponse)
}

// (POST /track/mercure-sent)
func (h *ServiceHandler) TrackMercureSent(w http.ResponseWriter, r *http.Request) {
	var form api.TrackMercureSentRequest
	if err := h.decode(r, &form); err != nil {
		handleError(w, r, trackingHandler, err)
		return
	}

	if err := h.trackingSrv.RecordOutcome(r.Context(), mappers.MercureSentFormApi(form)); err != nil {
		handleError(w, r, trackingHandler, err)
		return
	}

	respond(w, r, http.StatusOK, okResponse)
}

// (POST /track/ai-results)
func (h *ServiceHandler) TrackAIResults(w http.ResponseWriter, r *http.Request) {
	var form api.TrackAIResultsRequest
	if err := h.decode(r, &form); err != nil {
		handleError(w, r, trackingHandler, err)
		return
	}

	if err := h.trackingSrv.MarkAIResults(r.Context(), form.StudyID); err != nil {
		handleError(w, r, trackingHandler, err)
		return
	}

	respond(w, r, http.StatusOK, okResponse)
}

// (POST /track/job)
func (h *ServiceHandler) TrackJob(w http.ResponseWriter, r *http.Request) {
	var form api.TrackJobRequest
	if err := h.decode(r, &form); err != nil {
		handleError(w, r, trackingHandler, err)
		return
	}

	if err := h.trackingSrv.RegisterJob(r.Context(), mappers.JobFormApi(form)); err != nil {
		handleError(w, r, trackingHandler, err)
		return
	}

	message := fmt.Sprintf("Job %s registered for tracking", form.JobID)
	respond(w, r, http.StatusOK, api.OkResponse{Ok: true, Message: &message})
}

// (POST /track/reset)
func (h *ServiceHandler) TrackReset(w http.ResponseWriter, r *http.Request) {
	var form api.TrackResetRequest
	if err := h.decode(r, &form); err != nil {
		handleError(w, r, trackingHandler, err)
		return
	}

	deleted, err := h.trackingSrv.Reset(r.Context(), form.StudyID)
	if err != nil {
		handleError(w, r, trackingHandler, err)
		return
	}

	respond(w, r, http.StatusOK, api.ResetResponse{Ok: true, Deleted: deleted})
}
