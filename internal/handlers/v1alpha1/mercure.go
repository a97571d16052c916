package v1alpha1

import (
	"net/http"

	"github.com/aide-monitoring/workflow-tracker/internal/handlers/v1alpha1/mappers"
)

const mercureHandler = "mercure_handler"

// (GET /mercure/status)
func (h *ServiceHandler) GetMercureStatus(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, mappers.MercureStatusToApi(h.mercureSrv.Status(r.Context())))
}

// (GET /mercure/study/{study_uid})
func (h *ServiceHandler) GetMercureStudy(w http.ResponseWriter, r *http.Request) {
	studyUID, err := pathParam(r, "study_uid")
	if err != nil {
		handleError(w, r, mercureHandler, err)
		return
	}

	study, err := h.mercureSrv.Study(r.Context(), studyUID)
	if err != nil {
		handleError(w, r, mercureHandler, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.MercureStudyToApi(study))
}

// (GET /mercure/recent)
func (h *ServiceHandler) GetMercureRecent(w http.ResponseWriter, r *http.Request) {
	hours := intParam(r, "hours", defaultHours)
	studies, err := h.mercureSrv.Recent(r.Context(), hours, intParam(r, "limit", defaultLimit))
	if err != nil {
		handleError(w, r, mercureHandler, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.MercureRecentToApi(hours, studies))
}

// (POST /mercure/enrich/{study_id})
func (h *ServiceHandler) EnrichWorkflow(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathParam(r, "study_id")
	if err != nil {
		handleError(w, r, mercureHandler, err)
		return
	}

	enrichment, err := h.mercureSrv.Enrich(r.Context(), studyID)
	if err != nil {
		handleError(w, r, mercureHandler, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.MercureEnrichmentToApi(enrichment))
}
