package v1alpha1

import (
	"net/http"

	"github.com/aide-monitoring/workflow-tracker/internal/handlers/v1alpha1/mappers"
	"github.com/aide-monitoring/workflow-tracker/internal/service"
)

const workflowHandler = "workflow_handler"

// (GET /workflows)
func (h *ServiceHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	hours := intParam(r, "hours", defaultHours)
	limit := intParam(r, "limit", defaultLimit)

	workflows, err := h.workflowSrv.List(r.Context(), hours, limit)
	if err != nil {
		handleError(w, r, workflowHandler, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.WorkflowListToApi(workflows))
}

// (GET /workflows/{study_id})
func (h *ServiceHandler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	studyID, err := pathParam(r, "study_id")
	if err != nil {
		handleError(w, r, workflowHandler, err)
		return
	}

	workflow, err := h.workflowSrv.Get(r.Context(), studyID)
	if err != nil {
		if _, ok := err.(*service.ErrResourceNotFound); ok {
			respondError(w, r, http.StatusNotFound, "Not found")
			return
		}
		handleError(w, r, workflowHandler, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.WorkflowToApi(*workflow))
}

// (POST /workflows/sync)
func (h *ServiceHandler) SyncWorkflows(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncSrv.Sync(r.Context())
	if err != nil {
		handleError(w, r, workflowHandler, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.SyncToApi(result))
}
