package v1alpha1

import (
	"net/http"

	api "github.com/aide-monitoring/workflow-tracker/api/v1alpha1"
)

// (GET /health)
func (h *ServiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, api.Health{Status: "ok"})
}
