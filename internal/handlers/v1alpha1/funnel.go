package v1alpha1

import (
	"net/http"

	"github.com/aide-monitoring/workflow-tracker/internal/handlers/v1alpha1/mappers"
	"github.com/aide-monitoring/workflow-tracker/internal/service"
)

const funnelHandler = "funnel_handler"

// (GET /funnel)
func (h *ServiceHandler) GetFunnel(w http.ResponseWriter, r *http.Request) {
	funnel, err := h.funnelSrv.Funnel(r.Context(), intParam(r, "hours", defaultHours))
	if err != nil {
		handleError(w, r, funnelHandler, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.FunnelToApi(funnel))
}

// (GET /funnel/timeseries)
func (h *ServiceHandler) GetFunnelTimeseries(w http.ResponseWriter, r *http.Request) {
	hours := intParam(r, "hours", defaultHours)
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = service.IntervalHour
	}

	buckets, err := h.funnelSrv.Timeseries(r.Context(), hours, interval)
	if err != nil {
		handleError(w, r, funnelHandler, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.TimeseriesToApi(interval, hours, buckets))
}

// (GET /routing/stats, GET /workflow/stats/destinations)
func (h *ServiceHandler) GetRoutingStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.funnelSrv.RoutingStats(r.Context(), intParam(r, "hours", defaultHours))
	if err != nil {
		handleError(w, r, funnelHandler, err)
		return
	}

	respond(w, r, http.StatusOK, mappers.RoutingStatsToApi(stats))
}
