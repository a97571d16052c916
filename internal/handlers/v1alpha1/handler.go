package v1alpha1

import (
	"github.com/aide-monitoring/workflow-tracker/internal/handlers/validator"
	"github.com/aide-monitoring/workflow-tracker/internal/service"
	"github.com/go-chi/chi/v5"
)

const (
	defaultHours = 24
	defaultLimit = 50
)

type ServiceHandler struct {
	trackingSrv *service.TrackingService
	workflowSrv *service.WorkflowService
	funnelSrv   *service.FunnelService
	mercureSrv  *service.MercureService
	syncSrv     *service.SyncService
	validator   *validator.Validator
}

func NewServiceHandler(
	trackingSrv *service.TrackingService,
	workflowSrv *service.WorkflowService,
	funnelSrv *service.FunnelService,
	mercureSrv *service.MercureService,
	syncSrv *service.SyncService,
) *ServiceHandler {
	v := validator.NewValidator()
	v.Register(validator.NewTrackingValidationRules()...)

	return &ServiceHandler{
		trackingSrv: trackingSrv,
		workflowSrv: workflowSrv,
		funnelSrv:   funnelSrv,
		mercureSrv:  mercureSrv,
		syncSrv:     syncSrv,
		validator:   v,
	}
}

// Routes mounts the tracking API on r.
func (h *ServiceHandler) Routes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/track", func(r chi.Router) {
		r.Post("/start", h.TrackStart)
		r.Post("/destination", h.TrackDestination)
		r.Post("/mercure-sent", h.TrackMercureSent)
		r.Post("/ai-results", h.TrackAIResults)
		r.Post("/job", h.TrackJob)
		r.Post("/reset", h.TrackReset)
	})

	r.Get("/workflows", h.ListWorkflows)
	r.Post("/workflows/sync", h.SyncWorkflows)
	r.Get("/workflows/{study_id}", h.GetWorkflow)

	r.Get("/funnel", h.GetFunnel)
	r.Get("/funnel/timeseries", h.GetFunnelTimeseries)
	r.Get("/routing/stats", h.GetRoutingStats)
	r.Get("/workflow/stats/destinations", h.GetRoutingStats)

	r.Route("/mercure", func(r chi.Router) {
		r.Get("/status", h.GetMercureStatus)
		r.Get("/study/{study_uid}", h.GetMercureStudy)
		r.Get("/recent", h.GetMercureRecent)
		r.Post("/enrich/{study_id}", h.EnrichWorkflow)
	})
}
