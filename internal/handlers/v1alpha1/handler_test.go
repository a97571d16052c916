package v1alpha1_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	api "github.com/aide-monitoring/workflow-tracker/api/v1alpha1"
	"github.com/aide-monitoring/workflow-tracker/internal/events"
	handlers "github.com/aide-monitoring/workflow-tracker/internal/handlers/v1alpha1"
	"github.com/aide-monitoring/workflow-tracker/internal/service"
	st "github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("tracking api", Ordered, func() {
	var (
		store    st.Store
		gormDB   *gorm.DB
		archive  *fakeArchive
		router   *chi.Mux
		producer *events.EventProducer
	)

	call := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			switch b := body.(type) {
			case string:
				buf.WriteString(b)
			default:
				Expect(json.NewEncoder(&buf).Encode(b)).To(Succeed())
			}
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	errorOf := func(rec *httptest.ResponseRecorder) string {
		var e api.Error
		Expect(json.Unmarshal(rec.Body.Bytes(), &e)).To(Succeed())
		return e.Error
	}

	BeforeAll(func() {
		store, gormDB = newTestDB()
		archive = &fakeArchive{gone: map[string]bool{}}
		producer = events.NewEventProducer(&events.StdoutWriter{})
		bk := unconfiguredBookkeeper{}

		h := handlers.NewServiceHandler(
			service.NewTrackingService(store, producer),
			service.NewWorkflowService(store, archive),
			service.NewFunnelService(store, archive),
			service.NewMercureService(store, bk, producer),
			service.NewSyncService(store, bk, archive, producer),
		)
		router = chi.NewRouter()
		h.Routes(router)
	})

	AfterAll(func() {
		producer.Close()
		store.Close()
	})

	AfterEach(func() {
		gormDB.Exec("DELETE from study_workflows;")
		gormDB.Exec("DELETE from pending_jobs;")
		archive.gone = map[string]bool{}
	})

	It("reports health", func() {
		rec := call(http.MethodGet, "/health", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"status":"ok"}`))
	})

	It("tracks a study through the pipeline", func() {
		rec := call(http.MethodPost, "/track/start", map[string]any{"study_id": "S1", "study_instance_uid": "1.2.3", "patient_name": "DOE^J"})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"ok":true}`))

		rec = call(http.MethodPost, "/track/destination", map[string]any{"study_id": "S1", "destination": "MERCURE", "success": true})
		Expect(rec.Code).To(Equal(http.StatusOK))

		rec = call(http.MethodPost, "/track/ai-results", map[string]any{"study_id": "S1"})
		Expect(rec.Code).To(Equal(http.StatusOK))

		for _, d := range []string{"LPCHROUTER", "lpcht", "MODLINK"} {
			rec = call(http.MethodPost, "/track/destination", map[string]any{"study_id": "S1", "destination": d, "success": true})
			Expect(rec.Code).To(Equal(http.StatusOK))
		}

		rec = call(http.MethodGet, "/workflows/S1", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var workflow api.Workflow
		Expect(json.Unmarshal(rec.Body.Bytes(), &workflow)).To(Succeed())
		Expect(*workflow.PatientName).To(Equal("DOE^J"))
		Expect(workflow.Stages.Mercure.Status).To(Equal("success"))
		Expect(workflow.Stages.AIResults.Status).To(Equal("received"))
		Expect(workflow.Stages.Lpch.Status).To(Equal("success"))
		Expect(workflow.Stages.Lpcht.Status).To(Equal("success"))
		Expect(workflow.Stages.Modlink.Status).To(Equal("success"))

		rec = call(http.MethodGet, "/funnel?hours=24", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var funnel api.Funnel
		Expect(json.Unmarshal(rec.Body.Bytes(), &funnel)).To(Succeed())
		Expect(funnel.TimeRangeHours).To(Equal(24))
		Expect(funnel.TotalStudies).To(Equal(1))
		Expect(funnel.Summary.OverallSuccessRate).To(Equal(100.0))
		Expect(funnel.Pipeline[len(funnel.Pipeline)-1].Children).To(HaveLen(3))
	})

	It("records the legacy gateway report", func() {
		Expect(call(http.MethodPost, "/track/start", map[string]any{"study_id": "S1"}).Code).To(Equal(http.StatusOK))

		rec := call(http.MethodPost, "/track/mercure-sent", map[string]any{"study_id": "S1", "success": false, "error": "timeout"})
		Expect(rec.Code).To(Equal(http.StatusOK))

		rec = call(http.MethodGet, "/workflows/S1", nil)
		var workflow api.Workflow
		Expect(json.Unmarshal(rec.Body.Bytes(), &workflow)).To(Succeed())
		Expect(workflow.Stages.Mercure.Status).To(Equal("failed"))
		Expect(*workflow.Stages.Mercure.Error).To(Equal("timeout"))
	})

	It("rejects bad tracking requests", func() {
		rec := call(http.MethodPost, "/track/start", nil)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(errorOf(rec)).To(Equal("study_id required"))

		rec = call(http.MethodPost, "/track/destination", map[string]any{"study_id": "S1", "destination": "pacs", "success": true})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(errorOf(rec)).To(Equal("Unknown destination: PACS"))

		rec = call(http.MethodPost, "/track/job", map[string]any{"job_id": "j1"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(errorOf(rec)).To(Equal("job_id, study_id, and destination required"))

		rec = call(http.MethodPost, "/track/start", `{"study_id": "S1", "unexpected": 1}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		rec = call(http.MethodPost, "/track/start", `{"study_id":`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("registers jobs and resets studies", func() {
		Expect(call(http.MethodPost, "/track/start", map[string]any{"study_id": "S1"}).Code).To(Equal(http.StatusOK))

		rec := call(http.MethodPost, "/track/job", map[string]any{"job_id": "j1", "study_id": "S1", "destination": "mercure"})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"ok":true,"message":"Job j1 registered for tracking"}`))

		rec = call(http.MethodPost, "/track/reset", map[string]any{"study_id": "S1"})
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"ok":true,"deleted":2}`))

		rec = call(http.MethodGet, "/workflows/S1", nil)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(rec.Body.String()).To(MatchJSON(`{"error":"Not found"}`))
	})

	It("hides studies deleted upstream", func() {
		for _, id := range []string{"S1", "S2"} {
			Expect(call(http.MethodPost, "/track/start", map[string]any{"study_id": id}).Code).To(Equal(http.StatusOK))
		}
		archive.gone["S2"] = true

		rec := call(http.MethodGet, "/workflows?hours=abc&limit=10", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var workflows api.WorkflowList
		Expect(json.Unmarshal(rec.Body.Bytes(), &workflows)).To(Succeed())
		Expect(workflows).To(HaveLen(1))
		Expect(workflows[0].StudyID).To(Equal("S1"))
	})

	It("serves time series and routing stats", func() {
		Expect(call(http.MethodPost, "/track/start", map[string]any{"study_id": "S1"}).Code).To(Equal(http.StatusOK))

		rec := call(http.MethodGet, "/funnel/timeseries?interval=day", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var series api.Timeseries
		Expect(json.Unmarshal(rec.Body.Bytes(), &series)).To(Succeed())
		Expect(series.Interval).To(Equal("day"))
		Expect(series.Hours).To(Equal(24))
		Expect(series.Data).To(HaveLen(1))

		rec = call(http.MethodGet, "/funnel/timeseries?interval=week", nil)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		for _, path := range []string{"/routing/stats", "/workflow/stats/destinations"} {
			rec = call(http.MethodGet, path, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			var stats []api.DestinationStats
			Expect(json.Unmarshal(rec.Body.Bytes(), &stats)).To(Succeed())
			Expect(stats).To(HaveLen(4))
			Expect(stats[0].Destination).To(Equal("MERCURE"))
			Expect(stats[0].Pending).To(Equal(1))
			Expect(stats[0].SuccessRate).To(BeNil())
			Expect(stats[1].Destination).To(Equal("LPCHROUTER"))
		}
	})

	It("answers 503 without bookkeeper", func() {
		rec := call(http.MethodGet, "/mercure/status", nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		var status api.MercureStatus
		Expect(json.Unmarshal(rec.Body.Bytes(), &status)).To(Succeed())
		Expect(status.Available).To(BeFalse())

		rec = call(http.MethodGet, "/mercure/study/1.2.3", nil)
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(errorOf(rec)).To(Equal("Mercure integration not configured"))

		rec = call(http.MethodPost, "/workflows/sync", nil)
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(errorOf(rec)).To(Equal("Mercure Bookkeeper not configured"))

		rec = call(http.MethodPost, "/mercure/enrich/unknown", nil)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(errorOf(rec)).To(Equal("Study not found or no StudyInstanceUID"))

		Expect(call(http.MethodPost, "/track/start", map[string]any{"study_id": "S1", "study_instance_uid": "1.2.3"}).Code).To(Equal(http.StatusOK))
		rec = call(http.MethodPost, "/mercure/enrich/S1", nil)
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
	})
})
