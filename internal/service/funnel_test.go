package service_test

import (
	"context"
	"fmt"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/service"
	st "github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("funnel service", Ordered, func() {
	var (
		store   st.Store
		gormDB  *gorm.DB
		archive *fakeArchive
		srv     *service.FunnelService
		ctx     = context.TODO()
	)

	BeforeAll(func() {
		store, gormDB = newTestDB()
	})

	AfterAll(func() {
		store.Close()
	})

	BeforeEach(func() {
		archive = newFakeArchive()
		srv = service.NewFunnelService(store, archive)
	})

	AfterEach(func() {
		gormDB.Exec("DELETE from study_workflows;")
	})

	outcome := func(studyID string, d model.Destination, success bool) {
		_, err := store.Workflow().RecordOutcome(ctx, studyID, d, st.Outcome{Success: success, At: time.Now()})
		Expect(err).To(BeNil())
	}

	// seed creates 10 studies sent to the gateway; 4 got AI results back after Mercure
	// completed them and 3 of those reached every destination.
	seed := func() {
		now := time.Now()
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("study-%d", i)
			Expect(store.Workflow().Start(ctx, model.StudyWorkflow{StudyID: id})).To(BeNil())
			outcome(id, model.DestinationMercure, true)
			if i >= 4 {
				continue
			}
			_, err := store.Workflow().EnrichProcessing(ctx, id, model.ProcessingTimes{ReceivedAt: &now, StartedAt: &now, CompletedAt: &now})
			Expect(err).To(BeNil())
			_, err = store.Workflow().MarkAIResults(ctx, id, now)
			Expect(err).To(BeNil())
			for _, d := range model.RoutingDestinations {
				outcome(id, d, i < 3)
			}
		}
	}

	stage := func(f *service.Funnel, name string) service.FunnelStage {
		for _, s := range f.Pipeline {
			if s.Name == name {
				return s
			}
		}
		Fail("stage not found: " + name)
		return service.FunnelStage{}
	}

	It("computes percentages against each stage base", func() {
		seed()

		funnel, err := srv.Funnel(ctx, 24)
		Expect(err).To(BeNil())
		Expect(funnel.Total).To(Equal(10))
		Expect(funnel.Hours).To(Equal(24))

		orthanc := stage(funnel, "Studies in Orthanc")
		Expect(orthanc.Percent).To(Equal(100.0))
		Expect(orthanc.Status).To(Equal(service.StatusNeutral))

		sent := stage(funnel, "Sent to Mercure")
		Expect(sent.Count).To(Equal(10))
		Expect(sent.Percent).To(Equal(100.0))

		received := stage(funnel, "Received at Mercure")
		Expect(received.Count).To(Equal(4))
		Expect(received.Percent).To(Equal(40.0))
		Expect(*received.BaseCount).To(Equal(10))

		ai := stage(funnel, "AI Results Back to Orthanc")
		Expect(ai.Count).To(Equal(4))
		Expect(*ai.BaseCount).To(Equal(4))
		Expect(ai.Percent).To(Equal(100.0))

		routed := stage(funnel, "Routed to Destinations")
		Expect(routed.Count).To(Equal(3))
		Expect(routed.Percent).To(Equal(75.0))
		Expect(*routed.BaseCount).To(Equal(4))
		Expect(*routed.Failed).To(Equal(3))
		Expect(routed.Status).To(Equal(service.StatusWarning))
		Expect(routed.Children).To(HaveLen(3))
		Expect(routed.Children[0].Name).To(Equal("LPCH"))
		Expect(routed.Children[0].Count).To(Equal(3))
		Expect(routed.Children[0].Percent).To(Equal(75.0))
		Expect(routed.Children[0].Failed).To(Equal(1))

		Expect(funnel.Summary.OverallSuccessRate).To(Equal(30.0))
		Expect(funnel.Summary.RoutingSuccessRate).To(Equal(75.0))
		Expect(funnel.Summary.MercureSuccessRate).To(Equal(40.0))
		Expect(funnel.Summary.DropOffAINoResponse).To(Equal(6))
		Expect(funnel.Summary.DropOffRoutingFailed).To(Equal(3))
		Expect(funnel.Summary.DropOffMercureSend).To(Equal(0))
	})

	It("excludes studies gone upstream and keeps unreachable ones", func() {
		seed()
		archive.gone["study-9"] = true
		archive.gone["study-8"] = true
		archive.broken["study-7"] = true

		funnel, err := srv.Funnel(ctx, 24)
		Expect(err).To(BeNil())
		Expect(funnel.Total).To(Equal(8))
		Expect(archive.calls).To(Equal(10))
	})

	It("reports an empty window", func() {
		funnel, err := srv.Funnel(ctx, 24)
		Expect(err).To(BeNil())
		Expect(funnel.Total).To(BeZero())
		Expect(stage(funnel, "Sent to Mercure").Status).To(Equal(service.StatusNeutral))
		Expect(stage(funnel, "Routed to Destinations").Status).To(Equal(service.StatusNeutral))
		Expect(stage(funnel, "AI Results Back to Orthanc").Status).To(Equal(service.StatusWaiting))
	})

	It("leaves studies outside the window out", func() {
		old := time.Now().Add(-72 * time.Hour)
		created, err := store.Workflow().CreateIfAbsent(ctx, model.StudyWorkflow{StudyID: "old", CreatedAt: old})
		Expect(err).To(BeNil())
		Expect(created).To(BeTrue())

		funnel, err := srv.Funnel(ctx, 24)
		Expect(err).To(BeNil())
		Expect(funnel.Total).To(BeZero())

		funnel, err = srv.Funnel(ctx, 96)
		Expect(err).To(BeNil())
		Expect(funnel.Total).To(Equal(1))
	})

	Context("timeseries", func() {
		It("buckets by hour and day", func() {
			now := time.Now().UTC()
			for i, at := range []time.Time{now.Add(-3 * time.Hour), now.Add(-3 * time.Hour), now.Add(-time.Hour)} {
				_, err := store.Workflow().CreateIfAbsent(ctx, model.StudyWorkflow{StudyID: fmt.Sprintf("s%d", i), CreatedAt: at})
				Expect(err).To(BeNil())
			}
			outcome("s0", model.DestinationMercure, true)

			series, err := srv.Timeseries(ctx, 24, service.IntervalHour)
			Expect(err).To(BeNil())
			Expect(series).To(HaveLen(2))
			Expect(series[0].Bucket).To(Equal(now.Add(-3 * time.Hour).Format("2006-01-02 15:00")))
			Expect(series[0].StudiesReceived).To(Equal(2))
			Expect(series[0].MercureSent).To(Equal(1))
			Expect(series[1].StudiesReceived).To(Equal(1))

			series, err = srv.Timeseries(ctx, 24, service.IntervalDay)
			Expect(err).To(BeNil())
			total := 0
			for _, b := range series {
				Expect(b.Bucket).To(HaveLen(len("2006-01-02")))
				total += b.StudiesReceived
			}
			Expect(total).To(Equal(3))
		})

		It("rejects unknown intervals", func() {
			_, err := srv.Timeseries(ctx, 24, "week")
			Expect(err).NotTo(BeNil())
			_, ok := err.(*service.ErrInvalidInterval)
			Expect(ok).To(BeTrue())
		})
	})

	Context("routing stats", func() {
		It("reports outcomes per destination", func() {
			seed()

			stats, err := srv.RoutingStats(ctx, 24)
			Expect(err).To(BeNil())
			Expect(stats).To(HaveLen(4))

			Expect(stats[0].Destination).To(Equal(model.DestinationMercure))
			Expect(stats[0].Succeeded).To(Equal(10))
			Expect(stats[0].Pending).To(Equal(0))
			Expect(*stats[0].SuccessRate()).To(Equal(100.0))

			Expect(stats[1].Destination).To(Equal(model.DestinationLpch))
			Expect(stats[1].Succeeded).To(Equal(3))
			Expect(stats[1].Failed).To(Equal(1))
			Expect(*stats[1].SuccessRate()).To(Equal(75.0))
		})

		It("has no rate without outcomes", func() {
			Expect(store.Workflow().Start(ctx, model.StudyWorkflow{StudyID: "s1"})).To(BeNil())

			stats, err := srv.RoutingStats(ctx, 24)
			Expect(err).To(BeNil())
			Expect(stats[0].Pending).To(Equal(1))
			Expect(stats[0].SuccessRate()).To(BeNil())
			Expect(stats[1].Pending).To(Equal(0))
		})
	})
})
