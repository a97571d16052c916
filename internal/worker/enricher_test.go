package worker_test

import (
	"context"
	"errors"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/events"
	st "github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"github.com/aide-monitoring/workflow-tracker/internal/worker"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

var _ = Describe("enricher", Ordered, func() {
	var (
		store      st.Store
		gormDB     *gorm.DB
		bookkeeper *fakeBookkeeper
		publisher  *recordingPublisher
		ctx        = context.TODO()
		base       = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	)

	BeforeAll(func() {
		store, gormDB = newTestDB()
	})

	AfterAll(func() {
		store.Close()
	})

	BeforeEach(func() {
		bookkeeper = &fakeBookkeeper{configured: true, times: map[string]model.ProcessingTimes{}, errors: map[string]error{}}
		publisher = &recordingPublisher{}
	})

	AfterEach(func() {
		gormDB.Exec("DELETE from study_workflows;")
	})

	sent := func(studyID, uid string) {
		Expect(store.Workflow().Start(ctx, model.StudyWorkflow{StudyID: studyID, StudyInstanceUID: strPtr(uid)})).To(BeNil())
		_, err := store.Workflow().RecordOutcome(ctx, studyID, model.DestinationMercure, st.Outcome{Success: true, At: base})
		Expect(err).To(BeNil())
	}

	It("skips every cycle while bookkeeper is not configured", func() {
		core, logs := observer.New(zapcore.DebugLevel)
		undo := zap.ReplaceGlobals(zap.New(core))
		defer undo()

		sent("study-1", "1.2.3")
		bookkeeper.configured = false
		enricher := worker.NewEnricher(store, bookkeeper, publisher, 50)

		for i := 0; i < 2; i++ {
			n, err := enricher.Enrich(ctx)
			Expect(err).To(BeNil())
			Expect(n).To(Equal(0))
		}
		Expect(bookkeeper.lookups).To(Equal(0))

		skipped := logs.FilterMessage("bookkeeper not configured, skipping enrichment cycle")
		Expect(skipped.Len()).To(Equal(2))
		Expect(skipped.All()[0].Level).To(Equal(zapcore.DebugLevel))
	})

	It("enriches at most one batch per cycle", func() {
		for _, id := range []string{"1", "2", "3"} {
			sent("study-"+id, "uid."+id)
			received := base.Add(time.Minute)
			started := base.Add(2 * time.Minute)
			completed := base.Add(3 * time.Minute)
			bookkeeper.times["uid."+id] = model.ProcessingTimes{ReceivedAt: &received, StartedAt: &started, CompletedAt: &completed}
		}
		enricher := worker.NewEnricher(store, bookkeeper, publisher, 2)

		n, err := enricher.Enrich(ctx)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(2))
		Expect(bookkeeper.lookups).To(Equal(2))

		pending, err := store.Workflow().ListEnrichmentCandidates(ctx, 50)
		Expect(err).To(BeNil())
		Expect(pending).To(HaveLen(1))

		n, err = enricher.Enrich(ctx)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(1))
		Expect(bookkeeper.lookups).To(Equal(3))

		n, err = enricher.Enrich(ctx)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(0))
		Expect(bookkeeper.lookups).To(Equal(3))
		Expect(publisher.Kinds()).To(HaveLen(3))
	})

	It("fills missing timestamps", func() {
		sent("study-1", "1.2.3")
		received := base.Add(time.Minute)
		started := base.Add(2 * time.Minute)
		bookkeeper.times["1.2.3"] = model.ProcessingTimes{ReceivedAt: &received, StartedAt: &started}

		n, err := worker.NewEnricher(store, bookkeeper, publisher, 50).Enrich(ctx)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(1))

		w, err := store.Workflow().Get(ctx, "study-1")
		Expect(err).To(BeNil())
		Expect(w.MercureReceivedAt.UTC()).To(Equal(received))
		Expect(w.MercureProcessingStartedAt.UTC()).To(Equal(started))
		Expect(w.MercureProcessingCompletedAt).To(BeNil())
		Expect(publisher.Kinds()).To(Equal([]string{events.StudyEnrichedKind}))
	})

	It("never overwrites a known timestamp", func() {
		sent("study-1", "1.2.3")
		first := base.Add(time.Minute)
		bookkeeper.times["1.2.3"] = model.ProcessingTimes{ReceivedAt: &first}
		enricher := worker.NewEnricher(store, bookkeeper, publisher, 50)
		_, err := enricher.Enrich(ctx)
		Expect(err).To(BeNil())

		later := base.Add(time.Hour)
		completed := base.Add(2 * time.Hour)
		bookkeeper.times["1.2.3"] = model.ProcessingTimes{ReceivedAt: &later, CompletedAt: &completed}
		_, err = enricher.Enrich(ctx)
		Expect(err).To(BeNil())

		w, err := store.Workflow().Get(ctx, "study-1")
		Expect(err).To(BeNil())
		Expect(w.MercureReceivedAt.UTC()).To(Equal(first))
		Expect(w.MercureProcessingCompletedAt.UTC()).To(Equal(completed))
	})

	It("skips failing studies and carries on", func() {
		sent("study-1", "1.1")
		sent("study-2", "2.2")
		received := base.Add(time.Minute)
		bookkeeper.errors["1.1"] = errors.New("statement timeout")
		bookkeeper.times["2.2"] = model.ProcessingTimes{ReceivedAt: &received}

		n, err := worker.NewEnricher(store, bookkeeper, publisher, 50).Enrich(ctx)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(1))

		w, err := store.Workflow().Get(ctx, "study-1")
		Expect(err).To(BeNil())
		Expect(w.MercureReceivedAt).To(BeNil())
	})

	It("ignores studies bookkeeper knows nothing about", func() {
		sent("study-1", "1.1")

		n, err := worker.NewEnricher(store, bookkeeper, publisher, 50).Enrich(ctx)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(0))
		Expect(publisher.Kinds()).To(BeEmpty())
	})
})
