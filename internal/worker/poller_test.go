package worker_test

import (
	"context"
	"errors"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/events"
	"github.com/aide-monitoring/workflow-tracker/internal/orthanc"
	st "github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"github.com/aide-monitoring/workflow-tracker/internal/worker"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("job poller", Ordered, func() {
	var (
		store     st.Store
		gormDB    *gorm.DB
		jobs      *fakeJobs
		publisher *recordingPublisher
		poller    *worker.JobPoller
		ctx       = context.TODO()
	)

	BeforeAll(func() {
		store, gormDB = newTestDB()
	})

	AfterAll(func() {
		store.Close()
	})

	BeforeEach(func() {
		jobs = newFakeJobs()
		publisher = &recordingPublisher{}
		poller = worker.NewJobPoller(store, jobs, publisher)

		Expect(store.Workflow().Start(ctx, model.StudyWorkflow{StudyID: "study-1"})).To(BeNil())
	})

	AfterEach(func() {
		gormDB.Exec("DELETE from study_workflows;")
		gormDB.Exec("DELETE from pending_jobs;")
	})

	register := func(jobID, dest string) {
		Expect(store.PendingJob().Register(ctx, model.PendingJob{JobID: jobID, StudyID: "study-1", Destination: dest})).To(BeNil())
	}

	pendingCount := func() int {
		var count int
		tx := gormDB.Raw("SELECT COUNT(*) FROM pending_jobs;").Scan(&count)
		Expect(tx.Error).To(BeNil())
		return count
	}

	It("records a successful job and drops it", func() {
		register("j1", "LPCH")
		jobs.jobs["j1"] = &orthanc.Job{ID: "j1", State: orthanc.JobStateSuccess}

		resolved, err := poller.Poll(ctx)
		Expect(err).To(BeNil())
		Expect(resolved).To(Equal(1))
		Expect(pendingCount()).To(Equal(0))

		w, err := store.Workflow().Get(ctx, "study-1")
		Expect(err).To(BeNil())
		Expect(w.Lpch.Status()).To(Equal(model.StageStatusSuccess))
		Expect(w.Lpch.SentAt).NotTo(BeNil())
		Expect(w.Lpch.Error).To(BeNil())
		Expect(publisher.Kinds()).To(Equal([]string{events.JobResolvedKind}))
	})

	It("keeps the original sent time", func() {
		sentAt := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
		_, err := store.Workflow().RecordOutcome(ctx, "study-1", model.DestinationModlink, st.Outcome{Success: false, Error: strPtr("queued"), At: sentAt})
		Expect(err).To(BeNil())

		register("j1", "MODLINK")
		jobs.jobs["j1"] = &orthanc.Job{ID: "j1", State: orthanc.JobStateSuccess}

		_, err = poller.Poll(ctx)
		Expect(err).To(BeNil())

		w, err := store.Workflow().Get(ctx, "study-1")
		Expect(err).To(BeNil())
		Expect(w.Modlink.Status()).To(Equal(model.StageStatusSuccess))
		Expect(w.Modlink.Error).To(BeNil())
		Expect(w.Modlink.SentAt.UTC().Equal(sentAt)).To(BeTrue())
	})

	It("records the failure description", func() {
		register("j1", "lpcht")
		jobs.jobs["j1"] = &orthanc.Job{ID: "j1", State: orthanc.JobStateFailure, ErrorDescription: "Network unreachable"}

		_, err := poller.Poll(ctx)
		Expect(err).To(BeNil())
		Expect(pendingCount()).To(Equal(0))

		w, err := store.Workflow().Get(ctx, "study-1")
		Expect(err).To(BeNil())
		Expect(w.Lpcht.Status()).To(Equal(model.StageStatusFailed))
		Expect(*w.Lpcht.Error).To(Equal("Network unreachable"))
	})

	It("falls back to an unknown error", func() {
		register("j1", "MERCURE")
		jobs.jobs["j1"] = &orthanc.Job{ID: "j1", State: orthanc.JobStateFailure}

		_, err := poller.Poll(ctx)
		Expect(err).To(BeNil())

		w, err := store.Workflow().Get(ctx, "study-1")
		Expect(err).To(BeNil())
		Expect(*w.Mercure.Error).To(Equal("Unknown error"))
	})

	It("leaves running jobs alone", func() {
		register("j1", "LPCH")
		register("j2", "LPCHT")
		jobs.jobs["j1"] = &orthanc.Job{ID: "j1", State: orthanc.JobStateRunning}
		jobs.jobs["j2"] = &orthanc.Job{ID: "j2", State: orthanc.JobStatePending}

		resolved, err := poller.Poll(ctx)
		Expect(err).To(BeNil())
		Expect(resolved).To(Equal(0))
		Expect(pendingCount()).To(Equal(2))

		w, err := store.Workflow().Get(ctx, "study-1")
		Expect(err).To(BeNil())
		Expect(w.Lpch.Success).To(BeNil())
	})

	It("drops jobs purged by the gateway without touching the study", func() {
		register("j1", "LPCH")

		resolved, err := poller.Poll(ctx)
		Expect(err).To(BeNil())
		Expect(resolved).To(Equal(1))
		Expect(pendingCount()).To(Equal(0))

		w, err := store.Workflow().Get(ctx, "study-1")
		Expect(err).To(BeNil())
		Expect(w.Lpch.Success).To(BeNil())
	})

	It("keeps jobs on transport errors and unexpected states", func() {
		register("j1", "LPCH")
		register("j2", "LPCHT")
		jobs.errors["j1"] = errors.New("connection refused")
		jobs.jobs["j2"] = &orthanc.Job{ID: "j2", State: "Retry"}

		resolved, err := poller.Poll(ctx)
		Expect(err).To(BeNil())
		Expect(resolved).To(Equal(0))
		Expect(pendingCount()).To(Equal(2))
	})

	It("drops terminal jobs with an unknown destination", func() {
		register("j1", "PACS")
		jobs.jobs["j1"] = &orthanc.Job{ID: "j1", State: orthanc.JobStateSuccess}

		resolved, err := poller.Poll(ctx)
		Expect(err).To(BeNil())
		Expect(resolved).To(Equal(1))
		Expect(pendingCount()).To(Equal(0))
	})

	It("is a no-op without pending jobs", func() {
		resolved, err := poller.Poll(ctx)
		Expect(err).To(BeNil())
		Expect(resolved).To(Equal(0))
		Expect(jobs.calls).To(Equal(0))
	})
})
