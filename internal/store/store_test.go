package store_test

import (
	"context"

	st "github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("Store", Ordered, func() {
	var (
		store  st.Store
		gormDB *gorm.DB
	)

	BeforeAll(func() {
		store, gormDB = newTestDB()
		Expect(store).ToNot(BeNil())
	})

	AfterAll(func() {
		store.Close()
	})

	Context("transaction", func() {
		It("insert a workflow successfully", func() {
			ctx, err := store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			err = store.Workflow().Start(ctx, model.StudyWorkflow{StudyID: "study-1"})
			Expect(err).To(BeNil())

			_, cerr := st.Commit(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormDB.Raw("SELECT COUNT(*) from study_workflows;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("rollback a workflow successfully", func() {
			ctx, err := store.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			err = store.Workflow().Start(ctx, model.StudyWorkflow{StudyID: "study-1"})
			Expect(err).To(BeNil())

			// visible inside the same transaction
			workflows, err := store.Workflow().List(ctx, st.NewWorkflowQueryFilter(), nil)
			Expect(err).To(BeNil())
			Expect(workflows).To(HaveLen(1))

			_, cerr := st.Rollback(ctx)
			Expect(cerr).To(BeNil())

			count := 0
			err = gormDB.Raw("SELECT COUNT(*) from study_workflows;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(0))
		})

		AfterEach(func() {
			gormDB.Exec("DELETE from study_workflows;")
		})
	})

	Context("reset study", func() {
		It("removes the workflow and its pending jobs", func() {
			err := store.Workflow().Start(context.TODO(), model.StudyWorkflow{StudyID: "study-1"})
			Expect(err).To(BeNil())
			err = store.Workflow().Start(context.TODO(), model.StudyWorkflow{StudyID: "study-2"})
			Expect(err).To(BeNil())

			for _, id := range []string{"job-1", "job-2"} {
				err = store.PendingJob().Register(context.TODO(), model.PendingJob{JobID: id, StudyID: "study-1", Destination: "LPCH"})
				Expect(err).To(BeNil())
			}
			err = store.PendingJob().Register(context.TODO(), model.PendingJob{JobID: "job-3", StudyID: "study-2", Destination: "LPCH"})
			Expect(err).To(BeNil())

			deleted, err := store.ResetStudy(context.TODO(), "study-1")
			Expect(err).To(BeNil())
			Expect(deleted).To(Equal(int64(3)))

			count := 0
			err = gormDB.Raw("SELECT COUNT(*) from study_workflows;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))

			err = gormDB.Raw("SELECT COUNT(*) from pending_jobs;").Scan(&count).Error
			Expect(err).To(BeNil())
			Expect(count).To(Equal(1))
		})

		It("reports zero for an unknown study", func() {
			deleted, err := store.ResetStudy(context.TODO(), "missing")
			Expect(err).To(BeNil())
			Expect(deleted).To(BeZero())
		})

		AfterEach(func() {
			gormDB.Exec("DELETE from study_workflows;")
			gormDB.Exec("DELETE from pending_jobs;")
		})
	})
})
