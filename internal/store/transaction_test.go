package store_test

import (
	"context"

	st "github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("transaction context", Ordered, func() {
	var (
		store  st.Store
		gormDB *gorm.DB
	)

	BeforeAll(func() {
		store, gormDB = newTestDB()
	})

	AfterAll(func() {
		store.Close()
	})

	AfterEach(func() {
		gormDB.Exec("DELETE from study_workflows;")
	})

	It("is a no-op without an open transaction", func() {
		ctx := context.TODO()
		Expect(st.FromContext(ctx)).To(BeNil())

		_, err := st.Commit(ctx)
		Expect(err).To(BeNil())
		_, err = st.Rollback(ctx)
		Expect(err).To(BeNil())
	})

	It("joins a transaction already in the context", func() {
		outer, err := store.NewTransactionContext(context.TODO())
		Expect(err).To(BeNil())

		inner, err := store.NewTransactionContext(outer)
		Expect(err).To(BeNil())
		Expect(st.FromContext(inner)).To(BeIdenticalTo(st.FromContext(outer)))

		Expect(store.Workflow().Start(inner, model.StudyWorkflow{StudyID: "tx-1"})).To(BeNil())

		_, err = st.Rollback(outer)
		Expect(err).To(BeNil())

		exists, err := store.Workflow().Exists(context.TODO(), "tx-1")
		Expect(err).To(BeNil())
		Expect(exists).To(BeFalse())
	})

	It("clears the transaction from the returned context", func() {
		ctx, err := store.NewTransactionContext(context.TODO())
		Expect(err).To(BeNil())
		Expect(store.Workflow().Start(ctx, model.StudyWorkflow{StudyID: "tx-2"})).To(BeNil())

		committed, err := st.Commit(ctx)
		Expect(err).To(BeNil())
		Expect(st.FromContext(committed)).To(BeNil())

		// the stale context still points at the finished transaction
		_, err = st.Commit(ctx)
		Expect(err).NotTo(BeNil())
		Expect(st.FromContext(ctx)).To(BeNil())

		exists, err := store.Workflow().Exists(context.TODO(), "tx-2")
		Expect(err).To(BeNil())
		Expect(exists).To(BeTrue())
	})
})
