package store_test

import (
	"context"

	st "github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("store metrics", Ordered, func() {
	var store st.Store

	BeforeAll(func() {
		store, _ = newTestDB()
	})

	AfterAll(func() {
		store.Close()
	})

	It("counts operations going through the instrumented driver", func() {
		ctx, err := store.NewTransactionContext(context.TODO())
		Expect(err).To(BeNil())
		Expect(store.Workflow().Start(ctx, model.StudyWorkflow{StudyID: "metrics-1"})).To(BeNil())
		_, err = st.Commit(ctx)
		Expect(err).To(BeNil())

		_, err = store.Workflow().Get(context.TODO(), "metrics-1")
		Expect(err).To(BeNil())

		families, err := prometheus.DefaultGatherer.Gather()
		Expect(err).To(BeNil())

		ops := map[string]float64{}
		for _, mf := range families {
			if mf.GetName() != "workflow_tracker_store_op_total" {
				continue
			}
			for _, m := range mf.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "op" {
						ops[l.GetValue()] = m.GetCounter().GetValue()
					}
				}
			}
		}
		Expect(ops).To(HaveKey("conn-begin-tx"))
		Expect(ops["tx-commit"]).To(BeNumerically(">=", 1))

		count, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "workflow_tracker_store_op_duration_milliseconds")
		Expect(err).To(BeNil())
		Expect(count).To(BeNumerically(">", 0))
	})
})
