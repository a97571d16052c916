package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const collectTimeout = 5 * time.Second

// workflowStatsCollector reads table sizes from the store on every scrape.
type workflowStatsCollector struct {
	store          store.Store
	totalWorkflows *prometheus.Desc
	totalPending   *prometheus.Desc
}

func NewWorkflowStatsCollector(s store.Store) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_store_%s", workflowTracker, name)
	}

	return &workflowStatsCollector{
		store: s,
		totalWorkflows: prometheus.NewDesc(
			fqName("workflows_total"),
			"Total number of tracked study workflows.",
			nil,
			prometheus.Labels{},
		),
		totalPending: prometheus.NewDesc(
			fqName("pending_jobs_total"),
			"Total number of pending jobs waiting for a terminal state.",
			nil,
			prometheus.Labels{},
		),
	}
}

func (c *workflowStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalWorkflows
	ch <- c.totalPending
}

// Collect implements Collector.
func (c *workflowStatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	workflows, err := c.store.Workflow().Count(ctx)
	if err != nil {
		zap.S().Named("workflow_collector").Errorf("failed to count workflows: %s", err)
		return
	}

	pending, err := c.store.PendingJob().Count(ctx)
	if err != nil {
		zap.S().Named("workflow_collector").Errorf("failed to count pending jobs: %s", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.totalWorkflows, prometheus.GaugeValue, float64(workflows))
	ch <- prometheus.MustNewConstMetric(c.totalPending, prometheus.GaugeValue, float64(pending))
}
