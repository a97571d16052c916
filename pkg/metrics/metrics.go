package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	workflowTracker = "workflow_tracker"

	// Poller metrics
	jobsResolvedTotal = "jobs_resolved_total"
	pendingJobsCount  = "pending_jobs_count"

	// Enricher metrics
	enrichmentsTotal = "enrichments_total"

	// Upstream metrics
	upstreamRequestsTotal = "upstream_requests_total"

	// Events
	eventsPublishedTotal = "events_published_total"
	eventsDroppedTotal   = "events_dropped_total"

	// Labels
	destinationLabel = "destination"
	outcomeLabel     = "outcome"
	resultLabel      = "result"
	targetLabel      = "target"
	eventTypeLabel   = "type"
)

/**
* Metrics definition
**/
var jobsResolvedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: workflowTracker,
		Name:      jobsResolvedTotal,
		Help:      "number of pending jobs resolved by the poller, by destination and outcome",
	},
	[]string{destinationLabel, outcomeLabel},
)

var pendingJobsCountMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: workflowTracker,
		Name:      pendingJobsCount,
		Help:      "number of pending jobs seen at the start of the last poll cycle",
	},
)

var enrichmentsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: workflowTracker,
		Name:      enrichmentsTotal,
		Help:      "number of enrichment attempts by result",
	},
	[]string{resultLabel},
)

var upstreamRequestsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: workflowTracker,
		Name:      upstreamRequestsTotal,
		Help:      "number of requests to external systems by target and result",
	},
	[]string{targetLabel, resultLabel},
)

var eventsPublishedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: workflowTracker,
		Name:      eventsPublishedTotal,
		Help:      "number of workflow events handed to the event writer",
	},
	[]string{eventTypeLabel},
)

var eventsDroppedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: workflowTracker,
		Name:      eventsDroppedTotal,
		Help:      "number of workflow events evicted from a full queue before being written",
	},
	[]string{eventTypeLabel},
)

func IncreaseJobsResolvedMetric(destination string, outcome string) {
	labels := prometheus.Labels{
		destinationLabel: destination,
		outcomeLabel:     outcome,
	}
	jobsResolvedTotalMetric.With(labels).Inc()
}

func UpdatePendingJobsMetric(count int) {
	pendingJobsCountMetric.Set(float64(count))
}

func IncreaseEnrichmentsMetric(result string) {
	enrichmentsTotalMetric.With(prometheus.Labels{resultLabel: result}).Inc()
}

func IncreaseUpstreamRequestsMetric(target string, result string) {
	labels := prometheus.Labels{
		targetLabel: target,
		resultLabel: result,
	}
	upstreamRequestsTotalMetric.With(labels).Inc()
}

func IncreaseEventsPublishedMetric(eventType string) {
	eventsPublishedTotalMetric.With(prometheus.Labels{eventTypeLabel: eventType}).Inc()
}

func IncreaseEventsDroppedMetric(eventType string) {
	eventsDroppedTotalMetric.With(prometheus.Labels{eventTypeLabel: eventType}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsResolvedTotalMetric)
	prometheus.MustRegister(pendingJobsCountMetric)
	prometheus.MustRegister(enrichmentsTotalMetric)
	prometheus.MustRegister(upstreamRequestsTotalMetric)
	prometheus.MustRegister(eventsPublishedTotalMetric)
	prometheus.MustRegister(eventsDroppedTotalMetric)
}
