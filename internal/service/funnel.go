package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
)

const (
	StageInput      = "INPUT"
	StageProcessing = "PROCESSING"
	StageOutput     = "OUTPUT"

	StatusNeutral = "neutral"
	StatusSuccess = "success"
	StatusWaiting = "waiting"
	StatusWarning = "warning"

	IntervalHour = "hour"
	IntervalDay  = "day"
)

// DestinationCounts are the send outcomes of one destination over a set of studies.
type DestinationCounts struct {
	Attempted int
	Succeeded int
	Failed    int
	// Pending counts studies still waiting for a send: for the gateway, studies never sent;
	// for routing targets, studies with AI results and no send.
	Pending int
}

// FunnelStats are the raw counters of a set of studies.
type FunnelStats struct {
	Total             int
	MercureReceived   int
	MercureProcessing int
	MercureCompleted  int
	AIReceived        int
	AIWaiting         int
	FullyComplete     int
	Destinations      map[model.Destination]DestinationCounts
}

func (f FunnelStats) Destination(d model.Destination) DestinationCounts {
	return f.Destinations[d]
}

// RoutingFailed sums the failures of every routing destination.
func (f FunnelStats) RoutingFailed() int {
	failed := 0
	for _, d := range model.RoutingDestinations {
		failed += f.Destinations[d].Failed
	}
	return failed
}

func ComputeFunnelStats(workflows model.StudyWorkflowList) FunnelStats {
	stats := FunnelStats{Destinations: make(map[model.Destination]DestinationCounts)}
	destinations := append([]model.Destination{model.DestinationMercure}, model.RoutingDestinations...)

	for _, w := range workflows {
		stats.Total++
		if w.MercureReceivedAt != nil {
			stats.MercureReceived++
		}
		if w.MercureProcessingStartedAt != nil {
			stats.MercureProcessing++
		}
		if w.MercureProcessingCompletedAt != nil {
			stats.MercureCompleted++
		}
		if w.AIResultsReceived {
			stats.AIReceived++
		} else if w.Mercure.Succeeded() {
			stats.AIWaiting++
		}
		if w.FullyComplete() {
			stats.FullyComplete++
		}

		for _, d := range destinations {
			stage := w.Stage(d)
			counts := stats.Destinations[d]
			if stage.SentAt != nil {
				counts.Attempted++
			}
			if stage.Succeeded() {
				counts.Succeeded++
			}
			if stage.Failed() {
				counts.Failed++
			}
			if stage.SentAt == nil && (d == model.DestinationMercure || w.AIResultsReceived) {
				counts.Pending++
			}
			stats.Destinations[d] = counts
		}
	}

	return stats
}

type FunnelChild struct {
	Name    string
	Count   int
	Percent float64
	Failed  int
}

type FunnelStage struct {
	Stage     string
	Name      string
	Count     int
	Percent   float64
	BaseCount *int
	Failed    *int
	Status    string
	Children  []FunnelChild
}

type FunnelSummary struct {
	MercureSuccessRate   float64
	RoutingSuccessRate   float64
	OverallSuccessRate   float64
	DropOffMercureSend   int
	DropOffAINoResponse  int
	DropOffRoutingFailed int
}

type Funnel struct {
	Hours    int
	Total    int
	Pipeline []FunnelStage
	Summary  FunnelSummary
}

// stageSpec declares one funnel stage. A nil base makes the percent relative to the whole
// window; an explicit base is relative to that stage and is floored at 1.
type stageSpec struct {
	stage    string
	name     string
	count    func(FunnelStats) int
	base     func(FunnelStats) int
	whole    bool
	status   func(FunnelStats, int) string
	failed   func(FunnelStats) int
	children bool
}

var funnelStages = []stageSpec{
	{
		stage:  StageInput,
		name:   "Studies in Orthanc",
		count:  func(s FunnelStats) int { return s.Total },
		whole:  true,
		status: func(FunnelStats, int) string { return StatusNeutral },
	},
	{
		stage:  StageInput,
		name:   "Sent to Mercure",
		count:  func(s FunnelStats) int { return s.Destination(model.DestinationMercure).Attempted },
		status: successOr(StatusNeutral),
	},
	{
		stage:  StageProcessing,
		name:   "Received at Mercure",
		count:  func(s FunnelStats) int { return s.MercureReceived },
		base:   func(s FunnelStats) int { return s.Destination(model.DestinationMercure).Attempted },
		status: successOr(StatusWaiting),
	},
	{
		stage:  StageProcessing,
		name:   "Processed by Mercure",
		count:  func(s FunnelStats) int { return s.MercureCompleted },
		base:   func(s FunnelStats) int { return s.MercureReceived },
		status: successOr(StatusWaiting),
	},
	{
		stage:  StageOutput,
		name:   "AI Results Back to Orthanc",
		count:  func(s FunnelStats) int { return s.AIReceived },
		base:   func(s FunnelStats) int { return s.MercureCompleted },
		status: successOr(StatusWaiting),
	},
	{
		stage: StageOutput,
		name:  "Routed to Destinations",
		count: func(s FunnelStats) int { return s.FullyComplete },
		base:  func(s FunnelStats) int { return s.AIReceived },
		status: func(s FunnelStats, _ int) string {
			switch {
			case s.RoutingFailed() == 0 && s.AIReceived > 0:
				return StatusSuccess
			case s.RoutingFailed() > 0:
				return StatusWarning
			default:
				return StatusNeutral
			}
		},
		failed:   FunnelStats.RoutingFailed,
		children: true,
	},
}

func successOr(fallback string) func(FunnelStats, int) string {
	return func(_ FunnelStats, count int) string {
		if count > 0 {
			return StatusSuccess
		}
		return fallback
	}
}

// BuildFunnel renders the stage table over stats.
func BuildFunnel(hours int, stats FunnelStats) *Funnel {
	funnel := &Funnel{
		Hours:    hours,
		Total:    stats.Total,
		Pipeline: make([]FunnelStage, 0, len(funnelStages)),
	}

	for _, stageDef := range funnelStages {
		count := stageDef.count(stats)
		stage := FunnelStage{
			Stage:  stageDef.stage,
			Name:   stageDef.name,
			Count:  count,
			Status: stageDef.status(stats, count),
		}

		switch {
		case stageDef.whole:
			stage.Percent = 100
		case stageDef.base == nil:
			stage.Percent = percent(count, stats.Total)
		default:
			base := stageDef.base(stats)
			stage.BaseCount = &base
			stage.Percent = percent(count, max(base, 1))
		}

		if stageDef.failed != nil {
			failed := stageDef.failed(stats)
			stage.Failed = &failed
		}

		if stageDef.children {
			for _, d := range model.RoutingDestinations {
				counts := stats.Destination(d)
				stage.Children = append(stage.Children, FunnelChild{
					Name:    d.String(),
					Count:   counts.Succeeded,
					Percent: percent(counts.Succeeded, max(stats.AIReceived, 1)),
					Failed:  counts.Failed,
				})
			}
		}

		funnel.Pipeline = append(funnel.Pipeline, stage)
	}

	funnel.Summary = FunnelSummary{
		MercureSuccessRate:   percent(stats.AIReceived, max(stats.Destination(model.DestinationMercure).Succeeded, 1)),
		RoutingSuccessRate:   percent(stats.FullyComplete, stats.AIReceived),
		OverallSuccessRate:   percent(stats.FullyComplete, stats.Total),
		DropOffMercureSend:   stats.Destination(model.DestinationMercure).Failed,
		DropOffAINoResponse:  stats.AIWaiting,
		DropOffRoutingFailed: stats.RoutingFailed(),
	}

	return funnel
}

// percent is n/base*100 rounded to one decimal, 0 for an empty base.
func percent(n, base int) float64 {
	if base <= 0 {
		return 0
	}
	return math.Round(float64(n)/float64(base)*1000) / 10
}

type TimeBucket struct {
	Bucket          string
	StudiesReceived int
	MercureSent     int
	AIResults       int
	LpchRouted      int
	LpchtRouted     int
	ModlinkRouted   int
	FullyComplete   int
}

type DestinationStats struct {
	Destination model.Destination
	DestinationCounts
}

// SuccessRate is nil until at least one terminal outcome was recorded.
func (d DestinationStats) SuccessRate() *float64 {
	total := d.Succeeded + d.Failed
	if total == 0 {
		return nil
	}
	rate := percent(d.Succeeded, total)
	return &rate
}

type FunnelService struct {
	store    store.Store
	verifier StudyVerifier
}

func NewFunnelService(s store.Store, verifier StudyVerifier) *FunnelService {
	return &FunnelService{store: s, verifier: verifier}
}

// Funnel counts the studies created in the window that still exist upstream.
// Every study costs one upstream call per request.
func (f *FunnelService) Funnel(ctx context.Context, hours int) (*Funnel, error) {
	workflows, err := f.window(ctx, hours)
	if err != nil {
		return nil, err
	}

	existing := filterExisting(ctx, f.verifier, workflows)
	return BuildFunnel(hours, ComputeFunnelStats(existing)), nil
}

// Timeseries buckets the window by creation time, oldest bucket first.
func (f *FunnelService) Timeseries(ctx context.Context, hours int, interval string) ([]TimeBucket, error) {
	layout, err := bucketLayout(interval)
	if err != nil {
		return nil, err
	}

	workflows, err := f.window(ctx, hours)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*TimeBucket)
	for _, w := range workflows {
		key := w.CreatedAt.UTC().Format(layout)
		b, ok := buckets[key]
		if !ok {
			b = &TimeBucket{Bucket: key}
			buckets[key] = b
		}

		b.StudiesReceived++
		if w.Mercure.Succeeded() {
			b.MercureSent++
		}
		if w.AIResultsReceived {
			b.AIResults++
		}
		if w.Lpch.Succeeded() {
			b.LpchRouted++
		}
		if w.Lpcht.Succeeded() {
			b.LpchtRouted++
		}
		if w.Modlink.Succeeded() {
			b.ModlinkRouted++
		}
		if w.FullyComplete() {
			b.FullyComplete++
		}
	}

	series := make([]TimeBucket, 0, len(buckets))
	for _, b := range buckets {
		series = append(series, *b)
	}
	// both layouts sort lexically in time order
	sort.Slice(series, func(i, j int) bool { return series[i].Bucket < series[j].Bucket })

	return series, nil
}

// RoutingStats reports per destination outcomes, gateway first.
func (f *FunnelService) RoutingStats(ctx context.Context, hours int) ([]DestinationStats, error) {
	workflows, err := f.window(ctx, hours)
	if err != nil {
		return nil, err
	}

	stats := ComputeFunnelStats(workflows)
	destinations := append([]model.Destination{model.DestinationMercure}, model.RoutingDestinations...)

	result := make([]DestinationStats, 0, len(destinations))
	for _, d := range destinations {
		result = append(result, DestinationStats{Destination: d, DestinationCounts: stats.Destination(d)})
	}
	return result, nil
}

func (f *FunnelService) window(ctx context.Context, hours int) (model.StudyWorkflowList, error) {
	return f.store.Workflow().List(ctx, store.NewWorkflowQueryFilter().CreatedSince(windowStart(hours)), nil)
}

func bucketLayout(interval string) (string, error) {
	switch interval {
	case "", IntervalHour:
		return "2006-01-02 15:00", nil
	case IntervalDay:
		return time.DateOnly, nil
	default:
		return "", NewErrInvalidInterval(interval)
	}
}
