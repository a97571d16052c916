package events

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/aide-monitoring/workflow-tracker/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	StageRecordedKind string = "stage_recorded"
	AIResultsKind     string = "ai_results"
	JobResolvedKind   string = "job_resolved"
	StudyEnrichedKind string = "study_enriched"
	StudyResetKind    string = "study_reset"
	StudiesSyncedKind string = "studies_synced"

	defaultTopic  string = "workflow.events"
	defaultSource string = "workflow-tracker"
	writeTimeout         = 5 * time.Second
)

// Writer is the interface to be implemented by the underlying writer.
type Writer interface {
	Write(ctx context.Context, topic string, e Event) error
	Close(ctx context.Context) error
}

// EventProducer is a wrapper around a Writer with a bounded queue.
// Callers never wait on the writer: events are queued and written by a single goroutine.
type EventProducer struct {
	queue   *queue
	size    int
	wakeCh  chan struct{}
	doneCh  chan struct{}
	stopped chan struct{}
	writer  Writer
	topic   string
	source  string
	once    sync.Once
}

func NewEventProducer(w Writer, opts ...ProducerOptions) *EventProducer {
	ep := &EventProducer{
		wakeCh:  make(chan struct{}, 1),
		doneCh:  make(chan struct{}),
		stopped: make(chan struct{}),
		writer:  w,
		topic:   defaultTopic,
		source:  defaultSource,
	}

	for _, o := range opts {
		o(ep)
	}
	ep.queue = newQueue(ep.size)

	go ep.run()
	return ep
}

func (ep *EventProducer) Write(ctx context.Context, kind string, body io.Reader) error {
	d, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	if evicted := ep.queue.Push(&message{Kind: kind, Data: d}); evicted != nil {
		zap.S().Named("event_producer").Warnw("event queue full, dropped oldest event", "kind", evicted.Kind)
		metrics.IncreaseEventsDroppedMetric(evicted.Kind)
	}

	select {
	case ep.wakeCh <- struct{}{}:
	default:
	}

	return nil
}

// Publish encodes v as JSON and queues it. Failures are logged: events never fail the caller.
func (ep *EventProducer) Publish(ctx context.Context, kind string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.S().Named("event_producer").Errorw("failed to encode event", "kind", kind, "error", err)
		return
	}
	if err := ep.Write(ctx, kind, bytes.NewReader(data)); err != nil {
		zap.S().Named("event_producer").Errorw("failed to queue event", "kind", kind, "error", err)
		return
	}
	metrics.IncreaseEventsPublishedMetric(kind)
}

// Close flushes queued events and closes the writer. Calling it again is a no-op.
func (ep *EventProducer) Close() error {
	var err error
	ep.once.Do(func() {
		err = ep.close()
	})
	return err
}

func (ep *EventProducer) close() error {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	close(ep.doneCh)

	g, ctx := errgroup.WithContext(closeCtx)
	g.Go(func() error {
		select {
		case <-ep.stopped:
		case <-ctx.Done():
			return ctx.Err()
		}
		return ep.writer.Close(ctx)
	})
	if err := g.Wait(); err != nil {
		zap.S().Named("event_producer").Errorf("event producer closed with error: %s", err)
		return err
	}

	zap.S().Named("event_producer").Info("event producer closed")

	return nil
}

func (ep *EventProducer) run() {
	defer close(ep.stopped)

	for {
		for _, msg := range ep.queue.Drain() {
			ep.send(msg)
		}

		select {
		case <-ep.wakeCh:
		case <-ep.doneCh:
			for _, msg := range ep.queue.Drain() {
				ep.send(msg)
			}
			return
		}
	}
}

func (ep *EventProducer) send(msg *message) {
	e := Event{
		ID:     uuid.NewString(),
		Source: ep.source,
		Type:   msg.Kind,
		Time:   time.Now().UTC(),
		Data:   msg.Data,
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := ep.writer.Write(ctx, ep.topic, e); err != nil {
		zap.S().Named("event_producer").Errorw("failed to send message", "error", err, "type", e.Type, "id", e.ID)
	}
}

// Publisher queues domain events. Implemented by EventProducer.
type Publisher interface {
	Publish(ctx context.Context, kind string, v any)
}

var _ Publisher = (*EventProducer)(nil)
