package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
)

// Manager owns the background loops. Start launches them once; they stop with ctx.
type Manager struct {
	poller         *JobPoller
	enricher       *Enricher
	pollInterval   time.Duration
	enrichInterval time.Duration

	once sync.Once
	wg   sync.WaitGroup
}

func NewManager(poller *JobPoller, enricher *Enricher, pollInterval, enrichInterval time.Duration) *Manager {
	return &Manager{
		poller:         poller,
		enricher:       enricher,
		pollInterval:   pollInterval,
		enrichInterval: enrichInterval,
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.once.Do(func() {
		zap.S().Named("worker").Infow("starting background workers", "poll_interval", m.pollInterval, "enrich_interval", m.enrichInterval)

		m.wg.Add(2)
		go func() {
			defer m.wg.Done()
			runLoop(ctx, "job_poller", m.pollInterval, m.poller.Poll)
		}()
		go func() {
			defer m.wg.Done()
			runLoop(ctx, "enricher", m.enrichInterval, m.enricher.Enrich)
		}()
	})
}

// Wait blocks until every loop returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func runLoop(ctx context.Context, name string, interval time.Duration, cycle func(context.Context) (int, error)) {
	ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: 30 * time.Millisecond, Mean: 0})
	defer ticker.Stop()

	log := zap.S().Named(name)
	for {
		select {
		case <-ctx.Done():
			log.Info("stopped")
			return
		case <-ticker.C:
			if err := runCycle(ctx, cycle); err != nil {
				log.Errorw("cycle failed", "error", err)
			}
		}
	}
}

func runCycle(ctx context.Context, cycle func(context.Context) (int, error)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	_, err = cycle(ctx)
	return err
}
