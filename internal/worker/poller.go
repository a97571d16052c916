package worker

import (
	"context"
	"errors"
	"time"

	"github.com/aide-monitoring/workflow-tracker/internal/events"
	"github.com/aide-monitoring/workflow-tracker/internal/orthanc"
	"github.com/aide-monitoring/workflow-tracker/internal/store"
	"github.com/aide-monitoring/workflow-tracker/internal/store/model"
	"github.com/aide-monitoring/workflow-tracker/pkg/metrics"
	"go.uber.org/zap"
)

// JobStatusReader reads the state of a gateway job.
type JobStatusReader interface {
	GetJob(ctx context.Context, jobID string) (*orthanc.Job, error)
}

type jobOutcome string

const (
	jobOutcomeSuccess jobOutcome = "success"
	jobOutcomeFailure jobOutcome = "failure"
	jobOutcomeGone    jobOutcome = "gone"
)

type resolution struct {
	job     model.PendingJob
	outcome jobOutcome
	errMsg  *string
}

// JobPoller resolves pending send jobs against the gateway and records their outcome.
type JobPoller struct {
	store     store.Store
	jobs      JobStatusReader
	publisher events.Publisher
	log       *zap.SugaredLogger
}

func NewJobPoller(s store.Store, jobs JobStatusReader, publisher events.Publisher) *JobPoller {
	return &JobPoller{
		store:     s,
		jobs:      jobs,
		publisher: publisher,
		log:       zap.S().Named("job_poller"),
	}
}

// Poll runs one cycle. Gateway calls happen first; resolutions are then applied in a
// single transaction so a store failure leaves every job pending for the next cycle.
// It returns the number of jobs resolved.
func (p *JobPoller) Poll(ctx context.Context) (int, error) {
	jobs, err := p.store.PendingJob().List(ctx, nil)
	if err != nil {
		return 0, err
	}
	metrics.UpdatePendingJobsMetric(len(jobs))

	resolutions := make([]resolution, 0, len(jobs))
	for _, job := range jobs {
		if r, ok := p.check(ctx, job); ok {
			resolutions = append(resolutions, r)
		}
	}

	if len(resolutions) == 0 {
		return 0, nil
	}

	txCtx, err := p.store.NewTransactionContext(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	for _, r := range resolutions {
		if err := p.apply(txCtx, r, now); err != nil {
			_, _ = store.Rollback(txCtx)
			return 0, err
		}
	}

	if _, err := store.Commit(txCtx); err != nil {
		return 0, err
	}

	for _, r := range resolutions {
		metrics.IncreaseJobsResolvedMetric(r.job.Destination, string(r.outcome))
		p.publisher.Publish(ctx, events.JobResolvedKind, events.JobResolvedEvent{
			JobID:       r.job.JobID,
			StudyID:     r.job.StudyID,
			Destination: r.job.Destination,
			Outcome:     string(r.outcome),
			Error:       r.errMsg,
		})
	}
	metrics.UpdatePendingJobsMetric(len(jobs) - len(resolutions))

	return len(resolutions), nil
}

func (p *JobPoller) check(ctx context.Context, job model.PendingJob) (resolution, bool) {
	jobCtx, cancel := context.WithTimeout(ctx, orthanc.JobTimeout)
	defer cancel()

	status, err := p.jobs.GetJob(jobCtx, job.JobID)
	switch {
	case errors.Is(err, orthanc.ErrNotFound):
		p.log.Infow("job no longer known by the gateway, dropping it", "job_id", job.JobID, "study_id", job.StudyID)
		return resolution{job: job, outcome: jobOutcomeGone}, true
	case err != nil:
		p.log.Warnw("failed to check job", "job_id", job.JobID, "error", err)
		return resolution{}, false
	}

	switch {
	case status.State == orthanc.JobStateSuccess:
		return resolution{job: job, outcome: jobOutcomeSuccess}, true
	case status.State == orthanc.JobStateFailure:
		msg := status.ErrorMessage()
		return resolution{job: job, outcome: jobOutcomeFailure, errMsg: &msg}, true
	case status.State.InProgress():
		return resolution{}, false
	default:
		p.log.Warnw("unexpected job state", "job_id", job.JobID, "state", status.State)
		return resolution{}, false
	}
}

func (p *JobPoller) apply(ctx context.Context, r resolution, at time.Time) error {
	if r.outcome != jobOutcomeGone {
		if err := p.record(ctx, r, at); err != nil {
			return err
		}
	}
	return p.store.PendingJob().Delete(ctx, r.job.JobID)
}

func (p *JobPoller) record(ctx context.Context, r resolution, at time.Time) error {
	dest, err := model.ParseDestination(r.job.Destination)
	if err != nil {
		p.log.Warnw("pending job has unknown destination", "job_id", r.job.JobID, "destination", r.job.Destination)
		return nil
	}

	updated, err := p.store.Workflow().RecordOutcome(ctx, r.job.StudyID, dest, store.Outcome{
		Success:         r.outcome == jobOutcomeSuccess,
		Error:           r.errMsg,
		At:              at,
		KeepFirstSentAt: true,
	})
	if err != nil {
		return err
	}
	if !updated {
		p.log.Infow("job resolved for untracked study", "job_id", r.job.JobID, "study_id", r.job.StudyID)
		return nil
	}

	p.log.Infow("job resolved", "job_id", r.job.JobID, "study_id", r.job.StudyID, "destination", dest, "outcome", r.outcome)
	return nil
}
