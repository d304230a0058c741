package sync

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clarioclaims/engine/domain"
	"github.com/clarioclaims/engine/internal/platformconfig"
	"github.com/clarioclaims/engine/internal/platformerr"
	"github.com/clarioclaims/engine/internal/platformlog"
	"github.com/clarioclaims/engine/internal/resilience/retry"
	"github.com/clarioclaims/engine/provider"
)

// TaskPacing is the delay the dispatch loop sleeps between tasks and
// between windows (§4.8), so a sync run never hammers a provider at the
// plan's full concurrency.
const (
	TaskPacing   = 1 * time.Second
	WindowPacing = 5 * time.Second
)

// RecordHandler is invoked with every raw record a task downloads; the
// caller is expected to run it through the normalizer and ledger store.
// Kept decoupled from the orchestrator so this package never imports
// normalize/ledger directly.
type RecordHandler func(ctx context.Context, seller domain.SellerID, reportType domain.ReportType, window domain.Window, raw []provider.RawRecord) error

// ProgressSink receives a ProgressEvent after every task, the way the
// Progress Publisher consumes them.
type ProgressSink interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
}

// Orchestrator runs queued per-seller sync jobs: it tiles each job's
// window/report-type plan into tasks, executes them against a provider
// Adapter with job-level retry, paces calls, persists a durable checkpoint
// after every task, and honors cooperative cancellation between tasks.
type Orchestrator struct {
	queue    Queue
	jobs     JobStore
	adapter  provider.Adapter
	onRecord RecordHandler
	progress ProgressSink
	cfg      *platformconfig.Config
	logger   platformlog.Logger
	retryCfg retry.Config

	taskPacing   time.Duration
	windowPacing time.Duration

	sellerLocksMu sync.Mutex
	sellerLocks   map[domain.SellerID]*sync.Mutex
}

// WithPacing overrides the default task/window pacing, used by tests so a
// plan's sleeps don't dominate the run.
func (o *Orchestrator) WithPacing(task, window time.Duration) *Orchestrator {
	o.taskPacing = task
	o.windowPacing = window
	return o
}

func NewOrchestrator(queue Queue, jobs JobStore, adapter provider.Adapter, onRecord RecordHandler, progress ProgressSink, cfg *platformconfig.Config, logger platformlog.ComponentAwareLogger) *Orchestrator {
	var lg platformlog.Logger = platformlog.Noop()
	if logger != nil {
		lg = logger.WithComponent("sync/orchestrator")
	}
	if cfg == nil {
		cfg = platformconfig.Default()
	}
	return &Orchestrator{
		queue:       queue,
		jobs:        jobs,
		adapter:     adapter,
		onRecord:    onRecord,
		progress:    progress,
		cfg:         cfg,
		logger:      lg,
		retryCfg:     retry.DefaultConfig(),
		taskPacing:   TaskPacing,
		windowPacing: WindowPacing,
		sellerLocks:  make(map[domain.SellerID]*sync.Mutex),
	}
}

// Submit creates a new job for seller, enforcing the invariant that at most
// one non-terminal job of the same kind may exist per seller (§4.8), and
// enqueues it for a worker to pick up.
func (o *Orchestrator) Submit(ctx context.Context, seller domain.SellerID, kind domain.JobKind, reportTypes []domain.ReportType, priority int) (domain.SyncJob, error) {
	if len(reportTypes) == 0 {
		reportTypes = domain.AllReportTypes
	}

	now := time.Now()
	total := len(Windows(now, o.cfg.MonthsToSync, o.cfg.BatchWindowMonths)) * len(reportTypes)

	job := domain.SyncJob{
		JobID:       uuid.NewString(),
		SellerID:    seller,
		Kind:        kind,
		ReportTypes: reportTypes,
		Priority:    priority,
		State:       domain.JobQueued,
		Progress:    domain.Progress{Current: 0, Total: total},
		Checkpoint:  domain.Checkpoint{WindowIndex: -1, ReportIndex: -1},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := o.jobs.Create(ctx, job); err != nil {
		return domain.SyncJob{}, err
	}
	if err := o.queue.Enqueue(ctx, QueuedJob{JobID: job.JobID, SellerID: string(seller), Priority: priority}); err != nil {
		return domain.SyncJob{}, err
	}
	return job, nil
}

// Cancel marks job as cancelled; the running worker observes this between
// tasks and stops without aborting any in-flight provider call (§4.8).
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.State.IsTerminal() {
		return nil
	}
	job.State = domain.JobCancelled
	return o.jobs.Update(ctx, job)
}

// RunWorkers starts workerCount goroutines draining the queue until ctx is
// done. fullHistoricalSync jobs are additionally serialized per seller (the
// hard "one full sync at a time per seller" invariant); reportDownload jobs
// run with the full worker concurrency.
func (o *Orchestrator) RunWorkers(ctx context.Context, workerCount int) error {
	if workerCount <= 0 {
		workerCount = o.cfg.ReportDownloadWorkers
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			o.workerLoop(ctx, workerID)
		}(i)
	}
	wg.Wait()
	return nil
}

func (o *Orchestrator) workerLoop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		queued, err := o.queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Warn("dequeue failed", map[string]interface{}{"worker": workerID, "error": err.Error()})
			continue
		}
		if queued == nil {
			continue // timeout, no task available
		}

		if err := o.runJob(ctx, queued.JobID); err != nil {
			o.logger.Error("job run failed", map[string]interface{}{"job_id": queued.JobID, "error": err.Error()})
		}
	}
}

var tracer = otel.Tracer("github.com/clarioclaims/engine/sync")

// runJob drives one job's full task plan to completion, failure, or
// cancellation, serializing fullHistoricalSync jobs per seller.
func (o *Orchestrator) runJob(ctx context.Context, jobID string) (runErr error) {
	ctx, span := tracer.Start(ctx, "sync.job",
		trace.WithAttributes(attribute.String("job_id", jobID)))
	defer func() {
		if runErr != nil {
			span.RecordError(runErr)
			span.SetStatus(codes.Error, runErr.Error())
		}
		span.End()
	}()

	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("seller", string(job.SellerID)),
		attribute.String("job_kind", string(job.Kind)),
	)
	if job.State.IsTerminal() {
		return nil
	}

	if job.Kind == domain.JobKindFullHistoricalSync {
		lock := o.sellerLock(job.SellerID)
		lock.Lock()
		defer lock.Unlock()
	}

	job.State = domain.JobRunning
	job.Attempts++
	if err := o.jobs.Update(ctx, job); err != nil {
		return err
	}

	err = o.executePlan(ctx, &job)

	job, getErr := o.jobs.Get(ctx, jobID)
	if getErr != nil {
		return getErr
	}
	if job.State == domain.JobCancelled {
		return nil
	}

	switch {
	case err == nil:
		job.State = domain.JobCompleted
		job.Error = nil
		return o.jobs.Update(ctx, job)

	case !platformerr.IsFatal(err) && job.Attempts < o.cfg.MaxJobAttempts:
		job.State = domain.JobQueued
		job.Error = &domain.JobError{Kind: string(platformerr.KindOf(err)), Message: err.Error()}
		if updErr := o.jobs.Update(ctx, job); updErr != nil {
			return updErr
		}
		return o.retryJob(ctx, jobID, job.Attempts)

	default:
		job.State = domain.JobFailed
		job.Error = &domain.JobError{Kind: string(platformerr.KindOf(err)), Message: err.Error()}
		return o.jobs.Update(ctx, job)
	}
}

// retryJob re-enqueues a job after the job-level jittered backoff (§4.8:
// base 2s, up to MaxJobAttempts).
func (o *Orchestrator) retryJob(ctx context.Context, jobID string, attempt int) error {
	cfg := o.retryCfg
	delay := cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.Multiplier)
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.JitterFrac > 0 {
		delay += time.Duration((rand.Float64()*2 - 1) * cfg.JitterFrac * float64(delay))
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}

	return o.queue.Enqueue(ctx, QueuedJob{JobID: jobID})
}

// executePlan walks the job's task plan from its checkpoint, pacing calls
// and persisting progress after every task. A non-Fatal task error is
// logged and the plan continues; a Fatal error aborts the job immediately.
func (o *Orchestrator) executePlan(ctx context.Context, job *domain.SyncJob) error {
	tasks := Plan(job.CreatedAt, o.cfg.MonthsToSync, o.cfg.BatchWindowMonths)
	startAt := ResumeIndex(tasks, job.Checkpoint)

	for i := startAt; i < len(tasks); i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		current, err := o.jobs.Get(ctx, job.JobID)
		if err == nil && current.State == domain.JobCancelled {
			return nil
		}

		task := tasks[i]
		taskErr := o.runTask(ctx, job.SellerID, task)

		status := domain.TaskCompleted
		message := ""
		if taskErr != nil {
			status = domain.TaskFailed
			message = taskErr.Error()
		}

		progress := domain.Progress{Current: i + 1, Total: len(tasks)}
		if err := o.jobs.Checkpoint(ctx, job.JobID, domain.Checkpoint{WindowIndex: task.WindowIndex, ReportIndex: task.ReportIndex}, progress); err != nil {
			return err
		}

		if o.progress != nil {
			_ = o.progress.Publish(ctx, domain.ProgressEvent{
				SellerID: job.SellerID, JobID: job.JobID, Current: progress.Current, Total: progress.Total,
				ReportType: task.ReportType, Status: status, Message: message, At: time.Now(),
			})
		}

		if taskErr != nil {
			if platformerr.IsFatal(taskErr) {
				return taskErr
			}
			o.logger.Warn("task failed, continuing plan", map[string]interface{}{
				"job_id": job.JobID, "window_index": task.WindowIndex, "report_index": task.ReportIndex, "error": taskErr.Error(),
			})
		}

		o.pace(ctx, i, tasks)
	}
	return nil
}

// pace sleeps TaskPacing between tasks and, when the next task starts a new
// window, an additional WindowPacing (§4.8).
func (o *Orchestrator) pace(ctx context.Context, i int, tasks []Task) {
	if i+1 >= len(tasks) {
		return
	}
	wait := o.taskPacing
	if tasks[i+1].WindowIndex != tasks[i].WindowIndex {
		wait += o.windowPacing
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

// runTask downloads one (window, report_type) task's records and hands them
// to the configured RecordHandler. Attempt-level retry lives in the
// Throttled Client the adapter is wrapped with, not here (§4.8).
func (o *Orchestrator) runTask(ctx context.Context, seller domain.SellerID, task Task) error {
	records, err := o.adapter.DownloadReport(ctx, seller, task.ReportType, task.Window)
	if err != nil {
		return platformerr.Wrap("sync.runTask", platformerr.KindOf(err),
			fmt.Errorf("download %s window %d: %w", task.ReportType, task.WindowIndex, err))
	}

	if o.onRecord != nil {
		if err := o.onRecord(ctx, seller, task.ReportType, task.Window, records); err != nil {
			return fmt.Errorf("handle %s records: %w", task.ReportType, err)
		}
	}
	return nil
}

func (o *Orchestrator) sellerLock(seller domain.SellerID) *sync.Mutex {
	o.sellerLocksMu.Lock()
	defer o.sellerLocksMu.Unlock()
	lock, ok := o.sellerLocks[seller]
	if !ok {
		lock = &sync.Mutex{}
		o.sellerLocks[seller] = lock
	}
	return lock
}
