// Package async schedules the deferred half of a document's pipeline run on
// a fixed-size worker pool. Runs for different documents are independent;
// within one run, stage order is preserved because a run is a single job.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/billflow/billflow/internal/entity"
)

// Job is one deferred pipeline run: the working copy of the document after
// synchronous classification plus the OCR text the run needs.
type Job struct {
	Doc         *entity.Document
	OCRText     string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Finalizer runs the background stages (extract → transform → persist →
// notify) for one document.
type Finalizer interface {
	Finalize(ctx context.Context, doc *entity.Document, ocrText string) error
}

var (
	ErrQueueClosed = errors.New("queue is shut down")
	ErrQueueFull   = errors.New("queue is full")
)

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.size = n
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// ProcessorQueue is a buffered channel of jobs drained by a fixed worker
// pool. Enqueue never blocks: a full queue is an error the caller logs, and
// the persisted Classified record stays recoverable by reprocessing.
type ProcessorQueue struct {
	proc    Finalizer
	logger  *slog.Logger
	workers int
	size    int
	timeout time.Duration

	jobs      chan Job
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewProcessorQueue(proc Finalizer, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		size:    256,
		timeout: 3 * time.Minute,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.size)

	q.wg.Add(q.workers)
	for i := 0; i < q.workers; i++ {
		go q.worker(i)
	}
	q.logger.Info("queue.started", "workers", q.workers, "queue_size", q.size)
	return q
}

// Enqueue schedules one job. The ctx only gates admission, not execution:
// the job outlives the request that submitted it.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *ProcessorQueue) worker(id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		q.run(id, job)
	}
}

func (q *ProcessorQueue) run(worker int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	start := time.Now()
	err := q.proc.Finalize(ctx, job.Doc, job.OCRText)
	if err != nil {
		// The caller's response is long gone; logs and the persisted state
		// are the only observers of background failures.
		q.logger.Error("queue.job.failed",
			"worker", worker,
			"document_id", job.Doc.ID,
			"trace_id", job.TraceID,
			"queued_ms", start.Sub(job.SubmittedAt).Milliseconds(),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return
	}
	q.logger.Info("queue.job.ok",
		"worker", worker,
		"document_id", job.Doc.ID,
		"trace_id", job.TraceID,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// Shutdown stops admission and waits for in-flight jobs, up to ctx's
// deadline.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.closeOnce.Do(func() {
		close(q.done)
		close(q.jobs)
	})

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		q.logger.Info("queue.drained")
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.timeout", "error", ctx.Err())
	}
}
