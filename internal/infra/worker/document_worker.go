package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"amc-subscription/internal/domain/model"
	"amc-subscription/internal/domain/ports/adapter"
	"amc-subscription/internal/infra/adapters/documents"
	"amc-subscription/internal/infra/metrics"
)

// DocumentSource is the consumer side of the reliable document queue.
type DocumentSource interface {
	Dequeue(ctx context.Context, wait time.Duration) (*model.DocumentJob, error)
	Ack(ctx context.Context, job *model.DocumentJob) error
	Requeue(ctx context.Context, job *model.DocumentJob) (dead bool, err error)
	Bury(ctx context.Context, job *model.DocumentJob) error
	RecoverStuck(ctx context.Context, maxAge time.Duration) (int, error)
	Depth(ctx context.Context) (pending, processing int64, err error)
}

type DocumentWorkerOptions struct {
	PollWait      time.Duration // BRPOPLPUSH block time
	StuckAfter    time.Duration
	SweepInterval time.Duration
	JobTimeout    time.Duration
}

// DocumentWorker drains the document queue into the document generator
// through a Pool. Failed jobs are requeued until the queue buries them.
type DocumentWorker struct {
	source    DocumentSource
	generator adapter.DocumentGenerator
	opts      DocumentWorkerOptions
	log       *zerolog.Logger
}

func NewDocumentWorker(source DocumentSource, generator adapter.DocumentGenerator, opts DocumentWorkerOptions, logger *zerolog.Logger) *DocumentWorker {
	if opts.PollWait <= 0 {
		opts.PollWait = 2 * time.Second
	}
	if opts.StuckAfter <= 0 {
		opts.StuckAfter = 10 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Second
	}
	l := logger.With().Str("component", "DocumentWorker").Logger()
	return &DocumentWorker{source: source, generator: generator, opts: opts, log: &l}
}

// Start runs the dequeue loop and the stuck-job sweeper until ctx ends.
// It should be run in a goroutine; the pool must already be started.
func (w *DocumentWorker) Start(ctx context.Context, pool *Pool) {
	w.log.Info().Int("workers", pool.Size()).Msg("document worker started")
	go w.sweep(ctx)

	for {
		if ctx.Err() != nil {
			w.log.Info().Msg("document worker stopping")
			return
		}
		job, err := w.source.Dequeue(ctx, w.opts.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("dequeue document job")
			w.pause(ctx, time.Second)
			continue
		}
		if job == nil {
			continue
		}
		if err := pool.SubmitWait(ctx, func(ctx context.Context) error { return w.Process(ctx, job) }); err != nil {
			// The job stays in processing and the sweeper hands it back.
			w.log.Warn().Err(err).Str("job_id", job.ID).Msg("could not hand job to pool")
			return
		}
	}
}

// Process delivers one job and settles it on the queue.
func (w *DocumentWorker) Process(ctx context.Context, job *model.DocumentJob) error {
	log := w.log.With().Str("job_id", job.ID).Str("order_form_id", job.OrderFormID).Int("attempt", job.Attempts+1).Logger()

	gctx, cancel := context.WithTimeout(ctx, w.opts.JobTimeout)
	err := w.generator.Generate(gctx, job)
	cancel()

	if err == nil {
		metrics.IncDocumentJob("completed")
		if ackErr := w.source.Ack(ctx, job); ackErr != nil {
			log.Error().Err(ackErr).Msg("ack document job")
			return ackErr
		}
		log.Info().Msg("document job completed")
		return nil
	}

	if documents.IsPermanent(err) {
		metrics.IncDocumentJob("dead")
		log.Error().Err(err).Msg("document job rejected, burying")
		if buryErr := w.source.Bury(ctx, job); buryErr != nil {
			return errors.Join(err, buryErr)
		}
		return err
	}

	dead, reqErr := w.source.Requeue(ctx, job)
	if reqErr != nil {
		log.Error().Err(reqErr).Msg("requeue document job")
		return errors.Join(err, reqErr)
	}
	if dead {
		metrics.IncDocumentJob("dead")
		log.Error().Err(err).Msg("document job exhausted its attempts")
	} else {
		metrics.IncDocumentJob("retried")
		log.Warn().Err(err).Msg("document job failed, requeued")
	}
	return err
}

func (w *DocumentWorker) sweep(ctx context.Context) {
	ticker := time.NewTicker(w.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce recovers stuck jobs and publishes queue depth.
func (w *DocumentWorker) SweepOnce(ctx context.Context) {
	n, err := w.source.RecoverStuck(ctx, w.opts.StuckAfter)
	if err != nil {
		w.log.Error().Err(err).Msg("recover stuck document jobs")
	} else if n > 0 {
		metrics.IncDocumentJobs("recovered", n)
	}
	pending, processing, err := w.source.Depth(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("document queue depth")
		return
	}
	metrics.SetDocumentQueueDepth(pending, processing)
}

func (w *DocumentWorker) pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
