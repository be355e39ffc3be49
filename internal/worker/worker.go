package worker

import (
	"context"
	"time"

	"github.com/tekvare/erp-ai-worker/internal/logger"
	"github.com/tekvare/erp-ai-worker/internal/repos"
)

// Worker is the single-consumer poll loop: claim one request, process it to a
// terminal state, then poll again. No parallel job processing; multiple
// worker processes coordinate only through the atomic claim.
type Worker struct {
	log          *logger.Logger
	requests     repos.ChatRequestRepo
	processor    *Processor
	processorTag string
	lockOwner    string
	pollInterval time.Duration
	staleAfter   time.Duration
}

func NewWorker(
	baseLog *logger.Logger,
	requests repos.ChatRequestRepo,
	processor *Processor,
	processorTag string,
	lockOwner string,
	pollInterval time.Duration,
	staleAfter time.Duration,
) *Worker {
	return &Worker{
		log:          baseLog.With("component", "Worker", "lock_owner", lockOwner),
		requests:     requests,
		processor:    processor,
		processorTag: processorTag,
		lockOwner:    lockOwner,
		pollInterval: pollInterval,
		staleAfter:   staleAfter,
	}
}

// Run blocks until ctx is canceled. A claim error is logged and treated as an
// empty cycle; it cannot leave a row locked because the claim failed before
// any lock was taken.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Worker started", "processor_tag", w.processorTag, "poll_interval", w.pollInterval.String())
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			req, err := w.requests.ClaimNext(ctx, nil, w.processorTag, w.lockOwner, w.staleAfter)
			if err != nil {
				w.log.Warn("ClaimNext failed", "error", err)
				continue
			}
			if req == nil {
				continue
			}
			w.processor.Process(ctx, req)
		}
	}
}
