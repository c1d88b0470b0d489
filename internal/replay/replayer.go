// Package replay drains the offline queue once connectivity is available.
// It runs in the agent daemon, outside any visit session's lifetime.
package replay

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rafaeyza/salestrack/internal/domain/models"
	"github.com/rafaeyza/salestrack/internal/metrics"
	"github.com/rafaeyza/salestrack/pkg/clients/salesapi"
)

// Queue is the subset of the offline store the replayer needs.
type Queue interface {
	ListAll(ctx context.Context) ([]models.QueuedVisit, error)
	Delete(ctx context.Context, localID int64) error
	Count(ctx context.Context) (int64, error)
}

// Submitter delivers one submission; the sales API client implements it.
type Submitter interface {
	SubmitVisit(ctx context.Context, sub salesapi.Submission) (string, error)
}

// Replayer re-delivers queued visits in insertion order, deleting each entry
// only after server acknowledgement. Entries are never dropped or capped:
// a failed attempt just waits for the next trigger. Failures are invisible to
// the operator; they are logged for diagnostics only.
type Replayer struct {
	queue     Queue
	submitter Submitter
	metrics   *metrics.Metrics
	logger    *zap.Logger

	// drainMu is the single-flight guard: a trigger arriving mid-drain must
	// not process the same entries twice.
	drainMu sync.Mutex
	wake    chan struct{}
}

// NewReplayer wires a replayer.
func NewReplayer(queue Queue, submitter Submitter, m *metrics.Metrics, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replayer{
		queue:     queue,
		submitter: submitter,
		metrics:   m,
		logger:    logger,
		wake:      make(chan struct{}, 1),
	}
}

// Wake requests a drain. Non-blocking; coalesces with a pending request.
// The submission pipeline calls this right after an offline enqueue.
func (r *Replayer) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run waits for triggers until ctx is cancelled. regained is the
// connectivity monitor's offline-to-online edge; Wake and the cron safety
// net feed the internal channel.
func (r *Replayer) Run(ctx context.Context, regained <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-regained:
			r.Drain(ctx)
		case <-r.wake:
			r.Drain(ctx)
		}
	}
}

// Drain attempts delivery of every queued visit, oldest first. A concurrent
// Drain is a no-op. Draining an empty queue is a no-op.
func (r *Replayer) Drain(ctx context.Context) {
	if !r.drainMu.TryLock() {
		r.logger.Debug("drain already in progress, skipping")
		return
	}
	defer r.drainMu.Unlock()

	visits, err := r.queue.ListAll(ctx)
	if err != nil {
		r.logger.Error("failed listing offline queue", zap.Error(err))
		return
	}

	for _, visit := range visits {
		if ctx.Err() != nil {
			return
		}

		r.metrics.ReplayAttempts.Inc()

		// Same multipart shape the online path would have produced,
		// idempotency token included, so a duplicate after a crash between
		// ack and delete collapses server-side.
		sub := salesapi.Submission{
			Token:      visit.Token,
			CustomerID: visit.CustomerID,
			Latitude:   visit.Latitude,
			Longitude:  visit.Longitude,
			Lines:      visit.Lines,
			Photo:      visit.Photo,
			PhotoName:  visit.PhotoName,
		}

		visitID, err := r.submitter.SubmitVisit(ctx, sub)
		if err != nil {
			// Leave the entry for the next trigger, network or server error
			// alike. No entry is ever abandoned here.
			r.metrics.ReplayFailures.Inc()
			r.logger.Warn("replay attempt failed, entry kept",
				zap.Int64("local_id", visit.LocalID),
				zap.Error(err))
			continue
		}

		if err := r.queue.Delete(ctx, visit.LocalID); err != nil {
			r.metrics.ReplayFailures.Inc()
			r.logger.Error("delivered but failed deleting queue entry",
				zap.Int64("local_id", visit.LocalID),
				zap.Error(err))
			continue
		}

		r.metrics.ReplayAcks.Inc()
		r.logger.Info("queued visit synced",
			zap.Int64("local_id", visit.LocalID),
			zap.String("visit_id", visitID))
	}

	if depth, err := r.queue.Count(ctx); err == nil {
		r.metrics.QueueDepth.Set(float64(depth))
	}
}
