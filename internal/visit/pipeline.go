// Package visit assembles completed visit drafts and delivers them: directly
// while online, through the durable offline queue otherwise.
package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rafaeyza/salestrack/internal/domain/models"
	"github.com/rafaeyza/salestrack/internal/geofence"
	"github.com/rafaeyza/salestrack/internal/location"
	"github.com/rafaeyza/salestrack/internal/metrics"
	"github.com/rafaeyza/salestrack/pkg/clients/salesapi"
)

// Precondition failures, in the order they are checked. Each maps to a
// distinct operator-facing rejection.
var (
	ErrNoActivity   = errors.New("no inventory line has any recorded activity")
	ErrInvalidLines = errors.New("a line has a validation error, fix it first")
	ErrNoPosition   = errors.New("device position not resolved yet")
	ErrNoPhoto      = errors.New("attendance photo not captured")
	// ErrNotSaved means the offline enqueue itself failed; there is no
	// further fallback tier and the operator must be told the visit was NOT
	// saved.
	ErrNotSaved = errors.New("visit could not be saved")
)

// OutOfRangeError blocks submission when the geofence re-check fails. It
// carries the measured distance so the rejection can name it.
type OutOfRangeError struct {
	DistanceMeters  float64
	ToleranceMeters float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("too far from customer: %.0fm away, tolerance %.0fm", e.DistanceMeters, e.ToleranceMeters)
}

// Submitter delivers one submission to the server. The sales API client
// implements it; tests substitute fakes.
type Submitter interface {
	SubmitVisit(ctx context.Context, sub salesapi.Submission) (string, error)
}

// Enqueuer persists a visit that could not be delivered.
type Enqueuer interface {
	Insert(ctx context.Context, visit models.QueuedVisit) (int64, error)
}

// OnlineReporter reports the device's current connectivity belief.
type OnlineReporter interface {
	Online() bool
}

// Waker registers the deferred replay trigger after an offline enqueue.
type Waker interface {
	Wake()
}

// Outcome tells the caller how the visit was saved. VisitID is set on direct
// delivery (for the receipt screen); Queued with LocalID means "saved
// locally, will sync".
type Outcome struct {
	VisitID string
	Queued  bool
	LocalID int64
}

// Pipeline runs the precondition checks and the two delivery branches.
type Pipeline struct {
	gate      *geofence.Gate
	cell      *location.Cell
	submitter Submitter
	queue     Enqueuer
	online    OnlineReporter
	waker     Waker
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewPipeline wires a submission pipeline.
func NewPipeline(gate *geofence.Gate, cell *location.Cell, submitter Submitter, queue Enqueuer,
	online OnlineReporter, waker Waker, m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		gate:      gate,
		cell:      cell,
		submitter: submitter,
		queue:     queue,
		online:    online,
		waker:     waker,
		metrics:   m,
		logger:    logger,
	}
}

// Submit validates the draft against the preconditions, then delivers it.
// On success (either branch) the draft is cleared. Network failures are
// classified exactly once here: transport-level errors fall through to the
// offline queue, server rejections are returned to the operator.
func (p *Pipeline) Submit(ctx context.Context, draft *models.VisitDraft, customer models.Customer) (Outcome, error) {
	touched := touchedLines(draft.Lines)
	if len(touched) == 0 {
		return Outcome{}, ErrNoActivity
	}

	// Re-validate instead of trusting ValidationError set earlier.
	for _, line := range touched {
		if line.Validate() != "" {
			return Outcome{}, fmt.Errorf("%w: %s", ErrInvalidLines, line.Validate())
		}
	}

	if draft.Position == nil {
		return Outcome{}, ErrNoPosition
	}

	if len(draft.Photo) == 0 {
		return Outcome{}, ErrNoPhoto
	}

	// Always read the freshest fix; the resolver may have refined the
	// position since the draft captured one.
	current := *draft.Position
	if latest, ok := p.cell.Get(); ok {
		current = latest
	}

	verdict := p.gate.Evaluate(current, customer.Location)
	if !verdict.WithinTolerance {
		p.metrics.GeofenceRejections.Inc()
		return Outcome{}, &OutOfRangeError{
			DistanceMeters:  verdict.DistanceMeters,
			ToleranceMeters: p.gate.ToleranceMeters(),
		}
	}

	token := draft.Token
	if token == "" {
		token = uuid.NewString()
	}

	sub := salesapi.Submission{
		Token:      token,
		CustomerID: draft.CustomerID,
		Latitude:   current.Latitude,
		Longitude:  current.Longitude,
		Lines:      touched,
		Photo:      draft.Photo,
		PhotoName:  draft.PhotoName,
	}

	if p.online.Online() {
		visitID, err := p.submitter.SubmitVisit(ctx, sub)
		if err == nil {
			p.metrics.DirectSubmissions.Inc()
			p.logger.Info("visit delivered",
				zap.String("visit_id", visitID),
				zap.String("customer_id", draft.CustomerID))
			clearDraft(draft)
			return Outcome{VisitID: visitID}, nil
		}
		if !salesapi.IsNetworkError(err) {
			// The server produced a real response; surface it, do not queue.
			return Outcome{}, err
		}
		p.logger.Warn("direct delivery failed, falling back to offline queue", zap.Error(err))
	}

	return p.enqueue(ctx, draft, sub)
}

func (p *Pipeline) enqueue(ctx context.Context, draft *models.VisitDraft, sub salesapi.Submission) (Outcome, error) {
	queued := models.QueuedVisit{
		Token:      sub.Token,
		CustomerID: sub.CustomerID,
		Latitude:   sub.Latitude,
		Longitude:  sub.Longitude,
		Photo:      sub.Photo,
		PhotoName:  sub.PhotoName,
		Lines:      sub.Lines,
		CreatedAt:  time.Now().UTC(),
	}

	localID, err := p.queue.Insert(ctx, queued)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrNotSaved, err)
	}

	p.metrics.QueuedSubmissions.Inc()
	p.metrics.QueueDepth.Inc()
	p.waker.Wake()

	p.logger.Info("visit saved locally, will sync",
		zap.Int64("local_id", localID),
		zap.String("customer_id", sub.CustomerID))
	clearDraft(draft)
	return Outcome{Queued: true, LocalID: localID}, nil
}

func touchedLines(lines []models.InventoryLine) []models.InventoryLine {
	var out []models.InventoryLine
	for _, line := range lines {
		if line.Touched() {
			out = append(out, line)
		}
	}
	return out
}

func clearDraft(draft *models.VisitDraft) {
	draft.Photo = nil
	draft.PhotoName = ""
	draft.Lines = nil
	draft.Position = nil
}
