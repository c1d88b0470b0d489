// Package location converges on a trustworthy device position under a
// bounded feedback window, degrading gracefully when the hardware cannot
// deliver an accurate fix in time.
package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rafaeyza/salestrack/internal/config"
	"github.com/rafaeyza/salestrack/internal/domain/models"
)

// Sample is one raw fix from the device location API.
type Sample struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	CapturedAt     time.Time
}

// Sampler is the device location collaborator: a continuous stream of fixes,
// not a single point read. The stream must close when ctx is cancelled.
type Sampler interface {
	Watch(ctx context.Context) (<-chan Sample, error)
}

var (
	// ErrNoFix means no sample at all arrived within the window.
	ErrNoFix = errors.New("no location fix within the window")
	// ErrLowAccuracy means the window elapsed with only poor fixes; the
	// resolver keeps refining in the background and the cell will pick up
	// anything better that arrives.
	ErrLowAccuracy = errors.New("location accuracy too low, still refining")
	// ErrResolveInFlight rejects a second Resolve while one (or its
	// background refinement) is still running for the session.
	ErrResolveInFlight = errors.New("a location resolve is already in flight")
)

// Resolver drives the sampler until a good-enough fix arrives or the window
// elapses. Every accepted sample also updates the shared cell, so readers
// always see the best fix obtained so far.
type Resolver struct {
	sampler Sampler
	cell    *Cell
	cfg     config.LocationConfig
	logger  *zap.Logger

	mu       sync.Mutex
	inFlight bool
}

// NewResolver wires a resolver for one visit session.
func NewResolver(sampler Sampler, cell *Cell, cfg config.LocationConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		sampler: sampler,
		cell:    cell,
		cfg:     cfg,
		logger:  logger,
	}
}

// Resolve subscribes to the position stream for up to the configured window.
//
//   - A sample at or under the tight accuracy threshold stops the stream and
//     is returned immediately.
//   - When the window elapses, the best sample seen is returned if it is
//     within the loose threshold.
//   - If the best sample is still worse than the loose threshold, the stream
//     stays alive in the background, bound to ctx, and ErrLowAccuracy is
//     returned; later samples keep updating the shared cell.
//   - If no sample arrived at all, ErrNoFix is returned with the stream's
//     diagnostic cause attached.
//
// ctx must be the session context: cancelling it at screen teardown stops any
// background refinement.
func (r *Resolver) Resolve(ctx context.Context) (*models.Position, error) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return nil, ErrResolveInFlight
	}
	r.inFlight = true
	r.mu.Unlock()

	watchCtx, stopWatch := context.WithCancel(ctx)

	samples, err := r.sampler.Watch(watchCtx)
	if err != nil {
		stopWatch()
		r.finish()
		return nil, errors.Join(ErrNoFix, err)
	}

	timer := time.NewTimer(r.cfg.Window)
	defer timer.Stop()

	var best *models.Position

	for {
		select {
		case sample, ok := <-samples:
			if !ok {
				// Stream ended before the window did; judge what we have.
				stopWatch()
				r.finish()
				return r.evaluateBest(best)
			}

			pos := r.accept(sample, best)
			if pos != nil {
				best = pos
			}

			if sample.AccuracyMeters <= r.cfg.TightAccuracyM {
				r.logger.Info("accurate fix obtained, stopping stream",
					zap.Float64("accuracy_m", sample.AccuracyMeters))
				stopWatch()
				r.finish()
				return best, nil
			}

		case <-timer.C:
			if best == nil {
				stopWatch()
				r.finish()
				return nil, ErrNoFix
			}
			if best.AccuracyMeters <= r.cfg.LooseAccuracyM {
				r.logger.Warn("window elapsed, returning degraded fix",
					zap.Float64("accuracy_m", best.AccuracyMeters))
				stopWatch()
				r.finish()
				return best, nil
			}

			// Too inaccurate to hand out, but failing outright would block
			// legitimate use in poor-signal areas. Keep refining until the
			// session ends.
			r.logger.Warn("accuracy still low after window, refining in background",
				zap.Float64("accuracy_m", best.AccuracyMeters))
			go r.refineInBackground(samples, stopWatch, best.AccuracyMeters)
			return nil, ErrLowAccuracy

		case <-ctx.Done():
			stopWatch()
			r.finish()
			return nil, ctx.Err()
		}
	}
}

// accept records a sample if it beats the best accuracy seen so far, pushing
// it into the shared cell. Returns the new best position or nil.
func (r *Resolver) accept(sample Sample, best *models.Position) *models.Position {
	if best != nil && sample.AccuracyMeters >= best.AccuracyMeters {
		return nil
	}

	pos := models.Position{
		Latitude:       sample.Latitude,
		Longitude:      sample.Longitude,
		AccuracyMeters: sample.AccuracyMeters,
		CapturedAt:     sample.CapturedAt,
	}
	r.cell.Set(pos)
	r.logger.Debug("position accepted",
		zap.Float64("accuracy_m", sample.AccuracyMeters))
	return &pos
}

// refineInBackground keeps consuming the still-open stream after the window
// elapsed with a poor best fix. It stops on its own once a tight-accuracy
// sample arrives, or when the session context cancels the stream.
func (r *Resolver) refineInBackground(samples <-chan Sample, stopWatch context.CancelFunc, bestAccuracy float64) {
	defer r.finish()
	defer stopWatch()

	for sample := range samples {
		if sample.AccuracyMeters >= bestAccuracy {
			continue
		}
		bestAccuracy = sample.AccuracyMeters
		r.cell.Set(models.Position{
			Latitude:       sample.Latitude,
			Longitude:      sample.Longitude,
			AccuracyMeters: sample.AccuracyMeters,
			CapturedAt:     sample.CapturedAt,
		})
		r.logger.Info("background refinement improved fix",
			zap.Float64("accuracy_m", sample.AccuracyMeters))

		if sample.AccuracyMeters <= r.cfg.TightAccuracyM {
			return
		}
	}
}

func (r *Resolver) evaluateBest(best *models.Position) (*models.Position, error) {
	if best == nil {
		return nil, ErrNoFix
	}
	if best.AccuracyMeters <= r.cfg.LooseAccuracyM {
		return best, nil
	}
	return nil, ErrLowAccuracy
}

func (r *Resolver) finish() {
	r.mu.Lock()
	r.inFlight = false
	r.mu.Unlock()
}
