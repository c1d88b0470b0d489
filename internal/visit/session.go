package visit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rafaeyza/salestrack/internal/config"
	"github.com/rafaeyza/salestrack/internal/domain/models"
	"github.com/rafaeyza/salestrack/internal/geofence"
	"github.com/rafaeyza/salestrack/internal/ledger"
	"github.com/rafaeyza/salestrack/internal/location"
	"github.com/rafaeyza/salestrack/internal/metrics"
	"github.com/rafaeyza/salestrack/pkg/clients/salesapi"
)

// Factory builds visit sessions from the long-lived agent dependencies.
type Factory struct {
	api     salesapi.Client
	sampler location.Sampler
	queue   Enqueuer
	online  OnlineReporter
	waker   Waker
	metrics *metrics.Metrics
	locCfg  config.LocationConfig
	geoCfg  config.GeofenceConfig
	logger  *zap.Logger
}

// NewFactory wires a session factory.
func NewFactory(api salesapi.Client, sampler location.Sampler, queue Enqueuer,
	online OnlineReporter, waker Waker, m *metrics.Metrics,
	locCfg config.LocationConfig, geoCfg config.GeofenceConfig, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		api:     api,
		sampler: sampler,
		queue:   queue,
		online:  online,
		waker:   waker,
		metrics: m,
		locCfg:  locCfg,
		geoCfg:  geoCfg,
		logger:  logger,
	}
}

// Session is the controller for one visit screen. It owns the draft, the
// ledger, the shared position cell and the resolver's background refinement,
// all bound to its context; Close releases everything.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	customer models.Customer
	catalog  []models.Product

	cell     *location.Cell
	resolver *location.Resolver
	gate     *geofence.Gate
	ledger   *ledger.Ledger
	pipeline *Pipeline
	logger   *zap.Logger

	token          string
	looseAccuracyM float64
	resolved       *models.Position
	photo          []byte
	photoName      string
}

// Begin loads the customer and catalog, reads the server-side geofence
// tolerance (falling back to the configured default when offline) and opens
// a session. The idempotency token for this visit is generated here.
func (f *Factory) Begin(ctx context.Context, customerID string) (*Session, error) {
	customer, err := f.api.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("load customer %s: %w", customerID, err)
	}

	catalog, err := f.api.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load product catalog: %w", err)
	}

	tolerance := f.geoCfg.DefaultToleranceM
	if serverTolerance, err := f.api.GeofenceTolerance(ctx); err == nil && serverTolerance > 0 {
		tolerance = serverTolerance
	} else if err != nil {
		f.logger.Warn("using default geofence tolerance, setting fetch failed", zap.Error(err))
	}

	sessionCtx, cancel := context.WithCancel(ctx)

	cell := location.NewCell()
	gate := geofence.NewGate(tolerance)
	sessionLogger := f.logger.Named("session").With(zap.String("customer_id", customerID))

	return &Session{
		ctx:            sessionCtx,
		cancel:         cancel,
		customer:       *customer,
		catalog:        catalog,
		cell:           cell,
		resolver:       location.NewResolver(f.sampler, cell, f.locCfg, sessionLogger.Named("location")),
		gate:           gate,
		ledger:         ledger.New(customerID, f.api, sessionLogger.Named("ledger")),
		pipeline:       NewPipeline(gate, cell, f.api, f.queue, f.online, f.waker, f.metrics, sessionLogger.Named("pipeline")),
		logger:         sessionLogger,
		token:          uuid.NewString(),
		looseAccuracyM: f.locCfg.LooseAccuracyM,
	}, nil
}

// Customer returns the customer being visited.
func (s *Session) Customer() models.Customer {
	return s.customer
}

// ResolveLocation runs the resolver against the device stream. On success the
// fix is held as the session's resolved position. ErrLowAccuracy means
// refinement continues in the background and a retry may succeed later.
func (s *Session) ResolveLocation() (*models.Position, error) {
	pos, err := s.resolver.Resolve(s.ctx)
	if err != nil {
		return nil, err
	}
	s.resolved = pos
	return pos, nil
}

// AddProduct adds a catalog product to the visit by ID (the manual search
// path).
func (s *Session) AddProduct(ctx context.Context, productID string) (models.InventoryLine, error) {
	for _, product := range s.catalog {
		if product.ID == productID {
			return s.ledger.AddLine(ctx, product)
		}
	}
	return models.InventoryLine{}, fmt.Errorf("%w: %s", ledger.ErrUnknownLine, productID)
}

// ScanBarcode adds a product by scanned barcode. Both entry paths go through
// the ledger's single AddLine, so duplicate checks and stock seeding are not
// duplicated here.
func (s *Session) ScanBarcode(ctx context.Context, barcode string) (models.InventoryLine, error) {
	return s.ledger.AddByBarcode(ctx, barcode, s.catalog)
}

// UpdateLine applies raw operator input to one counter. Garbage and negative
// input coerce to 0.
func (s *Session) UpdateLine(productID string, field ledger.Field, raw string) (models.InventoryLine, error) {
	return s.ledger.UpdateField(productID, field, ledger.CoerceQuantity(raw))
}

// RemoveLine drops a product from the visit.
func (s *Session) RemoveLine(productID string) error {
	return s.ledger.RemoveLine(productID)
}

// Lines returns the current ledger lines.
func (s *Session) Lines() []models.InventoryLine {
	return s.ledger.Lines()
}

// HasInvalidLines reports the aggregate validation state.
func (s *Session) HasInvalidLines() bool {
	return s.ledger.HasInvalid()
}

// CapturePhoto stores the attendance photo and immediately re-evaluates the
// geofence, since the operator may capture before the resolver converges.
func (s *Session) CapturePhoto(data []byte, name string) (geofence.Result, bool) {
	s.photo = data
	s.photoName = name
	return s.GeofenceStatus()
}

// GeofenceStatus evaluates the gate against the freshest accepted position.
// The second return is false while no position has been accepted yet.
func (s *Session) GeofenceStatus() (geofence.Result, bool) {
	pos, ok := s.cell.Get()
	if !ok {
		return geofence.Result{}, false
	}
	return s.gate.Evaluate(pos, s.customer.Location), true
}

// position returns the session's resolved fix, adopting a usable one from the
// background refinement when Resolve itself came back empty-handed. Without
// this a fix that converged after the resolve window would show on the
// geofence yet never unblock submission.
func (s *Session) position() *models.Position {
	if s.resolved != nil {
		return s.resolved
	}
	if pos, ok := s.cell.Get(); ok && pos.AccuracyMeters <= s.looseAccuracyM {
		s.resolved = &pos
		return s.resolved
	}
	return nil
}

// Submit assembles the draft and hands it to the pipeline. On success the
// ledger and photo are cleared along with the draft, and a fresh idempotency
// token is issued for the next visit.
func (s *Session) Submit(ctx context.Context) (Outcome, error) {
	draft := models.VisitDraft{
		Token:      s.token,
		CustomerID: s.customer.ID,
		Position:   s.position(),
		Photo:      s.photo,
		PhotoName:  s.photoName,
		Lines:      s.ledger.Lines(),
	}

	outcome, err := s.pipeline.Submit(ctx, &draft, s.customer)
	if err != nil {
		return Outcome{}, err
	}

	s.ledger.Clear()
	s.photo = nil
	s.photoName = ""
	s.resolved = nil
	s.token = uuid.NewString()
	return outcome, nil
}

// Close tears the session down: cancels any background location refinement
// and empties the shared cell.
func (s *Session) Close() {
	s.cancel()
	s.cell.Clear()
	s.logger.Debug("session closed")
}
