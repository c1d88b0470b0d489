// Package ledger holds the products touched during the current visit and
// enforces the stock-balance invariants on every mutation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rafaeyza/salestrack/internal/domain/models"
)

// Field names an operator-editable counter. InitialStock is deliberately not
// a Field: it is seeded once from the previous visit and read-only afterwards.
type Field string

const (
	FieldAddedStock Field = "addedStock"
	FieldFinalStock Field = "finalStock"
	FieldReturns    Field = "returns"
)

var (
	// ErrDuplicateLine rejects adding a product that is already on the visit,
	// whether it came in by scan or by manual selection.
	ErrDuplicateLine = errors.New("product already on this visit")
	// ErrUnknownLine means the product is not on the visit.
	ErrUnknownLine = errors.New("product not on this visit")
	// ErrUnknownField rejects updates to anything but the three editable
	// counters.
	ErrUnknownField = errors.New("field is not operator-editable")
	// ErrBarcodeNotFound means a scanned barcode matched no catalog product.
	ErrBarcodeNotFound = errors.New("barcode matches no product")
)

// StockSeeder provides the finalStock recorded on the customer's most recent
// visit for a product. The sales API client implements it.
type StockSeeder interface {
	LastFinalStock(ctx context.Context, customerID, productID string) (int, error)
}

// Ledger is the mutable line set for one visit. It is owned by a single
// session; no concurrent mutation occurs.
type Ledger struct {
	customerID string
	seeder     StockSeeder
	logger     *zap.Logger
	lines      []models.InventoryLine
}

// New creates an empty ledger for a customer visit.
func New(customerID string, seeder StockSeeder, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		customerID: customerID,
		seeder:     seeder,
		logger:     logger,
	}
}

// AddLine puts a product on the visit, seeding initialStock from the
// customer's last recorded finalStock (0 when there is none). Both the
// barcode scanner and the manual search path call through here, so the
// duplicate check and the seeding happen exactly once.
func (l *Ledger) AddLine(ctx context.Context, product models.Product) (models.InventoryLine, error) {
	if l.find(product.ID) != nil {
		return models.InventoryLine{}, fmt.Errorf("%w: %s", ErrDuplicateLine, product.Name)
	}

	initial, err := l.seeder.LastFinalStock(ctx, l.customerID, product.ID)
	if err != nil {
		return models.InventoryLine{}, fmt.Errorf("seed initial stock for %s: %w", product.Name, err)
	}
	if initial < 0 {
		initial = 0
	}

	line := models.InventoryLine{
		ProductID:    product.ID,
		ProductName:  product.Name,
		Barcode:      product.Barcode,
		InitialStock: initial,
	}
	l.lines = append(l.lines, line)

	l.logger.Info("line added",
		zap.String("product", product.Name),
		zap.Int("initial_stock", initial))
	return line, nil
}

// AddByBarcode resolves a scanned barcode against the catalog and adds the
// matching product through AddLine.
func (l *Ledger) AddByBarcode(ctx context.Context, barcode string, catalog []models.Product) (models.InventoryLine, error) {
	for _, product := range catalog {
		if product.Barcode != "" && product.Barcode == barcode {
			return l.AddLine(ctx, product)
		}
	}
	return models.InventoryLine{}, fmt.Errorf("%w: %q", ErrBarcodeNotFound, barcode)
}

// UpdateField sets one editable counter and re-validates the line. Negative
// values are clamped to 0; the UI already clamps, but the ledger does not
// trust it.
func (l *Ledger) UpdateField(productID string, field Field, value int) (models.InventoryLine, error) {
	line := l.find(productID)
	if line == nil {
		return models.InventoryLine{}, fmt.Errorf("%w: %s", ErrUnknownLine, productID)
	}

	if value < 0 {
		value = 0
	}

	switch field {
	case FieldAddedStock:
		line.AddedStock = value
	case FieldFinalStock:
		line.FinalStock = value
	case FieldReturns:
		line.Returns = value
	default:
		return models.InventoryLine{}, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	line.ValidationError = line.Validate()
	if line.ValidationError != "" {
		l.logger.Debug("line invalid after update",
			zap.String("product", line.ProductName),
			zap.String("reason", line.ValidationError))
	}
	return *line, nil
}

// RemoveLine drops a product from the visit before submission.
func (l *Ledger) RemoveLine(productID string) error {
	for i := range l.lines {
		if l.lines[i].ProductID == productID {
			l.lines = append(l.lines[:i], l.lines[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownLine, productID)
}

// Lines returns a copy of all lines in insertion order.
func (l *Ledger) Lines() []models.InventoryLine {
	out := make([]models.InventoryLine, len(l.lines))
	copy(out, l.lines)
	return out
}

// TouchedLines returns copies of the lines with any recorded activity; only
// these are submitted.
func (l *Ledger) TouchedLines() []models.InventoryLine {
	var out []models.InventoryLine
	for _, line := range l.lines {
		if line.Touched() {
			out = append(out, line)
		}
	}
	return out
}

// HasInvalid reports whether any line currently violates the stock-balance
// invariants. A true result blocks submission globally.
func (l *Ledger) HasInvalid() bool {
	for _, line := range l.lines {
		if line.ValidationError != "" {
			return true
		}
	}
	return false
}

// Clear empties the ledger after a successful submission.
func (l *Ledger) Clear() {
	l.lines = nil
}

func (l *Ledger) find(productID string) *models.InventoryLine {
	for i := range l.lines {
		if l.lines[i].ProductID == productID {
			return &l.lines[i]
		}
	}
	return nil
}

// CoerceQuantity turns raw operator input into a usable counter value: empty
// or non-numeric input becomes 0, negatives become 0.
func CoerceQuantity(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0
	}
	return value
}
