package location

import (
	"sync"

	"github.com/rafaeyza/salestrack/internal/domain/models"
)

// Cell is the single shared "current position" holder for a visit session.
// The resolver is its only writer; the geofence gate and the submission
// pipeline always read the latest accepted fix through it instead of carrying
// a snapshot from earlier in the session.
type Cell struct {
	mu  sync.RWMutex
	pos *models.Position
}

// NewCell creates an empty position cell.
func NewCell() *Cell {
	return &Cell{}
}

// Set replaces the current position.
func (c *Cell) Set(pos models.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = &pos
}

// Get returns the current position and whether one has been accepted yet.
func (c *Cell) Get() (models.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pos == nil {
		return models.Position{}, false
	}
	return *c.pos, true
}

// Clear empties the cell. Called when a session is torn down.
func (c *Cell) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = nil
}
