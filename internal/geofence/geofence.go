// Package geofence decides whether the salesperson is physically close enough
// to the customer's registered location for attendance to count.
package geofence

import (
	"math"

	"github.com/rafaeyza/salestrack/internal/domain/models"
)

const earthRadiusMeters = 6371000

// Result is the verdict for one evaluation. WithinTolerance false blocks
// submission regardless of what was shown to the operator earlier.
type Result struct {
	DistanceMeters  float64
	WithinTolerance bool
}

// Gate evaluates positions against a customer location with a fixed
// tolerance. The tolerance comes from the server-side setting, falling back
// to the configured default when that cannot be fetched.
type Gate struct {
	toleranceMeters float64
}

// NewGate creates a gate with the given tolerance in meters.
func NewGate(toleranceMeters float64) *Gate {
	return &Gate{toleranceMeters: toleranceMeters}
}

// ToleranceMeters returns the tolerance the gate enforces.
func (g *Gate) ToleranceMeters() float64 {
	return g.toleranceMeters
}

// Evaluate computes the great-circle distance between the device position and
// the customer's registered coordinates. It is re-run on every position
// update, on photo capture, and once more immediately before submission.
func (g *Gate) Evaluate(pos models.Position, customer models.Coordinates) Result {
	distance := Distance(pos.Latitude, pos.Longitude, customer.Latitude, customer.Longitude)
	return Result{
		DistanceMeters:  distance,
		WithinTolerance: distance <= g.toleranceMeters,
	}
}

// Distance returns the Haversine great-circle distance in meters between two
// coordinate pairs.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	deltaPhi := (lat2 - lat1) * math.Pi / 180
	deltaLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
