package models

import "time"

// Position is a single accepted geolocation fix for the salesperson's device.
// It is ephemeral: the location resolver replaces it whenever a sample with a
// better accuracy arrives.
type Position struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracyMeters"`
	CapturedAt     time.Time `json:"capturedAt"`
}

// Coordinates is a registered point on the map, e.g. a customer's location.
type Coordinates struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}
