package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VisitDraft is the in-progress state of one visit screen. It is owned by the
// active session until submission, at which point it becomes either a network
// request body or a QueuedVisit.
type VisitDraft struct {
	Token      string // client-generated idempotency token
	CustomerID string
	Position   *Position
	Photo      []byte
	PhotoName  string
	Lines      []InventoryLine
}

// QueuedVisit is a visit persisted locally because it could not be delivered.
// Entries are write-once: the replayer reads and deletes them, never mutates
// them. The local store is the single source of truth for "not yet delivered".
type QueuedVisit struct {
	LocalID    int64
	Token      string
	CustomerID string
	Latitude   float64
	Longitude  float64
	Photo      []byte
	PhotoName  string
	Lines      []InventoryLine
	CreatedAt  time.Time
}

// VisitRecord is the server-side representation of an accepted visit.
type VisitRecord struct {
	ID             string          `bson:"_id,omitempty"`
	Token          string          `bson:"token"`
	CustomerID     string          `bson:"customerId"`
	SalesLatitude  float64         `bson:"salesLatitude"`
	SalesLongitude float64         `bson:"salesLongitude"`
	Inventory      []VisitLine     `bson:"inventory"`
	Photo          []byte          `bson:"photo"`
	PhotoName      string          `bson:"photoName"`
	Total          decimal.Decimal `bson:"total"`
	CreatedAt      time.Time       `bson:"createdAt"`
}

// VisitLine is one stored inventory line with the quantities the server
// derived at ingestion time.
type VisitLine struct {
	ProductID    string          `bson:"product" json:"product"`
	InitialStock int             `bson:"initialStock" json:"initialStock"`
	AddedStock   int             `bson:"addedStock" json:"addedStock"`
	FinalStock   int             `bson:"finalStock" json:"finalStock"`
	Returns      int             `bson:"returns" json:"returns"`
	UnitsSold    int             `bson:"unitsSold" json:"unitsSold"`
	Subtotal     decimal.Decimal `bson:"subtotal" json:"subtotal"`
}
