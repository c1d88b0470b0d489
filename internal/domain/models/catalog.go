package models

import "github.com/shopspring/decimal"

// Customer is a consignment customer with a registered location used for the
// geofenced attendance check.
type Customer struct {
	ID       string      `bson:"_id,omitempty" json:"id"`
	Name     string      `bson:"name" json:"name"`
	Address  string      `bson:"address" json:"address"`
	Location Coordinates `bson:"location" json:"location"`
}

// Product is a catalog entry. Barcode is matched against scanner input when
// adding a product to a visit.
type Product struct {
	ID        string          `bson:"_id,omitempty" json:"id"`
	Name      string          `bson:"name" json:"name"`
	Barcode   string          `bson:"barcode" json:"barcode"`
	UnitPrice decimal.Decimal `bson:"unitPrice" json:"unitPrice"`
}
