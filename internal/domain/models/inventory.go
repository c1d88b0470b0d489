package models

import "fmt"

// InventoryLine tracks the four consignment counters for one product during a
// visit. InitialStock is seeded from the customer's previous visit and is not
// operator-editable; the remaining counters are.
type InventoryLine struct {
	ProductID    string `json:"product"`
	ProductName  string `json:"-"`
	Barcode      string `json:"-"`
	InitialStock int    `json:"initialStock"`
	AddedStock   int    `json:"addedStock"`
	FinalStock   int    `json:"finalStock"`
	Returns      int    `json:"returns"`

	// ValidationError is empty when the line satisfies the stock-balance
	// invariants and holds an operator-facing message otherwise.
	ValidationError string `json:"-"`
}

// Validate checks the stock-balance invariants and returns an operator-facing
// message for the first violated rule, or "" when the line is consistent.
func (l InventoryLine) Validate() string {
	totalAvailable := l.InitialStock + l.AddedStock

	if l.FinalStock > totalAvailable {
		return fmt.Sprintf("final stock (%d) cannot exceed initial stock + added stock (%d)", l.FinalStock, totalAvailable)
	}
	if l.Returns > l.InitialStock {
		return fmt.Sprintf("returns (%d) cannot exceed initial stock (%d)", l.Returns, l.InitialStock)
	}
	if l.FinalStock+l.Returns > totalAvailable {
		return fmt.Sprintf("final stock (%d) plus returns (%d) cannot exceed %d", l.FinalStock, l.Returns, totalAvailable)
	}

	return ""
}

// UnitsSold derives the sold quantity from the four counters. It is never
// stored; it is recomputed wherever needed.
func (l InventoryLine) UnitsSold() int {
	sold := l.InitialStock + l.AddedStock - l.FinalStock - l.Returns
	if sold < 0 {
		return 0
	}
	return sold
}

// Touched reports whether the operator recorded any activity on the line.
// Untouched lines are excluded from submission.
func (l InventoryLine) Touched() bool {
	return l.InitialStock > 0 || l.AddedStock > 0 || l.FinalStock > 0 || l.Returns > 0
}
