package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInventoryLine_Validate(t *testing.T) {
	tests := []struct {
		name      string
		line      InventoryLine
		wantValid bool
	}{
		{
			name:      "balanced_line",
			line:      InventoryLine{InitialStock: 10, AddedStock: 5, FinalStock: 3, Returns: 2},
			wantValid: true,
		},
		{
			name:      "final_plus_returns_exceed_available",
			line:      InventoryLine{InitialStock: 10, AddedStock: 0, FinalStock: 8, Returns: 5},
			wantValid: false,
		},
		{
			name:      "final_exceeds_available",
			line:      InventoryLine{InitialStock: 5, AddedStock: 2, FinalStock: 8},
			wantValid: false,
		},
		{
			name:      "returns_exceed_initial",
			line:      InventoryLine{InitialStock: 3, AddedStock: 10, FinalStock: 0, Returns: 4},
			wantValid: false,
		},
		{
			name:      "everything_sold",
			line:      InventoryLine{InitialStock: 10, AddedStock: 5, FinalStock: 0, Returns: 0},
			wantValid: true,
		},
		{
			name:      "zero_line",
			line:      InventoryLine{},
			wantValid: true,
		},
		{
			name:      "exact_boundary",
			line:      InventoryLine{InitialStock: 10, AddedStock: 5, FinalStock: 10, Returns: 5},
			wantValid: true,
		},
		{
			name:      "one_over_boundary",
			line:      InventoryLine{InitialStock: 10, AddedStock: 5, FinalStock: 11, Returns: 5},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.line.Validate()
			if tt.wantValid {
				assert.Empty(t, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}

func TestInventoryLine_UnitsSold(t *testing.T) {
	line := InventoryLine{InitialStock: 10, AddedStock: 5, FinalStock: 3, Returns: 2}
	assert.Equal(t, 10, line.UnitsSold())
}

func TestInventoryLine_UnitsSold_NeverNegative(t *testing.T) {
	// An invalid line would derive negative sales; the floor is 0.
	line := InventoryLine{InitialStock: 1, AddedStock: 0, FinalStock: 5, Returns: 0}
	assert.Equal(t, 0, line.UnitsSold())
}

func TestInventoryLine_Touched(t *testing.T) {
	assert.False(t, InventoryLine{}.Touched())
	assert.True(t, InventoryLine{InitialStock: 1}.Touched())
	assert.True(t, InventoryLine{AddedStock: 1}.Touched())
	assert.True(t, InventoryLine{FinalStock: 1}.Touched())
	assert.True(t, InventoryLine{Returns: 1}.Touched())
}
