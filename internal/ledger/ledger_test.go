package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeyza/salestrack/internal/domain/models"
)

type fakeSeeder struct {
	stocks map[string]int
	err    error
	calls  int
}

func (f *fakeSeeder) LastFinalStock(_ context.Context, _, productID string) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return f.stocks[productID], nil
}

func soapProduct() models.Product {
	return models.Product{ID: "p1", Name: "Soap", Barcode: "899000111"}
}

func TestLedger_AddLine_SeedsInitialStock(t *testing.T) {
	seeder := &fakeSeeder{stocks: map[string]int{"p1": 7}}
	l := New("c1", seeder, nil)

	line, err := l.AddLine(context.Background(), soapProduct())
	require.NoError(t, err)
	assert.Equal(t, 7, line.InitialStock)
	assert.Equal(t, 0, line.AddedStock)
	assert.Empty(t, line.ValidationError)
}

func TestLedger_AddLine_RejectsDuplicate(t *testing.T) {
	seeder := &fakeSeeder{stocks: map[string]int{}}
	l := New("c1", seeder, nil)

	_, err := l.AddLine(context.Background(), soapProduct())
	require.NoError(t, err)

	_, err = l.AddLine(context.Background(), soapProduct())
	assert.ErrorIs(t, err, ErrDuplicateLine)
	assert.Equal(t, 1, seeder.calls, "duplicate must not re-fetch stock")
	assert.Len(t, l.Lines(), 1)
}

func TestLedger_AddLine_SeedFailure(t *testing.T) {
	seeder := &fakeSeeder{err: errors.New("api down")}
	l := New("c1", seeder, nil)

	_, err := l.AddLine(context.Background(), soapProduct())
	assert.Error(t, err)
	assert.Empty(t, l.Lines())
}

func TestLedger_AddByBarcode(t *testing.T) {
	seeder := &fakeSeeder{stocks: map[string]int{"p1": 2}}
	l := New("c1", seeder, nil)
	catalog := []models.Product{soapProduct(), {ID: "p2", Name: "Shampoo", Barcode: "899000222"}}

	line, err := l.AddByBarcode(context.Background(), "899000111", catalog)
	require.NoError(t, err)
	assert.Equal(t, "p1", line.ProductID)

	_, err = l.AddByBarcode(context.Background(), "000000000", catalog)
	assert.ErrorIs(t, err, ErrBarcodeNotFound)

	// Scanning the same product again goes through the same duplicate check.
	_, err = l.AddByBarcode(context.Background(), "899000111", catalog)
	assert.ErrorIs(t, err, ErrDuplicateLine)
}

func TestLedger_UpdateField_Revalidates(t *testing.T) {
	seeder := &fakeSeeder{stocks: map[string]int{"p1": 10}}
	l := New("c1", seeder, nil)
	_, err := l.AddLine(context.Background(), soapProduct())
	require.NoError(t, err)

	line, err := l.UpdateField("p1", FieldFinalStock, 8)
	require.NoError(t, err)
	assert.Empty(t, line.ValidationError)
	assert.False(t, l.HasInvalid())

	line, err = l.UpdateField("p1", FieldReturns, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, line.ValidationError, "8+5 exceeds initial 10")
	assert.True(t, l.HasInvalid())

	line, err = l.UpdateField("p1", FieldReturns, 2)
	require.NoError(t, err)
	assert.Empty(t, line.ValidationError)
	assert.False(t, l.HasInvalid())
}

func TestLedger_UpdateField_ClampsNegative(t *testing.T) {
	seeder := &fakeSeeder{stocks: map[string]int{"p1": 3}}
	l := New("c1", seeder, nil)
	_, err := l.AddLine(context.Background(), soapProduct())
	require.NoError(t, err)

	line, err := l.UpdateField("p1", FieldAddedStock, -4)
	require.NoError(t, err)
	assert.Equal(t, 0, line.AddedStock)
}

func TestLedger_UpdateField_RejectsInitialStock(t *testing.T) {
	seeder := &fakeSeeder{stocks: map[string]int{"p1": 3}}
	l := New("c1", seeder, nil)
	_, err := l.AddLine(context.Background(), soapProduct())
	require.NoError(t, err)

	_, err = l.UpdateField("p1", Field("initialStock"), 99)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestLedger_UpdateField_UnknownLine(t *testing.T) {
	l := New("c1", &fakeSeeder{}, nil)
	_, err := l.UpdateField("missing", FieldReturns, 1)
	assert.ErrorIs(t, err, ErrUnknownLine)
}

func TestLedger_RemoveLine(t *testing.T) {
	seeder := &fakeSeeder{stocks: map[string]int{}}
	l := New("c1", seeder, nil)
	_, err := l.AddLine(context.Background(), soapProduct())
	require.NoError(t, err)

	require.NoError(t, l.RemoveLine("p1"))
	assert.Empty(t, l.Lines())
	assert.ErrorIs(t, l.RemoveLine("p1"), ErrUnknownLine)
}

func TestLedger_TouchedLines(t *testing.T) {
	seeder := &fakeSeeder{stocks: map[string]int{"p1": 5}}
	l := New("c1", seeder, nil)
	_, err := l.AddLine(context.Background(), soapProduct())
	require.NoError(t, err)
	_, err = l.AddLine(context.Background(), models.Product{ID: "p2", Name: "Shampoo"})
	require.NoError(t, err)

	touched := l.TouchedLines()
	require.Len(t, touched, 1, "p2 has no activity at all")
	assert.Equal(t, "p1", touched[0].ProductID)
}

func TestCoerceQuantity(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"12", 12},
		{" 7 ", 7},
		{"", 0},
		{"abc", 0},
		{"-3", 0},
		{"3.5", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CoerceQuantity(tt.raw), "input %q", tt.raw)
	}
}
