package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeyza/salestrack/internal/domain/models"
)

func testVisit(token string) models.QueuedVisit {
	return models.QueuedVisit{
		Token:      token,
		CustomerID: "c1",
		Latitude:   -6.2015,
		Longitude:  106.8167,
		Photo:      []byte("jpeg-bytes"),
		PhotoName:  "attendance.jpg",
		Lines: []models.InventoryLine{
			{ProductID: "p1", InitialStock: 10, AddedStock: 5, FinalStock: 3, Returns: 2},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestStore_InsertListDelete(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "queue.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	first, err := store.Insert(ctx, testVisit("tok-1"))
	require.NoError(t, err)
	second, err := store.Insert(ctx, testVisit("tok-2"))
	require.NoError(t, err)
	assert.Greater(t, second, first, "local IDs are monotonic")

	visits, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.Equal(t, first, visits[0].LocalID)
	assert.Equal(t, "tok-1", visits[0].Token)
	assert.Equal(t, "c1", visits[0].CustomerID)
	assert.Equal(t, []byte("jpeg-bytes"), visits[0].Photo)
	require.Len(t, visits[0].Lines, 1)
	assert.Equal(t, 10, visits[0].Lines[0].InitialStock)

	require.NoError(t, store.Delete(ctx, first))

	visits, err = store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, "tok-2", visits[0].Token)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	ctx := context.Background()

	store, err := Open(path, nil)
	require.NoError(t, err)
	_, err = store.Insert(ctx, testVisit("tok-restart"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Simulated process restart: a fresh handle on the same file must still
	// see the entry.
	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	visits, err := reopened.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, "tok-restart", visits[0].Token)
	assert.Equal(t, -6.2015, visits[0].Latitude)
	assert.Equal(t, 106.8167, visits[0].Longitude)
	assert.Equal(t, []byte("jpeg-bytes"), visits[0].Photo)
}

func TestStore_DeleteMissingIsNoError(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "queue.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Delete(context.Background(), 999))
}
