// Package queue is the durable local store for visits that could not be
// delivered. Entries are write-once, delete-once: the pipeline inserts, the
// replayer lists and deletes after server acknowledgement. Absence of an
// entry is the only "delivered" signal; no status flags exist.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/rafaeyza/salestrack/internal/domain/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS queued_visits (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	token       TEXT NOT NULL UNIQUE,
	customer_id TEXT NOT NULL,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	photo       BLOB NOT NULL,
	photo_name  TEXT NOT NULL,
	lines       TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL
);`

// Store is a SQLite-backed offline queue. The file survives process
// restarts; that is the whole point.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the queue database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open offline queue %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create offline queue schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Insert persists one queued visit and returns its store-assigned local ID.
func (s *Store) Insert(ctx context.Context, visit models.QueuedVisit) (int64, error) {
	lines, err := json.Marshal(visit.Lines)
	if err != nil {
		return 0, fmt.Errorf("marshal queued lines: %w", err)
	}

	createdAt := visit.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO queued_visits (token, customer_id, latitude, longitude, photo, photo_name, lines, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		visit.Token, visit.CustomerID, visit.Latitude, visit.Longitude,
		visit.Photo, visit.PhotoName, string(lines), createdAt)
	if err != nil {
		return 0, fmt.Errorf("insert queued visit: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read queued visit id: %w", err)
	}

	s.logger.Info("visit queued for sync",
		zap.Int64("local_id", id),
		zap.String("customer_id", visit.CustomerID))
	return id, nil
}

// ListAll returns every queued visit in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]models.QueuedVisit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, token, customer_id, latitude, longitude, photo, photo_name, lines, created_at
		 FROM queued_visits ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list queued visits: %w", err)
	}
	defer rows.Close()

	var visits []models.QueuedVisit
	for rows.Next() {
		var visit models.QueuedVisit
		var lines string
		if err := rows.Scan(&visit.LocalID, &visit.Token, &visit.CustomerID,
			&visit.Latitude, &visit.Longitude, &visit.Photo, &visit.PhotoName,
			&lines, &visit.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan queued visit: %w", err)
		}
		if err := json.Unmarshal([]byte(lines), &visit.Lines); err != nil {
			return nil, fmt.Errorf("unmarshal queued lines: %w", err)
		}
		visits = append(visits, visit)
	}

	return visits, rows.Err()
}

// Delete removes a delivered visit by its local ID.
func (s *Store) Delete(ctx context.Context, localID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM queued_visits WHERE id = ?`, localID); err != nil {
		return fmt.Errorf("delete queued visit %d: %w", localID, err)
	}
	return nil
}

// Count returns the number of pending visits. Feeds the queue-depth gauge.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queued_visits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queued visits: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
