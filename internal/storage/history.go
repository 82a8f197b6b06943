// Package storage persists prediction results so past comparisons can be
// reviewed after the cache has expired.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/bobby-s-dev/weather-consensus/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS predictions (
	id           TEXT PRIMARY KEY,
	location     TEXT NOT NULL,
	location_key TEXT NOT NULL,
	date         TEXT NOT NULL,
	combined     REAL,
	predictions  TEXT NOT NULL,
	weights      TEXT NOT NULL,
	failures     TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	generated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_location ON predictions (location_key, generated_at DESC);
`

// DefaultRecentLimit is used when Recent is called with a non-positive limit.
const DefaultRecentLimit = 20

type HistoryStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the SQLite database at path. ":memory:" is accepted.
func Open(path string, logger *zap.Logger) (*HistoryStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// a single connection keeps in-memory databases shared across calls
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	logger.Info("History store opened", zap.String("path", path))
	return &HistoryStore{db: db, logger: logger}, nil
}

func (s *HistoryStore) Save(ctx context.Context, result *models.PredictionResult) error {
	predictions, err := json.Marshal(result.Predictions)
	if err != nil {
		return fmt.Errorf("encoding predictions: %w", err)
	}
	weights, err := json.Marshal(result.Weights)
	if err != nil {
		return fmt.Errorf("encoding weights: %w", err)
	}
	failures, err := json.Marshal(result.Failures)
	if err != nil {
		return fmt.Errorf("encoding failures: %w", err)
	}

	var combined sql.NullFloat64
	if result.Combined != nil {
		combined = sql.NullFloat64{Float64: *result.Combined, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO predictions
			(id, location, location_key, date, combined, predictions, weights, failures, message, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID,
		result.Location,
		locationKey(result.Location),
		result.Date,
		combined,
		string(predictions),
		string(weights),
		string(failures),
		result.Message,
		result.GeneratedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving prediction %s: %w", result.ID, err)
	}

	s.logger.Debug("Prediction stored", zap.String("id", result.ID))
	return nil
}

// Recent returns stored results newest first. An empty location matches all.
func (s *HistoryStore) Recent(ctx context.Context, location string, limit int) ([]*models.PredictionResult, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query := `SELECT id, location, date, combined, predictions, weights, failures, message, generated_at
		FROM predictions`
	args := []interface{}{}
	if key := locationKey(location); key != "" {
		query += ` WHERE location_key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY generated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var results []*models.PredictionResult
	for rows.Next() {
		var (
			r                              models.PredictionResult
			combined                       sql.NullFloat64
			predictions, weights, failures string
			generatedAt                    int64
		)
		if err := rows.Scan(&r.ID, &r.Location, &r.Date, &combined, &predictions, &weights, &failures, &r.Message, &generatedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}

		if combined.Valid {
			v := combined.Float64
			r.Combined = &v
		}
		if err := json.Unmarshal([]byte(predictions), &r.Predictions); err != nil {
			return nil, fmt.Errorf("decoding predictions for %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(weights), &r.Weights); err != nil {
			return nil, fmt.Errorf("decoding weights for %s: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(failures), &r.Failures); err != nil {
			return nil, fmt.Errorf("decoding failures for %s: %w", r.ID, err)
		}
		r.GeneratedAt = time.Unix(0, generatedAt).UTC()

		results = append(results, &r)
	}

	return results, rows.Err()
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}

func locationKey(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}
