package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chainlens/market-pipeline/internal/metric"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Snapshot is one persisted (date, key) → value row.
type Snapshot struct {
	Date      time.Time      `json:"date"`
	Key       metric.Key     `json:"key"`
	Value     *float64       `json:"value"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// UpsertRecords writes a batch in one transaction, insert-or-replace keyed
// on (metric_date, metric_key). Re-running a day's aggregation with the
// same inputs converges on the same stored state — never duplicate rows.
// Keys outside the closed enumeration are rejected before any SQL runs.
func (s *Store) UpsertRecords(ctx context.Context, records []metric.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for _, r := range records {
		if !r.Key.Valid() {
			return 0, fmt.Errorf("refusing to store unknown metric key %q", r.Key)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		meta, err := marshalMetadata(r.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal metadata for %s: %w", r.Key, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO metrics (metric_date, metric_key, value, metadata)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (metric_date, metric_key) DO UPDATE
				SET value = EXCLUDED.value, metadata = EXCLUDED.metadata`,
			r.Date, string(r.Key), r.Value, meta)
		if err != nil {
			return 0, fmt.Errorf("upsert %s %s: %w", r.Date.Format("2006-01-02"), r.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert tx: %w", err)
	}
	return len(records), nil
}

// History returns snapshots for one key, newest first, bounded by a
// lookback window in days (0 = unbounded). Read-only.
func (s *Store) History(ctx context.Context, key metric.Key, lookbackDays int) ([]Snapshot, error) {
	query := `
		SELECT metric_date, metric_key, value, metadata, created_at
		FROM metrics
		WHERE metric_key = $1`
	args := []any{string(key)}
	if lookbackDays > 0 {
		query += ` AND metric_date >= $2`
		args = append(args, lookbackCutoff(time.Now(), lookbackDays))
	}
	query += ` ORDER BY metric_date DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var keyStr string
		var meta []byte
		if err := rows.Scan(&snap.Date, &keyStr, &snap.Value, &meta, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snap.Key = metric.Key(keyStr)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &snap.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Latest returns the most recent snapshot for a key.
func (s *Store) Latest(ctx context.Context, key metric.Key) (*Snapshot, error) {
	var snap Snapshot
	var keyStr string
	var meta []byte
	err := s.pool.QueryRow(ctx, `
		SELECT metric_date, metric_key, value, metadata, created_at
		FROM metrics
		WHERE metric_key = $1
		ORDER BY metric_date DESC
		LIMIT 1`, string(key)).
		Scan(&snap.Date, &keyStr, &snap.Value, &meta, &snap.CreatedAt)
	if err != nil {
		return nil, err
	}
	snap.Key = metric.Key(keyStr)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &snap.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &snap, nil
}

// lookbackCutoff is the oldest UTC calendar day a lookback window still
// includes. Rows are keyed by DATE, so the boundary must be a whole day.
func lookbackCutoff(now time.Time, days int) time.Time {
	return metric.Day(now).AddDate(0, 0, -days)
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}
