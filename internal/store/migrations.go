package store

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS metrics (
    metric_date DATE NOT NULL,
    metric_key TEXT NOT NULL,
    value DOUBLE PRECISION,
    metadata JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (metric_date, metric_key)
);

CREATE INDEX IF NOT EXISTS idx_metrics_key_date ON metrics (metric_key, metric_date DESC);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
