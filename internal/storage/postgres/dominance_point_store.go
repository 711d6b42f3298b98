package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-ingest/internal/domain"
	"market-ingest/internal/storage"
)

// DominancePointStore implements storage.DominancePointStore using PostgreSQL.
type DominancePointStore struct {
	pool *Pool
}

// NewDominancePointStore creates a new DominancePointStore.
func NewDominancePointStore(pool *Pool) *DominancePointStore {
	return &DominancePointStore{pool: pool}
}

var _ storage.DominancePointStore = (*DominancePointStore)(nil)

const upsertDominancePointQuery = `
	INSERT INTO dominance_points (asset, "interval", ts, close)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (asset, "interval", ts) DO UPDATE SET close = EXCLUDED.close
`

// UpsertBulk inserts or overwrites close for each point inside one transaction.
func (s *DominancePointStore) UpsertBulk(ctx context.Context, points []*domain.DominancePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	for _, p := range points {
		if err := storage.ValidateDominancePoint(p); err != nil {
			return 0, err
		}
	}

	err := s.pool.inTx(ctx, func(tx pgx.Tx) error {
		for _, p := range points {
			if _, err := tx.Exec(ctx, upsertDominancePointQuery, p.Asset, p.Interval, p.Timestamp.UTC(), p.Close); err != nil {
				if isInvalidInputError(err) {
					return fmt.Errorf("%w: upsert dominance %s: %v", storage.ErrInvalidInput, p.Key(), err)
				}
				return fmt.Errorf("upsert dominance %s: %w", p.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(points), nil
}

// GetLatest retrieves the most recent limit points, ordered by timestamp ASC.
func (s *DominancePointStore) GetLatest(ctx context.Context, asset, interval string, limit int) ([]*domain.DominancePoint, error) {
	query := `
		SELECT asset, "interval", ts, close
		FROM (
			SELECT asset, "interval", ts, close
			FROM dominance_points
			WHERE asset = $1 AND "interval" = $2
			ORDER BY ts DESC
			LIMIT $3
		) latest
		ORDER BY ts ASC
	`

	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := s.pool.Query(ctx, query, asset, interval, lim)
	if err != nil {
		return nil, fmt.Errorf("get latest dominance: %w", err)
	}
	defer rows.Close()

	return scanDominancePoints(rows)
}

// GetByTimeRange retrieves points within [start, end] (inclusive).
func (s *DominancePointStore) GetByTimeRange(ctx context.Context, asset, interval string, start, end time.Time) ([]*domain.DominancePoint, error) {
	query := `
		SELECT asset, "interval", ts, close
		FROM dominance_points
		WHERE asset = $1 AND "interval" = $2 AND ts >= $3 AND ts <= $4
		ORDER BY ts ASC
	`

	rows, err := s.pool.Query(ctx, query, asset, interval, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("get dominance by time range: %w", err)
	}
	defer rows.Close()

	return scanDominancePoints(rows)
}

func scanDominancePoints(rows pgx.Rows) ([]*domain.DominancePoint, error) {
	var points []*domain.DominancePoint

	for rows.Next() {
		var p domain.DominancePoint
		if err := rows.Scan(&p.Asset, &p.Interval, &p.Timestamp, &p.Close); err != nil {
			return nil, fmt.Errorf("scan dominance row: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dominance rows: %w", err)
	}

	return points, nil
}
