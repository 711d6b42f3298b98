package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-ingest/internal/domain"
	"market-ingest/internal/storage"
)

// PricePointStore implements storage.PricePointStore using PostgreSQL.
type PricePointStore struct {
	pool *Pool
}

// NewPricePointStore creates a new PricePointStore.
func NewPricePointStore(pool *Pool) *PricePointStore {
	return &PricePointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PricePointStore = (*PricePointStore)(nil)

const upsertPricePointQuery = `
	INSERT INTO ohlc (
		asset, "interval", ts, open, high, low, close, volume
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (asset, "interval", ts) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume
`

// UpsertBulk inserts or overwrites each point inside one transaction.
func (s *PricePointStore) UpsertBulk(ctx context.Context, points []*domain.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	for _, p := range points {
		if err := storage.ValidatePricePoint(p); err != nil {
			return 0, err
		}
	}

	err := s.pool.inTx(ctx, func(tx pgx.Tx) error {
		for _, p := range points {
			_, err := tx.Exec(ctx, upsertPricePointQuery,
				p.Asset,
				p.Interval,
				p.Timestamp.UTC(),
				p.Open,
				p.High,
				p.Low,
				p.Close,
				p.Volume,
			)
			if err != nil {
				if isInvalidInputError(err) {
					return fmt.Errorf("%w: upsert ohlc %s: %v", storage.ErrInvalidInput, p.Key(), err)
				}
				return fmt.Errorf("upsert ohlc %s: %w", p.Key(), err)
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
func (s *PricePointStore) GetLatest(ctx context.Context, asset, interval string, limit int) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset, "interval", ts, open, high, low, close, volume
		FROM (
			SELECT asset, "interval", ts, open, high, low, close, volume
			FROM ohlc
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
		return nil, fmt.Errorf("get latest ohlc: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetByTimeRange retrieves points within [start, end] (inclusive).
func (s *PricePointStore) GetByTimeRange(ctx context.Context, asset, interval string, start, end time.Time) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset, "interval", ts, open, high, low, close, volume
		FROM ohlc
		WHERE asset = $1 AND "interval" = $2 AND ts >= $3 AND ts <= $4
		ORDER BY ts ASC
	`

	rows, err := s.pool.Query(ctx, query, asset, interval, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("get ohlc by time range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// scanPricePoints scans multiple rows into a slice of PricePoint.
func scanPricePoints(rows pgx.Rows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint

		err := rows.Scan(
			&p.Asset,
			&p.Interval,
			&p.Timestamp,
			&p.Open,
			&p.High,
			&p.Low,
			&p.Close,
			&p.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ohlc row: %w", err)
		}

		p.Timestamp = p.Timestamp.UTC()
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ohlc rows: %w", err)
	}

	return points, nil
}
