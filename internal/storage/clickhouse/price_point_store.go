package clickhouse

import (
	"context"
	"fmt"
	"time"

	"market-ingest/internal/domain"
	"market-ingest/internal/storage"
)

// PricePointStore implements storage.PricePointStore on a ReplacingMergeTree table.
// Re-ingested keys are inserted as newer versions and collapsed by FINAL on read.
type PricePointStore struct {
	conn *Conn
	now  func() time.Time
}

// NewPricePointStore creates a new PricePointStore.
func NewPricePointStore(conn *Conn) *PricePointStore {
	return &PricePointStore{conn: conn, now: time.Now}
}

// Compile-time interface check.
var _ storage.PricePointStore = (*PricePointStore)(nil)

// UpsertBulk sends the batch as a single INSERT block.
func (s *PricePointStore) UpsertBulk(ctx context.Context, points []*domain.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	for _, p := range points {
		if err := storage.ValidatePricePoint(p); err != nil {
			return 0, err
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ohlc (
			asset, interval, ts, open, high, low, close, volume, ingested_at
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	version := s.now().UTC()
	for _, p := range lastPerKey(points) {
		err = batch.Append(
			p.Asset, p.Interval, p.Timestamp.UTC(),
			p.Open, p.High, p.Low, p.Close, p.Volume,
			version,
		)
		if err != nil {
			batch.Abort()
			return 0, fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}

	return len(points), nil
}

// GetLatest retrieves the most recent limit points, ordered by timestamp ASC.
func (s *PricePointStore) GetLatest(ctx context.Context, asset, interval string, limit int) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset, interval, ts, open, high, low, close, volume
		FROM ohlc FINAL
		WHERE asset = ? AND interval = ?
		ORDER BY ts DESC
	`
	args := []any{asset, interval}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest ohlc: %w", err)
	}
	defer rows.Close()

	points, err := scanPricePoints(rows)
	if err != nil {
		return nil, err
	}
	reversePricePoints(points)
	return points, nil
}

// GetByTimeRange retrieves points within [start, end] (inclusive).
func (s *PricePointStore) GetByTimeRange(ctx context.Context, asset, interval string, start, end time.Time) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset, interval, ts, open, high, low, close, volume
		FROM ohlc FINAL
		WHERE asset = ? AND interval = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, asset, interval, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query ohlc by time range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// lastPerKey drops earlier duplicates of a key within one batch, since rows
// sharing a version would otherwise collapse in merge order.
func lastPerKey(points []*domain.PricePoint) []*domain.PricePoint {
	last := make(map[domain.NaturalKey]int, len(points))
	for i, p := range points {
		last[p.Key()] = i
	}
	if len(last) == len(points) {
		return points
	}

	out := make([]*domain.PricePoint, 0, len(last))
	for i, p := range points {
		if last[p.Key()] == i {
			out = append(out, p)
		}
	}
	return out
}

func reversePricePoints(points []*domain.PricePoint) {
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
}

func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		err := rows.Scan(
			&p.Asset, &p.Interval, &p.Timestamp,
			&p.Open, &p.High, &p.Low, &p.Close, &p.Volume,
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
