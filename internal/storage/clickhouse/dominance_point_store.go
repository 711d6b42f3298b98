package clickhouse

import (
	"context"
	"fmt"
	"time"

	"market-ingest/internal/domain"
	"market-ingest/internal/storage"
)

// DominancePointStore implements storage.DominancePointStore on a ReplacingMergeTree table.
type DominancePointStore struct {
	conn *Conn
	now  func() time.Time
}

// NewDominancePointStore creates a new DominancePointStore.
func NewDominancePointStore(conn *Conn) *DominancePointStore {
	return &DominancePointStore{conn: conn, now: time.Now}
}

var _ storage.DominancePointStore = (*DominancePointStore)(nil)

// UpsertBulk sends the batch as a single INSERT block.
func (s *DominancePointStore) UpsertBulk(ctx context.Context, points []*domain.DominancePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	last := make(map[domain.NaturalKey]*domain.DominancePoint, len(points))
	order := make([]domain.NaturalKey, 0, len(points))
	for _, p := range points {
		if err := storage.ValidateDominancePoint(p); err != nil {
			return 0, err
		}
		k := p.Key()
		if _, seen := last[k]; !seen {
			order = append(order, k)
		}
		last[k] = p
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO dominance_points (asset, interval, ts, close, ingested_at)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	version := s.now().UTC()
	for _, k := range order {
		p := last[k]
		if err := batch.Append(p.Asset, p.Interval, p.Timestamp.UTC(), p.Close, version); err != nil {
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
func (s *DominancePointStore) GetLatest(ctx context.Context, asset, interval string, limit int) ([]*domain.DominancePoint, error) {
	query := `
		SELECT asset, interval, ts, close
		FROM dominance_points FINAL
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
		return nil, fmt.Errorf("query latest dominance: %w", err)
	}
	defer rows.Close()

	points, err := scanDominancePoints(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// GetByTimeRange retrieves points within [start, end] (inclusive).
func (s *DominancePointStore) GetByTimeRange(ctx context.Context, asset, interval string, start, end time.Time) ([]*domain.DominancePoint, error) {
	query := `
		SELECT asset, interval, ts, close
		FROM dominance_points FINAL
		WHERE asset = ? AND interval = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, asset, interval, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query dominance by time range: %w", err)
	}
	defer rows.Close()

	return scanDominancePoints(rows)
}

func scanDominancePoints(rows chRows) ([]*domain.DominancePoint, error) {
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
