package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"market-ingest/internal/domain"
	"market-ingest/internal/storage"
)

// DivergenceStore implements storage.DivergenceStore using PostgreSQL.
type DivergenceStore struct {
	pool *Pool
}

// NewDivergenceStore creates a new DivergenceStore.
func NewDivergenceStore(pool *Pool) *DivergenceStore {
	return &DivergenceStore{pool: pool}
}

var _ storage.DivergenceStore = (*DivergenceStore)(nil)

const upsertDivergenceQuery = `
	INSERT INTO divergences (asset, "interval", ts, indicator, kind, price_swing, indicator_swing)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (asset, "interval", ts, indicator, kind) DO UPDATE SET
		price_swing = EXCLUDED.price_swing,
		indicator_swing = EXCLUDED.indicator_swing
`

// UpsertBulk inserts or overwrites swings for each divergence inside one transaction.
func (s *DivergenceStore) UpsertBulk(ctx context.Context, divs []*domain.Divergence) (int, error) {
	if len(divs) == 0 {
		return 0, nil
	}

	for _, d := range divs {
		if err := storage.ValidateDivergence(d); err != nil {
			return 0, err
		}
	}

	err := s.pool.inTx(ctx, func(tx pgx.Tx) error {
		for _, d := range divs {
			_, err := tx.Exec(ctx, upsertDivergenceQuery,
				d.Asset, d.Interval, d.Timestamp.UTC(), d.Indicator, d.Kind, d.PriceSwing, d.IndicatorSwing)
			if err != nil {
				if isInvalidInputError(err) {
					return fmt.Errorf("%w: upsert divergence %s: %v", storage.ErrInvalidInput, d.Key(), err)
				}
				return fmt.Errorf("upsert divergence %s: %w", d.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(divs), nil
}

// GetLatest retrieves the most recent filter.Limit matching rows, oldest first.
func (s *DivergenceStore) GetLatest(ctx context.Context, filter storage.DivergenceFilter) ([]*domain.Divergence, error) {
	query := `
		SELECT asset, "interval", ts, indicator, kind, price_swing, indicator_swing
		FROM (
			SELECT asset, "interval", ts, indicator, kind, price_swing, indicator_swing
			FROM divergences
			WHERE ($1::text = '' OR asset = $1)
			  AND ($2::text = '' OR "interval" = $2)
			  AND ($3::text = '' OR indicator = $3)
			  AND ($4::text = '' OR kind = $4)
			ORDER BY ts DESC, asset DESC, "interval" DESC, indicator DESC, kind DESC
			LIMIT $5
		) latest
		ORDER BY ts ASC, asset ASC, "interval" ASC, indicator ASC, kind ASC
	`

	var lim any
	if filter.Limit > 0 {
		lim = filter.Limit
	}

	rows, err := s.pool.Query(ctx, query, filter.Asset, filter.Interval, filter.Indicator, filter.Kind, lim)
	if err != nil {
		return nil, fmt.Errorf("get latest divergences: %w", err)
	}
	defer rows.Close()

	var divs []*domain.Divergence
	for rows.Next() {
		var d domain.Divergence
		if err := rows.Scan(&d.Asset, &d.Interval, &d.Timestamp, &d.Indicator, &d.Kind, &d.PriceSwing, &d.IndicatorSwing); err != nil {
			return nil, fmt.Errorf("scan divergence row: %w", err)
		}
		d.Timestamp = d.Timestamp.UTC()
		divs = append(divs, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate divergence rows: %w", err)
	}

	return divs, nil
}
