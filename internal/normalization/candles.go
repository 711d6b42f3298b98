package normalization

import (
	"market-ingest/internal/domain"
)

// NormalizeCandles converts raw candle rows into price points.
//
// Each row must be [t_ms, open, high, low, close]. Volume is looked up by the
// UTC calendar date of the candle, not by exact timestamp; a missing date
// leaves Volume nil. Output has one point per row in input order.
// The first malformed row fails the whole call.
func NormalizeCandles(asset, interval string, rows []RawCandle, volumeByDate map[domain.Date]float64) ([]*domain.PricePoint, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	result := make([]*domain.PricePoint, 0, len(rows))

	for i, row := range rows {
		if len(row) != candleArity {
			return nil, malformed(i, "expected %d fields, got %d", candleArity, len(row))
		}

		ts, err := toTimestamp(row[0])
		if err != nil {
			return nil, malformed(i, "timestamp: %v", err)
		}

		var ohlc [4]float64
		for j := 0; j < 4; j++ {
			ohlc[j], err = toFloat(row[j+1])
			if err != nil {
				return nil, malformed(i, "field %d: %v", j+1, err)
			}
		}

		point := &domain.PricePoint{
			Asset:     asset,
			Interval:  interval,
			Timestamp: ts,
			Open:      ohlc[0],
			High:      ohlc[1],
			Low:       ohlc[2],
			Close:     ohlc[3],
		}
		if v, ok := volumeByDate[domain.DateOf(ts)]; ok {
			vol := v
			point.Volume = &vol
		}

		result = append(result, point)
	}

	return result, nil
}
