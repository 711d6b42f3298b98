package normalization

import (
	"market-ingest/internal/domain"
)

// ExtractDailyVolumes groups a running (t_ms, value) series by UTC calendar date.
// When several entries share a date the one latest in the sequence wins.
func ExtractDailyVolumes(totals []RawSample) (map[domain.Date]float64, error) {
	series, err := ParseSeries(totals)
	if err != nil {
		return nil, err
	}

	out := make(map[domain.Date]float64, len(series))
	for _, s := range series {
		out[domain.DateOf(s.Timestamp)] = s.Value
	}
	return out, nil
}

// ParseSeries converts raw (t_ms, value) pairs into a value series, order preserved.
func ParseSeries(samples []RawSample) (domain.ValueSeries, error) {
	series := make(domain.ValueSeries, 0, len(samples))

	for i, raw := range samples {
		if len(raw) != 2 {
			return nil, malformed(i, "expected 2 fields, got %d", len(raw))
		}
		ts, err := toTimestamp(raw[0])
		if err != nil {
			return nil, malformed(i, "timestamp: %v", err)
		}
		v, err := toFloat(raw[1])
		if err != nil {
			return nil, malformed(i, "value: %v", err)
		}
		series = append(series, domain.Sample{Timestamp: ts, Value: v})
	}

	return series, nil
}
