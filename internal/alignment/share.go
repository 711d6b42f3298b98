// Package alignment derives ratio series from several raw series aligned by timestamp.
package alignment

import (
	"errors"
	"sort"
	"time"

	"market-ingest/internal/domain"
)

// ErrNoSeries is returned when no input series are given.
var ErrNoSeries = errors.New("alignment requires at least one series")

// ComputeShareSeries returns, per asset, the asset's percentage of the summed
// value across all assets at each timestamp present in every series.
//
// Timestamps must match exactly across series. A timestamp whose total is
// not positive is dropped for every asset. Output series are ascending and
// all share the same timestamps.
func ComputeShareSeries(series map[string]domain.ValueSeries) (map[string]domain.ValueSeries, error) {
	if len(series) == 0 {
		return nil, ErrNoSeries
	}

	// Index each series by timestamp; a repeated timestamp keeps the last value.
	indexed := make(map[string]map[int64]float64, len(series))
	for asset, s := range series {
		idx := make(map[int64]float64, len(s))
		for _, smp := range s {
			idx[smp.Timestamp.UnixNano()] = smp.Value
		}
		indexed[asset] = idx
	}

	common := intersect(indexed)
	sort.Slice(common, func(i, j int) bool { return common[i] < common[j] })

	// Sum in a fixed asset order so repeated runs produce identical floats.
	assets := make([]string, 0, len(series))
	out := make(map[string]domain.ValueSeries, len(series))
	for asset := range series {
		assets = append(assets, asset)
		out[asset] = make(domain.ValueSeries, 0, len(common))
	}
	sort.Strings(assets)

	for _, ts := range common {
		total := 0.0
		for _, asset := range assets {
			total += indexed[asset][ts]
		}
		if total <= 0 {
			continue
		}

		t := time.Unix(0, ts).UTC()
		for _, asset := range assets {
			out[asset] = append(out[asset], domain.Sample{
				Timestamp: t,
				Value:     100.0 * indexed[asset][ts] / total,
			})
		}
	}

	return out, nil
}

// intersect returns the timestamps present in every index.
func intersect(indexed map[string]map[int64]float64) []int64 {
	// Start from the smallest index to keep the scan short.
	var smallest map[int64]float64
	for _, idx := range indexed {
		if smallest == nil || len(idx) < len(smallest) {
			smallest = idx
		}
	}

	var common []int64
	for ts := range smallest {
		inAll := true
		for _, idx := range indexed {
			if _, ok := idx[ts]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, ts)
		}
	}
	return common
}

// ToDominancePoints flattens share series into dominance points.
// Points are ordered by asset then timestamp so writes are deterministic.
func ToDominancePoints(interval string, shares map[string]domain.ValueSeries) []*domain.DominancePoint {
	assets := make([]string, 0, len(shares))
	total := 0
	for asset, s := range shares {
		assets = append(assets, asset)
		total += len(s)
	}
	sort.Strings(assets)

	points := make([]*domain.DominancePoint, 0, total)
	for _, asset := range assets {
		for _, smp := range shares[asset] {
			points = append(points, &domain.DominancePoint{
				Asset:     asset,
				Interval:  interval,
				Timestamp: smp.Timestamp,
				Close:     smp.Value,
			})
		}
	}
	return points
}
