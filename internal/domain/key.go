package domain

import (
	"fmt"
	"time"
)

// NaturalKey is the (asset, interval, timestamp) triple that identifies a stored point.
// Timestamp is held as UTC nanoseconds so keys compare with ==.
type NaturalKey struct {
	Asset    string
	Interval string
	UnixNano int64
}

// NewNaturalKey builds a NaturalKey from its parts.
func NewNaturalKey(asset, interval string, ts time.Time) NaturalKey {
	return NaturalKey{Asset: asset, Interval: interval, UnixNano: ts.UTC().UnixNano()}
}

// Time returns the key timestamp in UTC.
func (k NaturalKey) Time() time.Time {
	return time.Unix(0, k.UnixNano).UTC()
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s|%s|%d", k.Asset, k.Interval, k.UnixNano)
}
