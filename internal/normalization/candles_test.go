package normalization

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-ingest/internal/domain"
)

func TestTimestampConversion(t *testing.T) {
	rows := []RawCandle{{json.Number("1700000000000"), 1, 2, 0.5, 1.5}}

	points, err := NormalizeCandles("bitcoin", domain.PriceInterval1Day, rows, nil)
	require.NoError(t, err)
	require.Len(t, points, 1)

	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	assert.True(t, points[0].Timestamp.Equal(want), "got %v", points[0].Timestamp)
	assert.Equal(t, time.UTC, points[0].Timestamp.Location())
}

func TestNormalizeCandles_FractionalMillisKept(t *testing.T) {
	rows := []RawCandle{{json.Number("1700000000123.5"), 1, 1, 1, 1}}

	points, err := NormalizeCandles("bitcoin", "1d", rows, nil)
	require.NoError(t, err)

	want := time.Date(2023, 11, 14, 22, 13, 20, 123_500_000, time.UTC)
	assert.True(t, points[0].Timestamp.Equal(want), "got %v", points[0].Timestamp)
}

func TestNormalizeCandles_TimestampOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		ms   any
	}{
		{name: "year 10000", ms: json.Number("253402300800000")},
		{name: "microseconds", ms: json.Number("1700000000000000")},
		{name: "past int64 nanos", ms: json.Number("1e16")},
		{name: "before year 1", ms: json.Number("-62135596800001")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := NormalizeCandles("bitcoin", "1d", []RawCandle{{tt.ms, 1.0, 2.0, 0.5, 1.5}}, nil)
			assert.ErrorIs(t, err, ErrMalformedRow)
			assert.Nil(t, points)
		})
	}
}

func TestTimestampFromMillis_Bounds(t *testing.T) {
	last, err := TimestampFromMillis(decimal.NewFromInt(253402300799999))
	require.NoError(t, err)
	assert.Equal(t, time.Date(9999, 12, 31, 23, 59, 59, 999_000_000, time.UTC), last)

	first, err := TimestampFromMillis(decimal.NewFromInt(-62135596800000))
	require.NoError(t, err)
	assert.Equal(t, time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), first)

	_, err = TimestampFromMillis(decimal.NewFromInt(253402300800000))
	assert.Error(t, err)
}

func TestExtractDailyVolumes_TimestampOutOfRange(t *testing.T) {
	_, err := ExtractDailyVolumes([]RawSample{{json.Number("1e16"), 1.0}})
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestNormalizeCandles_VolumeJoinIsDateGrained(t *testing.T) {
	candleTs := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	volumeTs := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	volumes, err := ExtractDailyVolumes([]RawSample{{json.Number(itoa(volumeTs.UnixMilli())), 4242.0}})
	require.NoError(t, err)

	rows := []RawCandle{
		{json.Number(itoa(candleTs.UnixMilli())), "100", "110", "90", "105"},
		{json.Number(itoa(candleTs.AddDate(0, 0, 1).UnixMilli())), 105, 115, 95, 110},
	}

	points, err := NormalizeCandles("bitcoin", "1d", rows, volumes)
	require.NoError(t, err)
	require.Len(t, points, 2)

	require.NotNil(t, points[0].Volume)
	assert.InDelta(t, 4242.0, *points[0].Volume, 1e-9)
	assert.Nil(t, points[1].Volume, "no volume recorded for 2024-01-02")
}

func TestNormalizeCandles_OrderAndLengthPreserved(t *testing.T) {
	rows := []RawCandle{
		{json.Number("3000"), 3, 3, 3, 3},
		{json.Number("1000"), 1, 1, 1, 1},
		{json.Number("2000"), 2, 2, 2, 2},
	}

	points, err := NormalizeCandles("eth", "1d", rows, map[domain.Date]float64{})
	require.NoError(t, err)
	require.Len(t, points, 3)

	for i, want := range []float64{3, 1, 2} {
		assert.Equal(t, want, points[i].Close)
		assert.Equal(t, "eth", points[i].Asset)
		assert.Equal(t, "1d", points[i].Interval)
	}
}

func TestNormalizeCandles_StringAndIntegerFields(t *testing.T) {
	rows := []RawCandle{{json.Number("1000"), "42.5", json.Number("43"), 41, "4.2e1"}}

	points, err := NormalizeCandles("x", "1d", rows, nil)
	require.NoError(t, err)

	p := points[0]
	assert.Equal(t, 42.5, p.Open)
	assert.Equal(t, 43.0, p.High)
	assert.Equal(t, 41.0, p.Low)
	assert.Equal(t, 42.0, p.Close)
}

func TestNormalizeCandles_MalformedRowsFailWholeCall(t *testing.T) {
	tests := []struct {
		name string
		rows []RawCandle
	}{
		{"short row", []RawCandle{{json.Number("1000"), 1, 2, 3}}},
		{"long row", []RawCandle{{json.Number("1000"), 1, 2, 3, 4, 5}}},
		{"non-numeric close", []RawCandle{{json.Number("1000"), 1, 2, 3, "abc"}}},
		{"null open", []RawCandle{{json.Number("1000"), nil, 2, 3, 4}}},
		{"bad timestamp", []RawCandle{{"yesterday", 1, 2, 3, 4}}},
		{"bad second row", []RawCandle{
			{json.Number("1000"), 1, 2, 3, 4},
			{json.Number("2000"), 1, 2, true, 4},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := NormalizeCandles("x", "1d", tt.rows, nil)
			assert.True(t, errors.Is(err, ErrMalformedRow), "got %v", err)
			assert.Nil(t, points)
		})
	}
}

func TestNormalizeCandles_Empty(t *testing.T) {
	points, err := NormalizeCandles("x", "1d", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestDecodeRows(t *testing.T) {
	rows, err := DecodeRows([]byte(`[[1700000000000, 37000.1, 37200, 36900.5, 37100]]`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, json.Number("1700000000000"), rows[0][0])

	_, err = DecodeRows([]byte(`{"error":"rate limited"}`))
	assert.ErrorIs(t, err, ErrMalformedRow)
}
