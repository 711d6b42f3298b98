package normalization

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedRow is returned when a raw provider row has the wrong arity
// or a field that cannot be read as a number.
var ErrMalformedRow = errors.New("malformed payload row")

// RawCandle is one undecoded candle row: [t_ms, open, high, low, close].
// Elements are json.Number, string or float64 depending on how the payload was decoded.
type RawCandle []any

// RawSample is one undecoded (t_ms, value) pair.
type RawSample []any

// candleArity is the number of fields in a CoinGecko-style OHLC row.
const candleArity = 5

var nanosPerMilli = decimal.New(1, 6)

// Epoch-millisecond bounds of years 1 through 9999.
var (
	minMillis = decimal.NewFromInt(time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	maxMillis = decimal.NewFromInt(time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
)

// DecodeRows decodes a JSON array of arrays, keeping numbers as json.Number
// so that integer timestamps survive without float rounding.
func DecodeRows(data []byte) ([][]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: decode rows: %v", ErrMalformedRow, err)
	}
	return rows, nil
}

// TimestampFromMillis converts epoch milliseconds into a UTC timestamp.
// Fractional milliseconds are kept down to the nanosecond and truncated beyond that.
// Values outside years 1 to 9999 are rejected.
func TimestampFromMillis(ms decimal.Decimal) (time.Time, error) {
	if ms.LessThan(minMillis) || !ms.LessThan(maxMillis) {
		return time.Time{}, fmt.Errorf("epoch millis %s out of range", ms.String())
	}

	whole := ms.Floor()
	nanos := ms.Sub(whole).Mul(nanosPerMilli).IntPart()
	return time.UnixMilli(whole.IntPart()).Add(time.Duration(nanos)).UTC(), nil
}

// toDecimal coerces a decoded JSON value into a decimal.
func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, fmt.Errorf("non-finite value %v", x)
		}
		return decimal.NewFromFloat(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case nil:
		return decimal.Zero, errors.New("null value")
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}

// toFloat coerces a decoded JSON value into a finite float64.
func toFloat(v any) (float64, error) {
	d, err := toDecimal(v)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value %s out of float range", d.String())
	}
	return f, nil
}

// toTimestamp reads an epoch-millisecond field.
func toTimestamp(v any) (time.Time, error) {
	d, err := toDecimal(v)
	if err != nil {
		return time.Time{}, err
	}
	return TimestampFromMillis(d)
}

func malformed(index int, format string, args ...any) error {
	return fmt.Errorf("%w: row %d: %s", ErrMalformedRow, index, fmt.Sprintf(format, args...))
}
