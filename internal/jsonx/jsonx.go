// Package jsonx holds jx helpers for the value types persisted by the
// storefront: decimals are written as strings to keep them exact, times as
// RFC 3339 strings.
package jsonx

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// EncodeDecimal writes v as a JSON string.
func EncodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.String())
}

// DecodeDecimal reads a decimal written either as a JSON string or a JSON
// number. Older documents stored prices as plain numbers. A null yields zero.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		if s == "" {
			return decimal.Zero, nil
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "parse decimal %q", s)
		}
		return v, nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "parse decimal %s", n.String())
		}
		return v, nil
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for decimal", d.Next())
	}
}

// EncodeTime writes t in RFC 3339 with nanoseconds, UTC.
func EncodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

// DecodeTime reads an RFC 3339 string or a Unix epoch in milliseconds. A null
// or empty string yields the zero time.
func DecodeTime(d *jx.Decoder) (time.Time, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, errors.Wrapf(err, "parse time %q", s)
		}
		return t, nil
	case jx.Number:
		ms, err := d.Int64()
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	case jx.Null:
		return time.Time{}, d.Null()
	default:
		return time.Time{}, errors.Errorf("unexpected %s for time", d.Next())
	}
}
