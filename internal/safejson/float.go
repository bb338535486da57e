// Package safejson provides float types whose JSON encoding never emits
// NaN or infinities. Strict JSON parsers reject non-finite literals, so
// every numeric field that leaves the engine goes through these types:
// non-finite values serialize as null while array lengths are preserved.
package safejson

import (
	"math"
	"strconv"
)

var null = []byte("null")

// Float is a float64 that marshals non-finite values as JSON null.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null, nil
	}
	return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null decodes to NaN so
// holes survive a round trip.
func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Valid reports whether the value is finite.
func (f Float) Valid() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FloatSlice wraps a []float64 as an index-aligned JSON array where
// non-finite positions become null. Length always equals the input length.
type FloatSlice []float64

// MarshalJSON implements json.Marshaler.
func (s FloatSlice) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 1+len(s)*8)
	buf = append(buf, '[')
	for i, v := range s {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf = append(buf, null...)
			continue
		}
		buf = strconv.AppendFloat(buf, v, 'f', -1, 64)
	}
	return append(buf, ']'), nil
}

// Ptr returns a non-nil *Float for finite v and nil otherwise, for fields
// whose null sentinel is an absent ratio rather than a hole in a series.
func Ptr(v float64) *Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f := Float(v)
	return &f
}

// Round returns v rounded to the given number of decimal places. Rounding
// a non-finite value returns it unchanged so holes propagate.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
