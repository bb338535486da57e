package safejson

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatMarshal(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{1.5, "1.5"},
		{0, "0"},
		{-3.25, "-3.25"},
		{math.NaN(), "null"},
		{math.Inf(1), "null"},
		{math.Inf(-1), "null"},
	}
	for _, tc := range cases {
		got, err := json.Marshal(Float(tc.in))
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(got))
	}
}

func TestFloatUnmarshalNullIsHole(t *testing.T) {
	var f Float
	require.NoError(t, json.Unmarshal([]byte("null"), &f))
	assert.True(t, math.IsNaN(float64(f)))

	require.NoError(t, json.Unmarshal([]byte("2.5"), &f))
	assert.Equal(t, Float(2.5), f)
}

func TestFloatSlicePreservesLength(t *testing.T) {
	s := FloatSlice{math.NaN(), 1, 2.5, math.Inf(1), -4}
	got, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, "[null,1,2.5,null,-4]", string(got))

	var decoded []Float
	require.NoError(t, json.Unmarshal(got, &decoded))
	require.Len(t, decoded, len(s))
	assert.True(t, math.IsNaN(float64(decoded[0])))
	assert.Equal(t, Float(2.5), decoded[2])
}

func TestPtr(t *testing.T) {
	assert.Nil(t, Ptr(math.NaN()))
	assert.Nil(t, Ptr(math.Inf(-1)))
	p := Ptr(1.25)
	require.NotNil(t, p)
	assert.Equal(t, Float(1.25), *p)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.23, Round(1.2345, 2))
	assert.Equal(t, 1.24, Round(1.235, 2))
	assert.Equal(t, -2.0, Round(-1.999, 0))
	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
	assert.True(t, math.IsInf(Round(math.Inf(1), 2), 1))
}

func TestValid(t *testing.T) {
	assert.True(t, Float(0).Valid())
	assert.False(t, Float(math.NaN()).Valid())
	assert.False(t, Float(math.Inf(1)).Valid())
}
