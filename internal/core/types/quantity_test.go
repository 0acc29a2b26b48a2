package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{"12", Qty(12)},
		{"12.5", Quantity(125_000)},
		{" -3.25 ", Quantity(-32_500)},
		{"0.00005", Quantity(1)},
		{"1e2", Qty(100)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "abc", "1.2.3", "9999999999999999999"} {
		_, err := ParseQuantity(bad)
		assert.Error(t, err, bad)
	}
}

func TestQuantity_JSON(t *testing.T) {
	var v struct {
		A Quantity `json:"a"`
		B Quantity `json:"b"`
		C Quantity `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 7.25, "b": "40", "c": null}`), &v))
	assert.Equal(t, Quantity(72_500), v.A)
	assert.Equal(t, Qty(40), v.B)
	assert.Zero(t, v.C)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 7.25, "b": 40, "c": 0}`, string(out))
	assert.Contains(t, string(out), `"a":7.2500`)
}

func TestQuantity_String(t *testing.T) {
	assert.Equal(t, "0.0000", Quantity(0).String())
	assert.Equal(t, "-0.5000", Quantity(-5_000).String())
	assert.Equal(t, "1500.0001", Quantity(15_000_001).String())
}

func TestQuantity_Mul(t *testing.T) {
	got := Quantity(125_000).Mul(MustMoney("4.80"))
	assert.True(t, MustMoney("60").Equal(got), got.String())
}

func TestQuantity_CheckedAdd(t *testing.T) {
	sum, ok := Qty(2).CheckedAdd(Qty(3))
	require.True(t, ok)
	assert.Equal(t, Qty(5), sum)

	big := Quantity(9_000_000_000_000_000_000)
	_, ok = big.CheckedAdd(big)
	assert.False(t, ok)

	_, ok = Quantity(math.MinInt64).CheckedAdd(-1)
	assert.False(t, ok)
}
