package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes_ScanKeepsNumberPrecision(t *testing.T) {
	var a Attributes
	require.NoError(t, a.Scan([]byte(`{"shade":"Honey","thickness":0.1875}`)))

	assert.Equal(t, "Honey", a["shade"])
	assert.Equal(t, json.Number("0.1875"), a["thickness"])

	v, err := a.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"shade":"Honey","thickness":0.1875}`, string(v.([]byte)))
}

func TestAttributes_ScanEmpty(t *testing.T) {
	a := Attributes{"x": 1}
	require.NoError(t, a.Scan(nil))
	assert.Nil(t, a)

	require.NoError(t, a.Scan(""))
	assert.Nil(t, a)

	assert.Error(t, a.Scan(42))

	v, err := a.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestAttributes_Clone(t *testing.T) {
	a := Attributes{"finish": "matte"}
	c := a.Clone()
	c["finish"] = "gloss"
	assert.Equal(t, "matte", a["finish"])
	assert.Nil(t, Attributes(nil).Clone())
}
