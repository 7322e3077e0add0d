package modelcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 123, time.UTC)
	env := Envelope{
		Kind:      "forecast",
		Version:   2,
		CreatedAt: created,
		Payload: map[string]any{
			"coefficients": Floats([]float64{1.5, -2.25, 0}),
			"scale":        42.0,
			"last":         created.Format(time.RFC3339Nano),
			"blob":         []byte{0, 1, 2, 255},
		},
	}

	blob, err := EncodeEnvelope(env)
	require.NoError(t, err)

	got, err := DecodeEnvelope(blob)
	require.NoError(t, err)
	assert.Equal(t, "forecast", got.Kind)
	assert.Equal(t, 2, got.Version)
	assert.True(t, created.Equal(got.CreatedAt))

	coeffs, err := PayloadFloats(got.Payload, "coefficients")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2.25, 0}, coeffs)

	scale, err := PayloadFloat(got.Payload, "scale")
	require.NoError(t, err)
	assert.Equal(t, 42.0, scale)

	last, err := PayloadTime(got.Payload, "last")
	require.NoError(t, err)
	assert.True(t, created.Equal(last))

	raw, err := PayloadBytes(got.Payload, "blob")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 255}, raw)
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
	}{
		{name: "garbage", blob: []byte{0xff, 0xff, 0xff}},
		{name: "empty struct", blob: []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope(tt.blob)
			assert.Error(t, err)
		})
	}
}

func TestPayloadAccessors_WrongTypes(t *testing.T) {
	payload := map[string]any{"s": "text", "n": 1.0, "l": []any{"x"}}

	_, err := PayloadFloats(payload, "s")
	assert.Error(t, err)
	_, err = PayloadFloats(payload, "l")
	assert.Error(t, err)
	_, err = PayloadFloat(payload, "s")
	assert.Error(t, err)
	_, err = PayloadTime(payload, "n")
	assert.Error(t, err)
	_, err = PayloadBytes(payload, "missing")
	assert.Error(t, err)
}
