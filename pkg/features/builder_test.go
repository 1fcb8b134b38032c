package features

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

func completeReading() types.SensorReading {
	return types.SensorReading{
		Datetime: "2025-06-15T14:30",
		Z1Temp:   "21.5",
		Z1RH:     "40",
		Z1Lux:    "300",
		Z2Temp:   "22",
		Z2RH:     "41",
		Z2Lux:    "310",
		Z4Temp:   "23",
		Z4RH:     "42",
		Z4Lux:    "320",
		Z5Temp:   "24",
		Z5RH:     "43",
		Z5Lux:    "330",
	}
}

func TestBuild(t *testing.T) {
	b := NewBuilder(time.UTC)

	fv, err := b.Build(completeReading())
	require.NoError(t, err)

	assert.Equal(t, 14, fv.Hour)
	// 2025-06-15 is a Sunday
	assert.Equal(t, 0, fv.DayOfWeek)
	assert.Equal(t, 6, fv.Month)
	assert.Equal(t, types.SensorValue(21.5), fv.Z1Temp)
	assert.Equal(t, types.SensorValue(330), fv.Z5Lux)

	t.Run("Keys", func(t *testing.T) {
		b, err := json.Marshal(fv)
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		assert.Len(t, m, 15)
		for _, k := range types.FeatureKeys {
			assert.Contains(t, m, k)
		}
		assert.Equal(t, 21.5, m["z1_S1(degC)"])
		assert.Equal(t, 40.0, m["z1_S1(RH%)"])
	})

	t.Run("Saturday", func(t *testing.T) {
		r := completeReading()
		r.Datetime = "2025-01-04T00:00"
		fv, err := b.Build(r)
		require.NoError(t, err)
		assert.Equal(t, 6, fv.DayOfWeek)
		assert.Equal(t, 1, fv.Month)
		assert.Equal(t, 0, fv.Hour)
	})

	t.Run("December", func(t *testing.T) {
		r := completeReading()
		r.Datetime = "2024-12-31T23:59:59"
		fv, err := b.Build(r)
		require.NoError(t, err)
		assert.Equal(t, 12, fv.Month)
		assert.Equal(t, 23, fv.Hour)
		assert.Equal(t, 2, fv.DayOfWeek)
	})

	t.Run("RFC3339", func(t *testing.T) {
		lima, err := time.LoadLocation("America/Lima")
		if err != nil {
			t.Skip("no tzdata available")
		}
		r := completeReading()
		r.Datetime = "2025-06-15T14:30:00Z"
		fv, err := NewBuilder(lima).Build(r)
		require.NoError(t, err)
		assert.Equal(t, 9, fv.Hour)
	})
}

func TestBuildIncomplete(t *testing.T) {
	b := NewBuilder(time.UTC)

	r := completeReading()
	r.Z2RH = "   "
	r.Z5Lux = ""
	_, err := b.Build(r)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "incomplete form", verr.Reason)
	assert.Equal(t, []types.SensorField{types.FieldZ2RH, types.FieldZ5Lux}, verr.Fields)

	_, err = b.Build(types.SensorReading{})
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 13)
}

func TestBuildInvalidTimestamp(t *testing.T) {
	r := completeReading()
	r.Datetime = "yesterday"
	_, err := NewBuilder(time.UTC).Build(r)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "invalid timestamp", verr.Reason)
	assert.Equal(t, []types.SensorField{types.FieldDatetime}, verr.Fields)
}

func TestBuildPassesNaN(t *testing.T) {
	r := completeReading()
	r.Z1Temp = "abc"
	fv, err := NewBuilder(time.UTC).Build(r)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(fv.Z1Temp)))

	b, err := json.Marshal(fv)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"z1_S1(degC)":null`)
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"21.5", 21.5},
		{"  21.5", 21.5},
		{"21.5abc", 21.5},
		{"21,5", 21},
		{"-3", -3},
		{"+4.", 4},
		{".5", 0.5},
		{"1e3", 1000},
		{"1e", 1},
		{"0x10", 0},
		{"Infinity", math.Inf(1)},
		{"-Infinity", math.Inf(-1)},
		{"1e999", math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, float64(ParseDecimal(tt.in)))
		})
	}

	for _, in := range []string{"abc", "", ".", "-", "e5", ",5"} {
		assert.True(t, math.IsNaN(float64(ParseDecimal(in))), in)
	}
}
