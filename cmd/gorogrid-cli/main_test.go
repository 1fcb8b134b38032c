package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/metrics"
)

func sensorArgs() []string {
	return []string{
		"--datetime", "2025-06-15T14:30",
		"--z1_temp", "22.5", "--z1_rh", "55", "--z1_lux", "300",
		"--z2_temp", "23.1", "--z2_rh", "50", "--z2_lux", "250",
		"--z4_temp", "21.8", "--z4_rh", "60", "--z4_lux", "180",
		"--z5_temp", "24.0", "--z5_rh", "45", "--z5_lux", "400",
	}
}

func TestFeatures(t *testing.T) {
	var out bytes.Buffer
	args := append([]string{"gorogrid-cli", "--timezone", "UTC", "features"}, sensorArgs()...)
	require.NoError(t, newApp(&out).Run(args))

	var body struct {
		Features map[string]any `json:"features"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Len(t, body.Features, 15)
	assert.EqualValues(t, 14, body.Features["hour"])
	assert.EqualValues(t, 0, body.Features["dayofweek"])
	assert.EqualValues(t, 6, body.Features["month"])
	assert.EqualValues(t, 22.5, body.Features["z1_S1(degC)"])
}

func TestFeaturesMissingFlag(t *testing.T) {
	var out bytes.Buffer
	err := newApp(&out).Run([]string{"gorogrid-cli", "features", "--datetime", "2025-06-15T14:30"})
	assert.Error(t, err)
}

func TestPredict(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prediction": 3.75}`))
	}))
	defer ts.Close()

	t.Run("Text", func(t *testing.T) {
		var out bytes.Buffer
		args := append([]string{"gorogrid-cli", "predict", "--url", ts.URL}, sensorArgs()...)
		require.NoError(t, newApp(&out).Run(args))
		assert.Contains(t, out.String(), "Consumption: 3.75 kWh")
		assert.Contains(t, out.String(), "CO2:         0.87 kg")
		assert.Contains(t, out.String(), "Cost:        S/. 0.94")
	})

	t.Run("JSON", func(t *testing.T) {
		var out bytes.Buffer
		args := append([]string{"gorogrid-cli", "predict", "--url", ts.URL, "--tariff", "0.5", "--json"}, sensorArgs()...)
		require.NoError(t, newApp(&out).Run(args))
		var d metrics.Display
		require.NoError(t, json.Unmarshal(out.Bytes(), &d))
		assert.Equal(t, "1.88", d.Cost)
		assert.False(t, d.Placeholder)
	})

	t.Run("NegativeTariff", func(t *testing.T) {
		var out bytes.Buffer
		args := append([]string{"gorogrid-cli", "predict", "--url", ts.URL, "--tariff", "-1"}, sensorArgs()...)
		assert.Error(t, newApp(&out).Run(args))
	})
}

func TestPredictServiceDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	var out bytes.Buffer
	args := append([]string{"gorogrid-cli", "predict", "--url", ts.URL}, sensorArgs()...)
	err := newApp(&out).Run(args)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status")
}
