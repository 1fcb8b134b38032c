// Package metrics derives CO2 and cost figures from a consumption prediction.
package metrics

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// Placeholder figures shown until a prediction has been obtained.
const (
	PlaceholderConsumption = "3.2"
	PlaceholderCO2         = "0.75"
	PlaceholderCost        = "0.80"
)

// Currency is the currency symbol costs are shown in.
const Currency = "S/."

// Metrics holds the unrounded derived figures.
type Metrics struct {
	Consumption float64 `json:"consumption"`
	CO2Kg       float64 `json:"co2Kg"`
	Cost        float64 `json:"cost"`
}

// Derive computes CO2 and cost for a consumption in kWh.
func Derive(consumption float64, prefs types.Preferences) Metrics {
	return Metrics{
		Consumption: consumption,
		CO2Kg:       consumption * prefs.CO2Factor,
		Cost:        consumption * prefs.TariffPerKWH,
	}
}

// Display is the formatted form of Metrics.
type Display struct {
	Consumption string `json:"consumption"`
	CO2Kg       string `json:"co2Kg"`
	Cost        string `json:"cost"`
	Currency    string `json:"currency"`
	Placeholder bool   `json:"placeholder"`
}

// Display rounds every figure to two decimals.
func (m Metrics) Display() Display {
	return Display{
		Consumption: FormatFixed(m.Consumption, 2),
		CO2Kg:       FormatFixed(m.CO2Kg, 2),
		Cost:        FormatFixed(m.Cost, 2),
		Currency:    Currency,
	}
}

// Placeholder returns the figures shown when there is no prediction.
func Placeholder() Display {
	return Display{
		Consumption: PlaceholderConsumption,
		CO2Kg:       PlaceholderCO2,
		Cost:        PlaceholderCost,
		Currency:    Currency,
		Placeholder: true,
	}
}

// FormatFixed formats f with exactly places decimals, rounding half away from
// zero. Non-finite values are written as NaN, Infinity or -Infinity.
func FormatFixed(f float64, places int32) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	// go through the shortest decimal representation so 1.005 rounds like it reads
	d, err := decimal.NewFromString(strconv.FormatFloat(f, 'f', -1, 64))
	if err != nil {
		d = decimal.NewFromFloat(f)
	}
	return d.StringFixed(places)
}
