package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SensorField names one input of the consumption form.
type SensorField string

const (
	FieldDatetime SensorField = "datetime"
	FieldZ1Temp   SensorField = "z1_temp"
	FieldZ1RH     SensorField = "z1_rh"
	FieldZ1Lux    SensorField = "z1_lux"
	FieldZ2Temp   SensorField = "z2_temp"
	FieldZ2RH     SensorField = "z2_rh"
	FieldZ2Lux    SensorField = "z2_lux"
	FieldZ4Temp   SensorField = "z4_temp"
	FieldZ4RH     SensorField = "z4_rh"
	FieldZ4Lux    SensorField = "z4_lux"
	FieldZ5Temp   SensorField = "z5_temp"
	FieldZ5RH     SensorField = "z5_rh"
	FieldZ5Lux    SensorField = "z5_lux"
)

var sensorFields = []SensorField{
	FieldDatetime,
	FieldZ1Temp, FieldZ1RH, FieldZ1Lux,
	FieldZ2Temp, FieldZ2RH, FieldZ2Lux,
	FieldZ4Temp, FieldZ4RH, FieldZ4Lux,
	FieldZ5Temp, FieldZ5RH, FieldZ5Lux,
}

// SensorFields returns every form field in display order.
func SensorFields() []SensorField {
	return append([]SensorField(nil), sensorFields...)
}

// ParseSensorField converts a field name into a SensorField.
func ParseSensorField(name string) (SensorField, error) {
	for _, f := range sensorFields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown sensor field: %q", name)
}

// SensorReading is the raw text the user typed into the consumption form.
type SensorReading struct {
	Datetime string `json:"datetime"`
	Z1Temp   string `json:"z1_temp"`
	Z1RH     string `json:"z1_rh"`
	Z1Lux    string `json:"z1_lux"`
	Z2Temp   string `json:"z2_temp"`
	Z2RH     string `json:"z2_rh"`
	Z2Lux    string `json:"z2_lux"`
	Z4Temp   string `json:"z4_temp"`
	Z4RH     string `json:"z4_rh"`
	Z4Lux    string `json:"z4_lux"`
	Z5Temp   string `json:"z5_temp"`
	Z5RH     string `json:"z5_rh"`
	Z5Lux    string `json:"z5_lux"`
}

func (r *SensorReading) field(f SensorField) *string {
	switch f {
	case FieldDatetime:
		return &r.Datetime
	case FieldZ1Temp:
		return &r.Z1Temp
	case FieldZ1RH:
		return &r.Z1RH
	case FieldZ1Lux:
		return &r.Z1Lux
	case FieldZ2Temp:
		return &r.Z2Temp
	case FieldZ2RH:
		return &r.Z2RH
	case FieldZ2Lux:
		return &r.Z2Lux
	case FieldZ4Temp:
		return &r.Z4Temp
	case FieldZ4RH:
		return &r.Z4RH
	case FieldZ4Lux:
		return &r.Z4Lux
	case FieldZ5Temp:
		return &r.Z5Temp
	case FieldZ5RH:
		return &r.Z5RH
	case FieldZ5Lux:
		return &r.Z5Lux
	}
	return nil
}

// Get returns the raw value of a field.
func (r SensorReading) Get(f SensorField) string {
	if p := r.field(f); p != nil {
		return *p
	}
	return ""
}

// Set stores the raw value of a field.
func (r *SensorReading) Set(f SensorField, value string) error {
	p := r.field(f)
	if p == nil {
		return fmt.Errorf("unknown sensor field: %q", f)
	}
	*p = value
	return nil
}

// Missing returns the fields that are empty once whitespace is trimmed.
func (r SensorReading) Missing() []SensorField {
	var missing []SensorField
	for _, f := range sensorFields {
		if strings.TrimSpace(r.Get(f)) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Complete reports whether every field has a value.
func (r SensorReading) Complete() bool {
	return len(r.Missing()) == 0
}

// SensorValue is a parsed sensor measurement. Values that are not finite are
// encoded as JSON null so a malformed input never breaks serialization.
type SensorValue float64

// MarshalJSON implements json.Marshaler.
func (v SensorValue) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler. null decodes to NaN.
func (v *SensorValue) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*v = SensorValue(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = SensorValue(f)
	return nil
}

// FeatureVector is the fixed-schema input of the consumption model. The JSON
// keys, unit suffixes included, must match the model's training schema.
type FeatureVector struct {
	Hour      int `json:"hour"`
	DayOfWeek int `json:"dayofweek"`
	Month     int `json:"month"`

	Z1Temp SensorValue `json:"z1_S1(degC)"`
	Z1RH   SensorValue `json:"z1_S1(RH%)"`
	Z1Lux  SensorValue `json:"z1_S1(lux)"`
	Z2Temp SensorValue `json:"z2_S1(degC)"`
	Z2RH   SensorValue `json:"z2_S1(RH%)"`
	Z2Lux  SensorValue `json:"z2_S1(lux)"`
	Z4Temp SensorValue `json:"z4_S1(degC)"`
	Z4RH   SensorValue `json:"z4_S1(RH%)"`
	Z4Lux  SensorValue `json:"z4_S1(lux)"`
	Z5Temp SensorValue `json:"z5_S1(degC)"`
	Z5RH   SensorValue `json:"z5_S1(RH%)"`
	Z5Lux  SensorValue `json:"z5_S1(lux)"`
}

// FeatureKeys lists the model schema keys in request order.
var FeatureKeys = []string{
	"hour", "dayofweek", "month",
	"z1_S1(degC)", "z1_S1(RH%)", "z1_S1(lux)",
	"z2_S1(degC)", "z2_S1(RH%)", "z2_S1(lux)",
	"z4_S1(degC)", "z4_S1(RH%)", "z4_S1(lux)",
	"z5_S1(degC)", "z5_S1(RH%)", "z5_S1(lux)",
}
