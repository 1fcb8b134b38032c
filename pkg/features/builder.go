// Package features turns the raw text of the consumption form into the
// feature vector the consumption model expects.
package features

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/levenlabs/go-lflag"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// Validation failure reasons.
const (
	ReasonIncomplete = "incomplete form"
	ReasonTimestamp  = "invalid timestamp"
)

// ValidationError is returned when the form cannot be turned into features.
// Nothing is ever sent to the model when this error is returned.
type ValidationError struct {
	Reason string
	// Fields lists the offending fields, if known.
	Fields []types.SensorField
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation error: " + e.Reason
	}
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("validation error: %s (%s)", e.Reason, strings.Join(names, ", "))
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// Builder builds feature vectors. Calendar components are computed in the
// builder's location, which mirrors the user's wall clock.
type Builder struct {
	location *time.Location
}

// NewBuilder returns a Builder for the given location. A nil location means
// time.Local.
func NewBuilder(loc *time.Location) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{location: loc}
}

// Configured sets up a Builder based on flags.
func Configured() *Builder {
	tz := lflag.String("timezone", "", "IANA timezone the form timestamps are entered in (default: local)")

	b := NewBuilder(nil)
	lflag.Do(func() {
		if *tz == "" {
			return
		}
		loc, err := time.LoadLocation(*tz)
		if err != nil {
			panic(fmt.Sprintf("invalid timezone %q: %v", *tz, err))
		}
		b.location = loc
	})
	return b
}

// Location returns the location timestamps are interpreted in.
func (b *Builder) Location() *time.Location {
	return b.location
}

// timestamp layouts accepted for the datetime field, most specific last.
// The first two are what a datetime-local input produces.
var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses the datetime field. Timestamps without an offset are
// interpreted in the builder's location; timestamps with one are converted to it.
func (b *Builder) ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, b.location); err == nil {
			return t, nil
		}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
	}
	return t.In(b.location), nil
}

// Build converts a complete reading into a FeatureVector.
//
// Sensor values are parsed leniently: the longest decimal prefix is used and a
// value with no numeric prefix becomes NaN. NaN is not rejected here.
func (b *Builder) Build(r types.SensorReading) (types.FeatureVector, error) {
	if missing := r.Missing(); len(missing) > 0 {
		return types.FeatureVector{}, &ValidationError{Reason: ReasonIncomplete, Fields: missing}
	}

	ts, err := b.ParseTimestamp(r.Datetime)
	if err != nil {
		return types.FeatureVector{}, &ValidationError{Reason: ReasonTimestamp, Fields: []types.SensorField{types.FieldDatetime}}
	}

	return types.FeatureVector{
		Hour: ts.Hour(),
		// Sunday is 0, as the model was trained
		DayOfWeek: int(ts.Weekday()),
		// time.Month is already 1-12
		Month: int(ts.Month()),

		Z1Temp: ParseDecimal(r.Z1Temp),
		Z1RH:   ParseDecimal(r.Z1RH),
		Z1Lux:  ParseDecimal(r.Z1Lux),
		Z2Temp: ParseDecimal(r.Z2Temp),
		Z2RH:   ParseDecimal(r.Z2RH),
		Z2Lux:  ParseDecimal(r.Z2Lux),
		Z4Temp: ParseDecimal(r.Z4Temp),
		Z4RH:   ParseDecimal(r.Z4RH),
		Z4Lux:  ParseDecimal(r.Z4Lux),
		Z5Temp: ParseDecimal(r.Z5Temp),
		Z5RH:   ParseDecimal(r.Z5RH),
		Z5Lux:  ParseDecimal(r.Z5Lux),
	}, nil
}

var decimalPrefix = regexp.MustCompile(`^[+-]?(Infinity|(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?)`)

// ParseDecimal parses the longest decimal prefix of s after skipping leading
// whitespace. A dot is always the decimal separator. It returns NaN when s has
// no numeric prefix.
func ParseDecimal(s string) types.SensorValue {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	m := decimalPrefix.FindString(s)
	if m == "" {
		return types.SensorValue(math.NaN())
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		var numErr *strconv.NumError
		// out of range still yields ±Inf or 0 which is what we want
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return types.SensorValue(f)
		}
		return types.SensorValue(math.NaN())
	}
	return types.SensorValue(f)
}
