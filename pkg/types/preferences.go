package types

import (
	"errors"
	"fmt"
	"math"
)

// CurrentPreferencesVersion is the current version of the preferences record.
// Increment this value when adding new fields that require default values.
const CurrentPreferencesVersion = 1

const (
	// DefaultTariffPerKWH is the cost of one kWh used until the user sets their own.
	DefaultTariffPerKWH = 0.25
	// DefaultCO2Factor is kg of CO2 equivalent emitted per kWh.
	DefaultCO2Factor = 0.233
)

// Preferences are the per-user values the dashboard reads when turning a
// predicted consumption into cost and emissions.
type Preferences struct {
	// Tariff in currency units per kWh.
	TariffPerKWH float64 `json:"tarifa_kwh"`
	// CO2Factor in kg CO2e per kWh.
	CO2Factor float64 `json:"co2_factor"`
}

// DefaultPreferences returns the preferences used when none have been saved.
func DefaultPreferences() Preferences {
	return Preferences{
		TariffPerKWH: DefaultTariffPerKWH,
		CO2Factor:    DefaultCO2Factor,
	}
}

// Validate checks that both values are usable multipliers.
func (p Preferences) Validate() error {
	var errs []error
	if math.IsNaN(p.TariffPerKWH) || math.IsInf(p.TariffPerKWH, 0) || p.TariffPerKWH < 0 {
		errs = append(errs, errors.New("tariff per kWh must be a non-negative number"))
	}
	if math.IsNaN(p.CO2Factor) || math.IsInf(p.CO2Factor, 0) || p.CO2Factor < 0 {
		errs = append(errs, errors.New("co2 factor must be a non-negative number"))
	}
	return errors.Join(errs...)
}

// MigratePreferences migrates the preferences to the current version.
// It returns the migrated preferences, a boolean indicating if changes were made, and an error if migration failed.
func MigratePreferences(p Preferences, currentVersion int) (Preferences, bool, error) {
	if currentVersion >= CurrentPreferencesVersion {
		return p, false, nil
	}

	migrated := false
	for version := currentVersion + 1; version <= CurrentPreferencesVersion; version++ {
		switch version {
		case 1:
			// version 1: initial defaults
			if p.TariffPerKWH == 0 {
				p.TariffPerKWH = DefaultTariffPerKWH
				migrated = true
			}
			if p.CO2Factor == 0 {
				p.CO2Factor = DefaultCO2Factor
				migrated = true
			}
		default:
			return p, false, fmt.Errorf("unknown preferences version: %d", version)
		}
	}

	return p, migrated, nil
}
