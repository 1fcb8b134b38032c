package home

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// Target temperature bounds in degrees Celsius.
const (
	MinTargetTemp  = 16.0
	MaxTargetTemp  = 30.0
	TargetTempStep = 0.5
)

// Preset is a named target temperature applied to every room.
type Preset string

const (
	PresetComfort Preset = "comfort"
	PresetNight   Preset = "night"
	PresetEco     Preset = "eco"
)

var presetTemps = map[Preset]float64{
	PresetComfort: 24,
	PresetNight:   22,
	PresetEco:     26,
}

// PresetTemp returns the target temperature of a preset.
func PresetTemp(p Preset) (float64, error) {
	t, ok := presetTemps[p]
	if !ok {
		return 0, fmt.Errorf("unknown preset: %q", p)
	}
	return t, nil
}

// DefaultRooms returns the rooms every new home starts with.
func DefaultRooms() []types.Room {
	return []types.Room{
		{ID: "1", Name: "Sala de estar", Temperature: 22, TargetTemp: 24, Consumption: "1.4 kWh/día", Icon: "sofa"},
		{ID: "2", Name: "Habitación principal", Temperature: 21, TargetTemp: 22, Consumption: "0.8 kWh/día", Icon: "bed"},
		{ID: "3", Name: "Cocina", Temperature: 24, TargetTemp: 23, Consumption: "2.1 kWh/día", Icon: "utensils"},
		{ID: "4", Name: "Oficina", Temperature: 23, TargetTemp: 24, Consumption: "1.2 kWh/día", Icon: "monitor"},
	}
}

// ValidateTarget checks that t is within bounds and on a half degree.
func ValidateTarget(t float64) error {
	if math.IsNaN(t) || t < MinTargetTemp || t > MaxTargetTemp {
		return fmt.Errorf("target temperature must be between %.0f and %.0f", MinTargetTemp, MaxTargetTemp)
	}
	if math.Mod(t, TargetTempStep) != 0 {
		return fmt.Errorf("target temperature must be a multiple of %.1f", TargetTempStep)
	}
	return nil
}

// SetRoomTarget sets the target temperature of one room and returns it. The
// home is modified in place.
func SetRoomTarget(h *types.Home, id string, target float64) (types.Room, error) {
	if err := ValidateTarget(target); err != nil {
		return types.Room{}, err
	}
	for i := range h.Rooms {
		if h.Rooms[i].ID == id {
			h.Rooms[i].TargetTemp = target
			return h.Rooms[i], nil
		}
	}
	return types.Room{}, fmt.Errorf("room %q: %w", id, ErrNotFound)
}

// ApplyPreset sets every room to the preset's target temperature.
func ApplyPreset(h *types.Home, p Preset) error {
	t, err := PresetTemp(p)
	if err != nil {
		return err
	}
	for i := range h.Rooms {
		h.Rooms[i].TargetTemp = t
	}
	return nil
}

// RoomStats summarizes the rooms of a home.
type RoomStats struct {
	Count int `json:"count"`
	// AvgTemperature is the mean current temperature with one decimal.
	AvgTemperature string `json:"avgTemperature"`
	// DailyKWH is the summed daily consumption with one decimal.
	DailyKWH string `json:"dailyKWH"`
}

// RoomsStats computes RoomStats for rooms.
func RoomsStats(rooms []types.Room) RoomStats {
	s := RoomStats{Count: len(rooms)}
	if len(rooms) == 0 {
		s.AvgTemperature = "0.0"
		s.DailyKWH = "0.0"
		return s
	}
	temp := decimal.Zero
	daily := decimal.Zero
	for _, r := range rooms {
		temp = temp.Add(decimal.NewFromFloat(r.Temperature))
		daily = daily.Add(decimal.NewFromFloat(labelNumber(r.Consumption)))
	}
	s.AvgTemperature = temp.Div(decimal.NewFromInt(int64(len(rooms)))).StringFixed(1)
	s.DailyKWH = daily.StringFixed(1)
	return s
}
