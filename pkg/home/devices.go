// Package home simulates the devices and rooms of a user's home.
package home

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/features"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// ErrNotFound is returned when a device or room id does not exist.
var ErrNotFound = errors.New("not found")

// Filter selects devices by status.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterActive   Filter = "active"
	FilterInactive Filter = "inactive"
)

// ParseFilter converts a query value into a Filter. Empty means FilterAll.
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterActive, FilterInactive:
		return Filter(s), nil
	}
	return "", fmt.Errorf("unknown device filter: %q", s)
}

// DefaultDevices returns the devices every new home starts with.
func DefaultDevices() []types.Device {
	return []types.Device{
		{ID: "1", Name: "Luces Sala", Room: "Sala de estar", Status: true, Consumption: "45W", Icon: "lightbulb"},
		{ID: "2", Name: "Aire Acondicionado", Room: "Sala de estar", Status: true, Consumption: "1.2 kW", Icon: "air-vent"},
		{ID: "3", Name: "TV 55''", Room: "Sala de estar", Status: true, Consumption: "120W", Icon: "tv"},
		{ID: "4", Name: "Refrigerador", Room: "Cocina", Status: true, Consumption: "150W", Icon: "refrigerator"},
		{ID: "5", Name: "Cafetera", Room: "Cocina", Status: false, Consumption: "0W", Icon: "coffee"},
		{ID: "6", Name: "Lavadora", Room: "Lavandería", Status: false, Consumption: "0W", Icon: "washing-machine"},
		{ID: "7", Name: "Ventilador", Room: "Habitación principal", Status: true, Consumption: "60W", Icon: "fan"},
		{ID: "8", Name: "PC Escritorio", Room: "Oficina", Status: true, Consumption: "200W", Icon: "monitor"},
	}
}

// Default returns a new home with the default devices and rooms.
func Default() types.Home {
	return types.Home{
		Devices: DefaultDevices(),
		Rooms:   DefaultRooms(),
	}
}

// ToggleDevice flips the status of the device with the given id and returns
// the updated device. The home is modified in place.
func ToggleDevice(h *types.Home, id string) (types.Device, error) {
	for i := range h.Devices {
		if h.Devices[i].ID == id {
			h.Devices[i].Status = !h.Devices[i].Status
			return h.Devices[i], nil
		}
	}
	return types.Device{}, fmt.Errorf("device %q: %w", id, ErrNotFound)
}

// FilterDevices returns the devices matching f in their original order.
func FilterDevices(devices []types.Device, f Filter) []types.Device {
	out := make([]types.Device, 0, len(devices))
	for _, d := range devices {
		switch f {
		case FilterActive:
			if !d.Status {
				continue
			}
		case FilterInactive:
			if d.Status {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

// DeviceRooms returns the distinct rooms of devices in first-seen order.
func DeviceRooms(devices []types.Device) []string {
	seen := make(map[string]bool, len(devices))
	var rooms []string
	for _, d := range devices {
		if !seen[d.Room] {
			seen[d.Room] = true
			rooms = append(rooms, d.Room)
		}
	}
	return rooms
}

// labelNumber extracts the number of a label such as "45W" or "1.4 kWh/día".
// Everything but digits and dots is ignored; labels with no number are 0.
func labelNumber(label string) float64 {
	digits := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, label)
	v := float64(features.ParseDecimal(digits))
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// ParseLoad converts a load label such as "45W" or "1.2 kW" into watts.
func ParseLoad(label string) float64 {
	v := labelNumber(label)
	if strings.Contains(label, "kW") {
		v *= 1000
	}
	return v
}

// DeviceStats summarizes the devices of a home.
type DeviceStats struct {
	Active int `json:"active"`
	Total  int `json:"total"`
	Rooms  int `json:"rooms"`
	// LoadWatts only counts devices that are on.
	LoadWatts float64 `json:"loadWatts"`
	// LoadKW is LoadWatts in kW with two decimals.
	LoadKW string `json:"loadKW"`
}

// DevicesStats computes DeviceStats for devices.
func DevicesStats(devices []types.Device) DeviceStats {
	s := DeviceStats{
		Total: len(devices),
		Rooms: len(DeviceRooms(devices)),
	}
	for _, d := range devices {
		if !d.Status {
			continue
		}
		s.Active++
		s.LoadWatts += ParseLoad(d.Consumption)
	}
	s.LoadKW = decimal.NewFromFloat(s.LoadWatts).Div(decimal.NewFromInt(1000)).StringFixed(2)
	return s
}
