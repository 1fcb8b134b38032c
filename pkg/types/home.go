package types

// CurrentHomeVersion is the current version of the stored home record.
const CurrentHomeVersion = 1

// Device is a simulated smart-home appliance that can be switched on and off.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Room string `json:"room"`
	// Status is true when the device is on.
	Status bool `json:"status"`
	// Consumption is the load label shown to the user, e.g. "45W" or "1.2 kW".
	Consumption string `json:"consumption"`
	Icon        string `json:"icon"`
}

// Room is a climate-controlled zone of the home.
type Room struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Temperature float64 `json:"temperature"`
	TargetTemp  float64 `json:"targetTemp"`
	// Consumption is the daily usage label, e.g. "1.4 kWh/day".
	Consumption string `json:"consumption"`
	Icon        string `json:"icon"`
}

// Home is the per-user simulated state behind the devices and rooms screens.
type Home struct {
	Devices []Device `json:"devices"`
	Rooms   []Room   `json:"rooms"`
}
