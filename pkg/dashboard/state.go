package dashboard

import (
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/prediction"
)

// State is the calculation state of a Controller. It is one of Idle,
// Validating, Calculating, Success or Failed.
type State interface {
	// Name is a stable lowercase identifier for the state.
	Name() string
	isState()
}

// Idle means no calculation has been attempted yet.
type Idle struct{}

// Validating means the form is being checked.
type Validating struct{}

// Calculating means a prediction request is in flight.
type Calculating struct{}

// Success means the last calculation produced a consumption.
type Success struct {
	Consumption prediction.Consumption
}

// Failed means the last calculation failed, either validation or prediction.
type Failed struct {
	Err error
}

func (Idle) Name() string        { return "idle" }
func (Validating) Name() string  { return "validating" }
func (Calculating) Name() string { return "calculating" }
func (Success) Name() string     { return "success" }
func (Failed) Name() string      { return "failed" }

func (Idle) isState()        {}
func (Validating) isState()  {}
func (Calculating) isState() {}
func (Success) isState()     {}
func (Failed) isState()      {}

// IsBusy reports whether s is a state in which a new calculation must not start.
func IsBusy(s State) bool {
	switch s.(type) {
	case Validating, Calculating:
		return true
	}
	return false
}
