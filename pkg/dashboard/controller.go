// Package dashboard holds the view-state of the consumption dashboard and runs
// the validate, predict and derive flow behind its calculate action.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/features"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/metrics"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/notify"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/prediction"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

var (
	// ErrBusy is returned when a calculation is already running.
	ErrBusy = errors.New("calculation already in progress")
	// ErrClosed is returned once the controller has been closed.
	ErrClosed = errors.New("dashboard closed")
)

// Trigger labels.
const (
	LabelIdle = "Calculate consumption"
	LabelBusy = "Calculating..."
)

// Notification texts.
const (
	TitleValidation       = "Validation error"
	DescriptionIncomplete = "Please complete all fields"
	DescriptionTimestamp  = "Please enter a valid date and time"
	TitlePredicted        = "Prediction calculated"
	TitleFailed           = "Error"
)

// PreferencesStore reads and writes the preferences of one user.
type PreferencesStore interface {
	GetPreferences(ctx context.Context) (types.Preferences, error)
	SetPreferences(ctx context.Context, prefs types.Preferences) error
}

// FeatureBuilder turns a form into a feature vector.
type FeatureBuilder interface {
	Build(r types.SensorReading) (types.FeatureVector, error)
}

// Controller owns the form and calculation state of one dashboard.
type Controller struct {
	builder   FeatureBuilder
	predictor prediction.Predictor
	prefs     PreferencesStore
	sink      notify.Sink

	mu     sync.Mutex
	form   types.SensorReading
	state  State
	last   *prediction.Consumption
	closed bool
}

// NewController returns an idle Controller with an empty form. A nil sink
// discards notifications.
func NewController(builder FeatureBuilder, predictor prediction.Predictor, prefs PreferencesStore, sink notify.Sink) *Controller {
	if sink == nil {
		sink = notify.SinkFunc(func(context.Context, notify.Notification) {})
	}
	return &Controller{
		builder:   builder,
		predictor: predictor,
		prefs:     prefs,
		sink:      sink,
		state:     Idle{},
	}
}

// SetField stores the raw value of one form field. Editing is allowed while a
// calculation runs; the running calculation keeps the values it started with.
func (c *Controller) SetField(field types.SensorField, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.form.Set(field, value)
}

// SetFields stores several fields at once. Nothing is stored if any field name
// is unknown.
func (c *Controller) SetFields(values map[string]string) error {
	parsed := make(map[types.SensorField]string, len(values))
	for name, v := range values {
		f, err := types.ParseSensorField(name)
		if err != nil {
			return err
		}
		parsed[f] = v
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	for f, v := range parsed {
		if err := c.form.Set(f, v); err != nil {
			return err
		}
	}
	return nil
}

// Form returns a copy of the current form.
func (c *Controller) Form() types.SensorReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// State returns the current calculation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a calculation is running.
func (c *Controller) Busy() bool {
	return IsBusy(c.State())
}

// CanSubmit reports whether the calculate trigger is enabled: every field has
// a value and no calculation is running.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !IsBusy(c.state) && c.form.Complete()
}

// TriggerLabel returns the label of the calculate trigger.
func (c *Controller) TriggerLabel() string {
	if c.Busy() {
		return LabelBusy
	}
	return LabelIdle
}

// LastConsumption returns the most recent successful prediction.
func (c *Controller) LastConsumption() (prediction.Consumption, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return 0, false
	}
	return *c.last, true
}

// Calculate validates the form, requests a prediction and records the result.
// The form is never reset. It returns ErrBusy without side effects when a
// calculation is already running.
func (c *Controller) Calculate(ctx context.Context) (prediction.Consumption, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, ErrClosed
	}
	if IsBusy(c.state) {
		c.mu.Unlock()
		return 0, ErrBusy
	}

	c.state = Validating{}
	fv, err := c.builder.Build(c.form)
	if err != nil {
		c.state = Failed{Err: err}
		c.mu.Unlock()

		log.Ctx(ctx).DebugContext(ctx, "dashboard form rejected", slog.Any("error", err))
		c.sink.Notify(ctx, notify.New(notify.LevelError, TitleValidation, UserMessage(err)))
		return 0, err
	}
	c.state = Calculating{}
	c.mu.Unlock()

	consumption, err := c.predictor.Predict(ctx, fv)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		log.Ctx(ctx).DebugContext(ctx, "discarding prediction for closed dashboard")
		return 0, ErrClosed
	}
	if err != nil {
		c.state = Failed{Err: err}
		c.mu.Unlock()

		log.Ctx(ctx).ErrorContext(ctx, "failed to predict consumption", slog.Any("error", err))
		c.sink.Notify(ctx, notify.New(notify.LevelError, TitleFailed, prediction.UserMessage))
		return 0, err
	}
	c.state = Success{Consumption: consumption}
	c.last = &consumption
	c.mu.Unlock()

	c.sink.Notify(ctx, notify.New(
		notify.LevelSuccess,
		TitlePredicted,
		fmt.Sprintf("Estimated consumption: %s kWh", metrics.FormatFixed(float64(consumption), 2)),
	))
	return consumption, nil
}

// View is everything a client needs to render the dashboard.
type View struct {
	Form         types.SensorReading `json:"form"`
	State        string              `json:"state"`
	Error        string              `json:"error,omitempty"`
	Busy         bool                `json:"busy"`
	CanSubmit    bool                `json:"canSubmit"`
	TriggerLabel string              `json:"triggerLabel"`
	Metrics      metrics.Display     `json:"metrics"`
	Preferences  types.Preferences   `json:"preferences"`
}

// View snapshots the controller. Metrics use the current preferences, falling
// back to the defaults when they cannot be read.
func (c *Controller) View(ctx context.Context) View {
	prefs, err := c.prefs.GetPreferences(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get preferences, using defaults", slog.Any("error", err))
		prefs = types.DefaultPreferences()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	busy := IsBusy(c.state)
	v := View{
		Form:         c.form,
		State:        c.state.Name(),
		Busy:         busy,
		CanSubmit:    !c.closed && !busy && c.form.Complete(),
		TriggerLabel: LabelIdle,
		Preferences:  prefs,
	}
	if busy {
		v.TriggerLabel = LabelBusy
	}
	if f, ok := c.state.(Failed); ok {
		v.Error = UserMessage(f.Err)
	}
	if c.last != nil {
		v.Metrics = metrics.Derive(float64(*c.last), prefs).Display()
	} else {
		v.Metrics = metrics.Placeholder()
	}
	return v
}

// UserMessage returns the message shown to users for a calculation error.
func UserMessage(err error) string {
	var verr *features.ValidationError
	if errors.As(err, &verr) {
		if verr.Reason == features.ReasonIncomplete {
			return DescriptionIncomplete
		}
		return DescriptionTimestamp
	}
	return prediction.UserMessage
}

// Close tears the controller down. A prediction that completes afterwards is
// discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
