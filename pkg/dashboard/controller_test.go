package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/features"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/notify"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/prediction"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Predict(ctx context.Context, fv types.FeatureVector) (prediction.Consumption, error) {
	args := m.Called(ctx, fv)
	return args.Get(0).(prediction.Consumption), args.Error(1)
}

// blockingPredictor waits for release before answering.
type blockingPredictor struct {
	started chan struct{}
	release chan struct{}
	result  prediction.Consumption
}

func (b *blockingPredictor) Predict(ctx context.Context, _ types.FeatureVector) (prediction.Consumption, error) {
	close(b.started)
	<-b.release
	return b.result, nil
}

type recordingSink struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recordingSink) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingSink) all() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.got...)
}

type failingPreferences struct{}

func (failingPreferences) GetPreferences(context.Context) (types.Preferences, error) {
	return types.Preferences{}, errors.New("boom")
}

func (failingPreferences) SetPreferences(context.Context, types.Preferences) error {
	return errors.New("boom")
}

func fillForm(t *testing.T, c *Controller) {
	t.Helper()
	require.NoError(t, c.SetFields(map[string]string{
		"datetime": "2025-06-15T14:30",
		"z1_temp":  "21.5", "z1_rh": "40", "z1_lux": "300",
		"z2_temp": "22", "z2_rh": "41", "z2_lux": "310",
		"z4_temp": "23", "z4_rh": "42", "z4_lux": "320",
		"z5_temp": "24", "z5_rh": "43", "z5_lux": "330",
	}))
}

func newTestController(p prediction.Predictor, prefs PreferencesStore) (*Controller, *recordingSink) {
	sink := &recordingSink{}
	if prefs == nil {
		prefs = NewMemoryPreferences(types.DefaultPreferences())
	}
	return NewController(features.NewBuilder(time.UTC), p, prefs, sink), sink
}

func TestControllerInitial(t *testing.T) {
	c, _ := newTestController(&mockPredictor{}, nil)
	assert.Equal(t, Idle{}, c.State())
	assert.False(t, c.Busy())
	assert.False(t, c.CanSubmit())
	assert.Equal(t, LabelIdle, c.TriggerLabel())

	v := c.View(context.Background())
	assert.Equal(t, "idle", v.State)
	assert.Equal(t, "3.2", v.Metrics.Consumption)
	assert.Equal(t, "0.75", v.Metrics.CO2Kg)
	assert.Equal(t, "0.80", v.Metrics.Cost)
	assert.True(t, v.Metrics.Placeholder)

	fillForm(t, c)
	assert.True(t, c.CanSubmit())
}

func TestControllerValidation(t *testing.T) {
	p := &mockPredictor{}
	c, sink := newTestController(p, nil)
	require.NoError(t, c.SetField(types.FieldDatetime, "2025-06-15T14:30"))

	_, err := c.Calculate(context.Background())
	require.Error(t, err)
	assert.True(t, features.IsValidationError(err))
	p.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)

	assert.IsType(t, Failed{}, c.State())
	assert.False(t, c.Busy())

	got := sink.all()
	require.Len(t, got, 1)
	assert.Equal(t, notify.LevelError, got[0].Level)
	assert.Equal(t, "Validation error", got[0].Title)
	assert.Equal(t, "Please complete all fields", got[0].Description)

	// form is kept
	assert.Equal(t, "2025-06-15T14:30", c.Form().Datetime)
	assert.Equal(t, "Please complete all fields", c.View(context.Background()).Error)
}

func TestControllerSuccess(t *testing.T) {
	p := &mockPredictor{}
	p.On("Predict", mock.Anything, mock.MatchedBy(func(fv types.FeatureVector) bool {
		return fv.Hour == 14 && fv.DayOfWeek == 0 && fv.Month == 6 && fv.Z1Temp == 21.5
	})).Return(prediction.Consumption(3.75), nil).Once()

	c, sink := newTestController(p, nil)
	fillForm(t, c)

	got, err := c.Calculate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, prediction.Consumption(3.75), got)
	assert.Equal(t, Success{Consumption: 3.75}, c.State())
	p.AssertExpectations(t)

	last, ok := c.LastConsumption()
	assert.True(t, ok)
	assert.Equal(t, prediction.Consumption(3.75), last)

	notes := sink.all()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.LevelSuccess, notes[0].Level)
	assert.Equal(t, "Prediction calculated", notes[0].Title)
	assert.Equal(t, "Estimated consumption: 3.75 kWh", notes[0].Description)

	v := c.View(context.Background())
	assert.Equal(t, "success", v.State)
	assert.Equal(t, "3.75", v.Metrics.Consumption)
	assert.Equal(t, "0.87", v.Metrics.CO2Kg)
	assert.Equal(t, "0.94", v.Metrics.Cost)
	assert.False(t, v.Metrics.Placeholder)
	assert.True(t, v.CanSubmit)
	assert.Equal(t, "21.5", v.Form.Z1Temp)
}

func TestControllerFailure(t *testing.T) {
	p := &mockPredictor{}
	perr := &prediction.PredictionError{Kind: prediction.KindStatus, StatusCode: 500}
	p.On("Predict", mock.Anything, mock.Anything).Return(prediction.Consumption(4), nil).Once()
	p.On("Predict", mock.Anything, mock.Anything).Return(prediction.Consumption(0), perr).Once()

	c, sink := newTestController(p, nil)
	fillForm(t, c)

	_, err := c.Calculate(context.Background())
	require.NoError(t, err)

	_, err = c.Calculate(context.Background())
	require.ErrorIs(t, err, perr)
	assert.False(t, c.Busy())
	assert.True(t, c.CanSubmit())
	assert.Equal(t, LabelIdle, c.TriggerLabel())

	notes := sink.all()
	require.Len(t, notes, 2)
	assert.Equal(t, "Error", notes[1].Title)
	assert.Equal(t, "could not reach prediction service", notes[1].Description)

	// the last good prediction still drives the metrics
	v := c.View(context.Background())
	assert.Equal(t, "failed", v.State)
	assert.Equal(t, "could not reach prediction service", v.Error)
	assert.Equal(t, "4.00", v.Metrics.Consumption)
	assert.Equal(t, "1.00", v.Metrics.Cost)
}

func TestControllerBusy(t *testing.T) {
	bp := &blockingPredictor{
		started: make(chan struct{}),
		release: make(chan struct{}),
		result:  2,
	}
	c, sink := newTestController(bp, nil)
	fillForm(t, c)

	done := make(chan error, 1)
	go func() {
		_, err := c.Calculate(context.Background())
		done <- err
	}()
	<-bp.started

	assert.True(t, c.Busy())
	assert.False(t, c.CanSubmit())
	assert.Equal(t, LabelBusy, c.TriggerLabel())
	assert.Equal(t, Calculating{}, c.State())

	_, err := c.Calculate(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.Empty(t, sink.all())

	close(bp.release)
	require.NoError(t, <-done)
	assert.Equal(t, Success{Consumption: 2}, c.State())
	assert.Len(t, sink.all(), 1)
}

func TestControllerClose(t *testing.T) {
	bp := &blockingPredictor{
		started: make(chan struct{}),
		release: make(chan struct{}),
		result:  2,
	}
	c, sink := newTestController(bp, nil)
	fillForm(t, c)

	done := make(chan error, 1)
	go func() {
		_, err := c.Calculate(context.Background())
		done <- err
	}()
	<-bp.started
	c.Close()
	close(bp.release)

	assert.ErrorIs(t, <-done, ErrClosed)
	_, ok := c.LastConsumption()
	assert.False(t, ok)
	assert.Empty(t, sink.all())

	assert.ErrorIs(t, c.SetField(types.FieldZ1Temp, "1"), ErrClosed)
	_, err := c.Calculate(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestControllerPreferencesFallback(t *testing.T) {
	p := &mockPredictor{}
	p.On("Predict", mock.Anything, mock.Anything).Return(prediction.Consumption(4), nil)

	c, _ := newTestController(p, failingPreferences{})
	fillForm(t, c)
	_, err := c.Calculate(context.Background())
	require.NoError(t, err)

	v := c.View(context.Background())
	assert.Equal(t, types.DefaultPreferences(), v.Preferences)
	assert.Equal(t, "1.00", v.Metrics.Cost)
}

func TestControllerPreferencesChange(t *testing.T) {
	p := &mockPredictor{}
	p.On("Predict", mock.Anything, mock.Anything).Return(prediction.Consumption(4), nil)

	prefs := NewMemoryPreferences(types.DefaultPreferences())
	c, _ := newTestController(p, prefs)
	fillForm(t, c)
	_, err := c.Calculate(context.Background())
	require.NoError(t, err)

	require.NoError(t, prefs.SetPreferences(context.Background(), types.Preferences{TariffPerKWH: 0.5, CO2Factor: 0.1}))
	v := c.View(context.Background())
	assert.Equal(t, "2.00", v.Metrics.Cost)
	assert.Equal(t, "0.40", v.Metrics.CO2Kg)

	assert.Error(t, prefs.SetPreferences(context.Background(), types.Preferences{TariffPerKWH: -1}))
}

func TestSetFieldsUnknown(t *testing.T) {
	c, _ := newTestController(&mockPredictor{}, nil)
	err := c.SetFields(map[string]string{"z1_temp": "1", "z3_temp": "2"})
	assert.Error(t, err)
	assert.Empty(t, c.Form().Z1Temp)
}

func TestMap(t *testing.T) {
	created := 0
	m := NewMap(func(userID string) *Controller {
		created++
		c, _ := newTestController(&mockPredictor{}, nil)
		return c
	})

	a := m.User("a")
	assert.Same(t, a, m.User("a"))
	b := m.User("b")
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, created)

	m.Remove("a")
	assert.ErrorIs(t, a.SetField(types.FieldZ1Temp, "1"), ErrClosed)
	assert.NotSame(t, a, m.User("a"))
	assert.Equal(t, 3, created)

	m.Close()
	assert.ErrorIs(t, b.SetField(types.FieldZ1Temp, "1"), ErrClosed)
}
