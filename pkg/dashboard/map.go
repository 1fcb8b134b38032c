package dashboard

import (
	"context"
	"sync"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// Factory creates the controller for a user the first time it is needed.
type Factory func(userID string) *Controller

// Map manages one Controller per user.
type Map struct {
	factory Factory

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewMap creates a new Map.
func NewMap(factory Factory) *Map {
	return &Map{
		factory:     factory,
		controllers: make(map[string]*Controller),
	}
}

// User returns the controller for userID, creating it if needed.
func (m *Map) User(userID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.controllers[userID]; ok {
		return c
	}
	c := m.factory(userID)
	m.controllers[userID] = c
	return c
}

// SetController sets the controller for a user. This is primarily used for testing.
func (m *Map) SetController(userID string, c *Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controllers[userID] = c
}

// Remove closes and forgets the controller for userID.
func (m *Map) Remove(userID string) {
	m.mu.Lock()
	c, ok := m.controllers[userID]
	delete(m.controllers, userID)
	m.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Close closes every controller.
func (m *Map) Close() {
	m.mu.Lock()
	controllers := m.controllers
	m.controllers = make(map[string]*Controller)
	m.mu.Unlock()
	for _, c := range controllers {
		c.Close()
	}
}

// MemoryPreferences is an in-memory PreferencesStore.
type MemoryPreferences struct {
	mu    sync.Mutex
	prefs types.Preferences
}

// NewMemoryPreferences returns a store holding prefs.
func NewMemoryPreferences(prefs types.Preferences) *MemoryPreferences {
	return &MemoryPreferences{prefs: prefs}
}

// GetPreferences implements PreferencesStore.
func (m *MemoryPreferences) GetPreferences(context.Context) (types.Preferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prefs, nil
}

// SetPreferences implements PreferencesStore.
func (m *MemoryPreferences) SetPreferences(_ context.Context, prefs types.Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = prefs
	return nil
}
