package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/storage"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetUser(ctx context.Context, userID string) (types.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *MockDatabase) GetUserByEmail(ctx context.Context, email string) (types.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *MockDatabase) CreateUser(ctx context.Context, user types.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockDatabase) ListUsers(ctx context.Context) ([]types.User, error) {
	args := m.Called(ctx)
	if users := args.Get(0); users != nil {
		return users.([]types.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) GetPreferences(ctx context.Context, userID string) (types.Preferences, int, error) {
	args := m.Called(ctx, userID)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		return args.Get(0).(types.Preferences), args.Int(1), args.Error(2)
	}
	return types.Preferences{}, 0, nil
}

func (m *MockDatabase) SetPreferences(ctx context.Context, userID string, prefs types.Preferences, version int) error {
	args := m.Called(ctx, userID, prefs, version)
	return args.Error(0)
}

func (m *MockDatabase) GetHome(ctx context.Context, userID string) (types.Home, bool, error) {
	args := m.Called(ctx, userID)
	if len(args) > 0 {
		return args.Get(0).(types.Home), args.Bool(1), args.Error(2)
	}
	return types.Home{}, false, nil
}

func (m *MockDatabase) SetHome(ctx context.Context, userID string, home types.Home) error {
	args := m.Called(ctx, userID, home)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
