package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// testDatabase runs the behavior every provider must share.
func testDatabase(t *testing.T, db Database) {
	ctx := context.Background()
	suffix := fmt.Sprint(time.Now().UnixNano())

	t.Run("Users", func(t *testing.T) {
		u := types.User{
			ID:           uuid.NewString(),
			Name:         "Ana García",
			Email:        "  Ana+" + suffix + "@Demo.com ",
			PasswordHash: "hash",
			CreatedAt:    time.Now().Truncate(time.Second).UTC(),
		}
		require.NoError(t, db.CreateUser(ctx, u))

		got, err := db.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, u.Name, got.Name)
		assert.Equal(t, "ana+"+suffix+"@demo.com", got.Email)
		assert.Equal(t, "hash", got.PasswordHash)
		assert.True(t, u.CreatedAt.Equal(got.CreatedAt))

		got, err = db.GetUserByEmail(ctx, "ANA+"+suffix+"@demo.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		dup := u
		dup.ID = uuid.NewString()
		err = db.CreateUser(ctx, dup)
		assert.ErrorIs(t, err, ErrUserExists)

		_, err = db.GetUser(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrUserNotFound)
		_, err = db.GetUserByEmail(ctx, "nobody-"+suffix+"@demo.com")
		assert.ErrorIs(t, err, ErrUserNotFound)

		users, err := db.ListUsers(ctx)
		require.NoError(t, err)
		found := false
		for _, lu := range users {
			if lu.ID == u.ID {
				found = true
			}
			assert.NotEqual(t, dup.ID, lu.ID)
		}
		assert.True(t, found)
	})

	t.Run("Preferences", func(t *testing.T) {
		userID := uuid.NewString()
		prefs, version, err := db.GetPreferences(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 0, version)
		assert.Equal(t, types.Preferences{}, prefs)

		want := types.Preferences{TariffPerKWH: 0.6, CO2Factor: 0.4}
		require.NoError(t, db.SetPreferences(ctx, userID, want, 1))
		prefs, version, err = db.GetPreferences(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 1, version)
		assert.Equal(t, want, prefs)

		want.TariffPerKWH = 0.7
		require.NoError(t, db.SetPreferences(ctx, userID, want, 1))
		prefs, _, err = db.GetPreferences(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 0.7, prefs.TariffPerKWH)

		t.Run("Store", func(t *testing.T) {
			store := PreferencesFor(db, uuid.NewString())
			got, err := store.GetPreferences(ctx)
			require.NoError(t, err)
			assert.Equal(t, types.DefaultPreferences(), got)

			assert.Error(t, store.SetPreferences(ctx, types.Preferences{TariffPerKWH: -1}))
			require.NoError(t, store.SetPreferences(ctx, want))
			got, err = store.GetPreferences(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	})

	t.Run("Home", func(t *testing.T) {
		userID := uuid.NewString()
		_, ok, err := db.GetHome(ctx, userID)
		require.NoError(t, err)
		assert.False(t, ok)

		h := types.Home{
			Devices: []types.Device{{ID: "1", Name: "Luces Sala", Room: "Sala de estar", Status: true, Consumption: "45W"}},
			Rooms:   []types.Room{{ID: "1", Name: "Cocina", Temperature: 24, TargetTemp: 23.5, Consumption: "2.1 kWh/día"}},
		}
		require.NoError(t, db.SetHome(ctx, userID, h))
		got, ok, err := db.GetHome(ctx, userID)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, h, got)

		h.Devices[0].Status = false
		require.NoError(t, db.SetHome(ctx, userID, h))
		got, _, err = db.GetHome(ctx, userID)
		require.NoError(t, err)
		assert.False(t, got.Devices[0].Status)
	})
}
