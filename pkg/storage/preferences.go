package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// UserPreferences reads and writes the preferences of a single user, migrating
// older records as they are read.
type UserPreferences struct {
	db     Database
	userID string
}

// PreferencesFor returns the preferences store of userID.
func PreferencesFor(db Database, userID string) *UserPreferences {
	return &UserPreferences{db: db, userID: userID}
}

// GetPreferences returns the user's preferences, falling back to the defaults
// when none are stored.
func (p *UserPreferences) GetPreferences(ctx context.Context) (types.Preferences, error) {
	prefs, version, err := p.db.GetPreferences(ctx, p.userID)
	if err != nil {
		return types.Preferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}
	migrated, changed, err := types.MigratePreferences(prefs, version)
	if err != nil {
		return types.Preferences{}, fmt.Errorf("failed to migrate preferences: %w", err)
	}
	if changed {
		log.Ctx(ctx).DebugContext(
			ctx,
			"migrated preferences",
			slog.String("userID", p.userID),
			slog.Int("fromVersion", version),
		)
	}
	return migrated, nil
}

// SetPreferences validates and saves the user's preferences.
func (p *UserPreferences) SetPreferences(ctx context.Context, prefs types.Preferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	if err := p.db.SetPreferences(ctx, p.userID, prefs, types.CurrentPreferencesVersion); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}
