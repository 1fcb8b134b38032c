package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/levenlabs/go-lflag"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// Database defines the interface for persisting users and their data.
type Database interface {
	// Users
	GetUser(ctx context.Context, userID string) (types.User, error)
	GetUserByEmail(ctx context.Context, email string) (types.User, error)
	// CreateUser fails with ErrUserExists if the id or email is taken.
	CreateUser(ctx context.Context, user types.User) error
	ListUsers(ctx context.Context) ([]types.User, error)

	// Preferences returns a zero version when none have been saved.
	GetPreferences(ctx context.Context, userID string) (types.Preferences, int, error)
	SetPreferences(ctx context.Context, userID string, prefs types.Preferences, version int) error

	// Home returns false when the user has no saved home.
	GetHome(ctx context.Context, userID string) (types.Home, bool, error)
	SetHome(ctx context.Context, userID string, home types.Home) error

	// Lifecycle
	Close() error
}

// NormalizeEmail is how emails are compared and indexed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "sqlite", "Storage provider to use (available: firestore, sqlite)")

	var p struct{ Database }

	fs := configuredFirestore()
	sq := configuredSQLite()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "sqlite":
			if err := sq.Validate(); err != nil {
				panic(fmt.Sprintf("sqlite validation failed: %v", err))
			}
			p.Database = sq
			if err := sq.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("sqlite init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
