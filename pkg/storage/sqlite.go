package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/levenlabs/go-lflag"
	"github.com/mattn/go-sqlite3"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

//go:embed schema.sql
var sqliteSchema string

// SQLiteProvider implements the Database interface on a local SQLite file.
// Records are stored as JSON blobs, the same as in Firestore.
type SQLiteProvider struct {
	path string
	db   *sql.DB
}

// configuredSQLite sets up the SQLite provider.
func configuredSQLite() *SQLiteProvider {
	path := lflag.String("sqlite-path", "gorogrid.db", "Path of the SQLite database file")

	s := &SQLiteProvider{}
	lflag.Do(func() {
		s.path = *path
	})
	return s
}

// NewSQLite returns an uninitialized provider for the database at path.
func NewSQLite(path string) *SQLiteProvider {
	return &SQLiteProvider{path: path}
}

// Validate checks if the provider is properly configured.
func (s *SQLiteProvider) Validate() error {
	if s.path == "" {
		return fmt.Errorf("sqlite-path is required")
	}
	return nil
}

// Init opens the database and applies the schema.
func (s *SQLiteProvider) Init(ctx context.Context) error {
	db, err := sql.Open("sqlite3", s.path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open sqlite database %s: %w", s.path, err)
	}
	// sqlite only allows a single writer
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply sqlite schema: %w", err)
	}
	s.db = db
	return nil
}

// Close closes the database.
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (s *SQLiteProvider) scanUser(ctx context.Context, row *sql.Row, key string) (types.User, error) {
	var jsonStr string
	if err := row.Scan(&jsonStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, key)
		}
		return types.User{}, fmt.Errorf("failed to get user %s: %w", key, err)
	}
	var user types.User
	if err := json.Unmarshal([]byte(jsonStr), &user); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "invalid user row", slog.String("user", key), slog.Any("error", err))
		return types.User{}, fmt.Errorf("failed to unmarshal user %s: %w", key, err)
	}
	return user, nil
}

// GetUser retrieves a user by id.
func (s *SQLiteProvider) GetUser(ctx context.Context, userID string) (types.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT json FROM users WHERE id = ?`, userID)
	return s.scanUser(ctx, row, userID)
}

// GetUserByEmail retrieves a user by normalized email.
func (s *SQLiteProvider) GetUserByEmail(ctx context.Context, email string) (types.User, error) {
	email = NormalizeEmail(email)
	row := s.db.QueryRowContext(ctx, `SELECT json FROM users WHERE email = ?`, email)
	return s.scanUser(ctx, row, email)
}

// CreateUser inserts a user. The email column is unique.
func (s *SQLiteProvider) CreateUser(ctx context.Context, user types.User) error {
	if user.ID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	user.Email = NormalizeEmail(user.Email)
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user %s: %w", user.ID, err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO users (id, email, json, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, string(userJSON), user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, user.Email)
		}
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}

// ListUsers returns every user ordered by creation time, skipping malformed rows.
func (s *SQLiteProvider) ListUsers(ctx context.Context) ([]types.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, json FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		var id, jsonStr string
		if err := rows.Scan(&id, &jsonStr); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		var user types.User
		if err := json.Unmarshal([]byte(jsonStr), &user); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping invalid user row", slog.String("userID", id), slog.Any("error", err))
			continue
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// GetPreferences retrieves the preferences row of a user.
func (s *SQLiteProvider) GetPreferences(ctx context.Context, userID string) (types.Preferences, int, error) {
	var (
		jsonStr string
		version int
	)
	err := s.db.QueryRowContext(ctx, `SELECT json, version FROM preferences WHERE user_id = ?`, userID).Scan(&jsonStr, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Preferences{}, 0, nil
		}
		return types.Preferences{}, 0, fmt.Errorf("failed to fetch preferences: %w", err)
	}
	var prefs types.Preferences
	if err := json.Unmarshal([]byte(jsonStr), &prefs); err != nil {
		return types.Preferences{}, 0, fmt.Errorf("failed to unmarshal preferences json: %w", err)
	}
	return prefs, version, nil
}

// SetPreferences upserts the preferences row of a user.
func (s *SQLiteProvider) SetPreferences(ctx context.Context, userID string, prefs types.Preferences, version int) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	jsonBytes, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO preferences (user_id, json, version) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET json = excluded.json, version = excluded.version`,
		userID, string(jsonBytes), version,
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// GetHome retrieves the home row of a user.
func (s *SQLiteProvider) GetHome(ctx context.Context, userID string) (types.Home, bool, error) {
	var jsonStr string
	err := s.db.QueryRowContext(ctx, `SELECT json FROM homes WHERE user_id = ?`, userID).Scan(&jsonStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Home{}, false, nil
		}
		return types.Home{}, false, fmt.Errorf("failed to fetch home: %w", err)
	}
	var home types.Home
	if err := json.Unmarshal([]byte(jsonStr), &home); err != nil {
		return types.Home{}, false, fmt.Errorf("failed to unmarshal home json: %w", err)
	}
	return home, true, nil
}

// SetHome upserts the home row of a user.
func (s *SQLiteProvider) SetHome(ctx context.Context, userID string, home types.Home) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	jsonBytes, err := json.Marshal(home)
	if err != nil {
		return fmt.Errorf("failed to marshal home: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO homes (user_id, json, version) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET json = excluded.json, version = excluded.version`,
		userID, string(jsonBytes), types.CurrentHomeVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to save home: %w", err)
	}
	return nil
}
