// Package account registers users and checks their credentials.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/storage"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// DemoPassword is the password of the demo users.
const DemoPassword = "123456"

var (
	ErrIncomplete         = errors.New("please complete all fields")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrEmailTaken         = errors.New("this email is already registered")
)

// Store is the part of storage.Database accounts need.
type Store interface {
	GetUser(ctx context.Context, userID string) (types.User, error)
	GetUserByEmail(ctx context.Context, email string) (types.User, error)
	CreateUser(ctx context.Context, user types.User) error
	ListUsers(ctx context.Context) ([]types.User, error)
}

// Registration is the sign-up form.
type Registration struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate checks the form in the order the fields are shown.
func (r Registration) Validate() error {
	if r.Name == "" || r.Email == "" || r.Password == "" || r.ConfirmPassword == "" {
		return ErrIncomplete
	}
	if r.Password != r.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if utf8.RuneCountInString(r.Password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Initials returns the upper-cased first letters of the first two words of name.
func Initials(name string) string {
	var b strings.Builder
	for i, word := range strings.Fields(name) {
		if i == 2 {
			break
		}
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Service implements login and registration on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService returns a Service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Login returns the user matching email and password.
func (s *Service) Login(ctx context.Context, email, password string) (types.User, error) {
	if email == "" || password == "" {
		return types.User{}, ErrIncomplete
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Register creates a new user from the form.
func (s *Service) Register(ctx context.Context, r Registration) (types.User, error) {
	if err := r.Validate(); err != nil {
		return types.User{}, err
	}
	hash, err := HashPassword(r.Password)
	if err != nil {
		return types.User{}, err
	}
	return s.create(ctx, strings.TrimSpace(r.Name), r.Email, hash)
}

// LoginExternal returns the user with email, registering one with no password
// if none exists. It is used after an identity provider vouched for email.
func (s *Service) LoginExternal(ctx context.Context, email, name string) (types.User, error) {
	if email == "" {
		return types.User{}, ErrIncomplete
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return types.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	user, err = s.create(ctx, name, email, "")
	if errors.Is(err, ErrEmailTaken) {
		// lost a race with another login for the same email
		return s.store.GetUserByEmail(ctx, email)
	}
	return user, err
}

func (s *Service) create(ctx context.Context, name, email, hash string) (types.User, error) {
	user := types.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        storage.NormalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "created user", slog.String("userID", user.ID))
	return user, nil
}

// User returns the user with the given id.
func (s *Service) User(ctx context.Context, userID string) (types.User, error) {
	return s.store.GetUser(ctx, userID)
}

// DemoUsers returns the demo accounts, without ids or password hashes.
func DemoUsers() []types.User {
	return []types.User{
		{Name: "Miguel Rodríguez", Email: "miguel@demo.com"},
		{Name: "Ana García", Email: "ana@demo.com"},
	}
}

// SeedDemoUsers creates the demo users when the store has no users at all.
// It returns whether anything was created.
func (s *Service) SeedDemoUsers(ctx context.Context) (bool, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) > 0 {
		return false, nil
	}
	hash, err := HashPassword(DemoPassword)
	if err != nil {
		return false, err
	}
	for _, demo := range DemoUsers() {
		if _, err := s.create(ctx, demo.Name, demo.Email, hash); err != nil && !errors.Is(err, ErrEmailTaken) {
			return false, fmt.Errorf("failed to seed %s: %w", demo.Email, err)
		}
	}
	return true, nil
}
