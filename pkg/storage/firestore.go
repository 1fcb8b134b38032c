package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// FirestoreProvider implements the Database interface using Google Cloud Firestore.
// Users live in the "users" collection with their preferences and home stored
// under "users/{id}/config". The "emails" collection indexes users by email.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// project id may be detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) configDoc(userID, name string) (*firestore.DocumentRef, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	return f.client.Collection("users").Doc(userID).Collection("config").Doc(name), nil
}

// docJSON decodes the "json" field of a document into v.
func docJSON(doc *firestore.DocumentSnapshot, v any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		return fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.Path, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return fmt.Errorf("document %s 'json' field is not a string", doc.Ref.Path)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s json: %w", doc.Ref.Path, err)
	}
	return nil
}

// docVersion reads the "version" field of a document, defaulting to 0.
func docVersion(doc *firestore.DocumentSnapshot) int {
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			return int(vInt)
		}
	}
	return 0
}

// GetUser retrieves a user by id.
func (f *FirestoreProvider) GetUser(ctx context.Context, userID string) (types.User, error) {
	if userID == "" {
		return types.User{}, fmt.Errorf("%w: empty id", ErrUserNotFound)
	}
	doc, err := f.client.Collection("users").Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return types.User{}, fmt.Errorf("failed to get user %s: %w", userID, err)
	}

	var user types.User
	if err := docJSON(doc, &user); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "invalid user doc", slog.String("userID", userID), slog.Any("error", err))
		return types.User{}, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user through the email index.
func (f *FirestoreProvider) GetUserByEmail(ctx context.Context, email string) (types.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return types.User{}, fmt.Errorf("%w: empty email", ErrUserNotFound)
	}
	doc, err := f.client.Collection("emails").Doc(email).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, email)
		}
		return types.User{}, fmt.Errorf("failed to get email %s: %w", email, err)
	}
	val, err := doc.DataAt("userID")
	if err != nil {
		return types.User{}, fmt.Errorf("email %s missing userID: %w", email, err)
	}
	userID, ok := val.(string)
	if !ok {
		return types.User{}, fmt.Errorf("email %s userID not string", email)
	}
	return f.GetUser(ctx, userID)
}

// CreateUser creates the user and its email index entry in one transaction.
func (f *FirestoreProvider) CreateUser(ctx context.Context, user types.User) error {
	if user.ID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	user.Email = NormalizeEmail(user.Email)
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user %s: %w", user.ID, err)
	}

	userRef := f.client.Collection("users").Doc(user.ID)
	emailRef := f.client.Collection("emails").Doc(user.Email)
	err = f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(emailRef, map[string]interface{}{
			"userID": user.ID,
		}); err != nil {
			return err
		}
		return tx.Create(userRef, map[string]interface{}{
			"json":  string(userJSON),
			"email": user.Email,
		})
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %s", ErrUserExists, user.Email)
		}
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}

// ListUsers returns every user, skipping malformed documents.
func (f *FirestoreProvider) ListUsers(ctx context.Context) ([]types.User, error) {
	iter := f.client.Collection("users").Documents(ctx)
	defer iter.Stop()

	var users []types.User
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating users: %w", err)
		}

		var user types.User
		if err := docJSON(doc, &user); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping invalid user doc", slog.String("userID", doc.Ref.ID), slog.Any("error", err))
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// GetPreferences retrieves the "config/preferences" document of a user.
func (f *FirestoreProvider) GetPreferences(ctx context.Context, userID string) (types.Preferences, int, error) {
	ref, err := f.configDoc(userID, "preferences")
	if err != nil {
		return types.Preferences{}, 0, err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Preferences{}, 0, nil
		}
		return types.Preferences{}, 0, fmt.Errorf("failed to fetch preferences doc: %w", err)
	}

	var prefs types.Preferences
	if err := docJSON(doc, &prefs); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "invalid preferences doc", slog.String("userID", userID), slog.Any("error", err))
		return types.Preferences{}, 0, err
	}
	return prefs, docVersion(doc), nil
}

// SetPreferences saves the "config/preferences" document of a user.
func (f *FirestoreProvider) SetPreferences(ctx context.Context, userID string, prefs types.Preferences, version int) error {
	jsonBytes, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	ref, err := f.configDoc(userID, "preferences")
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// GetHome retrieves the "config/home" document of a user.
func (f *FirestoreProvider) GetHome(ctx context.Context, userID string) (types.Home, bool, error) {
	ref, err := f.configDoc(userID, "home")
	if err != nil {
		return types.Home{}, false, err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Home{}, false, nil
		}
		return types.Home{}, false, fmt.Errorf("failed to fetch home doc: %w", err)
	}

	var home types.Home
	if err := docJSON(doc, &home); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "invalid home doc", slog.String("userID", userID), slog.Any("error", err))
		return types.Home{}, false, err
	}
	return home, true, nil
}

// SetHome saves the "config/home" document of a user.
func (f *FirestoreProvider) SetHome(ctx context.Context, userID string, home types.Home) error {
	jsonBytes, err := json.Marshal(home)
	if err != nil {
		return fmt.Errorf("failed to marshal home: %w", err)
	}
	ref, err := f.configDoc(userID, "home")
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": types.CurrentHomeVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to save home: %w", err)
	}
	return nil
}
