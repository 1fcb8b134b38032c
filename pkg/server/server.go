package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/account"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/dashboard"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/features"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/notify"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/prediction"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/storage"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

type contextKey string

const (
	userContextKey contextKey = "user"
)

// tokenVerifier is a function that validates a Google or Apple ID Token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// Server handles the HTTP API of the GoroGrid dashboard. It owns one dashboard
// controller per logged-in user and the notification hub they publish to.
type Server struct {
	storage    storage.Database
	accounts   *account.Service
	builder    *features.Builder
	predictor  prediction.Predictor
	hub        *notify.Hub
	dashboards *dashboard.Map

	// homeMu serializes read-modify-write cycles on stored homes
	homeMu sync.Mutex

	listenAddr    string
	devProxy      string
	webDir        string
	httpServer    *http.Server
	oidcAudiences map[string]string
	oidcVerifiers map[string]tokenVerifier
	sessionKey    string
	sessionTTL    time.Duration
	seedDemoUsers bool
	serverName    string
	now           func() time.Time
}

// New returns a Server with no flags applied. sessionKey must be 32 characters.
func New(db storage.Database, builder *features.Builder, predictor prediction.Predictor, sessionKey string) *Server {
	s := &Server{
		storage:    db,
		accounts:   account.NewService(db),
		builder:    builder,
		predictor:  predictor,
		hub:        notify.NewHub(),
		sessionKey: sessionKey,
		sessionTTL: defaultSessionTTL,
		serverName: "gorogrid",
		now:        time.Now,
	}
	s.dashboards = dashboard.NewMap(s.newDashboard)
	return s
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(db storage.Database, builder *features.Builder, predictor prediction.Predictor) *Server {
	srv := New(db, builder, predictor, "")
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	devProxy := lflag.String("dev-proxy", "", "Address of the dev server (e.g. http://localhost:5173)")
	webDir := lflag.String("web-dir", "", "Directory of the built web client to serve")
	oidcAudiences := map[string]string{}
	lflag.JSON(&oidcAudiences, "oidc-audiences", oidcAudiences, "JSON map of provider (google/apple) to audience/client ID")
	sessionKey := lflag.RequiredString("session-key", "Key for sealing session cookies (32 characters)")
	sessionTTL := lflag.Duration("session-ttl", defaultSessionTTL, "How long a login lasts")
	seedDemoUsers := lflag.Bool("seed-demo-users", true, "Create the demo users when there are no users")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.devProxy = *devProxy
		srv.webDir = *webDir
		srv.sessionTTL = *sessionTTL
		srv.seedDemoUsers = *seedDemoUsers
		if len(oidcAudiences) > 0 {
			srv.oidcAudiences = make(map[string]string, len(oidcAudiences))
			srv.oidcVerifiers = make(map[string]tokenVerifier, len(oidcAudiences))
			for n, a := range oidcAudiences {
				var issuer string
				switch n {
				case "google":
					issuer = "https://accounts.google.com"
				case "apple":
					issuer = "https://appleid.apple.com"
				default:
					log.Ctx(context.Background()).Error("unsupported oidc audience client", slog.String("client", n))
					os.Exit(1)
				}
				provider, err := oidc.NewProvider(context.Background(), issuer)
				if err != nil {
					log.Ctx(context.Background()).Error("failed to initialize OIDC provider", slog.String("client", n), slog.Any("error", err))
					os.Exit(1)
				}
				srv.oidcVerifiers[n] = provider.Verifier(&oidc.Config{ClientID: a}).Verify
				srv.oidcAudiences[n] = a
			}
		}

		if len(*sessionKey) != 32 {
			log.Ctx(context.Background()).Error("session-key must be 32 characters")
			os.Exit(1)
		}
		srv.sessionKey = *sessionKey
	})

	return srv
}

// newDashboard creates the dashboard controller of a user.
func (s *Server) newDashboard(userID string) *dashboard.Controller {
	return dashboard.NewController(
		s.builder,
		s.predictor,
		storage.PreferencesFor(s.storage, userID),
		notify.Multi(notify.LogSink{}, s.hub.ForUser(userID)),
	)
}

// publish sends a notification to the user's hub subscribers.
func (s *Server) publish(ctx context.Context, userID string, n notify.Notification) {
	notify.Multi(notify.LogSink{}, s.hub.ForUser(userID)).Notify(ctx, n)
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	apiMux.HandleFunc("POST /api/auth/login", s.handleLogin)
	apiMux.HandleFunc("POST /api/auth/register", s.handleRegister)
	apiMux.HandleFunc("POST /api/auth/oidc", s.handleOIDCLogin)
	apiMux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	apiMux.HandleFunc("GET /api/preferences", s.handleGetPreferences)
	apiMux.HandleFunc("POST /api/preferences", s.handleUpdatePreferences)
	apiMux.HandleFunc("GET /api/dashboard", s.handleGetDashboard)
	apiMux.HandleFunc("PUT /api/dashboard/form", s.handleUpdateForm)
	apiMux.HandleFunc("POST /api/dashboard/calculate", s.handleCalculate)
	apiMux.HandleFunc("GET /api/devices", s.handleListDevices)
	apiMux.HandleFunc("POST /api/devices/toggle", s.handleToggleDevice)
	apiMux.HandleFunc("GET /api/rooms", s.handleListRooms)
	apiMux.HandleFunc("POST /api/rooms/target", s.handleSetRoomTarget)
	apiMux.HandleFunc("POST /api/rooms/preset", s.handleApplyPreset)
	apiMux.HandleFunc("GET /api/profile", s.handleProfile)
	apiMux.HandleFunc("GET /api/notifications", s.handleListNotifications)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))

	// serve the web client, either from a directory or from the dev server
	if s.devProxy != "" {
		u, err := url.Parse(s.devProxy)
		if err != nil {
			panic(fmt.Errorf("invalid dev-proxy url (%s): %w", s.devProxy, err))
		}
		mux.Handle("/", httputil.NewSingleHostReverseProxy(u))
	} else if s.webDir != "" {
		dir := os.DirFS(s.webDir)
		mux.Handle("/", s.webHandler(dir, http.FileServer(http.FS(dir))))
	}
	mux.HandleFunc("/healthz", s.handleHealthz)

	// websockets need to hijack the connection so they skip compression
	outer := http.NewServeMux()
	outer.Handle("GET /api/notifications/ws", s.authMiddleware(http.HandlerFunc(s.handleNotificationsWS)))
	outer.Handle("/", gziphandler.GzipHandler(mux))
	return s.revisionMiddleware(s.securityHeadersMiddleware(outer))
}

func (s *Server) getUser(r *http.Request) types.User {
	if user, ok := r.Context().Value(userContextKey).(types.User); ok {
		return user
	}
	return types.User{}
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	if s.seedDemoUsers {
		seeded, err := s.accounts.SeedDemoUsers(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed demo users: %w", err)
		}
		if seeded {
			log.Ctx(ctx).InfoContext(ctx, "seeded demo users")
		}
	}

	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		s.dashboards.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

// decodeBody decodes a JSON request body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) webHandler(dir fs.FS, h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Default to serving index.html for unknown paths (SPA)
		if r.URL.Path != "/" {
			// Check if the file exists in the filesystem
			f, err := dir.Open(strings.TrimPrefix(r.URL.Path, "/"))
			if err == nil {
				f.Close()
			} else if errors.Is(err, fs.ErrNotExist) {
				// Don't fallback to index.html for .well-known
				if strings.HasPrefix(r.URL.Path, "/.well-known/") {
					// we don't write JSON here because we don't know what file type is expected
					http.Error(w, "not found", http.StatusNotFound)
					return
				}
				// If file doesn't exist, serve index.html
				r.URL.Path = "/"
			} else {
				log.Ctx(r.Context()).ErrorContext(r.Context(), "failed to open file", "error", err)
				// we don't write JSON here because we don't know what file type is expected
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
		}
		h.ServeHTTP(w, r)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
