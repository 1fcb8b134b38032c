package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/account"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/notify"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/storage"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

// publicPaths can be reached without a session.
var publicPaths = map[string]bool{
	"/api/auth/status":   true,
	"/api/auth/login":    true,
	"/api/auth/register": true,
	"/api/auth/oidc":     true,
	"/api/auth/logout":   true,
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.WithAttrs(ctx, slog.String("reqPath", r.URL.Path))

		allowNoLogin := publicPaths[r.URL.Path]

		var user types.User
		cookie, err := r.Cookie(sessionCookie)
		if err != nil && !errors.Is(err, http.ErrNoCookie) {
			log.Ctx(ctx).ErrorContext(ctx, "failed to get session cookie", slog.Any("error", err))
			writeJSONError(w, "invalid session cookie", http.StatusBadRequest)
			return
		}
		if cookie != nil {
			sess, err := s.openSession(ctx, cookie.Value)
			if err == nil {
				user, err = s.storage.GetUser(ctx, sess.UserID)
				if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
					log.Ctx(ctx).ErrorContext(ctx, "user lookup failed", slog.String("userID", sess.UserID), slog.Any("error", err))
					writeJSONError(w, "user lookup failed", http.StatusInternalServerError)
					return
				}
			}
			if err != nil {
				log.Ctx(ctx).WarnContext(ctx, "invalid session", slog.Any("error", err))
				user = types.User{}
				s.clearCookie(w)
			}
		}

		if user.ID == "" && !allowNoLogin {
			log.Ctx(ctx).WarnContext(ctx, "unauthenticated request")
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if user.ID != "" {
			ctx = log.WithAttrs(ctx, slog.String("authUserID", user.ID))
			ctx = context.WithValue(ctx, userContextKey, user)
			log.Ctx(ctx).DebugContext(ctx, "authenticated request")
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type authUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Initials string `json:"initials"`
}

type authStatusResponse struct {
	LoggedIn  bool              `json:"loggedIn"`
	User      *authUser         `json:"user,omitempty"`
	DarkMode  bool              `json:"darkMode"`
	ClientIDs map[string]string `json:"clientIDs"`
}

// suggestDarkMode reports whether the hour is in the evening or night.
func (s *Server) suggestDarkMode() bool {
	hour := s.now().In(s.builder.Location()).Hour()
	return hour >= 20 || hour < 7
}

func (s *Server) authStatus(user types.User) authStatusResponse {
	res := authStatusResponse{
		LoggedIn:  user.ID != "",
		DarkMode:  s.suggestDarkMode(),
		ClientIDs: s.oidcAudiences,
	}
	if res.LoggedIn {
		res.User = &authUser{
			ID:       user.ID,
			Name:     user.Name,
			Email:    user.Email,
			Initials: account.Initials(user.Name),
		}
	}
	return res
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.authStatus(s.getUser(r)))
}

// login sets the session cookie and answers with the auth status.
func (s *Server) login(w http.ResponseWriter, r *http.Request, user types.User) {
	ctx := r.Context()
	if err := s.setSessionCookie(ctx, w, user.ID); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to set session", slog.Any("error", err))
		writeJSONError(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "user logged in", slog.String("userID", user.ID))
	writeJSON(w, s.authStatus(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		// since we failed to read, don't return JSON error
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, account.ErrIncomplete):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, account.ErrInvalidCredentials):
		log.Ctx(r.Context()).InfoContext(r.Context(), "login rejected")
		writeJSONError(w, err.Error(), http.StatusUnauthorized)
		return
	case err != nil:
		log.Ctx(r.Context()).ErrorContext(r.Context(), "login failed", slog.Any("error", err))
		writeJSONError(w, "login failed", http.StatusInternalServerError)
		return
	}
	s.login(w, r, user)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req account.Registration
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := s.accounts.Register(r.Context(), req)
	switch {
	case errors.Is(err, account.ErrIncomplete),
		errors.Is(err, account.ErrPasswordMismatch),
		errors.Is(err, account.ErrPasswordTooShort):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, account.ErrEmailTaken):
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		log.Ctx(r.Context()).ErrorContext(r.Context(), "registration failed", slog.Any("error", err))
		writeJSONError(w, "registration failed", http.StatusInternalServerError)
		return
	}

	s.publish(r.Context(), user.ID, notify.New(
		notify.LevelSuccess,
		"Account created",
		fmt.Sprintf("Welcome to GoroGrid, %s", user.Name),
	))
	s.login(w, r, user)
}

func (s *Server) handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token  string `json:"token"`
		Client string `json:"client"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	email, name, err := s.authenticateToken(r.Context(), req.Token, req.Client)
	if err != nil {
		log.Ctx(r.Context()).WarnContext(r.Context(), "failed to validate id token", slog.Any("error", err))
		writeJSONError(w, "invalid id token", http.StatusUnauthorized)
		return
	}
	if email == "" {
		log.Ctx(r.Context()).WarnContext(r.Context(), "invalid email in id token")
		writeJSONError(w, "invalid oidc claims", http.StatusUnauthorized)
		return
	}

	user, err := s.accounts.LoginExternal(r.Context(), email, name)
	if err != nil {
		log.Ctx(r.Context()).ErrorContext(r.Context(), "external login failed", slog.Any("error", err))
		writeJSONError(w, "login failed", http.StatusInternalServerError)
		return
	}
	s.login(w, r, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if user := s.getUser(r); user.ID != "" {
		s.dashboards.Remove(user.ID)
		s.hub.Forget(user.ID)
	}
	s.clearCookie(w)
	w.WriteHeader(http.StatusOK)
}

// authenticateToken validates an ID token and returns its email and name claims.
func (s *Server) authenticateToken(ctx context.Context, token string, specificClient string) (string, string, error) {
	var errs []error

	for providerName, verifier := range s.oidcVerifiers {
		if specificClient != "" && providerName != specificClient {
			continue
		}
		idToken, err := verifier(ctx, token)
		if err == nil {
			var claims struct {
				Email string `json:"email"`
				Name  string `json:"name"`
			}
			err = idToken.Claims(&claims)
			if err == nil {
				return claims.Email, claims.Name, nil
			}
		}
		errs = append(errs, fmt.Errorf("%s verifier failed: %v", providerName, err))
	}

	if len(errs) > 1 {
		return "", "", errors.Join(errs...)
	}
	if len(errs) == 1 {
		return "", "", errs[0]
	}
	return "", "", errors.New("no valid audiences configured or token invalid")
}
