package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/account"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/features"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/prediction"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/storage"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

const testSessionKey = "0123456789abcdef0123456789abcdef"

// predictorFunc adapts a function to prediction.Predictor.
type predictorFunc func(ctx context.Context, fv types.FeatureVector) (prediction.Consumption, error)

func (f predictorFunc) Predict(ctx context.Context, fv types.FeatureVector) (prediction.Consumption, error) {
	return f(ctx, fv)
}

func fixedPredictor(c prediction.Consumption) prediction.Predictor {
	return predictorFunc(func(context.Context, types.FeatureVector) (prediction.Consumption, error) {
		return c, nil
	})
}

func newTestServer(t *testing.T, p prediction.Predictor) *Server {
	t.Helper()
	db := storage.NewSQLite(filepath.Join(t.TempDir(), "gorogrid.db"))
	require.NoError(t, db.Init(context.Background()))
	t.Cleanup(func() { db.Close() })

	s := New(db, features.NewBuilder(time.UTC), p, testSessionKey)
	_, err := s.accounts.SeedDemoUsers(context.Background())
	require.NoError(t, err)
	t.Cleanup(s.dashboards.Close)
	return s
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func sessionCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func loginDemo(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	w := doRequest(t, h, "POST", "/api/auth/login", map[string]string{
		"email":    "miguel@demo.com",
		"password": account.DemoPassword,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return sessionCookieFrom(t, w)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthzAndHeaders(t *testing.T) {
	s := newTestServer(t, fixedPredictor(1))
	h := s.setupHandler()

	w := doRequest(t, h, "GET", "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "gorogrid", w.Header().Get("Server"))
	assert.Empty(t, w.Header().Get("Cache-Control"))

	w = doRequest(t, h, "GET", "/api/auth/status", nil, nil)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, fixedPredictor(1))
	h := s.setupHandler()

	t.Run("StatusLoggedOut", func(t *testing.T) {
		w := doRequest(t, h, "GET", "/api/auth/status", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		res := decode[authStatusResponse](t, w)
		assert.False(t, res.LoggedIn)
		assert.Nil(t, res.User)
	})

	t.Run("Unauthorized", func(t *testing.T) {
		w := doRequest(t, h, "GET", "/api/dashboard", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	})

	t.Run("Login", func(t *testing.T) {
		cookie := loginDemo(t, h)
		assert.True(t, cookie.HttpOnly)
		assert.True(t, cookie.Secure)

		w := doRequest(t, h, "GET", "/api/auth/status", nil, cookie)
		res := decode[authStatusResponse](t, w)
		assert.True(t, res.LoggedIn)
		require.NotNil(t, res.User)
		assert.Equal(t, "Miguel Rodríguez", res.User.Name)
		assert.Equal(t, "MR", res.User.Initials)
	})

	t.Run("LoginErrors", func(t *testing.T) {
		w := doRequest(t, h, "POST", "/api/auth/login", map[string]string{"email": "miguel@demo.com", "password": "nope"}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"incorrect email or password"}`, w.Body.String())

		w = doRequest(t, h, "POST", "/api/auth/login", map[string]string{"email": "nobody@demo.com", "password": "123456"}, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = doRequest(t, h, "POST", "/api/auth/login", map[string]string{"email": "miguel@demo.com"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"please complete all fields"}`, w.Body.String())
	})

	t.Run("Register", func(t *testing.T) {
		reg := account.Registration{Name: "Luis Pérez", Email: "luis@demo.com", Password: "secret1", ConfirmPassword: "secret2"}
		w := doRequest(t, h, "POST", "/api/auth/register", reg, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"passwords do not match"}`, w.Body.String())

		reg.Password, reg.ConfirmPassword = "abc", "abc"
		w = doRequest(t, h, "POST", "/api/auth/register", reg, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		reg.Password, reg.ConfirmPassword = "secret1", "secret1"
		w = doRequest(t, h, "POST", "/api/auth/register", reg, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		cookie := sessionCookieFrom(t, w)
		res := decode[authStatusResponse](t, w)
		require.NotNil(t, res.User)
		assert.Equal(t, "LP", res.User.Initials)

		w = doRequest(t, h, "GET", "/api/notifications", nil, cookie)
		notes := decode[[]map[string]any](t, w)
		require.Len(t, notes, 1)
		assert.Equal(t, "Account created", notes[0]["title"])

		w = doRequest(t, h, "POST", "/api/auth/register", reg, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.JSONEq(t, `{"error":"this email is already registered"}`, w.Body.String())
	})

	t.Run("Logout", func(t *testing.T) {
		cookie := loginDemo(t, h)
		w := doRequest(t, h, "POST", "/api/auth/logout", nil, cookie)
		assert.Equal(t, http.StatusOK, w.Code)
		cleared := sessionCookieFrom(t, w)
		assert.Empty(t, cleared.Value)
		assert.Equal(t, -1, cleared.MaxAge)
	})

	t.Run("TamperedCookie", func(t *testing.T) {
		cookie := loginDemo(t, h)
		b := []byte(cookie.Value)
		if b[10] == 'A' {
			b[10] = 'B'
		} else {
			b[10] = 'A'
		}
		cookie.Value = string(b)
		w := doRequest(t, h, "GET", "/api/dashboard", nil, cookie)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ExpiredSession", func(t *testing.T) {
		cookie := loginDemo(t, h)
		s.now = func() time.Time { return time.Now().Add(defaultSessionTTL + time.Minute) }
		defer func() { s.now = time.Now }()
		w := doRequest(t, h, "GET", "/api/dashboard", nil, cookie)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestDarkMode(t *testing.T) {
	s := newTestServer(t, fixedPredictor(1))
	for hour, want := range map[int]bool{6: true, 7: false, 12: false, 19: false, 20: true, 23: true} {
		s.now = func() time.Time { return time.Date(2025, 6, 15, hour, 30, 0, 0, time.UTC) }
		assert.Equal(t, want, s.suggestDarkMode(), hour)
	}
}

func TestSession(t *testing.T) {
	s := &Server{sessionKey: testSessionKey, now: time.Now}
	ctx := context.Background()

	sealed, err := s.sealSession(ctx, session{UserID: "u1", Expires: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	sess, err := s.openSession(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)

	other := &Server{sessionKey: "fedcba9876543210fedcba9876543210", now: time.Now}
	_, err = other.openSession(ctx, sealed)
	assert.Error(t, err)

	_, err = s.openSession(ctx, "not base64!")
	assert.Error(t, err)

	expired, err := s.sealSession(ctx, session{UserID: "u1", Expires: time.Now().Add(-time.Second)})
	require.NoError(t, err)
	_, err = s.openSession(ctx, expired)
	assert.ErrorIs(t, err, errSessionExpired)

	short := &Server{sessionKey: "short", now: time.Now}
	_, err = short.sealSession(ctx, session{UserID: "u1"})
	assert.Error(t, err)
}
