package server

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
)

const (
	sessionCookie     = "gorogrid_session"
	defaultSessionTTL = 7 * 24 * time.Hour
)

var errSessionExpired = errors.New("session expired")

// session is the sealed content of the session cookie.
type session struct {
	UserID  string    `json:"userID"`
	Expires time.Time `json:"expires"`
}

func (s *Server) sessionAEAD(ctx context.Context) (cipher.AEAD, error) {
	key := []byte(s.sessionKey)
	if len(key) != 32 {
		log.Ctx(ctx).ErrorContext(ctx, "invalid session key length (must be 32 bytes)", slog.Int("length", len(key)))
		return nil, errors.New("invalid session key length (must be 32 bytes)")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to create cipher", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to create gcm", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return gcm, nil
}

// sealSession encrypts sess into a cookie-safe string.
func (s *Server) sealSession(ctx context.Context, sess session) (string, error) {
	jsonBytes, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	gcm, err := s.sessionAEAD(ctx)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to generate nonce", slog.Any("error", err))
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, jsonBytes, []byte(sessionCookie))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// openSession decrypts a cookie value and checks that it has not expired.
func (s *Server) openSession(ctx context.Context, value string) (session, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return session{}, fmt.Errorf("failed to decode session: %w", err)
	}

	gcm, err := s.sessionAEAD(ctx)
	if err != nil {
		return session{}, err
	}
	if len(sealed) < gcm.NonceSize() {
		return session{}, errors.New("malformed session")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(sessionCookie))
	if err != nil {
		return session{}, fmt.Errorf("failed to open session: %w", err)
	}

	var sess session
	if err := json.Unmarshal(plaintext, &sess); err != nil {
		return session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.UserID == "" {
		return session{}, errors.New("session has no user")
	}
	if !s.now().Before(sess.Expires) {
		return session{}, errSessionExpired
	}
	return sess, nil
}

// setSessionCookie logs userID in on the response.
func (s *Server) setSessionCookie(ctx context.Context, w http.ResponseWriter, userID string) error {
	expires := s.now().Add(s.sessionTTL)
	value, err := s.sealSession(ctx, session{UserID: userID, Expires: expires})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
