package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"grocery-price-assistant/internal/config"
)

// SessionManager issues and verifies the per-conversation identifier. The
// identifier is an explicit signed token, never the caller's network
// address: shared origins and proxies make addresses useless as identity.
type SessionManager struct {
	cookieName string
	signingKey []byte
	ttl        time.Duration
}

func NewSessionManager(cfg config.SessionConfig) *SessionManager {
	key := cfg.SigningKey
	if key == "" {
		// Dev-mode fallback; config validation rejects this in prod.
		key = "dev-insecure-session-key"
	}
	return &SessionManager{
		cookieName: cfg.CookieName,
		signingKey: []byte(key),
		ttl:        cfg.TTL,
	}
}

// SessionID returns the caller's session ID, minting and setting a fresh
// cookie when none is present or the token fails verification.
func (m *SessionManager) SessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(m.cookieName); err == nil {
		if sid, err := m.verify(cookie.Value); err == nil {
			return sid, nil
		}
	}

	sid := ulid.Make().String()
	token, err := m.sign(sid)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid, nil
}

func (m *SessionManager) sign(sid string) (string, error) {
	claims := jwt.MapClaims{
		"sid": sid,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(m.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
}

func (m *SessionManager) verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", fmt.Errorf("missing sid claim")
	}
	return sid, nil
}
