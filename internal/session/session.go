// Package session resolves opaque session identifiers to user identities
// using Redis as the backing store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/synergyos/synergyos/internal/shared"
)

// DefaultCookieName carries the session id for browser clients.
const DefaultCookieName = "synergy_session"

// HeaderSessionID is the explicit header transport for API clients.
const HeaderSessionID = "X-Session-ID"

// Session is an authenticated session.
type Session struct {
	ID        string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager creates, resolves and destroys sessions.
type Manager struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewManager constructs a Manager.
func NewManager(client *redis.Client, ttl time.Duration) *Manager {
	return &Manager{client: client, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source used for expiry checks.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// TTL exposes the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Resolve maps a session id to its user id. Every failure other than a
// store outage is reported as shared.ErrUnauthenticated.
func (m *Manager) Resolve(ctx context.Context, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", fmt.Errorf("%w: missing session", shared.ErrUnauthenticated)
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return "", fmt.Errorf("%w: malformed session id", shared.ErrUnauthenticated)
	}

	payload, err := m.client.Get(ctx, redisKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%w: unknown session", shared.ErrUnauthenticated)
		}
		return "", fmt.Errorf("%w: session: resolve: %w", shared.ErrStoreUnavailable, err)
	}

	var stored Session
	if err := json.Unmarshal(payload, &stored); err != nil {
		return "", fmt.Errorf("%w: corrupt session payload", shared.ErrUnauthenticated)
	}
	if stored.UserID == "" {
		return "", fmt.Errorf("%w: session without user", shared.ErrUnauthenticated)
	}
	if !stored.ExpiresAt.IsZero() && !m.now().Before(stored.ExpiresAt) {
		return "", fmt.Errorf("%w: session expired", shared.ErrUnauthenticated)
	}
	return stored.UserID, nil
}

// Create issues a new session for the given user.
func (m *Manager) Create(ctx context.Context, userID string) (Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Session{}, fmt.Errorf("%w: user id required", shared.ErrValidation)
	}
	now := m.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("session: encode: %w", err)
	}
	if err := m.client.Set(ctx, redisKey(sess.ID), data, m.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("%w: session: create: %w", shared.ErrStoreUnavailable, err)
	}
	return sess, nil
}

// Destroy removes a session. Destroying an unknown session is not an error.
func (m *Manager) Destroy(ctx context.Context, sessionID string) error {
	if err := m.client.Del(ctx, redisKey(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: session: destroy: %w", shared.ErrStoreUnavailable, err)
	}
	return nil
}

// FromRequest extracts the session id from the bearer token, the
// X-Session-ID header or the session cookie, in that order.
func FromRequest(r *http.Request, cookieName string) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			return strings.TrimSpace(auth[len(prefix):])
		}
	}
	if id := strings.TrimSpace(r.Header.Get(HeaderSessionID)); id != "" {
		return id
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func redisKey(id string) string {
	return "session:" + id
}
