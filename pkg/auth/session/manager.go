package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/persiamall/storefront/pkg/config"
	redisclient "github.com/persiamall/storefront/pkg/redis"
)

const tokenBytes = 32

// ErrUnknownSession signals a token that was never issued or has expired.
var ErrUnknownSession = errors.New("unknown session")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	SessionKey(token string) string
}

// Manager issues and refreshes anonymous shopper sessions stored in Redis.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
	now   func() time.Time
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.SessionConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Manager{
		store: client,
		keyer: client,
		ttl:   cfg.TTL,
		now:   time.Now,
	}, nil
}

// TTL returns the sliding lifetime applied on issue and touch.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a new opaque session token.
func (m *Manager) Issue(ctx context.Context) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, m.keyer.SessionKey(token), m.now().UTC().Format(time.RFC3339), m.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Touch slides the expiry of an existing session. Unknown tokens return ErrUnknownSession.
func (m *Manager) Touch(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if !validToken(token) {
		return ErrUnknownSession
	}
	ok, err := m.store.Expire(ctx, m.keyer.SessionKey(token), m.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownSession
	}
	return nil
}

// Revoke ends a session, used once its cart has been merged into a user cart.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if !validToken(token) {
		return nil
	}
	return m.store.Del(ctx, m.keyer.SessionKey(token))
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// validToken rejects values that could not have been produced by generateToken.
func validToken(token string) bool {
	if token == "" || len(token) > 128 {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil
}
