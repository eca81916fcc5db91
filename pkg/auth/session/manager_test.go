package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type mockStore struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failErr error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return false, m.failErr
	}
	if _, ok := m.data[key]; !ok {
		return false, nil
	}
	m.ttls[key] = ttl
	return true, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) SessionKey(token string) string {
	return "sess:" + token
}

func newTestManager(store *mockStore) *Manager {
	return &Manager{store: store, keyer: store, ttl: time.Hour, now: time.Now}
}

func TestManagerIssueAndTouch(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)
	ctx := context.Background()

	token, err := manager.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected token")
	}
	if store.ttls["sess:"+token] != time.Hour {
		t.Fatalf("expected ttl to be applied on issue")
	}

	other, err := manager.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if other == token {
		t.Fatal("tokens must be unique")
	}

	if err := manager.Touch(ctx, token); err != nil {
		t.Fatalf("touch known token: %v", err)
	}
}

func TestManagerTouchUnknown(t *testing.T) {
	manager := newTestManager(newMockStore())
	ctx := context.Background()

	for _, token := range []string{"", "not a token!", "c2Vzc2lvbg"} {
		if err := manager.Touch(ctx, token); !errors.Is(err, ErrUnknownSession) {
			t.Fatalf("token %q: expected ErrUnknownSession, got %v", token, err)
		}
	}
}

func TestManagerTouchPropagatesStoreFailure(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)
	token, err := manager.Issue(context.Background())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	store.failErr = errors.New("redis down")
	if err := manager.Touch(context.Background(), token); err == nil || errors.Is(err, ErrUnknownSession) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}

func TestManagerRevoke(t *testing.T) {
	store := newMockStore()
	manager := newTestManager(store)
	ctx := context.Background()

	token, err := manager.Issue(ctx)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := manager.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := manager.Touch(ctx, token); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("revoked token should be unknown, got %v", err)
	}
}
