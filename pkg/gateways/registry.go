package gateways

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/persiamall/storefront/pkg/enums"
)

// Builder constructs a gateway from stored credentials.
type Builder func(creds Credentials, client *http.Client) (Gateway, error)

// Registry maps gateway kinds to builders sharing one HTTP client.
type Registry struct {
	mu       sync.RWMutex
	client   *http.Client
	builders map[enums.GatewayKind]Builder
}

// NewRegistry returns a registry with Zarinpal, Saman and Mellat registered.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &Registry{
		client:   &http.Client{Timeout: timeout},
		builders: map[enums.GatewayKind]Builder{},
	}
	r.Register(enums.GatewayKindZarinpal, func(creds Credentials, client *http.Client) (Gateway, error) {
		if creds.MerchantID == "" {
			return nil, fmt.Errorf("zarinpal merchant id is required")
		}
		return NewZarinpal(creds, client), nil
	})
	r.Register(enums.GatewayKindSaman, func(creds Credentials, client *http.Client) (Gateway, error) {
		if creds.TerminalID == "" && creds.MerchantID == "" {
			return nil, fmt.Errorf("saman terminal id is required")
		}
		return NewSaman(creds, client), nil
	})
	r.Register(enums.GatewayKindMellat, func(creds Credentials, client *http.Client) (Gateway, error) {
		if creds.TerminalID == "" || creds.Username == "" || creds.Password == "" {
			return nil, fmt.Errorf("mellat terminal id, username and password are required")
		}
		return NewMellat(creds, client), nil
	})
	return r
}

// WithHTTPClient overrides the shared transport (tests).
func (r *Registry) WithHTTPClient(client *http.Client) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.client = client
	return r
}

func (r *Registry) Register(kind enums.GatewayKind, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[kind] = builder
}

func (r *Registry) Build(kind enums.GatewayKind, creds Credentials) (Gateway, error) {
	r.mu.RLock()
	builder, ok := r.builders[kind]
	client := r.client
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported payment gateway %q", kind)
	}
	return builder(creds, client)
}
