// Package sms holds the outbound SMS provider clients.
package sms

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/persiamall/storefront/pkg/enums"
	"github.com/persiamall/storefront/pkg/logger"
)

// DefaultTimeout bounds a single provider request.
const DefaultTimeout = 10 * time.Second

// Message is one SMS to deliver.
type Message struct {
	To     string
	Body   string
	Sender string
}

// Result is the uniform outcome every provider reports.
type Result struct {
	OK        bool
	MessageID string
	Reason    string
}

func failure(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// Provider delivers a message through one backend. Send never returns an
// error; transport and API failures are folded into Result.Reason.
type Provider interface {
	Name() enums.SMSProvider
	Send(ctx context.Context, msg Message) Result
}

// Credentials configure a provider instance.
type Credentials struct {
	APIKey  string
	Sender  string
	BaseURL string
}

// Factory builds providers by name; the dispatcher uses it for both
// store-level configs and the platform defaults.
type Factory struct {
	client *http.Client
	logg   *logger.Logger
}

func NewFactory(timeout time.Duration, logg *logger.Logger) *Factory {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Factory{client: &http.Client{Timeout: timeout}, logg: logg}
}

// WithHTTPClient overrides the transport (tests).
func (f *Factory) WithHTTPClient(client *http.Client) *Factory {
	f.client = client
	return f
}

// Build returns the provider for kind.
func (f *Factory) Build(kind enums.SMSProvider, creds Credentials) (Provider, error) {
	switch kind {
	case enums.SMSProviderKavenegar:
		if strings.TrimSpace(creds.APIKey) == "" {
			return nil, fmt.Errorf("kavenegar api key is required")
		}
		return NewKavenegar(creds, f.client), nil
	case enums.SMSProviderGhasedak:
		if strings.TrimSpace(creds.APIKey) == "" {
			return nil, fmt.Errorf("ghasedak api key is required")
		}
		return NewGhasedak(creds, f.client), nil
	case enums.SMSProviderConsole:
		return NewConsole(f.logg), nil
	default:
		return nil, fmt.Errorf("unsupported sms provider %q", kind)
	}
}
