// Package notifications delivers customer SMS through an ordered list of
// providers, falling back until one accepts the message.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/persiamall/storefront/pkg/config"
	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/enums"
	"github.com/persiamall/storefront/pkg/logger"
	"github.com/persiamall/storefront/pkg/metrics"
	"github.com/persiamall/storefront/pkg/sms"
)

const reasonNoProviders = "هیچ سرویس پیامکی فعال نیست"

type providerFactory interface {
	Build(kind enums.SMSProvider, creds sms.Credentials) (sms.Provider, error)
}

// Sender is the surface other services depend on.
type Sender interface {
	Send(ctx context.Context, storeID uuid.UUID, to string, template sms.Template, vars map[string]string) bool
	SendDetailed(ctx context.Context, storeID uuid.UUID, to string, template sms.Template, vars map[string]string) sms.Result
}

// Dispatcher implements Sender.
type Dispatcher struct {
	repo    Repository
	factory providerFactory
	cfg     config.SMSConfig
	metrics *metrics.ProviderMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// candidate is one provider in attempt order. configID is nil for providers
// built from the environment defaults.
type candidate struct {
	configID *uuid.UUID
	provider sms.Provider
}

func NewDispatcher(repo Repository, factory providerFactory, cfg config.SMSConfig, providerMetrics *metrics.ProviderMetrics, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if factory == nil {
		return nil, fmt.Errorf("sms provider factory required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{
		repo:    repo,
		factory: factory,
		cfg:     cfg,
		metrics: providerMetrics,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Send reports whether any provider accepted the message. Failures are
// logged and recorded, never returned.
func (d *Dispatcher) Send(ctx context.Context, storeID uuid.UUID, to string, template sms.Template, vars map[string]string) bool {
	return d.SendDetailed(ctx, storeID, to, template, vars).OK
}

// SendDetailed returns the winning result, or the last failure.
func (d *Dispatcher) SendDetailed(ctx context.Context, storeID uuid.UUID, to string, template sms.Template, vars map[string]string) sms.Result {
	ctx = d.logg.WithField(d.logg.WithPhone(ctx, "recipient", to), "sms_template", string(template))

	vars = d.withStoreName(ctx, storeID, vars)
	body, err := sms.Render(template, vars)
	if err != nil {
		d.logg.Error(ctx, "sms.render_failed", err)
		return sms.Result{Reason: err.Error()}
	}

	logged := body
	if code := vars["code"]; code != "" {
		logged = strings.ReplaceAll(body, code, strings.Repeat("*", len(code)))
	}

	candidates := d.candidates(ctx, storeID)
	if len(candidates) == 0 {
		d.logg.Warn(ctx, "sms.no_providers")
		return sms.Result{Reason: reasonNoProviders}
	}

	var last sms.Result
	for idx, c := range candidates {
		name := string(c.provider.Name())
		started := d.now()
		res := c.provider.Send(ctx, sms.Message{To: to, Body: body})
		elapsed := d.now().Sub(started)

		attemptCtx := d.logg.WithFields(ctx, map[string]any{"sms_provider": name, "attempt": idx + 1})
		d.record(attemptCtx, storeID, c.provider.Name(), to, template, logged, res)

		if res.OK {
			d.metrics.ObserveAttempt(metrics.ProviderKindSMS, name, metrics.OutcomeSuccess, elapsed)
			if c.configID != nil {
				if err := d.repo.IncrementSent(ctx, *c.configID); err != nil {
					d.logg.Error(attemptCtx, "sms.increment_sent_failed", err)
				}
			}
			d.logg.Info(attemptCtx, "sms.sent")
			return res
		}

		d.metrics.ObserveAttempt(metrics.ProviderKindSMS, name, metrics.OutcomeFailure, elapsed)
		d.logg.Warn(d.logg.WithField(attemptCtx, "reason", res.Reason), "sms.provider_failed")
		last = res
	}

	d.logg.Warn(d.logg.WithField(ctx, "reason", last.Reason), "sms.all_providers_failed")
	return last
}

// candidates orders the store's providers, then the platform-wide ones, then
// the environment defaults for kinds not configured in the database.
func (d *Dispatcher) candidates(ctx context.Context, storeID uuid.UUID) []candidate {
	var configs []models.SMSProviderConfig
	if storeID != uuid.Nil {
		rows, err := d.repo.StoreProviders(ctx, storeID)
		if err != nil {
			d.logg.Error(ctx, "sms.load_store_providers_failed", err)
		}
		configs = append(configs, rows...)
	}
	platform, err := d.repo.PlatformProviders(ctx)
	if err != nil {
		d.logg.Error(ctx, "sms.load_platform_providers_failed", err)
	}
	configs = append(configs, platform...)

	out := make([]candidate, 0, len(configs)+len(d.cfg.DefaultProviders)+1)
	seen := map[enums.SMSProvider]bool{}
	for _, cfg := range configs {
		creds := sms.Credentials{APIKey: cfg.APIKey, Sender: cfg.SenderNumber}
		if cfg.BaseURL != nil {
			creds.BaseURL = *cfg.BaseURL
		}
		provider, err := d.factory.Build(cfg.Provider, creds)
		if err != nil {
			d.logg.Warn(d.logg.WithField(ctx, "sms_provider", string(cfg.Provider)), "sms.provider_misconfigured")
			continue
		}
		id := cfg.ID
		out = append(out, candidate{configID: &id, provider: provider})
		seen[cfg.Provider] = true
	}

	defaults := d.cfg.DefaultProviders
	if d.cfg.Debug {
		defaults = append([]string{string(enums.SMSProviderConsole)}, defaults...)
	}
	for _, raw := range defaults {
		kind, err := enums.ParseSMSProvider(strings.ToLower(strings.TrimSpace(raw)))
		if err != nil || seen[kind] {
			continue
		}
		provider, err := d.factory.Build(kind, d.defaultCredentials(kind))
		if err != nil {
			continue
		}
		out = append(out, candidate{provider: provider})
		seen[kind] = true
	}
	return out
}

// withStoreName copies vars and fills store_name when the caller left it out.
func (d *Dispatcher) withStoreName(ctx context.Context, storeID uuid.UUID, vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	if _, ok := out["store_name"]; ok || storeID == uuid.Nil {
		return out
	}
	name, err := d.repo.StoreName(ctx, storeID)
	if err != nil {
		d.logg.Error(ctx, "sms.store_name_failed", err)
		return out
	}
	out["store_name"] = name
	return out
}

func (d *Dispatcher) defaultCredentials(kind enums.SMSProvider) sms.Credentials {
	switch kind {
	case enums.SMSProviderKavenegar:
		return sms.Credentials{APIKey: d.cfg.KavenegarAPIKey, Sender: d.cfg.KavenegarSender, BaseURL: d.cfg.KavenegarBaseURL}
	case enums.SMSProviderGhasedak:
		return sms.Credentials{APIKey: d.cfg.GhasedakAPIKey, Sender: d.cfg.GhasedakLineNumber, BaseURL: d.cfg.GhasedakBaseURL}
	default:
		return sms.Credentials{}
	}
}

func (d *Dispatcher) record(ctx context.Context, storeID uuid.UUID, provider enums.SMSProvider, to string, template sms.Template, body string, res sms.Result) {
	msg := models.SMSMessage{
		Provider:  provider,
		Recipient: to,
		Template:  string(template),
		Body:      body,
		Status:    enums.SMSMessageStatusSent,
	}
	if storeID != uuid.Nil {
		id := storeID
		msg.StoreID = &id
	}
	if res.OK {
		if res.MessageID != "" {
			messageID := res.MessageID
			msg.ProviderMessageID = &messageID
		}
	} else {
		reason := res.Reason
		msg.Status = enums.SMSMessageStatusFailed
		msg.Error = &reason
	}
	if err := d.repo.LogMessage(ctx, &msg); err != nil {
		d.logg.Error(ctx, "sms.log_failed", err)
	}
}
