package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/enums"
	"github.com/persiamall/storefront/pkg/gateways"
	"github.com/persiamall/storefront/pkg/logger"
	"github.com/persiamall/storefront/pkg/metrics"
)

const reasonNoGateway = "هیچ درگاه پرداخت فعالی برای این فروشگاه تعریف نشده است"

type gatewayBuilder interface {
	Build(kind enums.GatewayKind, creds gateways.Credentials) (gateways.Gateway, error)
}

// Attempt is the outcome of one RequestPayment call. Gateway is set to the
// gateway that accepted the request.
type Attempt struct {
	Result  gateways.Result
	Gateway *models.PaymentGateway
	Fee     decimal.Decimal
}

// Dispatcher tries a store's gateways in order until one accepts.
type Dispatcher struct {
	builder gatewayBuilder
	metrics *metrics.ProviderMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewDispatcher(builder gatewayBuilder, providerMetrics *metrics.ProviderMetrics, logg *logger.Logger) (*Dispatcher, error) {
	if builder == nil {
		return nil, fmt.Errorf("gateway builder required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{builder: builder, metrics: providerMetrics, logg: logg, now: time.Now}, nil
}

// RequestPayment walks configs in the given order. Gateways whose amount
// range excludes the request are skipped.
func (d *Dispatcher) RequestPayment(ctx context.Context, configs []models.PaymentGateway, req gateways.PaymentRequest) Attempt {
	if len(configs) == 0 {
		return Attempt{Result: gateways.Result{Reason: reasonNoGateway}}
	}

	var last gateways.Result
	for idx := range configs {
		cfg := configs[idx]
		name := string(cfg.Kind)
		attemptCtx := d.logg.WithFields(ctx, map[string]any{"gateway": name, "gateway_id": cfg.ID.String(), "attempt": idx + 1})

		if reason := amountOutOfRange(cfg, req.Amount); reason != "" {
			d.metrics.ObserveAttempt(metrics.ProviderKindPayment, name, metrics.OutcomeSkipped, 0)
			d.logg.Info(d.logg.WithField(attemptCtx, "reason", reason), "payment.gateway_skipped")
			last = gateways.Result{Reason: reason}
			continue
		}

		gw, err := d.builder.Build(cfg.Kind, credentialsOf(cfg))
		if err != nil {
			d.metrics.ObserveAttempt(metrics.ProviderKindPayment, name, metrics.OutcomeSkipped, 0)
			d.logg.Error(attemptCtx, "payment.gateway_misconfigured", err)
			last = gateways.Result{Reason: err.Error()}
			continue
		}

		started := d.now()
		res := gw.Request(ctx, req)
		elapsed := d.now().Sub(started)
		if res.OK {
			d.metrics.ObserveAttempt(metrics.ProviderKindPayment, name, metrics.OutcomeSuccess, elapsed)
			d.logg.Info(attemptCtx, "payment.requested")
			return Attempt{Result: res, Gateway: &cfg, Fee: Fee(cfg, req.Amount)}
		}
		d.metrics.ObserveAttempt(metrics.ProviderKindPayment, name, metrics.OutcomeFailure, elapsed)
		d.logg.Warn(d.logg.WithField(attemptCtx, "reason", res.Reason), "payment.gateway_failed")
		last = res
	}
	return Attempt{Result: last}
}

// VerifyPayment asks the gateway that issued the authority. There is no
// fallback.
func (d *Dispatcher) VerifyPayment(ctx context.Context, cfg models.PaymentGateway, req gateways.VerifyRequest) gateways.Result {
	name := string(cfg.Kind)
	ctx = d.logg.WithFields(ctx, map[string]any{"gateway": name, "gateway_id": cfg.ID.String()})

	gw, err := d.builder.Build(cfg.Kind, credentialsOf(cfg))
	if err != nil {
		d.logg.Error(ctx, "payment.gateway_misconfigured", err)
		return gateways.Result{Reason: err.Error()}
	}
	started := d.now()
	res := gw.Verify(ctx, req)
	elapsed := d.now().Sub(started)
	if res.OK {
		d.metrics.ObserveAttempt(metrics.ProviderKindPayment, name, metrics.OutcomeSuccess, elapsed)
		d.logg.Info(ctx, "payment.verified")
	} else {
		d.metrics.ObserveAttempt(metrics.ProviderKindPayment, name, metrics.OutcomeFailure, elapsed)
		d.logg.Warn(d.logg.WithField(ctx, "reason", res.Reason), "payment.verify_failed")
	}
	return res
}

// Fee is fixed_fee + amount × percentage_fee / 100, rounded to whole toman.
func Fee(cfg models.PaymentGateway, amount decimal.Decimal) decimal.Decimal {
	pct := amount.Mul(cfg.PercentageFee).Div(decimal.NewFromInt(100))
	return cfg.FixedFee.Add(pct).Round(0)
}

func amountOutOfRange(cfg models.PaymentGateway, amount decimal.Decimal) string {
	if amount.LessThan(cfg.MinAmount) {
		return fmt.Sprintf("%s: مبلغ کمتر از حداقل مجاز درگاه (%s تومان) است", cfg.Kind, cfg.MinAmount.StringFixed(0))
	}
	if cfg.MaxAmount != nil && amount.GreaterThan(*cfg.MaxAmount) {
		return fmt.Sprintf("%s: مبلغ بیشتر از حداکثر مجاز درگاه (%s تومان) است", cfg.Kind, cfg.MaxAmount.StringFixed(0))
	}
	return ""
}

func credentialsOf(cfg models.PaymentGateway) gateways.Credentials {
	return gateways.Credentials{
		MerchantID: cfg.MerchantID,
		TerminalID: cfg.TerminalID,
		Username:   cfg.Username,
		Password:   cfg.Password,
		Sandbox:    cfg.IsSandbox,
	}
}
