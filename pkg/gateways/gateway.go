// Package gateways holds the Iranian bank payment gateway clients.
package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/persiamall/storefront/pkg/enums"
)

// DefaultTimeout bounds a single gateway request.
const DefaultTimeout = 30 * time.Second

const reasonTransport = "خطا در برقراری ارتباط با درگاه پرداخت"

// PaymentRequest asks a gateway for a payment session. Amount is in toman.
type PaymentRequest struct {
	OrderNumber string
	OrderRef    int64
	Amount      decimal.Decimal
	Description string
	CallbackURL string
	Mobile      string
	Email       string
}

// VerifyRequest confirms a payment after the shopper returns from the bank.
type VerifyRequest struct {
	Authority string
	Amount    decimal.Decimal
	Params    url.Values
}

// Result is the uniform outcome of a gateway call.
type Result struct {
	OK          bool
	Authority   string
	RedirectURL string
	ReferenceID string
	Reason      string
}

func failure(kind enums.GatewayKind, format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf("%s: %s", kind, fmt.Sprintf(format, args...))}
}

// Gateway is one bank integration. Calls never return an error; every
// failure is reported through Result.Reason.
type Gateway interface {
	Kind() enums.GatewayKind
	Request(ctx context.Context, req PaymentRequest) Result
	Verify(ctx context.Context, req VerifyRequest) Result
}

// Credentials configure a gateway instance. BaseURL and StartPayURL
// override the production or sandbox endpoints.
type Credentials struct {
	MerchantID  string
	TerminalID  string
	Username    string
	Password    string
	Sandbox     bool
	BaseURL     string
	StartPayURL string
}

func tomans(amount decimal.Decimal) int64 {
	return amount.Round(0).IntPart()
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, status, err := do(client, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("http %d: invalid response", status)
	}
	return nil
}

func do(client *http.Client, req *http.Request) ([]byte, int, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
