package gateways

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/persiamall/storefront/pkg/enums"
)

const (
	samanBaseURL        = "https://sep.shaparak.ir/payments/"
	samanSandboxBaseURL = "https://sandbox.sep.shaparak.ir/payments/"
)

var samanReasons = map[int]string{
	-1:  "خطا در پردازش",
	-3:  "ورودی‌ها حاوی کاراکترهای غیرمجاز می‌باشند",
	-4:  "کلمه عبور یا کد فروشنده اشتباه است",
	-6:  "تراکنش قبلاً برگشت داده شده است",
	-7:  "رسید دیجیتالی تهی است",
	-8:  "طول ورودی‌ها بیشتر از حد مجاز است",
	-9:  "وجود کاراکترهای غیرمجاز در مبلغ برگشتی",
	-10: "رسید دیجیتالی حاوی کاراکترهای غیرمجاز است",
	-11: "طول ورودی‌ها کمتر از حد مجاز است",
	-12: "مبلغ برگشتی منفی است",
	-13: "مبلغ برگشتی بیش از مبلغ برگشت نخورده تراکنش اصلی است",
	-14: "چنین تراکنشی تعریف نشده است",
	-15: "مبلغ برگشتی به صورت اعشاری داده شده است",
	-16: "خطای داخلی سیستم",
	-17: "برگشت زدن جزیی تراکنش مجاز نمی‌باشد",
	-18: "IP فروشنده نا معتبر است",
}

func samanReason(code int) string {
	if reason, ok := samanReasons[code]; ok {
		return reason
	}
	return fmt.Sprintf("خطای ناشناخته: %d", code)
}

// Saman talks to the SEP token API.
type Saman struct {
	creds  Credentials
	client *http.Client
}

func NewSaman(creds Credentials, client *http.Client) *Saman {
	if creds.BaseURL == "" {
		creds.BaseURL = samanBaseURL
		if creds.Sandbox {
			creds.BaseURL = samanSandboxBaseURL
		}
	}
	if creds.TerminalID == "" {
		creds.TerminalID = creds.MerchantID
	}
	return &Saman{creds: creds, client: client}
}

func (s *Saman) Kind() enums.GatewayKind { return enums.GatewayKindSaman }

type samanTokenRequest struct {
	TerminalID  string `json:"TerminalId"`
	Amount      int64  `json:"Amount"`
	OrderID     string `json:"OrderId"`
	CallbackURL string `json:"CallbackUrl"`
	Description string `json:"Description"`
	Mobile      string `json:"Mobile,omitempty"`
	Email       string `json:"Email,omitempty"`
}

type samanTokenResponse struct {
	Status int    `json:"Status"`
	Token  string `json:"Token"`
}

type samanVerifyRequest struct {
	TerminalNumber string `json:"TerminalNumber"`
	RefNum         string `json:"RefNum"`
}

type samanVerifyResponse struct {
	Amount int64 `json:"Amount"`
}

func (s *Saman) Request(ctx context.Context, req PaymentRequest) Result {
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("پرداخت سفارش %s", req.OrderNumber)
	}
	var resp samanTokenResponse
	err := postJSON(ctx, s.client, joinURL(s.creds.BaseURL, "initpayment.asmx/RequestToken"), samanTokenRequest{
		TerminalID:  s.creds.TerminalID,
		Amount:      tomans(req.Amount),
		OrderID:     req.OrderNumber,
		CallbackURL: req.CallbackURL,
		Description: description,
		Mobile:      req.Mobile,
		Email:       req.Email,
	}, &resp)
	if err != nil {
		return failure(s.Kind(), "%s: %v", reasonTransport, err)
	}
	if resp.Status != 1 || resp.Token == "" {
		return failure(s.Kind(), "status %d: %s", resp.Status, samanReason(resp.Status))
	}
	return Result{
		OK:          true,
		Authority:   resp.Token,
		RedirectURL: joinURL(s.creds.BaseURL, "payment.aspx") + "?Token=" + url.QueryEscape(resp.Token),
	}
}

// Verify expects the callback's State and RefNum parameters. The verified
// amount must equal the requested amount.
func (s *Saman) Verify(ctx context.Context, req VerifyRequest) Result {
	if state := req.Params.Get("State"); state != "OK" {
		return failure(s.Kind(), "پرداخت ناموفق: %s", state)
	}
	refNum := req.Params.Get("RefNum")
	if refNum == "" {
		return failure(s.Kind(), "رسید دیجیتالی تهی است")
	}

	var resp samanVerifyResponse
	err := postJSON(ctx, s.client, joinURL(s.creds.BaseURL, "verify.asmx/VerifyTransaction"), samanVerifyRequest{
		TerminalNumber: s.creds.TerminalID,
		RefNum:         refNum,
	}, &resp)
	if err != nil {
		return failure(s.Kind(), "%s: %v", reasonTransport, err)
	}
	if resp.Amount <= 0 {
		return failure(s.Kind(), "code %d: %s", resp.Amount, samanReason(int(resp.Amount)))
	}
	if expected := tomans(req.Amount); resp.Amount != expected {
		return failure(s.Kind(), "مبلغ تایید شده %d با مبلغ سفارش %d مطابقت ندارد", resp.Amount, expected)
	}
	return Result{OK: true, Authority: req.Authority, ReferenceID: refNum}
}
