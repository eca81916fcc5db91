package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/persiamall/storefront/pkg/enums"
)

const (
	zarinpalBaseURL            = "https://api.zarinpal.com/pg/rest/WebGate/"
	zarinpalSandboxBaseURL     = "https://sandbox.zarinpal.com/pg/rest/WebGate/"
	zarinpalStartPayURL        = "https://www.zarinpal.com/pg/StartPay/"
	zarinpalSandboxStartPayURL = "https://sandbox.zarinpal.com/pg/StartPay/"
)

var zarinpalReasons = map[int]string{
	-1:  "اطلاعات ارسال شده ناقص است",
	-2:  "IP یا مرچنت کد پذیرنده صحیح نیست",
	-3:  "با توجه به محدودیت‌های شاپرک امکان پردازش وجود ندارد",
	-4:  "سطح تایید پذیرنده پایین‌تر از سطح نقره‌ای است",
	-11: "درخواست مورد نظر یافت نشد",
	-12: "امکان ویرایش درخواست میسر نمی‌باشد",
	-21: "هیچ نوع عملیات مالی برای این تراکنش یافت نشد",
	-22: "تراکنش ناموفق می‌باشد",
	-33: "رقم تراکنش با رقم پرداخت شده مطابقت ندارد",
	-34: "سقف تقسیم تراکنش از لحاظ تعداد یا رقم عبور نموده است",
	-40: "اجازه دسترسی به متد مربوطه وجود ندارد",
	-41: "اطلاعات ارسال شده مربوط به AdditionalData غیرمعتبر می‌باشد",
	-42: "مدت زمان معتبر طول عمر شناسه پرداخت بایستی بین 30 دقیقه تا 45 روز می‌باشد",
	-54: "درخواست مورد نظر آرشیو شده است",
}

func zarinpalReason(status int) string {
	if reason, ok := zarinpalReasons[status]; ok {
		return reason
	}
	return "خطای ناشناخته در پردازش پرداخت"
}

// Zarinpal talks to the Zarinpal WebGate REST API.
type Zarinpal struct {
	creds  Credentials
	client *http.Client
}

func NewZarinpal(creds Credentials, client *http.Client) *Zarinpal {
	if creds.BaseURL == "" {
		creds.BaseURL = zarinpalBaseURL
		if creds.Sandbox {
			creds.BaseURL = zarinpalSandboxBaseURL
		}
	}
	if creds.StartPayURL == "" {
		creds.StartPayURL = zarinpalStartPayURL
		if creds.Sandbox {
			creds.StartPayURL = zarinpalSandboxStartPayURL
		}
	}
	return &Zarinpal{creds: creds, client: client}
}

func (z *Zarinpal) Kind() enums.GatewayKind { return enums.GatewayKindZarinpal }

type zarinpalPaymentRequest struct {
	MerchantID  string `json:"MerchantID"`
	Amount      int64  `json:"Amount"`
	Description string `json:"Description"`
	CallbackURL string `json:"CallbackURL"`
	Mobile      string `json:"Mobile,omitempty"`
	Email       string `json:"Email,omitempty"`
}

type zarinpalPaymentResponse struct {
	Status    int    `json:"Status"`
	Authority string `json:"Authority"`
}

type zarinpalVerifyRequest struct {
	MerchantID string `json:"MerchantID"`
	Amount     int64  `json:"Amount"`
	Authority  string `json:"Authority"`
}

type zarinpalVerifyResponse struct {
	Status int         `json:"Status"`
	RefID  json.Number `json:"RefID"`
}

func (z *Zarinpal) Request(ctx context.Context, req PaymentRequest) Result {
	description := req.Description
	if description == "" {
		description = fmt.Sprintf("پرداخت سفارش %s", req.OrderNumber)
	}
	var resp zarinpalPaymentResponse
	err := postJSON(ctx, z.client, joinURL(z.creds.BaseURL, "PaymentRequest.json"), zarinpalPaymentRequest{
		MerchantID:  z.creds.MerchantID,
		Amount:      tomans(req.Amount),
		Description: description,
		CallbackURL: req.CallbackURL,
		Mobile:      req.Mobile,
		Email:       req.Email,
	}, &resp)
	if err != nil {
		return failure(z.Kind(), "%s: %v", reasonTransport, err)
	}
	if resp.Status != 100 || resp.Authority == "" {
		return failure(z.Kind(), "status %d: %s", resp.Status, zarinpalReason(resp.Status))
	}
	return Result{
		OK:          true,
		Authority:   resp.Authority,
		RedirectURL: joinURL(z.creds.StartPayURL, resp.Authority),
	}
}

// Verify expects the callback's Authority and Status query parameters.
func (z *Zarinpal) Verify(ctx context.Context, req VerifyRequest) Result {
	authority := req.Authority
	if got := req.Params.Get("Authority"); got != "" {
		if authority != "" && got != authority {
			return failure(z.Kind(), "authority mismatch")
		}
		authority = got
	}
	if status := req.Params.Get("Status"); status != "OK" {
		return failure(z.Kind(), "پرداخت توسط کاربر لغو شد")
	}

	var resp zarinpalVerifyResponse
	err := postJSON(ctx, z.client, joinURL(z.creds.BaseURL, "PaymentVerification.json"), zarinpalVerifyRequest{
		MerchantID: z.creds.MerchantID,
		Amount:     tomans(req.Amount),
		Authority:  authority,
	}, &resp)
	if err != nil {
		return failure(z.Kind(), "%s: %v", reasonTransport, err)
	}
	if resp.Status != 100 && resp.Status != 101 {
		return failure(z.Kind(), "status %d: %s", resp.Status, zarinpalReason(resp.Status))
	}
	return Result{OK: true, Authority: authority, ReferenceID: resp.RefID.String()}
}
