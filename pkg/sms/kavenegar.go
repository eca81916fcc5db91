package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/persiamall/storefront/pkg/enums"
)

const kavenegarBaseURL = "https://api.kavenegar.com/v1"

// kavenegarReasons maps provider messages to shopper-friendly Persian text.
var kavenegarReasons = [][2]string{
	{"رقم اعتبار کافی نمی‌باشد", "موجودی حساب کافی نیست"},
	{"کلید API صحیح نمی‌باشد", "کلید API معتبر نیست"},
	{"مقدار پارامتر message صحیح نمی‌باشد", "متن پیام معتبر نیست"},
	{"مقدار پارامتر receptor صحیح نمی‌باشد", "شماره گیرنده معتبر نیست"},
	{"سامانه در حال به‌روزرسانی می‌باشد", "سرویس موقتاً در دسترس نیست"},
}

func kavenegarReason(message string) string {
	for _, pair := range kavenegarReasons {
		if pair[0] == message {
			return pair[1]
		}
	}
	return message
}

// Kavenegar sends through the Kavenegar REST API.
type Kavenegar struct {
	creds  Credentials
	client *http.Client
}

func NewKavenegar(creds Credentials, client *http.Client) *Kavenegar {
	if creds.BaseURL == "" {
		creds.BaseURL = kavenegarBaseURL
	}
	return &Kavenegar{creds: creds, client: client}
}

func (k *Kavenegar) Name() enums.SMSProvider { return enums.SMSProviderKavenegar }

type kavenegarResponse struct {
	Return struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"return"`
	Entries []struct {
		MessageID int64 `json:"messageid"`
		Cost      int64 `json:"cost"`
	} `json:"entries"`
}

func (k *Kavenegar) Send(ctx context.Context, msg Message) Result {
	sender := msg.Sender
	if sender == "" {
		sender = k.creds.Sender
	}
	form := url.Values{}
	form.Set("receptor", msg.To)
	form.Set("message", msg.Body)
	if sender != "" {
		form.Set("sender", sender)
	}

	endpoint := fmt.Sprintf("%s/%s/sms/send.json", strings.TrimRight(k.creds.BaseURL, "/"), url.PathEscape(k.creds.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return failure("kavenegar: build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return failure("kavenegar: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failure("kavenegar: read response: %v", err)
	}
	var parsed kavenegarResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return failure("kavenegar: http %d: invalid response", resp.StatusCode)
	}
	if parsed.Return.Status != http.StatusOK {
		return failure("kavenegar: status %d: %s", parsed.Return.Status, kavenegarReason(parsed.Return.Message))
	}
	result := Result{OK: true}
	if len(parsed.Entries) > 0 {
		result.MessageID = strconv.FormatInt(parsed.Entries[0].MessageID, 10)
	}
	return result
}
