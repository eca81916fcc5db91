package sms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/persiamall/storefront/pkg/enums"
)

const ghasedakBaseURL = "https://api.ghasedak.me/v2"

// Ghasedak sends through the Ghasedak v2 API.
type Ghasedak struct {
	creds  Credentials
	client *http.Client
}

func NewGhasedak(creds Credentials, client *http.Client) *Ghasedak {
	if creds.BaseURL == "" {
		creds.BaseURL = ghasedakBaseURL
	}
	return &Ghasedak{creds: creds, client: client}
}

func (g *Ghasedak) Name() enums.SMSProvider { return enums.SMSProviderGhasedak }

type ghasedakResponse struct {
	Result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"result"`
	Items []json.Number `json:"items"`
}

func (g *Ghasedak) Send(ctx context.Context, msg Message) Result {
	sender := msg.Sender
	if sender == "" {
		sender = g.creds.Sender
	}
	form := url.Values{}
	form.Set("receptor", msg.To)
	form.Set("message", msg.Body)
	form.Set("linenumber", sender)

	endpoint := strings.TrimRight(g.creds.BaseURL, "/") + "/sms/send/simple"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return failure("ghasedak: build request: %v", err)
	}
	req.Header.Set("apikey", g.creds.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return failure("ghasedak: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return failure("ghasedak: read response: %v", err)
	}
	var parsed ghasedakResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return failure("ghasedak: http %d: invalid response", resp.StatusCode)
	}
	if parsed.Result.Code != http.StatusOK {
		reason := parsed.Result.Message
		if reason == "" {
			reason = "خطا در ارسال پیامک"
		}
		return failure("ghasedak: code %d: %s", parsed.Result.Code, reason)
	}
	if len(parsed.Items) == 0 {
		return failure("ghasedak: empty items in response")
	}
	id := parsed.Items[0].String()
	if n, err := parsed.Items[0].Int64(); err == nil {
		id = strconv.FormatInt(n, 10)
	}
	return Result{OK: true, MessageID: id}
}
