package gateways

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/persiamall/storefront/pkg/enums"
)

const (
	mellatBaseURL        = "https://bpm.shaparak.ir/pgwchannel/services/"
	mellatSandboxBaseURL = "https://sandbox.shaparak.ir/pgwchannel/services/"
	mellatStartPayURL    = "https://bpm.shaparak.ir/pgwchannel/startpay.mellat"
	mellatNamespace      = "http://interfaces.core.sw.bps.com/"
)

// Settle codes that mean the transaction was already settled or verified.
const (
	mellatAlreadyVerified = "43"
	mellatAlreadySettled  = "45"
)

var mellatReasons = map[string]string{
	"11":  "شماره کارت نامعتبر است",
	"12":  "موجودی کافی نیست",
	"13":  "رمز نادرست است",
	"14":  "تعداد دفعات وارد کردن رمز بیش از حد مجاز است",
	"15":  "کارت نامعتبر است",
	"16":  "دفعات برداشت وجه بیش از حد مجاز است",
	"17":  "کاربر از انجام تراکنش منصرف شده است",
	"18":  "تاریخ انقضای کارت گذشته است",
	"19":  "مبلغ برداشت وجه بیش از حد مجاز است",
	"111": "صادر کننده کارت نامعتبر است",
	"112": "خطای سوییچ صادر کننده کارت",
	"113": "پاسخی از صادر کننده کارت دریافت نشد",
	"114": "دارنده کارت مجاز به انجام این تراکنش نیست",
}

func mellatReason(code string) string {
	if reason, ok := mellatReasons[code]; ok {
		return reason
	}
	return "خطای ناشناخته: " + code
}

// Mellat talks to the Behpardakht SOAP service. Amounts are sent in rials.
type Mellat struct {
	creds  Credentials
	client *http.Client
	now    func() time.Time
}

func NewMellat(creds Credentials, client *http.Client) *Mellat {
	if creds.BaseURL == "" {
		creds.BaseURL = mellatBaseURL
		if creds.Sandbox {
			creds.BaseURL = mellatSandboxBaseURL
		}
	}
	if creds.StartPayURL == "" {
		creds.StartPayURL = mellatStartPayURL
	}
	return &Mellat{creds: creds, client: client, now: time.Now}
}

func (m *Mellat) Kind() enums.GatewayKind { return enums.GatewayKindMellat }

func (m *Mellat) Request(ctx context.Context, req PaymentRequest) Result {
	now := m.now()
	ret, err := m.call(ctx, "bpPayRequest", [][2]string{
		{"terminalId", m.creds.TerminalID},
		{"userName", m.creds.Username},
		{"userPassword", m.creds.Password},
		{"orderId", strconv.FormatInt(req.OrderRef, 10)},
		{"amount", strconv.FormatInt(tomans(req.Amount)*10, 10)},
		{"localDate", now.Format("20060102")},
		{"localTime", now.Format("150405")},
		{"additionalData", req.Description},
		{"callBackUrl", req.CallbackURL},
		{"payerId", "0"},
	})
	if err != nil {
		return failure(m.Kind(), "%s: %v", reasonTransport, err)
	}
	code, refID, _ := strings.Cut(ret, ",")
	if code != "0" || refID == "" {
		return failure(m.Kind(), "code %s: %s", code, mellatReason(code))
	}
	return Result{
		OK:          true,
		Authority:   refID,
		RedirectURL: m.creds.StartPayURL + "?RefId=" + url.QueryEscape(refID),
	}
}

// Verify expects the callback's RefId, ResCode, SaleOrderId and
// SaleReferenceId parameters, then runs verify followed by settle.
func (m *Mellat) Verify(ctx context.Context, req VerifyRequest) Result {
	if ref := req.Params.Get("RefId"); ref != "" && req.Authority != "" && ref != req.Authority {
		return failure(m.Kind(), "authority mismatch")
	}
	if code := req.Params.Get("ResCode"); code != "0" {
		return failure(m.Kind(), "code %s: %s", code, mellatReason(code))
	}
	saleOrderID := req.Params.Get("SaleOrderId")
	saleReferenceID := req.Params.Get("SaleReferenceId")
	if saleOrderID == "" || saleReferenceID == "" {
		return failure(m.Kind(), "اطلاعات بازگشتی بانک ناقص است")
	}

	fields := [][2]string{
		{"terminalId", m.creds.TerminalID},
		{"userName", m.creds.Username},
		{"userPassword", m.creds.Password},
		{"orderId", saleOrderID},
		{"saleOrderId", saleOrderID},
		{"saleReferenceId", saleReferenceID},
	}
	code, err := m.call(ctx, "bpVerifyRequest", fields)
	if err != nil {
		return failure(m.Kind(), "%s: %v", reasonTransport, err)
	}
	if code != "0" && code != mellatAlreadyVerified {
		return failure(m.Kind(), "verify code %s: %s", code, mellatReason(code))
	}
	code, err = m.call(ctx, "bpSettleRequest", fields)
	if err != nil {
		return failure(m.Kind(), "%s: %v", reasonTransport, err)
	}
	if code != "0" && code != mellatAlreadySettled {
		return failure(m.Kind(), "settle code %s: %s", code, mellatReason(code))
	}
	return Result{OK: true, Authority: req.Authority, ReferenceID: saleReferenceID}
}

func (m *Mellat) call(ctx context.Context, method string, fields [][2]string) (string, error) {
	envelope, err := soapEnvelope(method, fields)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(m.creds.BaseURL, "PaymentGateway.asmx"), bytes.NewReader(envelope))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", mellatNamespace+method)

	body, status, err := do(m.client, req)
	if err != nil {
		return "", err
	}
	ret, err := soapReturn(body)
	if err != nil {
		return "", fmt.Errorf("http %d: %w", status, err)
	}
	return strings.TrimSpace(ret), nil
}

func soapEnvelope(method string, fields [][2]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>`)
	fmt.Fprintf(&buf, `<%s xmlns="%s">`, method, mellatNamespace)
	for _, field := range fields {
		fmt.Fprintf(&buf, "<%s>", field[0])
		if err := xml.EscapeText(&buf, []byte(field[1])); err != nil {
			return nil, fmt.Errorf("encode %s: %w", field[0], err)
		}
		fmt.Fprintf(&buf, "</%s>", field[0])
	}
	fmt.Fprintf(&buf, "</%s></soap:Body></soap:Envelope>", method)
	return buf.Bytes(), nil
}

// soapReturn extracts the text of the first <return> element.
func soapReturn(body []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := decoder.Token()
		if err != nil {
			return "", fmt.Errorf("missing return element")
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "return" {
			continue
		}
		var value string
		if err := decoder.DecodeElement(&value, &start); err != nil {
			return "", fmt.Errorf("decode return: %w", err)
		}
		return value, nil
	}
}
