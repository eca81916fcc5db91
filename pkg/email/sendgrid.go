// Package email sends transactional e-mail through SendGrid.
package email

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"

	"github.com/persiamall/storefront/pkg/config"
	"github.com/persiamall/storefront/pkg/logger"
)

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// ReceiptLine is one purchased item on a receipt.
type ReceiptLine struct {
	Name      string
	SKU       string
	Quantity  int
	LineTotal decimal.Decimal
}

// Receipt is the content of an order receipt e-mail.
type Receipt struct {
	To           string
	CustomerName string
	StoreName    string
	OrderNumber  string
	ReferenceID  string
	Total        decimal.Decimal
	Lines        []ReceiptLine
}

// Sender delivers receipts. A disabled sender reports false without calling out.
type Sender struct {
	client  sendClient
	from    *mail.Email
	enabled bool
	logg    *logger.Logger
}

func NewSender(cfg config.SendgridConfig, logg *logger.Logger) *Sender {
	s := &Sender{logg: logg, enabled: cfg.Enabled()}
	if s.enabled {
		s.client = sendgrid.NewSendClient(cfg.APIKey)
		s.from = mail.NewEmail(cfg.FromName, cfg.DefaultFrom)
	}
	return s
}

func (s *Sender) Enabled() bool {
	return s != nil && s.enabled
}

// SendReceipt is best effort: failures are logged and reported as false.
func (s *Sender) SendReceipt(ctx context.Context, receipt Receipt) bool {
	if !s.Enabled() || strings.TrimSpace(receipt.To) == "" {
		return false
	}
	subject := fmt.Sprintf("رسید سفارش %s", receipt.OrderNumber)
	text := renderReceipt(receipt)
	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail(receipt.CustomerName, receipt.To), text, "<pre>"+html.EscapeString(text)+"</pre>")

	ctx = s.logg.WithFields(ctx, map[string]any{"order_number": receipt.OrderNumber, "provider": "sendgrid"})
	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logg.Error(ctx, "email.receipt_failed", err)
		return false
	}
	if resp.StatusCode >= 400 {
		s.logg.Error(ctx, "email.receipt_failed", fmt.Errorf("sendgrid status=%d body=%s", resp.StatusCode, resp.Body))
		return false
	}
	s.logg.Info(ctx, "email.receipt_sent")
	return true
}

func renderReceipt(r Receipt) string {
	var b strings.Builder
	if r.CustomerName != "" {
		fmt.Fprintf(&b, "%s عزیز،\n", r.CustomerName)
	}
	fmt.Fprintf(&b, "سفارش %s با موفقیت پرداخت شد.\n", r.OrderNumber)
	if r.ReferenceID != "" {
		fmt.Fprintf(&b, "کد مرجع: %s\n", r.ReferenceID)
	}
	b.WriteString("\n")
	for _, line := range r.Lines {
		fmt.Fprintf(&b, "%s (%s) × %d: %s تومان\n", line.Name, line.SKU, line.Quantity, line.LineTotal.StringFixed(0))
	}
	fmt.Fprintf(&b, "\nجمع کل: %s تومان\n", r.Total.StringFixed(0))
	if r.StoreName != "" {
		b.WriteString(r.StoreName)
	}
	return b.String()
}
