package sms

import (
	"context"

	"github.com/google/uuid"

	"github.com/persiamall/storefront/pkg/enums"
	"github.com/persiamall/storefront/pkg/logger"
	"github.com/persiamall/storefront/pkg/phone"
)

// Console logs messages instead of sending them. Used in dev and SMS debug mode.
type Console struct {
	logg *logger.Logger
}

func NewConsole(logg *logger.Logger) *Console {
	return &Console{logg: logg}
}

func (c *Console) Name() enums.SMSProvider { return enums.SMSProviderConsole }

func (c *Console) Send(ctx context.Context, msg Message) Result {
	if c.logg != nil {
		ctx = c.logg.WithFields(ctx, map[string]any{
			"sms_to":   phone.Mask(msg.To),
			"sms_body": msg.Body,
		})
		c.logg.Info(ctx, "sms.console")
	}
	return Result{OK: true, MessageID: "console-" + uuid.NewString()}
}
