// Package otp issues and verifies SMS one-time codes.
package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/persiamall/storefront/pkg/config"
	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/enums"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
	"github.com/persiamall/storefront/pkg/logger"
	"github.com/persiamall/storefront/pkg/phone"
	"github.com/persiamall/storefront/pkg/security"
	"github.com/persiamall/storefront/pkg/sms"
)

const (
	MsgCodeSent         = "کد تایید ارسال شد"
	msgInvalidPhone     = "شماره موبایل معتبر نیست"
	msgInvalidPurpose   = "نوع درخواست کد معتبر نیست"
	msgRateLimited      = "تعداد درخواست کد بیش از حد مجاز است. لطفا بعدا تلاش کنید"
	msgSendFailed       = "ارسال پیامک با خطا مواجه شد"
	msgCodeNotFound     = "کد تاییدی برای این شماره یافت نشد"
	msgCodeExpired      = "کد منقضی شده است"
	msgAttemptsExceeded = "تعداد تلاش‌ها بیش از حد مجاز"
)

var purposeTemplates = map[enums.OTPPurpose]sms.Template{
	enums.OTPPurposeLogin:         sms.TemplateOTPLogin,
	enums.OTPPurposeRegister:      sms.TemplateOTPRegister,
	enums.OTPPurposePasswordReset: sms.TemplateOTPPasswordReset,
	enums.OTPPurposePhoneVerify:   sms.TemplateOTPPhoneVerify,
}

type repository interface {
	Create(ctx context.Context, record *models.OTPVerification) error
	Latest(ctx context.Context, phone string, purpose enums.OTPPurpose) (*models.OTPVerification, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type smsSender interface {
	SendDetailed(ctx context.Context, storeID uuid.UUID, to string, template sms.Template, vars map[string]string) sms.Result
}

// Service issues and checks one-time codes.
type Service interface {
	Request(ctx context.Context, storeID uuid.UUID, rawPhone string, purpose enums.OTPPurpose) (*RequestResult, error)
	Verify(ctx context.Context, storeID uuid.UUID, rawPhone string, purpose enums.OTPPurpose, code string) (string, error)
}

// RequestResult is returned once the code has been handed to a provider.
type RequestResult struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"`
}

// ServiceParams bundles the dependencies required to build an OTP service.
type ServiceParams struct {
	Repo      repository
	Limiter   rateLimiter
	SMS       smsSender
	OTP       config.OTPConfig
	Passwords config.PasswordConfig
	Logger    *logger.Logger
}

type service struct {
	repo      repository
	limiter   rateLimiter
	sms       smsSender
	cfg       config.OTPConfig
	passwords config.PasswordConfig
	logg      *logger.Logger
	now       func() time.Time
	generate  func(length int) (string, error)
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("otp repository required")
	}
	if params.SMS == nil {
		return nil, fmt.Errorf("sms sender required")
	}
	cfg := params.OTP
	if cfg.Length <= 0 {
		cfg.Length = 6
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      params.Repo,
		limiter:   params.Limiter,
		sms:       params.SMS,
		cfg:       cfg,
		passwords: params.Passwords,
		logg:      logg,
		now:       time.Now,
		generate:  security.GenerateNumericCode,
	}, nil
}

func (s *service) Request(ctx context.Context, storeID uuid.UUID, rawPhone string, purpose enums.OTPPurpose) (*RequestResult, error) {
	normalized, purpose, template, err := s.validate(rawPhone, purpose)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithField(s.logg.WithPhone(ctx, "phone", normalized), "otp_purpose", string(purpose))

	if s.limiter != nil && s.cfg.RateLimit > 0 {
		allowed, _, err := s.limiter.FixedWindowAllow(ctx, "otp:"+normalized, int64(s.cfg.RateLimit), s.cfg.RateLimitWindow)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "otp rate limit")
		}
		if !allowed {
			return nil, pkgerrors.New(pkgerrors.CodeRateLimit, msgRateLimited)
		}
	}

	code, err := s.generate(s.cfg.Length)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate otp")
	}
	hash, err := security.HashSecret(code, s.passwords)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash otp")
	}

	record := models.OTPVerification{
		Phone:       normalized,
		Purpose:     purpose,
		CodeHash:    hash,
		MaxAttempts: s.cfg.MaxAttempts,
		ExpiresAt:   s.now().UTC().Add(s.cfg.TTL),
	}
	if storeID != uuid.Nil {
		id := storeID
		record.StoreID = &id
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store otp")
	}

	minutes := int(s.cfg.TTL / time.Minute)
	res := s.sms.SendDetailed(ctx, storeID, phone.Local(normalized), template, map[string]string{
		"code":           code,
		"expiry_minutes": strconv.Itoa(minutes),
	})
	if !res.OK {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, msgSendFailed).
			WithDetails(map[string]any{"reason": res.Reason})
	}

	s.logg.Info(ctx, "otp.requested")
	return &RequestResult{Message: MsgCodeSent, ExpiresIn: int(s.cfg.TTL / time.Second)}, nil
}

// Verify consumes the latest code for phone and purpose and returns the
// normalized phone on success.
func (s *service) Verify(ctx context.Context, storeID uuid.UUID, rawPhone string, purpose enums.OTPPurpose, code string) (string, error) {
	normalized, purpose, _, err := s.validate(rawPhone, purpose)
	if err != nil {
		return "", err
	}
	ctx = s.logg.WithField(s.logg.WithPhone(ctx, "phone", normalized), "otp_purpose", string(purpose))

	record, err := s.repo.Latest(ctx, normalized, purpose)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, msgCodeNotFound)
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load otp")
	}

	now := s.now().UTC()
	if !now.Before(record.ExpiresAt) {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, msgCodeExpired)
	}
	if record.Attempts >= record.MaxAttempts {
		return "", pkgerrors.New(pkgerrors.CodeRateLimit, msgAttemptsExceeded)
	}

	ok, err := security.VerifySecret(code, record.CodeHash)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify otp")
	}
	if !ok {
		attempts, err := s.repo.IncrementAttempts(ctx, record.ID)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count otp attempt")
		}
		remaining := max(record.MaxAttempts-attempts, 0)
		s.logg.Warn(s.logg.WithField(ctx, "remaining", remaining), "otp.wrong_code")
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("کد اشتباه است. %d تلاش باقی‌مانده", remaining)).
			WithDetails(map[string]any{"remaining": remaining})
	}

	consumed, err := s.repo.MarkVerified(ctx, record.ID, now)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark otp verified")
	}
	if !consumed {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, msgCodeNotFound)
	}
	s.logg.Info(ctx, "otp.verified")
	return normalized, nil
}

func (s *service) validate(rawPhone string, purpose enums.OTPPurpose) (string, enums.OTPPurpose, sms.Template, error) {
	normalized, err := phone.NormalizeMobile(rawPhone)
	if err != nil {
		return "", "", "", pkgerrors.New(pkgerrors.CodeValidation, msgInvalidPhone).
			WithDetails(map[string]any{"field": "phone"})
	}
	if purpose == "" {
		purpose = enums.OTPPurposeLogin
	}
	template, ok := purposeTemplates[purpose]
	if !ok {
		return "", "", "", pkgerrors.New(pkgerrors.CodeValidation, msgInvalidPurpose).
			WithDetails(map[string]any{"field": "purpose"})
	}
	return normalized, purpose, template, nil
}
