package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/persiamall/storefront/internal/identity"
	"github.com/persiamall/storefront/internal/otp"
	"github.com/persiamall/storefront/internal/users"
	pkgAuth "github.com/persiamall/storefront/pkg/auth"
	"github.com/persiamall/storefront/pkg/config"
	"github.com/persiamall/storefront/pkg/db/models"
	"github.com/persiamall/storefront/pkg/enums"
	pkgerrors "github.com/persiamall/storefront/pkg/errors"
	"github.com/persiamall/storefront/pkg/logger"
	"github.com/persiamall/storefront/pkg/sms"
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	RequestCode(ctx context.Context, storeID uuid.UUID, req CodeRequest) (*otp.RequestResult, error)
	Login(ctx context.Context, storeID uuid.UUID, anonymous identity.Owner, req LoginRequest) (*LoginResponse, error)
}

type userRepository interface {
	GetOrCreateByPhone(ctx context.Context, phone string) (*models.User, bool, error)
	MarkPhoneVerified(ctx context.Context, id uuid.UUID, at time.Time) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type cartMerger interface {
	MergeAnonymous(ctx context.Context, storeID uuid.UUID, from, to identity.Owner) (int, error)
}

type welcomeSender interface {
	Send(ctx context.Context, storeID uuid.UUID, to string, template sms.Template, vars map[string]string) bool
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	OTP       otp.Service
	UserRepo  userRepository
	Carts     cartMerger
	SMS       welcomeSender
	JWTConfig config.JWTConfig
	Logger    *logger.Logger
}

type service struct {
	otp    otp.Service
	users  userRepository
	carts  cartMerger
	sms    welcomeSender
	jwtCfg config.JWTConfig
	logg   *logger.Logger
	now    func() time.Time
}

// NewService constructs the OTP login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.OTP == nil {
		return nil, fmt.Errorf("otp service is required")
	}
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		otp:    params.OTP,
		users:  params.UserRepo,
		carts:  params.Carts,
		sms:    params.SMS,
		jwtCfg: params.JWTConfig,
		logg:   logg,
		now:    time.Now,
	}, nil
}

func (s *service) RequestCode(ctx context.Context, storeID uuid.UUID, req CodeRequest) (*otp.RequestResult, error) {
	return s.otp.Request(ctx, storeID, req.Phone, req.Purpose)
}

// Login verifies the code, signs the customer in and moves the anonymous
// cart of this store into the customer's cart.
func (s *service) Login(ctx context.Context, storeID uuid.UUID, anonymous identity.Owner, req LoginRequest) (*LoginResponse, error) {
	purpose := req.Purpose
	if purpose == "" {
		purpose = enums.OTPPurposeLogin
	}
	phone, err := s.otp.Verify(ctx, storeID, req.Phone, purpose, req.Code)
	if err != nil {
		return nil, err
	}

	user, created, err := s.users.GetOrCreateByPhone(ctx, phone)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	now := s.now().UTC()
	if err := s.users.MarkPhoneVerified(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark phone verified")
	}
	if refreshed, err := s.users.FindByID(ctx, user.ID); err == nil {
		user = refreshed
	}

	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{UserID: user.ID, Phone: user.Phone})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	ctx = s.logg.WithField(ctx, "user_id", user.ID.String())
	merged := 0
	if s.carts != nil && anonymous.Kind == enums.OwnerKindSession && anonymous.Valid() {
		merged, err = s.carts.MergeAnonymous(ctx, storeID, anonymous, identity.UserOwner(user.ID))
		if err != nil {
			// the login itself succeeded; the guest cart stays where it was
			s.logg.Error(ctx, "auth.cart_merge_failed", err)
			merged = 0
		}
	}

	if created && s.sms != nil {
		name := user.FirstName
		if name == "" {
			name = "کاربر"
		}
		s.sms.Send(ctx, storeID, phone, sms.TemplateWelcome, map[string]string{"name": name})
	}

	s.logg.Info(ctx, "auth.login")
	return &LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.jwtCfg.AccessTTL() / time.Second),
		User:        users.FromModel(user),
		IsNewUser:   created,
		MergedItems: merged,
	}, nil
}
