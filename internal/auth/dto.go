package auth

import (
	"github.com/persiamall/storefront/internal/users"
	"github.com/persiamall/storefront/pkg/enums"
)

// LoginRequest is the OTP verification payload.
type LoginRequest struct {
	Phone   string           `json:"phone" validate:"required,ir_mobile"`
	Code    string           `json:"code" validate:"required,numeric,min=4,max=8"`
	Purpose enums.OTPPurpose `json:"purpose" validate:"omitempty,oneof=login register password_reset phone_verify"`
}

// CodeRequest asks for a new one-time code.
type CodeRequest struct {
	Phone   string           `json:"phone" validate:"required,ir_mobile"`
	Purpose enums.OTPPurpose `json:"purpose" validate:"omitempty,oneof=login register password_reset phone_verify"`
}

// LoginResponse contains the access token and the signed-in customer.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	User        *users.UserDTO `json:"user"`
	IsNewUser   bool           `json:"is_new_user"`
	MergedItems int            `json:"merged_cart_items"`
}
