package enums

import "fmt"

// OTPPurpose scopes a one-time code to the flow that requested it.
type OTPPurpose string

const (
	OTPPurposeLogin         OTPPurpose = "login"
	OTPPurposeRegister      OTPPurpose = "register"
	OTPPurposePasswordReset OTPPurpose = "password_reset"
	OTPPurposePhoneVerify   OTPPurpose = "phone_verify"
)

var validOTPPurposes = []OTPPurpose{
	OTPPurposeLogin,
	OTPPurposeRegister,
	OTPPurposePasswordReset,
	OTPPurposePhoneVerify,
}

// String implements fmt.Stringer.
func (o OTPPurpose) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OTPPurpose.
func (o OTPPurpose) IsValid() bool {
	for _, candidate := range validOTPPurposes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOTPPurpose converts raw input into a OTPPurpose.
func ParseOTPPurpose(value string) (OTPPurpose, error) {
	for _, candidate := range validOTPPurposes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid otp purpose %q", value)
}
