package enums

import "fmt"

// SMSProvider names an SMS delivery backend.
type SMSProvider string

const (
	SMSProviderKavenegar SMSProvider = "kavenegar"
	SMSProviderGhasedak  SMSProvider = "ghasedak"
	SMSProviderConsole   SMSProvider = "console"
)

var validSMSProviders = []SMSProvider{
	SMSProviderKavenegar,
	SMSProviderGhasedak,
	SMSProviderConsole,
}

// String implements fmt.Stringer.
func (s SMSProvider) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SMSProvider.
func (s SMSProvider) IsValid() bool {
	for _, candidate := range validSMSProviders {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSMSProvider converts raw input into a SMSProvider.
func ParseSMSProvider(value string) (SMSProvider, error) {
	for _, candidate := range validSMSProviders {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sms provider %q", value)
}
