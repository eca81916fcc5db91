package enums

import "fmt"

// SMSMessageStatus records the outcome of one delivery attempt.
type SMSMessageStatus string

const (
	SMSMessageStatusSent   SMSMessageStatus = "sent"
	SMSMessageStatusFailed SMSMessageStatus = "failed"
)

var validSMSMessageStatuses = []SMSMessageStatus{
	SMSMessageStatusSent,
	SMSMessageStatusFailed,
}

// String implements fmt.Stringer.
func (s SMSMessageStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SMSMessageStatus.
func (s SMSMessageStatus) IsValid() bool {
	for _, candidate := range validSMSMessageStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSMSMessageStatus converts raw input into a SMSMessageStatus.
func ParseSMSMessageStatus(value string) (SMSMessageStatus, error) {
	for _, candidate := range validSMSMessageStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sms message status %q", value)
}
