// Package phone normalises and validates Iranian mobile numbers.
package phone

import (
	"errors"
	"strings"
)

// ErrInvalidMobile is returned for numbers that are not Iranian mobiles.
var ErrInvalidMobile = errors.New("invalid iranian mobile number")

var mobilePrefixes = []string{
	"9890", "9891", "9892", "9893", "9894", "9895", "9896", "9897", "9898", "9899",
	"9901", "9902", "9903", "9905", "9930", "9933", "9934", "9935", "9936", "9937", "9938", "9939",
	"9920", "9921", "9922",
	"9932",
}

// Normalize strips formatting, converts Persian and Arabic-Indic digits and
// returns the number as 98XXXXXXXXXX. It does not validate.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "0098"):
		digits = digits[4:]
	case strings.HasPrefix(digits, "98"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}
	if digits == "" {
		return ""
	}
	return "98" + digits
}

// IsMobile reports whether a normalised number is a known Iranian mobile.
func IsMobile(normalized string) bool {
	if len(normalized) != 12 {
		return false
	}
	for _, prefix := range mobilePrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	return false
}

// NormalizeMobile normalises raw and validates it in one step.
func NormalizeMobile(raw string) (string, error) {
	normalized := Normalize(raw)
	if !IsMobile(normalized) {
		return "", ErrInvalidMobile
	}
	return normalized, nil
}

// Local renders a normalised number in the domestic 09XXXXXXXXX form.
func Local(normalized string) string {
	if strings.HasPrefix(normalized, "98") {
		return "0" + normalized[2:]
	}
	return normalized
}

// Mask hides the middle digits for logs, e.g. 98912***4567.
func Mask(normalized string) string {
	if len(normalized) < 9 {
		return "***"
	}
	return normalized[:5] + "***" + normalized[len(normalized)-4:]
}
