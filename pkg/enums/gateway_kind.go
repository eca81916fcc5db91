package enums

import "fmt"

// GatewayKind names a payment gateway integration.
type GatewayKind string

const (
	GatewayKindZarinpal GatewayKind = "zarinpal"
	GatewayKindSaman    GatewayKind = "saman"
	GatewayKindMellat   GatewayKind = "mellat"
)

var validGatewayKinds = []GatewayKind{
	GatewayKindZarinpal,
	GatewayKindSaman,
	GatewayKindMellat,
}

// String implements fmt.Stringer.
func (g GatewayKind) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GatewayKind.
func (g GatewayKind) IsValid() bool {
	for _, candidate := range validGatewayKinds {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGatewayKind converts raw input into a GatewayKind.
func ParseGatewayKind(value string) (GatewayKind, error) {
	for _, candidate := range validGatewayKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway kind %q", value)
}
