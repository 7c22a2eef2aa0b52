package enums

import "fmt"

// GatewayStatus mirrors the payment gateway's order state.
type GatewayStatus string

const (
	GatewayStatusPaid      GatewayStatus = "PAID"
	GatewayStatusActive    GatewayStatus = "ACTIVE"
	GatewayStatusPending   GatewayStatus = "PENDING"
	GatewayStatusExpired   GatewayStatus = "EXPIRED"
	GatewayStatusFailed    GatewayStatus = "FAILED"
	GatewayStatusCancelled GatewayStatus = "CANCELLED"
)

var validGatewayStatuses = []GatewayStatus{
	GatewayStatusPaid,
	GatewayStatusActive,
	GatewayStatusPending,
	GatewayStatusExpired,
	GatewayStatusFailed,
	GatewayStatusCancelled,
}

// String implements fmt.Stringer.
func (s GatewayStatus) String() string {
	return string(s)
}

// IsSettled reports whether the gateway considers the order paid.
func (s GatewayStatus) IsSettled() bool {
	return s == GatewayStatusPaid
}

// IsOpen reports whether the order may still settle and should be re-polled.
func (s GatewayStatus) IsOpen() bool {
	return s == GatewayStatusActive || s == GatewayStatusPending
}

// IsValid reports whether the value is known.
func (s GatewayStatus) IsValid() bool {
	for _, candidate := range validGatewayStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseGatewayStatus converts raw input into a GatewayStatus. Unknown values
// are preserved as-is so callers can treat them as non-settled.
func ParseGatewayStatus(value string) (GatewayStatus, error) {
	for _, candidate := range validGatewayStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway status %q", value)
}
