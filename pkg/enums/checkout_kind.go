package enums

import "fmt"

// CheckoutKind identifies what a checkout transaction pays for.
type CheckoutKind string

const (
	CheckoutKindPlan   CheckoutKind = "plan"
	CheckoutKindItem   CheckoutKind = "item"
	CheckoutKindBundle CheckoutKind = "bundle"
)

var validCheckoutKinds = []CheckoutKind{
	CheckoutKindPlan,
	CheckoutKindItem,
	CheckoutKindBundle,
}

// String implements fmt.Stringer.
func (k CheckoutKind) String() string {
	return string(k)
}

// IsValid reports whether the value is known.
func (k CheckoutKind) IsValid() bool {
	for _, candidate := range validCheckoutKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseCheckoutKind converts raw input into a CheckoutKind.
func ParseCheckoutKind(value string) (CheckoutKind, error) {
	for _, candidate := range validCheckoutKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout kind %q", value)
}
