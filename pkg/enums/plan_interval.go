package enums

import "fmt"

// PlanInterval classifies how long a subscription plan runs.
type PlanInterval string

const (
	PlanIntervalMonthly  PlanInterval = "monthly"
	PlanIntervalYearly   PlanInterval = "yearly"
	PlanIntervalLifetime PlanInterval = "lifetime"
)

var validPlanIntervals = []PlanInterval{
	PlanIntervalMonthly,
	PlanIntervalYearly,
	PlanIntervalLifetime,
}

// String implements fmt.Stringer.
func (p PlanInterval) String() string {
	return string(p)
}

// GrantsGlobalAccess reports whether the interval class unlocks all premium
// content and the assistant while the subscription is active.
func (p PlanInterval) GrantsGlobalAccess() bool {
	return p == PlanIntervalMonthly || p == PlanIntervalYearly
}

// IsValid reports whether the value is known.
func (p PlanInterval) IsValid() bool {
	for _, candidate := range validPlanIntervals {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanInterval converts raw input into a PlanInterval.
func ParsePlanInterval(value string) (PlanInterval, error) {
	for _, candidate := range validPlanIntervals {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan interval %q", value)
}
