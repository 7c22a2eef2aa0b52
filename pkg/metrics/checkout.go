package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics tracks checkout confirmations and entitlement grants.
type CheckoutMetrics struct {
	started       *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	grants        *prometheus.CounterVec
	couponRedeems *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	started := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_started",
		Help: "Checkout sessions opened, by purchase kind.",
	}, []string{"kind"})
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_confirmations",
		Help: "Checkout confirmation attempts, by resulting status.",
	}, []string{"status"})
	grants := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "entitlement_grants",
		Help: "Entitlements granted after successful payment, by purchase kind.",
	}, []string{"kind"})
	couponRedeems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coupon_redemptions",
		Help: "Coupon redemption attempts, by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(started, confirmations, grants, couponRedeems)
	return &CheckoutMetrics{
		started:       started,
		confirmations: confirmations,
		grants:        grants,
		couponRedeems: couponRedeems,
	}
}

// IncStarted counts an opened checkout session for the given kind.
func (c *CheckoutMetrics) IncStarted(kind string) {
	if c == nil || c.started == nil {
		return
	}
	c.started.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncConfirmation counts a confirmation attempt by resulting status.
func (c *CheckoutMetrics) IncConfirmation(status string) {
	if c == nil || c.confirmations == nil {
		return
	}
	c.confirmations.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncGrant counts granted entitlements by purchase kind.
func (c *CheckoutMetrics) IncGrant(kind string) {
	if c == nil || c.grants == nil {
		return
	}
	c.grants.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncCouponRedeem counts a redemption attempt by outcome.
func (c *CheckoutMetrics) IncCouponRedeem(outcome string) {
	if c == nil || c.couponRedeems == nil {
		return
	}
	c.couponRedeems.WithLabelValues(normalizeLabel(outcome)).Inc()
}
