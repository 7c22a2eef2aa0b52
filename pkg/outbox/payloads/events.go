package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/pkg/enums"
)

// CheckoutSucceededEvent is emitted once when a transaction flips to success.
type CheckoutSucceededEvent struct {
	TransactionID uuid.UUID          `json:"transaction_id"`
	OrderID       string             `json:"order_id"`
	UserID        uuid.UUID          `json:"user_id"`
	Kind          enums.CheckoutKind `json:"kind"`
	AmountPaise   int64              `json:"amount_paise"`
	CouponID      *uuid.UUID         `json:"coupon_id,omitempty"`
	ConfirmedAt   time.Time          `json:"confirmed_at"`
}

// CheckoutFailedEvent is emitted when the gateway settles a transaction as failed.
type CheckoutFailedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	OrderID       string    `json:"order_id"`
	UserID        uuid.UUID `json:"user_id"`
	Reason        string    `json:"reason,omitempty"`
}

// EntitlementGrantedEvent reports one item unlocked for a user.
type EntitlementGrantedEvent struct {
	UserID        uuid.UUID  `json:"user_id"`
	ItemID        uuid.UUID  `json:"item_id"`
	BundleID      *uuid.UUID `json:"bundle_id,omitempty"`
	TransactionID uuid.UUID  `json:"transaction_id"`
	GrantedAt     time.Time  `json:"granted_at"`
}

// SubscriptionActivatedEvent is emitted on first activation and on each renewal.
type SubscriptionActivatedEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	PlanID         string    `json:"plan_id"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	Renewal        bool      `json:"renewal"`
}

// SubscriptionExpiredEvent is emitted by the expiry sweep when a subscription lapses.
type SubscriptionExpiredEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	PlanID         string    `json:"plan_id,omitempty"`
	ExpiredAt      time.Time `json:"expired_at"`
}
