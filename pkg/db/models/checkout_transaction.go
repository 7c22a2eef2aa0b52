package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/pkg/enums"
)

// CheckoutTransaction is one attempt to pay for exactly one plan, item, or
// bundle, optionally with one coupon applied. Once successful it is immutable.
type CheckoutTransaction struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        string                  `gorm:"column:order_id;not null;uniqueIndex:uq_checkout_transactions_order"`
	UserID         uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	Kind           enums.CheckoutKind      `gorm:"column:kind;not null"`
	PlanID         *string                 `gorm:"column:plan_id"`
	ItemID         *uuid.UUID              `gorm:"column:item_id;type:uuid"`
	BundleID       *uuid.UUID              `gorm:"column:bundle_id;type:uuid"`
	CouponID       *uuid.UUID              `gorm:"column:coupon_id;type:uuid"`
	BasePaise      int64                   `gorm:"column:base_paise;not null"`
	DiscountPaise  int64                   `gorm:"column:discount_paise;not null;default:0"`
	AmountPaise    int64                   `gorm:"column:amount_paise;not null"`
	Currency       string                  `gorm:"column:currency;not null;default:'INR'"`
	Status         enums.TransactionStatus `gorm:"column:status;not null;default:'pending'"`
	GatewaySession *string                 `gorm:"column:gateway_session"`
	FailureReason  *string                 `gorm:"column:failure_reason"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
