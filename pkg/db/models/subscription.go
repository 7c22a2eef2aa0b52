package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/pkg/enums"
)

// Subscription is a user's recurring access grant. One row per user; renewals
// extend the same row.
type Subscription struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_subscriptions_user"`
	PlanID      *string                  `gorm:"column:plan_id"`
	Status      enums.SubscriptionStatus `gorm:"column:status;not null;default:'active'"`
	StartDate   time.Time                `gorm:"column:start_date;not null"`
	EndDate     time.Time                `gorm:"column:end_date;not null"`
	CancelledAt *time.Time               `gorm:"column:cancelled_at"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// IsActiveAt reports whether the subscription grants access at the given
// instant: status active and not yet past its end date.
func (s Subscription) IsActiveAt(now time.Time) bool {
	return s.Status == enums.SubscriptionStatusActive && s.EndDate.After(now)
}
