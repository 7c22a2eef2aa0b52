package models

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment records that a user viewed or bookmarked a roadmap. It is
// created automatically on first view and is never proof of payment; paid
// access lives in PurchaseRecord and Subscription.
type Enrollment struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_enrollments_user_item"`
	ItemID        uuid.UUID `gorm:"column:item_id;type:uuid;not null;uniqueIndex:uq_enrollments_user_item"`
	FirstViewedAt time.Time `gorm:"column:first_viewed_at;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
