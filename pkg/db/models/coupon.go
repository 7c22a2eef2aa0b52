package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon applies a percentage discount at checkout within a validity window
// and a usage cap. UsedCount only ever increments.
type Coupon struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code            string    `gorm:"column:code;not null;uniqueIndex:uq_coupons_code"`
	DiscountPercent int       `gorm:"column:discount_percent;not null"`
	ValidFrom       time.Time `gorm:"column:valid_from;not null"`
	ValidTo         time.Time `gorm:"column:valid_to;not null"`
	Active          bool      `gorm:"column:active;not null;default:true"`
	UsageLimit      int       `gorm:"column:usage_limit;not null"`
	UsedCount       int       `gorm:"column:used_count;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// UsableAt reports whether the coupon can be redeemed at the given instant.
func (c Coupon) UsableAt(now time.Time) bool {
	return c.Active &&
		!now.Before(c.ValidFrom) &&
		!now.After(c.ValidTo) &&
		c.UsedCount < c.UsageLimit
}
