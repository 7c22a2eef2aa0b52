package models

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseRecord is the immutable fact that a user bought an item, directly
// or as part of a bundle. Created only by a successful checkout transaction
// and never deleted.
type PurchaseRecord struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_purchase_records_user_item"`
	ItemID        uuid.UUID  `gorm:"column:item_id;type:uuid;not null;uniqueIndex:uq_purchase_records_user_item"`
	BundleID      *uuid.UUID `gorm:"column:bundle_id;type:uuid"`
	TransactionID uuid.UUID  `gorm:"column:transaction_id;type:uuid;not null"`
	PurchasedAt   time.Time  `gorm:"column:purchased_at;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}
