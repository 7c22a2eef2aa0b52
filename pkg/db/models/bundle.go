package models

import (
	"time"

	"github.com/google/uuid"
)

// Bundle is a named set of items sold together at a combined price.
type Bundle struct {
	ID         uuid.UUID    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug       string       `gorm:"column:slug;not null;uniqueIndex"`
	Name       string       `gorm:"column:name;not null"`
	PricePaise int64        `gorm:"column:price_paise;not null"`
	Active     bool         `gorm:"column:active;not null;default:true"`
	Items      []BundleItem `gorm:"foreignKey:BundleID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

// BundleItem links one item into a bundle.
type BundleItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BundleID  uuid.UUID `gorm:"column:bundle_id;type:uuid;not null;uniqueIndex:uq_bundle_items_bundle_item"`
	ItemID    uuid.UUID `gorm:"column:item_id;type:uuid;not null;uniqueIndex:uq_bundle_items_bundle_item"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
