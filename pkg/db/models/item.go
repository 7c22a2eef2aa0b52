package models

import (
	"time"

	"github.com/google/uuid"
)

// Item is a purchasable roadmap. Premium is derived from the stages: it is
// true iff at least one stage is not free, and is recomputed by the stage
// mutation paths rather than set directly.
type Item struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex"`
	Title       string    `gorm:"column:title;not null"`
	Description string    `gorm:"column:description;not null;default:''"`
	PricePaise  int64     `gorm:"column:price_paise;not null;default:0"`
	Premium     bool      `gorm:"column:premium;not null;default:false"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	Stages      []Stage   `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
