package models

import (
	"time"

	"github.com/google/uuid"
)

// Stage is one unit of a roadmap; its free flag feeds the item's derived
// premium status.
type Stage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ItemID    uuid.UUID `gorm:"column:item_id;type:uuid;not null;index"`
	Title     string    `gorm:"column:title;not null"`
	Position  int       `gorm:"column:position;not null;default:0"`
	Free      bool      `gorm:"column:free;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
