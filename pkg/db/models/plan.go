package models

import (
	"time"

	"github.com/lib/pq"

	"github.com/skillroads/skillroads-backend/pkg/enums"
)

// Plan captures the metadata for a subscription plan.
type Plan struct {
	ID           string             `gorm:"column:id;primaryKey"`
	Name         string             `gorm:"column:name;not null"`
	Status       enums.PlanStatus   `gorm:"column:status;not null;default:'active'"`
	Interval     enums.PlanInterval `gorm:"column:interval;not null"`
	DurationDays int                `gorm:"column:duration_days;not null"`
	PricePaise   int64              `gorm:"column:price_paise;not null"`
	CurrencyCode string             `gorm:"column:currency_code;not null;default:'INR'"`
	IsDefault    bool               `gorm:"column:is_default;not null;default:false"`
	Features     pq.StringArray     `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// Duration returns the plan length as a time.Duration.
func (p Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}
