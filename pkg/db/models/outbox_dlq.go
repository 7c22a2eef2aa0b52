package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/skillroads/skillroads-backend/pkg/enums"
)

// OutboxDLQ stores outbox events that exhausted their publish attempts.
type OutboxDLQ struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID      uuid.UUID       `gorm:"column:event_id;type:uuid;not null;uniqueIndex:uq_outbox_dlq_event"`
	EventType    enums.EventType `gorm:"column:event_type;not null"`
	Payload      json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount int             `gorm:"column:attempt_count;not null"`
	ErrorMessage *string         `gorm:"column:error_message"`
	FailedAt     time.Time       `gorm:"column:failed_at;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OutboxDLQ) TableName() string {
	return "outbox_dlq"
}
