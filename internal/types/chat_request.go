package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChatRequestStatusPending    = "pending"
	ChatRequestStatusProcessing = "processing"
	ChatRequestStatusCompleted  = "completed"
	ChatRequestStatusFailed     = "failed"
)

// ChatRequest is one unit of work on the shared queue. Rows are created
// elsewhere in the ERP as "pending"; a worker claims a row by writing its
// lock owner, and only that owner may move it to a terminal status.
type ChatRequest struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ConversationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"conversation_id"`
	MessageID      uuid.UUID  `gorm:"type:uuid;not null" json:"message_id"`
	Mode           string     `gorm:"column:mode;not null" json:"mode"`
	ProcessorTag   string     `gorm:"column:processor_tag;not null;index" json:"processor_tag"`
	Model          *string    `gorm:"column:model" json:"model,omitempty"`
	Temperature    *float64   `gorm:"column:temperature" json:"temperature,omitempty"`
	MaxTokens      *int       `gorm:"column:max_tokens" json:"max_tokens,omitempty"`
	Status         string     `gorm:"column:status;not null;index" json:"status"` // pending|processing|completed|failed
	LockedBy       *string    `gorm:"column:locked_by" json:"locked_by,omitempty"`
	LockedAt       *time.Time `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	Error          string     `gorm:"column:error" json:"error"`
	LatencyMs      *int64     `gorm:"column:latency_ms" json:"latency_ms,omitempty"`
	ModelUsed      string     `gorm:"column:model_used" json:"model_used"`
	ProcessedBy    string     `gorm:"column:processed_by" json:"processed_by"`
	CreatedAt      time.Time  `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (ChatRequest) TableName() string { return "chat_request" }
