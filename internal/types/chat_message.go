package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
)

type ChatMessage struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"conversation_id"`
	UserID         *uuid.UUID     `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Role           string         `gorm:"column:role;not null" json:"role"` // user|assistant
	Content        string         `gorm:"column:content;not null" json:"content"`
	Mode           string         `gorm:"column:mode" json:"mode"`
	Metadata       datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt      time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }

// AssistantMessageMeta is serialized into ChatMessage.Metadata for replies
// written by the worker.
type AssistantMessageMeta struct {
	RequestID   uuid.UUID `json:"request_id"`
	Mode        string    `json:"mode"`
	ModelUsed   string    `json:"model_used"`
	LatencyMs   int64     `json:"latency_ms"`
	ProcessedBy string    `json:"processed_by"`
	AccessLevel string    `json:"access_level"`
}
