package types

import (
	"time"

	"github.com/google/uuid"
)

// Suggestion is a follow-up the model embedded inside its reply. At most one
// is written per processed request.
type Suggestion struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`
	MessageID      uuid.UUID `gorm:"type:uuid;not null;index" json:"message_id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Content        string    `gorm:"column:content;not null" json:"content"`
	Category       string    `gorm:"column:category;not null" json:"category"`
	Context        string    `gorm:"column:context" json:"context"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Suggestion) TableName() string { return "chat_suggestion" }
