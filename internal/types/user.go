package types

import (
	"time"

	"github.com/google/uuid"
)

// User is the ERP user owning a conversation. The worker only reads it to
// build business context; account management lives elsewhere.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Email       string    `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Role        string    `gorm:"column:role;not null" json:"role"`
	AccessLevel string    `gorm:"column:access_level;not null" json:"access_level"`
	Region      string    `gorm:"column:region" json:"region"`
	Locale      string    `gorm:"column:locale" json:"locale"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string { return "app_user" }
