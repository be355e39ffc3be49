package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tekvare/erp-ai-worker/internal/logger"
	"github.com/tekvare/erp-ai-worker/internal/types"
)

type ChatMessageRepo interface {
	// GetContent returns the message body, or "" with found=false when the
	// row does not exist.
	GetContent(ctx context.Context, tx *gorm.DB, id uuid.UUID) (content string, found bool, err error)
	Create(ctx context.Context, tx *gorm.DB, msg *types.ChatMessage) (*types.ChatMessage, error)
}

type chatMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
	return &chatMessageRepo{
		db:  db,
		log: baseLog.With("repo", "ChatMessageRepo"),
	}
}

func (r *chatMessageRepo) GetContent(ctx context.Context, tx *gorm.DB, id uuid.UUID) (string, bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return "", false, nil
	}
	var msg types.ChatMessage
	err := transaction.WithContext(ctx).
		Select("content").
		Where("id = ?", id).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return msg.Content, true, nil
}

func (r *chatMessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.ChatMessage) (*types.ChatMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if msg == nil {
		return nil, nil
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}
