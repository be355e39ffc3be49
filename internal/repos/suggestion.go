package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tekvare/erp-ai-worker/internal/logger"
	"github.com/tekvare/erp-ai-worker/internal/types"
)

type SuggestionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, s *types.Suggestion) (*types.Suggestion, error)
}

type suggestionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSuggestionRepo(db *gorm.DB, baseLog *logger.Logger) SuggestionRepo {
	return &suggestionRepo{
		db:  db,
		log: baseLog.With("repo", "SuggestionRepo"),
	}
}

func (r *suggestionRepo) Create(ctx context.Context, tx *gorm.DB, s *types.Suggestion) (*types.Suggestion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if s == nil {
		return nil, nil
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Category == "" {
		s.Category = "other"
	}
	if err := transaction.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}
