package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tekvare/erp-ai-worker/internal/clients/redis"
	"github.com/tekvare/erp-ai-worker/internal/logger"
	"github.com/tekvare/erp-ai-worker/internal/repos"
)

// BusinessContext is the role-scoped snapshot rendered into a prompt.
// Fetched fresh (or from cache) per request, never persisted.
type BusinessContext struct {
	SystemPrompt      string            `json:"system_prompt"`
	SuggestionPrompts []string          `json:"suggestion_prompts"`
	Locale            string            `json:"locale"`
	Today             string            `json:"today"`
	AccessLevel       string            `json:"access_level"`
	Fields            map[string]string `json:"fields"`
}

type ContextService interface {
	GetBusinessContext(ctx context.Context, userID uuid.UUID, mode string) (*BusinessContext, error)
}

type contextService struct {
	log      *logger.Logger
	users    repos.UserRepo
	personas PersonaSet
	cache    redis.Cache
	cacheTTL time.Duration
}

// NewContextService builds the business-context provider. cache may be nil.
func NewContextService(log *logger.Logger, users repos.UserRepo, personas PersonaSet, cache redis.Cache, cacheTTL time.Duration) ContextService {
	return &contextService{
		log:      log.With("service", "ContextService"),
		users:    users,
		personas: personas,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

func (s *contextService) GetBusinessContext(ctx context.Context, userID uuid.UUID, mode string) (*BusinessContext, error) {
	cacheKey := fmt.Sprintf("ctx:user:%s:%s", userID, mode)
	if s.cache != nil {
		raw, hit, err := s.cache.Get(ctx, cacheKey)
		if err != nil {
			s.log.Warn("Context cache read failed", "error", err)
		} else if hit {
			var bc BusinessContext
			if err := json.Unmarshal(raw, &bc); err == nil {
				return &bc, nil
			}
			s.log.Warn("Context cache entry unreadable, refetching", "key", cacheKey)
		}
	}

	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s not found", userID)
	}

	persona := s.personas.Get(mode)
	locale := user.Locale
	if locale == "" {
		locale = "en-US"
	}

	fields := map[string]string{
		"User":   user.Name,
		"Role":   user.Role,
		"Region": user.Region,
	}
	for k, v := range persona.Fields {
		fields[k] = v
	}

	bc := &BusinessContext{
		SystemPrompt:      persona.SystemPrompt,
		SuggestionPrompts: persona.SuggestionPrompts,
		Locale:            locale,
		Today:             time.Now().Format("Monday, 2 January 2006"),
		AccessLevel:       user.AccessLevel,
		Fields:            fields,
	}

	if s.cache != nil {
		if raw, err := json.Marshal(bc); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.cacheTTL); err != nil {
				s.log.Warn("Context cache write failed", "error", err)
			}
		}
	}
	return bc, nil
}
