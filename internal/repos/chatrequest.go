package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tekvare/erp-ai-worker/internal/logger"
	"github.com/tekvare/erp-ai-worker/internal/types"
)

type ChatRequestRepo interface {
	// ClaimNext atomically selects one claimable request for the given
	// processor tag and marks it processing, owned by lockOwner. Returns
	// nil when the queue is empty.
	ClaimNext(ctx context.Context, tx *gorm.DB, processorTag, lockOwner string, staleAfter time.Duration) (*types.ChatRequest, error)
	// Complete finalizes a processing request. The update is guarded by the
	// lock owner: a stale owner's call matches zero rows and is a no-op.
	Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID, lockOwner string, latencyMs int64, modelUsed, processedBy string) error
	// Fail records a terminal failure with the error message. Guarded like
	// Complete: a worker whose lock was taken over cannot overwrite the
	// outcome written by the current holder.
	Fail(ctx context.Context, tx *gorm.DB, id uuid.UUID, lockOwner, errMsg string) error
	CountByStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error)
}

type chatRequestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatRequestRepo(db *gorm.DB, baseLog *logger.Logger) ChatRequestRepo {
	return &chatRequestRepo{
		db:  db,
		log: baseLog.With("repo", "ChatRequestRepo"),
	}
}

func (r *chatRequestRepo) ClaimNext(ctx context.Context, tx *gorm.DB, processorTag, lockOwner string, staleAfter time.Duration) (*types.ChatRequest, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	staleCutoff := now.Add(-staleAfter)
	var claimed *types.ChatRequest
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var req types.ChatRequest
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
				processor_tag = ?
				AND (
					status = ?
					OR (
						status = ?
						AND locked_at IS NOT NULL
						AND locked_at < ?
					)
				)
			`, processorTag, types.ChatRequestStatusPending, types.ChatRequestStatusProcessing, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&req).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.ChatRequest{}).
			Where("id = ?", req.ID).
			Updates(map[string]interface{}{
				"status":     types.ChatRequestStatusProcessing,
				"locked_by":  lockOwner,
				"locked_at":  now,
				"updated_at": now,
			}).Error
		if uErr != nil {
			return uErr
		}
		req.Status = types.ChatRequestStatusProcessing
		req.LockedBy = &lockOwner
		req.LockedAt = &now
		claimed = &req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *chatRequestRepo) Complete(ctx context.Context, tx *gorm.DB, id uuid.UUID, lockOwner string, latencyMs int64, modelUsed, processedBy string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.ChatRequest{}).
		Where("id = ? AND status = ? AND locked_by = ?", id, types.ChatRequestStatusProcessing, lockOwner).
		Updates(map[string]interface{}{
			"status":       types.ChatRequestStatusCompleted,
			"latency_ms":   latencyMs,
			"model_used":   modelUsed,
			"processed_by": processedBy,
			"locked_at":    nil,
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Lock stolen or already finalized elsewhere. Intentionally silent.
		r.log.Warn("Complete matched no rows", "request_id", id, "lock_owner", lockOwner)
	}
	return nil
}

func (r *chatRequestRepo) Fail(ctx context.Context, tx *gorm.DB, id uuid.UUID, lockOwner, errMsg string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	res := transaction.WithContext(ctx).
		Model(&types.ChatRequest{}).
		Where("id = ? AND status = ? AND locked_by = ?", id, types.ChatRequestStatusProcessing, lockOwner).
		Updates(map[string]interface{}{
			"status":     types.ChatRequestStatusFailed,
			"error":      errMsg,
			"locked_at":  nil,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		r.log.Warn("Fail matched no rows", "request_id", id, "lock_owner", lockOwner)
	}
	return nil
}

func (r *chatRequestRepo) CountByStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := transaction.WithContext(ctx).
		Model(&types.ChatRequest{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, rr := range rows {
		out[rr.Status] = rr.N
	}
	return out, nil
}
