package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

var _ domain.ReminderRepository = (*CachedReminderRepository)(nil)

const reminderListTTL = 30 * time.Minute

// CachedReminderRepository keeps each user's reminder list in Redis.
// Every write for a user drops that user's key; Redis errors fall through to next.
type CachedReminderRepository struct {
	next   domain.ReminderRepository
	cache  *redis.Client
	logger *zap.Logger
}

func NewCachedReminderRepository(next domain.ReminderRepository, cache *redis.Client, logger *zap.Logger) *CachedReminderRepository {
	return &CachedReminderRepository{
		next:   next,
		cache:  cache,
		logger: logger,
	}
}

func (r *CachedReminderRepository) cacheKey(userID string) string {
	return fmt.Sprintf("reminders:%s", userID)
}

func (r *CachedReminderRepository) invalidate(ctx context.Context, userID string) {
	if err := r.cache.Del(ctx, r.cacheKey(userID)).Err(); err != nil {
		r.logger.Warn("cache_invalidate_failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (r *CachedReminderRepository) ListByUserID(ctx context.Context, userID string) ([]*domain.ReminderRule, error) {
	key := r.cacheKey(userID)

	val, err := r.cache.Get(ctx, key).Result()
	if err == nil {
		var rules []*domain.ReminderRule
		if err := json.Unmarshal([]byte(val), &rules); err == nil {
			return rules, nil
		}

		r.logger.Warn("cache_corrupted", zap.String("key", key))
		r.cache.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("cache_read_failed", zap.String("key", key), zap.Error(err))
	}

	rules, err := r.next.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rules); err == nil {
		if setErr := r.cache.Set(ctx, key, data, reminderListTTL).Err(); setErr != nil {
			r.logger.Warn("cache_write_failed", zap.String("key", key), zap.Error(setErr))
		}
	}

	return rules, nil
}

func (r *CachedReminderRepository) GetByID(ctx context.Context, id string) (*domain.ReminderRule, error) {
	return r.next.GetByID(ctx, id)
}

func (r *CachedReminderRepository) GetByPlantAndCareType(ctx context.Context, plantID string, careType domain.CareType) (*domain.ReminderRule, error) {
	return r.next.GetByPlantAndCareType(ctx, plantID, careType)
}

func (r *CachedReminderRepository) ListDueOn(ctx context.Context, day domain.Date) ([]*domain.ReminderRule, error) {
	return r.next.ListDueOn(ctx, day)
}

func (r *CachedReminderRepository) ListByUserIDAndDueRange(ctx context.Context, userID string, from, to domain.Date) ([]*domain.ReminderRule, error) {
	return r.next.ListByUserIDAndDueRange(ctx, userID, from, to)
}

func (r *CachedReminderRepository) Create(ctx context.Context, rule *domain.ReminderRule) error {
	if err := r.next.Create(ctx, rule); err != nil {
		return err
	}
	r.invalidate(ctx, rule.UserID)
	return nil
}

func (r *CachedReminderRepository) Update(ctx context.Context, rule *domain.ReminderRule) error {
	if err := r.next.Update(ctx, rule); err != nil {
		return err
	}
	r.invalidate(ctx, rule.UserID)
	return nil
}

func (r *CachedReminderRepository) Delete(ctx context.Context, id string, userID string) error {
	if err := r.next.Delete(ctx, id, userID); err != nil {
		return err
	}
	r.invalidate(ctx, userID)
	return nil
}

func (r *CachedReminderRepository) AdvanceWithCompletion(ctx context.Context, rule *domain.ReminderRule, occ *domain.TaskOccurrence) error {
	if err := r.next.AdvanceWithCompletion(ctx, rule, occ); err != nil {
		return err
	}
	r.invalidate(ctx, rule.UserID)
	return nil
}
