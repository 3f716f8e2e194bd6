package repo

import (
	"context"
	"fmt"

	"Kaupa/internal/errs"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// UnreadRepository keeps the per-user unread-message badge counter in Redis.
// The counter is derived state: incremented when a message lands for a
// recipient, decremented when the recipient marks a conversation read, and
// clamped at zero.
type UnreadRepository interface {
	Increment(ctx context.Context, userID string) (int64, error)
	Decrement(ctx context.Context, userID string, n int64) (int64, error)
	Get(ctx context.Context, userID string) (int64, error)
}

type unreadRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewUnreadRepository(client *redis.Client, logger *zap.Logger) UnreadRepository {
	return &unreadRepository{
		client: client,
		logger: logger,
	}
}

func unreadKey(userID string) string {
	return "unread:" + userID
}

func (u *unreadRepository) Increment(ctx context.Context, userID string) (int64, error) {
	count, err := u.client.Incr(ctx, unreadKey(userID)).Result()
	if err != nil {
		u.logger.Error("failed to increment unread counter",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return 0, fmt.Errorf("%w: increment unread: %v", errs.ErrStoreUnavailable, err)
	}
	return count, nil
}

// Decrement subtracts n and clamps at zero. The clamp handles counters that
// drifted below zero (e.g. a mark-read racing a badge rebuild); a stale zero
// self-heals on the next increment.
func (u *unreadRepository) Decrement(ctx context.Context, userID string, n int64) (int64, error) {
	if n <= 0 {
		return u.Get(ctx, userID)
	}

	key := unreadKey(userID)
	count, err := u.client.DecrBy(ctx, key, n).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: decrement unread: %v", errs.ErrStoreUnavailable, err)
	}
	if count < 0 {
		if err := u.client.Set(ctx, key, 0, 0).Err(); err != nil {
			return 0, fmt.Errorf("%w: clamp unread: %v", errs.ErrStoreUnavailable, err)
		}
		count = 0
	}
	return count, nil
}

func (u *unreadRepository) Get(ctx context.Context, userID string) (int64, error) {
	count, err := u.client.Get(ctx, unreadKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: get unread: %v", errs.ErrStoreUnavailable, err)
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}
