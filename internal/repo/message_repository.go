package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Kaupa/internal/db"
	"Kaupa/internal/errs"
	"Kaupa/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrInvalidMessage = errors.New("invalid message: message cannot be nil")
)

const (
	// Retry configuration for transient store failures
	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second
)

type MessageRepository interface {
	// NextSeq returns the next strictly-increasing sequence number for the
	// conversation. The counter is allocated atomically by the store.
	NextSeq(ctx context.Context, conversationID string) (int64, error)
	Insert(ctx context.Context, msg *model.Message) (*model.Message, error)
	// MarkRead flips is_read on every unread message in the conversation not
	// sent by readerID and returns the ids that were updated. A second call
	// with no new messages in between updates nothing and returns an empty
	// slice.
	MarkRead(ctx context.Context, conversationID string, readerID string, at time.Time) ([]string, error)
	ListByConversation(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error)
}

type messageRepository struct {
	mongoRepo   *db.Repository[model.Message]
	counterRepo *db.Repository[bson.M]
	logger      *zap.Logger
}

func NewMessageRepository(repo *db.Repository[model.Message], counters *db.Repository[bson.M], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo:   repo,
		counterRepo: counters,
		logger:      logger,
	}
}

// -----------------------------------------------------------------------------
// NextSeq
// -----------------------------------------------------------------------------

func (m *messageRepository) NextSeq(ctx context.Context, conversationID string) (int64, error) {
	if conversationID == "" {
		return 0, fmt.Errorf("%w: %v", errs.ErrValidation, ErrInvalidConversationID)
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("_id", "conversation:"+conversationID).Build()
	seq, err := m.counterRepo.IncrementCounter(ctx, filter, "seq")
	if err != nil {
		m.logger.Error("failed to allocate message sequence",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return 0, fmt.Errorf("%w: allocate sequence: %v", errs.ErrStoreUnavailable, err)
	}
	return seq, nil
}

// -----------------------------------------------------------------------------
// Insert
// -----------------------------------------------------------------------------

func (m *messageRepository) Insert(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, ErrInvalidMessage)
	}
	if msg.ConversationID.IsZero() {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, ErrInvalidConversationID)
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
			}
		}

		result, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			inserted := *msg
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				inserted.ID = oid
			}

			m.logger.Info("message inserted",
				zap.String("message_id", inserted.MessageID),
				zap.String("conversation_id", inserted.ConversationID.Hex()),
				zap.Int64("seq", inserted.Seq),
				zap.Int("attempt", attempt+1),
			)
			return &inserted, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("conversation_id", msg.ConversationID.Hex()),
	)
	return nil, fmt.Errorf("%w: insert message: %v", errs.ErrStoreUnavailable, lastErr)
}

// -----------------------------------------------------------------------------
// MarkRead
// -----------------------------------------------------------------------------

func (m *messageRepository) MarkRead(ctx context.Context, conversationID string, readerID string, at time.Time) ([]string, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, ErrInvalidConversationID)
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	unread := db.NewFilter().
		ObjectID("conversation_id", conversationID).
		Eq("is_read", false).
		Ne("sender_id", readerID).
		Build()

	// Collect ids first so the read-receipt event names exactly the messages
	// flipped here, then update by id. New messages appended concurrently are
	// untouched; the read flag lives in its own fields, so this never races
	// with inserts on the same conversation.
	docs, err := m.mongoRepo.FindAll(ctx, unread, bson.D{{Key: "seq", Value: 1}})
	if err != nil {
		return nil, fmt.Errorf("%w: find unread: %v", errs.ErrStoreUnavailable, err)
	}
	if len(docs) == 0 {
		return []string{}, nil
	}

	ids := make([]primitive.ObjectID, 0, len(docs))
	messageIDs := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
		messageIDs = append(messageIDs, d.MessageID)
	}

	byID := db.NewFilter().In("_id", ids).Build()
	res, err := m.mongoRepo.UpdateMany(ctx, byID, bson.M{
		"is_read": true,
		"read_at": at,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: mark read: %v", errs.ErrStoreUnavailable, err)
	}

	m.logger.Debug("messages marked read",
		zap.String("conversation_id", conversationID),
		zap.String("reader_id", readerID),
		zap.Int64("updated", res.ModifiedCount),
	)
	return messageIDs, nil
}

// -----------------------------------------------------------------------------
// ListByConversation
// -----------------------------------------------------------------------------

func (m *messageRepository) ListByConversation(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, ErrInvalidConversationID)
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("conversation_id", conversationID).Build()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
			}
			m.logger.Warn("retrying message list",
				zap.String("conversation_id", conversationID),
				zap.Int("attempt", attempt+1),
			)
		}

		result, err := m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
			Page:     page,
			PageSize: 50,
			SortBy:   "seq",
			SortDesc: false,
		})
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	m.logger.Error("failed to list messages",
		zap.Error(lastErr),
		zap.String("conversation_id", conversationID),
	)
	return nil, fmt.Errorf("%w: list messages: %v", errs.ErrStoreUnavailable, lastErr)
}

// -----------------------------------------------------------------------------
// Private Helpers
// -----------------------------------------------------------------------------

func waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are not retryable
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}

	return false
}
