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
	ErrInvalidConversationID = errors.New("invalid conversation ID: cannot be empty")
)

const (
	// Timeouts
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 10 * time.Second
)

type ConversationRepository interface {
	Create(ctx context.Context, conv *model.Conversation) (*model.Conversation, error)
	FindByID(ctx context.Context, conversationID string) (*model.Conversation, error)
	FindActiveForUser(ctx context.Context, userID string) (*model.Conversation, error)
	List(ctx context.Context, status string, userID string, staff bool, page int64) (*db.PaginatedResult[model.Conversation], error)
	UpsertParticipant(ctx context.Context, conversationID string, p model.Participant) error
	UpdateStatus(ctx context.Context, conversationID string, status string) (*model.Conversation, error)
	TouchLastMessage(ctx context.Context, conversationID string, at time.Time) error
	IsParticipant(ctx context.Context, conversationID string, userID string) (bool, error)
}

type conversationRepository struct {
	mongoRepo *db.Repository[model.Conversation]
	logger    *zap.Logger
}

func NewConversationRepository(repo *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// Create
// -----------------------------------------------------------------------------

func (r *conversationRepository) Create(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.Create(ctx, *conv)
	if err != nil {
		r.logger.Error("failed to insert conversation", zap.Error(err))
		return nil, fmt.Errorf("%w: insert conversation: %v", errs.ErrStoreUnavailable, err)
	}

	created := *conv
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid
	}

	r.logger.Info("conversation created",
		zap.String("conversation_id", created.ID.Hex()),
		zap.String("created_by", created.CreatedBy),
	)
	return &created, nil
}

// -----------------------------------------------------------------------------
// Lookups
// -----------------------------------------------------------------------------

// FindByID returns the conversation or errs.ErrNotFound.
func (r *conversationRepository) FindByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: %v", errs.ErrValidation, ErrInvalidConversationID)
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conv, err := r.mongoRepo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		r.logger.Error("failed to fetch conversation",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: fetch conversation: %v", errs.ErrStoreUnavailable, err)
	}

	return conv, nil
}

// FindActiveForUser returns the user's ACTIVE support conversation, or
// errs.ErrNotFound when the user has none. Used to hand an existing thread
// back instead of opening a duplicate.
func (r *conversationRepository) FindActiveForUser(ctx context.Context, userID string) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("status", model.ConversationActive).
		ElemMatch("participants", bson.M{"user_id": userID, "is_active": true}).
		Build()

	conv, err := r.mongoRepo.FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("%w: find active conversation: %v", errs.ErrStoreUnavailable, err)
	}
	return conv, nil
}

// List returns conversations filtered by status, newest activity first.
// Staff see every conversation; customers only the ones they participate in.
func (r *conversationRepository) List(ctx context.Context, status string, userID string, staff bool, page int64) (*db.PaginatedResult[model.Conversation], error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	fb := db.NewFilter().Eq("status", status)
	if !staff {
		fb.ElemMatch("participants", bson.M{"user_id": userID, "is_active": true})
	}

	result, err := r.mongoRepo.FindWithPagination(ctx, fb.Build(), db.PaginationParams{
		Page:     page,
		PageSize: 20,
		SortBy:   "last_message_at",
		SortDesc: true,
	})
	if err != nil {
		r.logger.Error("failed to list conversations", zap.Error(err))
		return nil, fmt.Errorf("%w: list conversations: %v", errs.ErrStoreUnavailable, err)
	}
	return result, nil
}

// IsParticipant checks active membership without decoding the whole
// document. Used by the room-join authorization callback; any store failure
// propagates so the join fails closed.
func (r *conversationRepository) IsParticipant(ctx context.Context, conversationID string, userID string) (bool, error) {
	if conversationID == "" {
		return false, fmt.Errorf("%w: %v", errs.ErrValidation, ErrInvalidConversationID)
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		ObjectID("_id", conversationID).
		ElemMatch("participants", bson.M{"user_id": userID, "is_active": true}).
		Build()

	ok, err := r.mongoRepo.Exists(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("%w: participant lookup: %v", errs.ErrStoreUnavailable, err)
	}
	return ok, nil
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

// UpsertParticipant adds p to the conversation, or reactivates them if they
// were a participant before. The participant_ids mirror stays in sync for
// cheap membership filters.
func (r *conversationRepository) UpsertParticipant(ctx context.Context, conversationID string, p model.Participant) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// Reactivation path first: flips is_active back on an existing entry.
	reactivate := db.NewFilter().
		ObjectID("_id", conversationID).
		ElemMatch("participants", bson.M{"user_id": p.UserID}).
		Build()

	res, err := r.mongoRepo.UpdateRaw(ctx, reactivate, bson.M{
		"$set": bson.M{
			"participants.$.is_active": true,
			"participants.$.joined_at": p.JoinedAt,
			"updated_at":               time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: reactivate participant: %v", errs.ErrStoreUnavailable, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	insert := db.NewFilter().ObjectID("_id", conversationID).Build()
	res, err = r.mongoRepo.UpdateRaw(ctx, insert, bson.M{
		"$push":     bson.M{"participants": p},
		"$addToSet": bson.M{"participant_ids": p.UserID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("%w: add participant: %v", errs.ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}

	r.logger.Info("participant added",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", p.UserID),
		zap.String("role", string(p.Role)),
	)
	return nil
}

func (r *conversationRepository) UpdateStatus(ctx context.Context, conversationID string, status string) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	res, err := r.mongoRepo.UpdateByID(ctx, conversationID, bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		r.logger.Error("failed to update conversation status",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: update status: %v", errs.ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return nil, errs.ErrNotFound
	}

	return r.FindByID(ctx, conversationID)
}

func (r *conversationRepository) TouchLastMessage(ctx context.Context, conversationID string, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.mongoRepo.UpdateByID(ctx, conversationID, bson.M{
		"last_message_at": at,
		"updated_at":      at,
	})
	if err != nil {
		return fmt.Errorf("%w: touch last message: %v", errs.ErrStoreUnavailable, err)
	}
	return nil
}

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
