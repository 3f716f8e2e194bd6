package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"Kaupa/internal/db"
	"Kaupa/internal/errs"
	"Kaupa/internal/event"
	"Kaupa/internal/hub"
	"Kaupa/internal/model"
	"Kaupa/internal/repo"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// RoomPublisher is the slice of the hub the chat service needs: fire-and-
// forget fan-out to a room's current members.
type RoomPublisher interface {
	Publish(key hub.RoomKey, ev event.WsEvent)
}

// ParticipantInput names one member of a new conversation.
type ParticipantInput struct {
	UserID string     `json:"userId" validate:"required"`
	Role   model.Role `json:"role" validate:"required"`
}

// CreateConversationInput is the request body for opening a conversation.
type CreateConversationInput struct {
	Title        string             `json:"title"`
	Participants []ParticipantInput `json:"participants" validate:"required,min=1,dive"`
}

// AppendMessageInput is the request body for sending a message.
type AppendMessageInput struct {
	Content     string `json:"content" validate:"required,max=4000"`
	MessageType string `json:"messageType"`
}

// ChatService implements the durable conversation operations: open, append,
// mark read, status transitions, listing. Every mutation persists first and
// publishes after, so a delivered event always describes stored state.
type ChatService struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	unread        repo.UnreadRepository
	publisher     RoomPublisher
	logger        *zap.Logger

	// per-conversation append lock; serializes seq allocation, insert and
	// publish so broadcast order matches seq order within a conversation.
	// Entries are reference-counted and evicted once the last holder
	// releases, so the map tracks only conversations with appends in flight.
	mu    sync.Mutex
	locks map[string]*convLock
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

func NewChatService(
	conversations repo.ConversationRepository,
	messages repo.MessageRepository,
	unread repo.UnreadRepository,
	publisher RoomPublisher,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		unread:        unread,
		publisher:     publisher,
		logger:        logger,
		locks:         make(map[string]*convLock),
	}
}

// lockConversation acquires the conversation's append lock and returns its
// release func.
func (s *ChatService) lockConversation(conversationID string) func() {
	s.mu.Lock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &convLock{}
		s.locks[conversationID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, conversationID)
		}
		s.mu.Unlock()
	}
}

// -----------------------------------------------------------------------------
// CreateConversation
// -----------------------------------------------------------------------------

// CreateConversation opens a support thread. A customer who already has an
// ACTIVE conversation gets that one back instead of a duplicate; staff always
// open a fresh thread. The creator must be among the participants.
func (s *ChatService) CreateConversation(ctx context.Context, creator model.Identity, in CreateConversationInput) (*model.Conversation, error) {
	if len(in.Participants) == 0 {
		return nil, fmt.Errorf("%w: at least one participant required", errs.ErrValidation)
	}

	included := lo.ContainsBy(in.Participants, func(p ParticipantInput) bool {
		return p.UserID == creator.UserID
	})
	if !included {
		return nil, fmt.Errorf("%w: creator must be a participant", errs.ErrValidation)
	}
	for _, p := range in.Participants {
		if p.UserID == "" || !model.ValidRole(p.Role) {
			return nil, fmt.Errorf("%w: participant needs a user id and a known role", errs.ErrValidation)
		}
	}

	if creator.Role == model.RoleCustomer {
		existing, err := s.conversations.FindActiveForUser(ctx, creator.UserID)
		if err == nil {
			s.logger.Info("reusing active conversation",
				zap.String("conversation_id", existing.ID.Hex()),
				zap.String("user_id", creator.UserID),
			)
			return existing, nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
	}

	now := time.Now().UTC()
	participants := lo.Map(in.Participants, func(p ParticipantInput, _ int) model.Participant {
		return model.Participant{
			UserID:   p.UserID,
			Role:     p.Role,
			JoinedAt: now,
			IsActive: true,
		}
	})

	conv := &model.Conversation{
		Title:        in.Title,
		Status:       model.ConversationActive,
		Participants: participants,
		ParticipantIDs: lo.Uniq(lo.Map(participants, func(p model.Participant, _ int) string {
			return p.UserID
		})),
		CreatedBy:     creator.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}

	created, err := s.conversations.Create(ctx, conv)
	if err != nil {
		return nil, err
	}

	ev := event.MustNew(event.EventConversationUpdated, event.ConversationUpdatedPayload{Conversation: *created})
	for _, p := range created.Participants {
		s.publisher.Publish(hub.UserRoom(p.UserID), ev)
	}
	s.publisher.Publish(hub.AdminRoom, ev)

	return created, nil
}

// -----------------------------------------------------------------------------
// AppendMessage
// -----------------------------------------------------------------------------

// AppendMessage persists a message and fans it out. Sequence allocation,
// insert and publish run under the conversation's lock, so seq order and
// broadcast order agree. Staff sending into a conversation they are not yet
// in are joined first; customers are rejected.
func (s *ChatService) AppendMessage(ctx context.Context, sender model.Identity, conversationID string, in AppendMessageInput) (*model.Message, error) {
	if in.Content == "" {
		return nil, fmt.Errorf("%w: message content is empty", errs.ErrValidation)
	}

	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Status != model.ConversationActive {
		return nil, fmt.Errorf("%w: conversation is %s", errs.ErrValidation, conv.Status)
	}

	if !conv.HasParticipant(sender.UserID) {
		if !sender.IsStaff() {
			return nil, fmt.Errorf("%w: sender is not a participant", errs.ErrForbidden)
		}

		// staff joining a thread by answering it
		p := model.Participant{
			UserID:   sender.UserID,
			Role:     sender.Role,
			JoinedAt: time.Now().UTC(),
			IsActive: true,
		}
		if err := s.conversations.UpsertParticipant(ctx, conversationID, p); err != nil {
			return nil, err
		}
		conv.Participants = append(conv.Participants, p)
	}

	msgType := in.MessageType
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	if msgType != model.MessageTypeText && msgType != model.MessageTypeSystem {
		return nil, fmt.Errorf("%w: unknown message type %q", errs.ErrValidation, msgType)
	}

	unlock := s.lockConversation(conversationID)
	defer unlock()

	msg, err := s.appendLocked(ctx, conv, sender, in.Content, msgType)
	if err != nil {
		return nil, err
	}

	s.notifyParticipants(ctx, conv, sender, msg)
	return msg, nil
}

// appendLocked allocates the next seq, persists the message, touches the
// conversation, and broadcasts into the conversation room. Caller holds the
// conversation lock.
func (s *ChatService) appendLocked(ctx context.Context, conv *model.Conversation, sender model.Identity, content, msgType string) (*model.Message, error) {
	conversationID := conv.ID.Hex()

	seq, err := s.messages.NextSeq(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg, err := s.messages.Insert(ctx, &model.Message{
		MessageID:      uuid.New().String(),
		ConversationID: conv.ID,
		Seq:            seq,
		SenderID:       sender.UserID,
		SenderRole:     sender.Role,
		Content:        content,
		MessageType:    msgType,
		CreatedAt:      now,
		IsRead:         false,
	})
	if err != nil {
		// the seq is burned; gaps are fine, regressions are not
		return nil, err
	}

	if err := s.conversations.TouchLastMessage(ctx, conversationID, now); err != nil {
		s.logger.Warn("failed to touch conversation activity",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}

	s.publisher.Publish(hub.ConversationRoom(conversationID), event.MustNew(event.EventNewMessage, event.NewMessagePayload{
		ConversationID: conversationID,
		Message:        *msg,
	}))

	return msg, nil
}

// notifyParticipants delivers the lightweight copy to every other active
// participant's personal room with their fresh badge count, and alerts the
// back office when a customer wrote.
func (s *ChatService) notifyParticipants(ctx context.Context, conv *model.Conversation, sender model.Identity, msg *model.Message) {
	conversationID := conv.ID.Hex()

	for _, p := range conv.Participants {
		if p.UserID == sender.UserID || !p.IsActive {
			continue
		}

		count, err := s.unread.Increment(ctx, p.UserID)
		if err != nil {
			s.logger.Warn("unread increment failed",
				zap.String("user_id", p.UserID),
				zap.Error(err),
			)
		}

		s.publisher.Publish(hub.UserRoom(p.UserID), event.MustNew(event.EventChatNotification, event.ChatNotificationPayload{
			ConversationID: conversationID,
			Message:        *msg,
			UnreadCount:    count,
		}))
	}

	if sender.Role == model.RoleCustomer {
		s.publisher.Publish(hub.AdminRoom, event.MustNew(event.EventNewCustomerMessage, event.NewMessagePayload{
			ConversationID: conversationID,
			Message:        *msg,
		}))
	}
}

// -----------------------------------------------------------------------------
// JoinConversation
// -----------------------------------------------------------------------------

// JoinConversation adds a staff member to a thread, reactivating them if they
// left before. Customers never join threads they were not opened into.
func (s *ChatService) JoinConversation(ctx context.Context, actor model.Identity, conversationID string) (*model.Conversation, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff join conversations", errs.ErrForbidden)
	}

	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if !conv.HasParticipant(actor.UserID) {
		p := model.Participant{
			UserID:   actor.UserID,
			Role:     actor.Role,
			JoinedAt: time.Now().UTC(),
			IsActive: true,
		}
		if err := s.conversations.UpsertParticipant(ctx, conversationID, p); err != nil {
			return nil, err
		}

		conv, err = s.conversations.FindByID(ctx, conversationID)
		if err != nil {
			return nil, err
		}

		s.publisher.Publish(hub.ConversationRoom(conversationID), event.MustNew(event.EventConversationUpdated, event.ConversationUpdatedPayload{
			Conversation: *conv,
		}))
	}

	return conv, nil
}

// -----------------------------------------------------------------------------
// MarkRead
// -----------------------------------------------------------------------------

// MarkRead flips every unread message the reader did not send, announces the
// receipt into the conversation room, and settles the reader's badge counter.
// Calling it again with nothing unread is a no-op.
func (s *ChatService) MarkRead(ctx context.Context, reader model.Identity, conversationID string) ([]string, error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(reader.UserID) && !reader.IsStaff() {
		return nil, fmt.Errorf("%w: reader is not a participant", errs.ErrForbidden)
	}

	readAt := time.Now().UTC()
	messageIDs, err := s.messages.MarkRead(ctx, conversationID, reader.UserID, readAt)
	if err != nil {
		return nil, err
	}
	if len(messageIDs) == 0 {
		return messageIDs, nil
	}

	s.publisher.Publish(hub.ConversationRoom(conversationID), event.MustNew(event.EventMessageRead, event.MessagesReadPayload{
		ConversationID: conversationID,
		MessageIDs:     messageIDs,
		ReaderID:       reader.UserID,
		ReadAt:         readAt,
	}))

	if _, err := s.unread.Decrement(ctx, reader.UserID, int64(len(messageIDs))); err != nil {
		s.logger.Warn("unread decrement failed",
			zap.String("user_id", reader.UserID),
			zap.Error(err),
		)
	}

	return messageIDs, nil
}

// -----------------------------------------------------------------------------
// UpdateStatus
// -----------------------------------------------------------------------------

// UpdateStatus moves a conversation through its lifecycle. Staff only.
// RESOLVED and ARCHIVED never exchange directly; a reopened thread goes back
// through ACTIVE. The transition leaves a system message in the thread and is
// announced to the room and the back office.
func (s *ChatService) UpdateStatus(ctx context.Context, actor model.Identity, conversationID string, status string) (*model.Conversation, error) {
	if !actor.IsStaff() {
		return nil, fmt.Errorf("%w: only staff change conversation status", errs.ErrForbidden)
	}
	if !model.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", errs.ErrValidation, status)
	}

	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !model.ValidTransition(conv.Status, status) {
		return nil, fmt.Errorf("%w: cannot move %s to %s", errs.ErrValidation, conv.Status, status)
	}

	updated, err := s.conversations.UpdateStatus(ctx, conversationID, status)
	if err != nil {
		return nil, err
	}

	unlock := s.lockConversation(conversationID)
	if _, err := s.appendLocked(ctx, updated, actor, fmt.Sprintf("Conversation marked %s", status), model.MessageTypeSystem); err != nil {
		s.logger.Warn("failed to record status change message",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}
	unlock()

	ev := event.MustNew(event.EventConversationUpdated, event.ConversationUpdatedPayload{Conversation: *updated})
	s.publisher.Publish(hub.ConversationRoom(conversationID), ev)
	s.publisher.Publish(hub.AdminRoom, ev)

	return updated, nil
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// ListConversations pages conversations by status, most recent activity
// first. Staff see all threads; customers only their own.
func (s *ChatService) ListConversations(ctx context.Context, actor model.Identity, status string, page int64) (*db.PaginatedResult[model.Conversation], error) {
	if status == "" {
		status = model.ConversationActive
	}
	if !model.ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", errs.ErrValidation, status)
	}
	if page < 1 {
		page = 1
	}
	return s.conversations.List(ctx, status, actor.UserID, actor.IsStaff(), page)
}

// ListMessages pages a conversation's history in seq order. Fetching history
// doubles as reading it: the reader's unread messages are marked read.
func (s *ChatService) ListMessages(ctx context.Context, actor model.Identity, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	conv, err := s.conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(actor.UserID) && !actor.IsStaff() {
		return nil, fmt.Errorf("%w: not a participant", errs.ErrForbidden)
	}

	if page < 1 {
		page = 1
	}
	result, err := s.messages.ListByConversation(ctx, conversationID, page)
	if err != nil {
		return nil, err
	}

	if _, err := s.MarkRead(ctx, actor, conversationID); err != nil {
		s.logger.Warn("mark-read on history fetch failed",
			zap.String("conversation_id", conversationID),
			zap.String("user_id", actor.UserID),
			zap.Error(err),
		)
	}

	return result, nil
}

// GetUnreadCount returns the user's badge counter.
func (s *ChatService) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.unread.Get(ctx, userID)
}
