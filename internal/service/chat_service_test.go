package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"Kaupa/internal/db"
	"Kaupa/internal/errs"
	"Kaupa/internal/event"
	"Kaupa/internal/hub"
	"Kaupa/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// -----------------------------------------------------------------------------
// Mocks
// -----------------------------------------------------------------------------

type mockConversationRepo struct{ mock.Mock }

func (m *mockConversationRepo) Create(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	args := m.Called(ctx, conv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) FindByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) FindActiveForUser(ctx context.Context, userID string) (*model.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) List(ctx context.Context, status string, userID string, staff bool, page int64) (*db.PaginatedResult[model.Conversation], error) {
	args := m.Called(ctx, status, userID, staff, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.PaginatedResult[model.Conversation]), args.Error(1)
}

func (m *mockConversationRepo) UpsertParticipant(ctx context.Context, conversationID string, p model.Participant) error {
	return m.Called(ctx, conversationID, p).Error(0)
}

func (m *mockConversationRepo) UpdateStatus(ctx context.Context, conversationID string, status string) (*model.Conversation, error) {
	args := m.Called(ctx, conversationID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) TouchLastMessage(ctx context.Context, conversationID string, at time.Time) error {
	return m.Called(ctx, conversationID, at).Error(0)
}

func (m *mockConversationRepo) IsParticipant(ctx context.Context, conversationID string, userID string) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

type mockMessageRepo struct{ mock.Mock }

func (m *mockMessageRepo) NextSeq(ctx context.Context, conversationID string) (int64, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockMessageRepo) Insert(ctx context.Context, msg *model.Message) (*model.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) MarkRead(ctx context.Context, conversationID string, readerID string, at time.Time) ([]string, error) {
	args := m.Called(ctx, conversationID, readerID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockMessageRepo) ListByConversation(ctx context.Context, conversationID string, page int64) (*db.PaginatedResult[model.Message], error) {
	args := m.Called(ctx, conversationID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.PaginatedResult[model.Message]), args.Error(1)
}

type mockUnreadRepo struct{ mock.Mock }

func (m *mockUnreadRepo) Increment(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUnreadRepo) Decrement(ctx context.Context, userID string, n int64) (int64, error) {
	args := m.Called(ctx, userID, n)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUnreadRepo) Get(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// publishRecord captures one fan-out in arrival order.
type publishRecord struct {
	key hub.RoomKey
	ev  event.WsEvent
}

type recordingPublisher struct {
	mu      sync.Mutex
	records []publishRecord
	onFirst func() // invoked once on the first publish, for ordering checks
	fired   bool
}

func (p *recordingPublisher) Publish(key hub.RoomKey, ev event.WsEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.fired && p.onFirst != nil {
		p.fired = true
		p.onFirst()
	}
	p.records = append(p.records, publishRecord{key: key, ev: ev})
}

func (p *recordingPublisher) all() []publishRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishRecord(nil), p.records...)
}

func (p *recordingPublisher) byEvent(name string) []publishRecord {
	var out []publishRecord
	for _, r := range p.all() {
		if r.ev.Event == name {
			out = append(out, r)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Fixtures
// -----------------------------------------------------------------------------

type chatFixture struct {
	conversations *mockConversationRepo
	messages      *mockMessageRepo
	unread        *mockUnreadRepo
	publisher     *recordingPublisher
	svc           *ChatService
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		conversations: &mockConversationRepo{},
		messages:      &mockMessageRepo{},
		unread:        &mockUnreadRepo{},
		publisher:     &recordingPublisher{},
	}
	f.svc = NewChatService(f.conversations, f.messages, f.unread, f.publisher, zap.NewNop())
	return f
}

func activeConversation(participants ...model.Participant) *model.Conversation {
	return &model.Conversation{
		ID:           primitive.NewObjectID(),
		Status:       model.ConversationActive,
		Participants: participants,
	}
}

func participant(userID string, role model.Role) model.Participant {
	return model.Participant{UserID: userID, Role: role, JoinedAt: time.Now().UTC(), IsActive: true}
}

var (
	customer = model.Identity{UserID: "u1", Role: model.RoleCustomer}
	admin    = model.Identity{UserID: "a1", Role: model.RoleAdmin}
)

// -----------------------------------------------------------------------------
// AppendMessage
// -----------------------------------------------------------------------------

func TestAppendMessagePersistsBeforePublish(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer), participant("a1", model.RoleAdmin))
	convID := conv.ID.Hex()

	var inserted bool
	f.publisher.onFirst = func() {
		assert.True(t, inserted, "publish happened before the message was stored")
	}

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)
	f.messages.On("NextSeq", mock.Anything, convID).Return(int64(7), nil)
	f.messages.On("Insert", mock.Anything, mock.AnythingOfType("*model.Message")).
		Run(func(args mock.Arguments) { inserted = true }).
		Return(&model.Message{
			MessageID:      "m1",
			ConversationID: conv.ID,
			Seq:            7,
			SenderID:       "u1",
			SenderRole:     model.RoleCustomer,
			Content:        "hello",
			MessageType:    model.MessageTypeText,
		}, nil)
	f.conversations.On("TouchLastMessage", mock.Anything, convID, mock.Anything).Return(nil)
	f.unread.On("Increment", mock.Anything, "a1").Return(int64(3), nil)

	msg, err := f.svc.AppendMessage(context.Background(), customer, convID, AppendMessageInput{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), msg.Seq)

	newMessages := f.publisher.byEvent(event.EventNewMessage)
	require.Len(t, newMessages, 1)
	assert.Equal(t, hub.ConversationRoom(convID), newMessages[0].key)

	notifications := f.publisher.byEvent(event.EventChatNotification)
	require.Len(t, notifications, 1)
	assert.Equal(t, hub.UserRoom("a1"), notifications[0].key)

	var notif event.ChatNotificationPayload
	require.NoError(t, json.Unmarshal(notifications[0].ev.Payload, &notif))
	assert.Equal(t, int64(3), notif.UnreadCount)

	// a customer message also pings the back office
	customerAlerts := f.publisher.byEvent(event.EventNewCustomerMessage)
	require.Len(t, customerAlerts, 1)
	assert.Equal(t, hub.AdminRoom, customerAlerts[0].key)
}

func TestAppendMessageStaffDoesNotAlertAdmins(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer), participant("a1", model.RoleAdmin))
	convID := conv.ID.Hex()

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)
	f.messages.On("NextSeq", mock.Anything, convID).Return(int64(8), nil)
	f.messages.On("Insert", mock.Anything, mock.Anything).Return(&model.Message{Seq: 8, SenderID: "a1"}, nil)
	f.conversations.On("TouchLastMessage", mock.Anything, convID, mock.Anything).Return(nil)
	f.unread.On("Increment", mock.Anything, "u1").Return(int64(1), nil)

	_, err := f.svc.AppendMessage(context.Background(), admin, convID, AppendMessageInput{Content: "how can I help"})
	require.NoError(t, err)

	assert.Empty(t, f.publisher.byEvent(event.EventNewCustomerMessage))
	require.Len(t, f.publisher.byEvent(event.EventChatNotification), 1)
}

func TestAppendMessageNonParticipantCustomerForbidden(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u2", model.RoleCustomer))
	convID := conv.ID.Hex()

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)

	_, err := f.svc.AppendMessage(context.Background(), customer, convID, AppendMessageInput{Content: "hi"})
	assert.ErrorIs(t, err, errs.ErrForbidden)
	assert.Empty(t, f.publisher.all(), "nothing is published on a rejected append")
}

func TestAppendMessageStaffAutoJoins(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer))
	convID := conv.ID.Hex()

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)
	f.conversations.On("UpsertParticipant", mock.Anything, convID, mock.MatchedBy(func(p model.Participant) bool {
		return p.UserID == "a1" && p.Role == model.RoleAdmin && p.IsActive
	})).Return(nil)
	f.messages.On("NextSeq", mock.Anything, convID).Return(int64(1), nil)
	f.messages.On("Insert", mock.Anything, mock.Anything).Return(&model.Message{Seq: 1, SenderID: "a1"}, nil)
	f.conversations.On("TouchLastMessage", mock.Anything, convID, mock.Anything).Return(nil)
	f.unread.On("Increment", mock.Anything, "u1").Return(int64(1), nil)

	_, err := f.svc.AppendMessage(context.Background(), admin, convID, AppendMessageInput{Content: "joining in"})
	require.NoError(t, err)
	f.conversations.AssertCalled(t, "UpsertParticipant", mock.Anything, convID, mock.Anything)
}

func TestAppendMessageRejectedWhenNotActive(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer))
	conv.Status = model.ConversationResolved
	convID := conv.ID.Hex()

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)

	_, err := f.svc.AppendMessage(context.Background(), customer, convID, AppendMessageInput{Content: "hi"})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestAppendMessageUnknownConversation(t *testing.T) {
	f := newChatFixture()
	f.conversations.On("FindByID", mock.Anything, "missing").Return(nil, errs.ErrNotFound)

	_, err := f.svc.AppendMessage(context.Background(), customer, "missing", AppendMessageInput{Content: "hi"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAppendMessageStoreFailurePublishesNothing(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer), participant("a1", model.RoleAdmin))
	convID := conv.ID.Hex()

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)
	f.messages.On("NextSeq", mock.Anything, convID).Return(int64(9), nil)
	f.messages.On("Insert", mock.Anything, mock.Anything).Return(nil, errs.ErrStoreUnavailable)

	_, err := f.svc.AppendMessage(context.Background(), customer, convID, AppendMessageInput{Content: "hi"})
	assert.ErrorIs(t, err, errs.ErrStoreUnavailable)
	assert.Empty(t, f.publisher.all())
	f.unread.AssertNotCalled(t, "Increment", mock.Anything, mock.Anything)
}

// -----------------------------------------------------------------------------
// MarkRead
// -----------------------------------------------------------------------------

func TestMarkReadPublishesReceiptAndSettlesBadge(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer), participant("a1", model.RoleAdmin))
	convID := conv.ID.Hex()

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)
	f.messages.On("MarkRead", mock.Anything, convID, "u1", mock.Anything).Return([]string{"m1", "m2"}, nil)
	f.unread.On("Decrement", mock.Anything, "u1", int64(2)).Return(int64(0), nil)

	ids, err := f.svc.MarkRead(context.Background(), customer, convID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)

	receipts := f.publisher.byEvent(event.EventMessageRead)
	require.Len(t, receipts, 1)
	assert.Equal(t, hub.ConversationRoom(convID), receipts[0].key)

	var payload event.MessagesReadPayload
	require.NoError(t, json.Unmarshal(receipts[0].ev.Payload, &payload))
	assert.Equal(t, []string{"m1", "m2"}, payload.MessageIDs)
	assert.Equal(t, "u1", payload.ReaderID)
}

func TestMarkReadIdempotent(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer))
	convID := conv.ID.Hex()

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)
	f.messages.On("MarkRead", mock.Anything, convID, "u1", mock.Anything).Return([]string{}, nil)

	ids, err := f.svc.MarkRead(context.Background(), customer, convID)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, f.publisher.all(), "no receipt when nothing was unread")
	f.unread.AssertNotCalled(t, "Decrement", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadNonParticipantForbidden(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u2", model.RoleCustomer))
	convID := conv.ID.Hex()

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)

	_, err := f.svc.MarkRead(context.Background(), customer, convID)
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestConversationLocksEvictedAfterAppend(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer), participant("a1", model.RoleAdmin))
	convID := conv.ID.Hex()

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)
	f.messages.On("NextSeq", mock.Anything, convID).Return(int64(1), nil)
	f.messages.On("Insert", mock.Anything, mock.Anything).Return(&model.Message{Seq: 1, SenderID: "u1"}, nil)
	f.conversations.On("TouchLastMessage", mock.Anything, convID, mock.Anything).Return(nil)
	f.unread.On("Increment", mock.Anything, "a1").Return(int64(1), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AppendMessage(context.Background(), customer, convID, AppendMessageInput{Content: "hello"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	f.svc.mu.Lock()
	defer f.svc.mu.Unlock()
	assert.Empty(t, f.svc.locks, "append locks must not outlive the appends")
}

// -----------------------------------------------------------------------------
// JoinConversation
// -----------------------------------------------------------------------------

func TestJoinConversationStaffOnly(t *testing.T) {
	f := newChatFixture()

	_, err := f.svc.JoinConversation(context.Background(), customer, "any")
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestJoinConversationAddsStaffAndAnnounces(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer))
	convID := conv.ID.Hex()

	joined := activeConversation(participant("u1", model.RoleCustomer), participant("a1", model.RoleAdmin))
	joined.ID = conv.ID

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil).Once()
	f.conversations.On("UpsertParticipant", mock.Anything, convID, mock.MatchedBy(func(p model.Participant) bool {
		return p.UserID == "a1" && p.IsActive
	})).Return(nil)
	f.conversations.On("FindByID", mock.Anything, convID).Return(joined, nil).Once()

	got, err := f.svc.JoinConversation(context.Background(), admin, convID)
	require.NoError(t, err)
	assert.True(t, got.HasParticipant("a1"))

	announcements := f.publisher.byEvent(event.EventConversationUpdated)
	require.Len(t, announcements, 1)
	assert.Equal(t, hub.ConversationRoom(convID), announcements[0].key)
}

func TestJoinConversationAlreadyMemberIsNoop(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("a1", model.RoleAdmin))
	convID := conv.ID.Hex()

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)

	_, err := f.svc.JoinConversation(context.Background(), admin, convID)
	require.NoError(t, err)
	f.conversations.AssertNotCalled(t, "UpsertParticipant", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.publisher.all())
}

// -----------------------------------------------------------------------------
// UpdateStatus
// -----------------------------------------------------------------------------

func TestUpdateStatusStaffOnly(t *testing.T) {
	f := newChatFixture()

	_, err := f.svc.UpdateStatus(context.Background(), customer, "any", model.ConversationResolved)
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestUpdateStatusRejectsSidewaysTransition(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer))
	conv.Status = model.ConversationResolved
	convID := conv.ID.Hex()

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)

	_, err := f.svc.UpdateStatus(context.Background(), admin, convID, model.ConversationArchived)
	assert.ErrorIs(t, err, errs.ErrValidation)
	f.conversations.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatusResolvesAndAnnounces(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer), participant("a1", model.RoleAdmin))
	convID := conv.ID.Hex()

	updated := *conv
	updated.Status = model.ConversationResolved

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)
	f.conversations.On("UpdateStatus", mock.Anything, convID, model.ConversationResolved).Return(&updated, nil)
	f.messages.On("NextSeq", mock.Anything, convID).Return(int64(12), nil)
	f.messages.On("Insert", mock.Anything, mock.MatchedBy(func(m *model.Message) bool {
		return m.MessageType == model.MessageTypeSystem
	})).Return(&model.Message{Seq: 12, MessageType: model.MessageTypeSystem}, nil)
	f.conversations.On("TouchLastMessage", mock.Anything, convID, mock.Anything).Return(nil)

	got, err := f.svc.UpdateStatus(context.Background(), admin, convID, model.ConversationResolved)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationResolved, got.Status)

	announcements := f.publisher.byEvent(event.EventConversationUpdated)
	require.Len(t, announcements, 2)
	keys := []hub.RoomKey{announcements[0].key, announcements[1].key}
	assert.Contains(t, keys, hub.ConversationRoom(convID))
	assert.Contains(t, keys, hub.AdminRoom)
}

func TestUpdateStatusReopen(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer))
	conv.Status = model.ConversationArchived
	convID := conv.ID.Hex()

	updated := *conv
	updated.Status = model.ConversationActive

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)
	f.conversations.On("UpdateStatus", mock.Anything, convID, model.ConversationActive).Return(&updated, nil)
	f.messages.On("NextSeq", mock.Anything, convID).Return(int64(20), nil)
	f.messages.On("Insert", mock.Anything, mock.Anything).Return(&model.Message{Seq: 20}, nil)
	f.conversations.On("TouchLastMessage", mock.Anything, convID, mock.Anything).Return(nil)

	got, err := f.svc.UpdateStatus(context.Background(), admin, convID, model.ConversationActive)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationActive, got.Status)
}

// -----------------------------------------------------------------------------
// CreateConversation
// -----------------------------------------------------------------------------

func TestCreateConversationReusesActiveThread(t *testing.T) {
	f := newChatFixture()
	existing := activeConversation(participant("u1", model.RoleCustomer))

	f.conversations.On("FindActiveForUser", mock.Anything, "u1").Return(existing, nil)

	got, err := f.svc.CreateConversation(context.Background(), customer, CreateConversationInput{
		Participants: []ParticipantInput{{UserID: "u1", Role: model.RoleCustomer}},
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
	f.conversations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateConversationFreshThread(t *testing.T) {
	f := newChatFixture()

	f.conversations.On("FindActiveForUser", mock.Anything, "u1").Return(nil, errs.ErrNotFound)
	f.conversations.On("Create", mock.Anything, mock.MatchedBy(func(c *model.Conversation) bool {
		return c.Status == model.ConversationActive && c.CreatedBy == "u1" && len(c.Participants) == 2
	})).Return(activeConversation(
		participant("u1", model.RoleCustomer),
		participant("a1", model.RoleAdmin),
	), nil)

	got, err := f.svc.CreateConversation(context.Background(), customer, CreateConversationInput{
		Title: "order gone missing",
		Participants: []ParticipantInput{
			{UserID: "u1", Role: model.RoleCustomer},
			{UserID: "a1", Role: model.RoleAdmin},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ConversationActive, got.Status)

	announcements := f.publisher.byEvent(event.EventConversationUpdated)
	require.Len(t, announcements, 3) // both participants plus the back office
}

func TestCreateConversationCreatorMustParticipate(t *testing.T) {
	f := newChatFixture()

	_, err := f.svc.CreateConversation(context.Background(), customer, CreateConversationInput{
		Participants: []ParticipantInput{{UserID: "u2", Role: model.RoleCustomer}},
	})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCreateConversationRejectsUnknownRole(t *testing.T) {
	f := newChatFixture()

	_, err := f.svc.CreateConversation(context.Background(), customer, CreateConversationInput{
		Participants: []ParticipantInput{
			{UserID: "u1", Role: model.RoleCustomer},
			{UserID: "x", Role: model.Role("WIZARD")},
		},
	})
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestCreateConversationStaffAlwaysFresh(t *testing.T) {
	f := newChatFixture()

	f.conversations.On("Create", mock.Anything, mock.Anything).
		Return(activeConversation(participant("a1", model.RoleAdmin)), nil)

	_, err := f.svc.CreateConversation(context.Background(), admin, CreateConversationInput{
		Participants: []ParticipantInput{{UserID: "a1", Role: model.RoleAdmin}},
	})
	require.NoError(t, err)
	f.conversations.AssertNotCalled(t, "FindActiveForUser", mock.Anything, mock.Anything)
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

func TestListConversationsDefaultsToActive(t *testing.T) {
	f := newChatFixture()

	f.conversations.On("List", mock.Anything, model.ConversationActive, "u1", false, int64(1)).
		Return(&db.PaginatedResult[model.Conversation]{Page: 1}, nil)

	_, err := f.svc.ListConversations(context.Background(), customer, "", 0)
	require.NoError(t, err)
}

func TestListConversationsUnknownStatus(t *testing.T) {
	f := newChatFixture()

	_, err := f.svc.ListConversations(context.Background(), customer, "OPEN", 1)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestListMessagesMarksRead(t *testing.T) {
	f := newChatFixture()
	conv := activeConversation(participant("u1", model.RoleCustomer))
	convID := conv.ID.Hex()

	f.conversations.On("FindByID", mock.Anything, convID).Return(conv, nil)
	f.messages.On("ListByConversation", mock.Anything, convID, int64(1)).
		Return(&db.PaginatedResult[model.Message]{Page: 1}, nil)
	f.messages.On("MarkRead", mock.Anything, convID, "u1", mock.Anything).Return([]string{}, nil)

	_, err := f.svc.ListMessages(context.Background(), customer, convID, 1)
	require.NoError(t, err)
	f.messages.AssertCalled(t, "MarkRead", mock.Anything, convID, "u1", mock.Anything)
}

func TestGetUnreadCount(t *testing.T) {
	f := newChatFixture()
	f.unread.On("Get", mock.Anything, "u1").Return(int64(4), nil)

	count, err := f.svc.GetUnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
