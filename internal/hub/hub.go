package hub

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"Kaupa/internal/errs"
	"Kaupa/internal/event"
	"Kaupa/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // cross-origin policy is enforced by the CORS layer in front
	},
}

// AuthorizeConversationFunc answers whether userID may join the room of the
// given conversation. Wired to the conversation store so the hub stays free
// of persistence concerns. Staff bypass this check.
type AuthorizeConversationFunc func(ctx context.Context, conversationID, userID string) (bool, error)

// OrderEventSink receives staff-originated order status transitions read off
// the socket, for relay to the interested rooms.
type OrderEventSink interface {
	RelayOrderStatus(ev model.OrderStatusEvent)
}

type inboundMessage struct {
	client *Client
	ev     event.WsEvent
}

// Hub tracks every live connection and every room, and routes events between
// them. One mutex guards all membership state (connections, rooms, each
// client's room set) so that registering and deregistering a connection is a
// single atomic step with no window where a departed client still receives
// room traffic.
type Hub struct {
	mu    sync.RWMutex
	rooms map[RoomKey]*room
	conns map[string]*Client // by connection ID

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage

	authorizeConv AuthorizeConversationFunc
	orderSink     OrderEventSink

	typing   *TypingTracker
	validate *validator.Validate
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHub(authorizeConv AuthorizeConversationFunc, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		rooms:         make(map[RoomKey]*room),
		conns:         make(map[string]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		inbound:       make(chan inboundMessage, 512),
		authorizeConv: authorizeConv,
		validate:      validator.New(),
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
	}
	h.typing = NewTypingTracker(h.Publish, defaultTypingExpiry)

	h.wg.Add(1)
	go h.run()

	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go h.worker()
	}

	return h
}

// SetOrderSink wires the relay for socket-originated order status updates.
// Called once during container assembly, before the servers start.
func (h *Hub) SetOrderSink(sink OrderEventSink) {
	h.orderSink = sink
}

func (h *Hub) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

func (h *Hub) worker() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		case m := <-h.inbound:
			h.route(m.client, m.ev)
		}
	}
}

// addClient registers a connection and auto-joins its role room: customers
// land in user:{id}, admins in the shared admin room, delivery staff in
// delivery:{id}. Further rooms require explicit join events.
func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.ID] = c

	switch c.identity.Role {
	case model.RoleCustomer:
		h.joinLocked(c, UserRoom(c.identity.UserID))
	case model.RoleAdmin:
		h.joinLocked(c, AdminRoom)
	case model.RoleDelivery:
		h.joinLocked(c, DeliveryRoom(c.identity.UserID))
	}

	h.logger.Info("client registered",
		zap.String("connection_id", c.ID),
		zap.String("user_id", c.identity.UserID),
		zap.String("role", string(c.identity.Role)),
	)
}

// removeClient deregisters a connection under one lock hold: the connection
// disappears from the registry and from every room it joined in the same
// step, and rooms emptied by its departure are torn down.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c.ID]; !ok {
		return // already deregistered
	}
	delete(h.conns, c.ID)

	for key := range c.rooms {
		h.leaveLocked(c, key)
	}

	h.logger.Info("client deregistered",
		zap.String("connection_id", c.ID),
		zap.String("user_id", c.identity.UserID),
	)
}

// joinLocked adds c to the room for key, creating the room and starting its
// dispatch goroutine on first member. Caller holds h.mu.
func (h *Hub) joinLocked(c *Client, key RoomKey) {
	r, ok := h.rooms[key]
	if !ok {
		r = newRoom(key)
		h.rooms[key] = r
		go r.dispatch(h.logger)
	}
	r.members[c.ID] = c
	c.rooms[key] = struct{}{}
}

// leaveLocked removes c from the room for key and closes the room when it
// empties. Caller holds h.mu.
func (h *Hub) leaveLocked(c *Client, key RoomKey) {
	delete(c.rooms, key)

	r, ok := h.rooms[key]
	if !ok {
		return
	}
	delete(r.members, c.ID)

	if len(r.members) == 0 {
		r.close()
		delete(h.rooms, key)
	}
}

// JoinRoom subscribes a connection to a room after an authorization check.
// User and delivery rooms admit only their owner; the admin room admits only
// admins; conversation rooms admit participants and staff. Unknown or denied
// targets fail closed.
func (h *Hub) JoinRoom(ctx context.Context, c *Client, key RoomKey) error {
	id := c.identity

	switch {
	case key == AdminRoom:
		if id.Role != model.RoleAdmin {
			return fmt.Errorf("%w: role %s may not join the admin room", errs.ErrUnauthorizedRoomJoin, id.Role)
		}
	case key == UserRoom(id.UserID) || key == DeliveryRoom(id.UserID):
		// own role room, always permitted
	case key.ConversationID() != "":
		if !id.IsStaff() {
			ok, err := h.authorizeConv(ctx, key.ConversationID(), id.UserID)
			if err != nil {
				// fail closed on a store error rather than admitting blind
				return fmt.Errorf("%w: membership check failed: %v", errs.ErrUnauthorizedRoomJoin, err)
			}
			if !ok {
				return fmt.Errorf("%w: user %s is not a participant of conversation %s",
					errs.ErrUnauthorizedRoomJoin, id.UserID, key.ConversationID())
			}
		}
	default:
		return fmt.Errorf("%w: room %s does not belong to user %s", errs.ErrUnauthorizedRoomJoin, key, id.UserID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c.ID]; !ok {
		return nil // connection deregistered while authorizing
	}
	h.joinLocked(c, key)
	return nil
}

// LeaveRoom unsubscribes a connection from a room. Leaving a room not joined
// is a no-op.
func (h *Hub) LeaveRoom(c *Client, key RoomKey) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := c.rooms[key]; !ok {
		return
	}
	h.leaveLocked(c, key)
}

// Publish delivers an event to every current member of a room. The snapshot
// is taken under the read lock and enqueued to the room's dispatch goroutine,
// so two publishes to one room arrive at every member in publish order. A
// publish to an empty or unknown room is dropped.
func (h *Hub) Publish(key RoomKey, ev event.WsEvent) {
	h.mu.RLock()
	r, ok := h.rooms[key]
	if !ok {
		h.mu.RUnlock()
		return
	}

	targets := make([]*Client, 0, len(r.members))
	for _, c := range r.members {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	r.enqueue(delivery{ev: ev, targets: targets})
}

// PublishToUser delivers to a user's personal room, shorthand used by the
// chat notification path.
func (h *Hub) PublishToUser(userID string, ev event.WsEvent) {
	h.Publish(UserRoom(userID), ev)
}

// RoomMembers returns the distinct user IDs currently in a room.
func (h *Hub) RoomMembers(key RoomKey) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[key]
	if !ok {
		return nil
	}

	seen := make(map[string]struct{}, len(r.members))
	ids := make([]string, 0, len(r.members))
	for _, c := range r.members {
		if _, dup := seen[c.identity.UserID]; dup {
			continue
		}
		seen[c.identity.UserID] = struct{}{}
		ids = append(ids, c.identity.UserID)
	}
	return ids
}

// ServeWS upgrades the request and hands the connection to the hub. The
// identity must already be authenticated by the caller.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, identity model.Identity) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(identity, conn, h)

	select {
	case h.register <- c:
		// registered
	case <-time.After(registerTimeout):
		h.logger.Warn("client registration timed out",
			zap.String("user_id", identity.UserID))
		conn.Close()
		return
	}

	go c.ReadMessages()
	go c.WriteMessages()
}

// Stop shuts the hub down: every connection is closed and the run loop,
// workers and typing timers are stopped.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	for _, c := range h.conns {
		c.Close()
	}
	h.conns = make(map[string]*Client)
	for key, r := range h.rooms {
		r.close()
		delete(h.rooms, key)
	}
	h.mu.Unlock()

	h.typing.Stop()
	h.wg.Wait()
	h.logger.Info("hub stopped")
}

func zapConnection(c *Client) []zap.Field {
	return []zap.Field{
		zap.String("connection_id", c.ID),
		zap.String("user_id", c.identity.UserID),
	}
}

func zapErr(err error) zap.Field {
	return zap.Error(err)
}
