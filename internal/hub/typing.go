package hub

import (
	"sync"
	"time"

	"Kaupa/internal/event"
)

// defaultTypingExpiry bounds how long a typing indicator survives without a
// refresh. Keeps indicators honest when a client disconnects mid-typing or
// never sends the stop event.
const defaultTypingExpiry = 1500 * time.Millisecond

type typingKey struct {
	room   RoomKey
	userID string
}

// TypingTracker owns the server-side lifetime of typing indicators. A start
// publishes user-typing true to the conversation room and arms an expiry
// timer; a refresh rearms it; an explicit stop or the timer firing publishes
// user-typing false exactly once.
type TypingTracker struct {
	mu      sync.Mutex
	timers  map[typingKey]*time.Timer
	publish func(RoomKey, event.WsEvent)
	expiry  time.Duration
}

func NewTypingTracker(publish func(RoomKey, event.WsEvent), expiry time.Duration) *TypingTracker {
	return &TypingTracker{
		timers:  make(map[typingKey]*time.Timer),
		publish: publish,
		expiry:  expiry,
	}
}

func (t *TypingTracker) SetTyping(room RoomKey, userID string, isTyping bool) {
	key := typingKey{room: room, userID: userID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if isTyping {
		if timer, ok := t.timers[key]; ok {
			timer.Reset(t.expiry)
			return // already broadcast as typing, just extend
		}

		t.timers[key] = time.AfterFunc(t.expiry, func() {
			t.expire(key)
		})
		t.publish(room, typingEvent(room, userID, true))
		return
	}

	timer, ok := t.timers[key]
	if !ok {
		return // stop without a start is a no-op
	}
	timer.Stop()
	delete(t.timers, key)
	t.publish(room, typingEvent(room, userID, false))
}

// expire fires from the timer goroutine. The map check makes expiry and an
// explicit stop mutually exclusive: whichever deletes the entry first emits
// the single user-typing false.
func (t *TypingTracker) expire(key typingKey) {
	t.mu.Lock()
	if _, ok := t.timers[key]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.timers, key)
	t.mu.Unlock()

	t.publish(key.room, typingEvent(key.room, key.userID, false))
}

// ActiveCount reports the number of currently armed typing indicators.
func (t *TypingTracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Stop cancels every armed timer without publishing; used on shutdown.
func (t *TypingTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}

func typingEvent(room RoomKey, userID string, isTyping bool) event.WsEvent {
	return event.MustNew(event.EventUserTyping, event.UserTypingPayload{
		ConversationID: room.ConversationID(),
		UserID:         userID,
		IsTyping:       isTyping,
	})
}
