package hub

import (
	"Kaupa/internal/event"

	"go.uber.org/zap"
)

const roomQueueSize = 256

// delivery pairs an event with the membership snapshot taken when it was
// published. The snapshot decouples fan-out from the membership lock: a
// client joining after publish never sees the event, a client that failed
// mid-send is skipped, and the room lock is never held during socket I/O.
type delivery struct {
	ev      event.WsEvent
	targets []*Client
}

// room owns the serialized dispatch path for one RoomKey. All publishes to a
// room flow through its queue in FIFO order and are drained by a single
// goroutine, which is what gives per-room delivery ordering. Membership is
// guarded by the hub's lock, not the room's; the room only ever sees
// snapshots.
type room struct {
	key     RoomKey
	members map[string]*Client // by connection ID; guarded by Hub.mu
	queue   chan delivery
	quit    chan struct{}
}

func newRoom(key RoomKey) *room {
	return &room{
		key:     key,
		members: make(map[string]*Client),
		queue:   make(chan delivery, roomQueueSize),
		quit:    make(chan struct{}),
	}
}

// dispatch drains the queue until the room is closed. Delivery to an
// individual connection that fails is logged and skipped; it never aborts
// delivery to the remaining members.
func (r *room) dispatch(logger *zap.Logger) {
	for {
		select {
		case <-r.quit:
			return
		case d := <-r.queue:
			for _, c := range d.targets {
				if !c.SafeSend(d.ev, sendTimeout) {
					logger.Debug("skipping undeliverable room member",
						zap.String("room", string(r.key)),
						zap.String("connection_id", c.ID),
						zap.String("event", d.ev.Event),
					)
				}
			}
		}
	}
}

// enqueue hands a delivery to the dispatch goroutine, giving up if the room
// was closed concurrently.
func (r *room) enqueue(d delivery) bool {
	select {
	case r.queue <- d:
		return true
	case <-r.quit:
		return false
	}
}

func (r *room) close() {
	close(r.quit)
}
