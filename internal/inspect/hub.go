package inspect

import "sync"

// PhaseEvent is one frame broadcast to every /live subscriber, describing
// a single phase of a single timestep having just completed.
type PhaseEvent struct {
	Phase string `msgpack:"phase"`
	Time  int    `msgpack:"time"`
}

// subscriberBacklog bounds how many frames a subscriber can lag behind
// before it starts dropping frames rather than blocking the simulation.
const subscriberBacklog = 32

// Hub fans phase events out to every live websocket subscriber and
// implements scheduler.Publisher, so a Timer can be wired to it directly
// without the scheduler package knowing anything about HTTP or websockets.
type Hub struct {
	mu   sync.Mutex
	subs map[chan PhaseEvent]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan PhaseEvent]struct{})}
}

// Publish implements scheduler.Publisher: it never blocks. A subscriber
// whose channel is full simply misses this frame rather than stalling the
// simulation it is observing.
func (h *Hub) Publish(phase string, t int) {
	ev := PhaseEvent{Phase: phase, Time: t}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function the caller must call when done.
func (h *Hub) Subscribe() (<-chan PhaseEvent, func()) {
	ch := make(chan PhaseEvent, subscriberBacklog)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}
