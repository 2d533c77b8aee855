package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Hub topics.
const (
	TopicSurfaceCreated = "surface.created"
	TopicSurfaceClosed  = "surface.closed"
	TopicResultEmitted  = "result.emitted"
	TopicDownloadMoved  = "download.moved"
	TopicBlobWritten    = "blob.written"
)

// Notice is one published lifecycle record.
type Notice struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Publisher is what the dispatcher needs from a Hub.
type Publisher interface {
	Publish(topic string, data any)
}

// subscriberBuffer is how far a subscriber may lag before it misses notices.
const subscriberBuffer = 128

// Hub is an in-memory fan-out that keeps the newest notices for late
// clients. Publish never blocks: a subscriber that falls behind misses
// notices, and the miss is counted.
type Hub struct {
	nextID  atomic.Int64
	dropped atomic.Int64

	mu       sync.Mutex
	capacity int
	recent   []Notice
	subs     map[*subscriber]struct{}
}

type subscriber struct {
	ch chan Notice
}

var _ Publisher = (*Hub)(nil)

// NewHub keeps the newest capacity notices, 100 when capacity <= 0.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		capacity: capacity,
		recent:   make([]Notice, 0, capacity),
		subs:     make(map[*subscriber]struct{}),
	}
}

// Publish records data under topic. Payloads that fail to marshal are
// published as an empty object.
func (h *Hub) Publish(topic string, data any) {
	n := Notice{
		ID:   h.nextID.Add(1),
		Type: topic,
		At:   time.Now().UTC(),
		Data: encodeNotice(data),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.remember(n)
	for sub := range h.subs {
		select {
		case sub.ch <- n:
		default:
			h.dropped.Add(1)
		}
	}
}

func encodeNotice(data any) json.RawMessage {
	if data == nil {
		return json.RawMessage("{}")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

// remember appends n, evicting the oldest notice once full.
func (h *Hub) remember(n Notice) {
	if len(h.recent) == h.capacity {
		copy(h.recent, h.recent[1:])
		h.recent = h.recent[:len(h.recent)-1]
	}
	h.recent = append(h.recent, n)
}

// Subscribe returns a channel of notices published from now on and a cancel
// func that closes it. Cancel is idempotent.
func (h *Hub) Subscribe() (<-chan Notice, func()) {
	sub := &subscriber{ch: make(chan Notice, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub)
			close(sub.ch)
			h.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// SnapshotSince returns remembered notices with ID > lastID, oldest first.
// lastID 0 returns everything remembered.
func (h *Hub) SnapshotSince(lastID int64) []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Notice, 0, len(h.recent))
	for _, n := range h.recent {
		if n.ID > lastID {
			out = append(out, n)
		}
	}
	return out
}

// Dropped counts deliveries missed by slow subscribers.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }
