package events

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("dispatch channel closed")

// Channel is an unbounded many-producer, single-consumer queue. Send never
// blocks; the consumer polls with TryRecv and parks on Ready.
type Channel struct {
	mu     sync.Mutex
	queue  []Event
	closed bool
	notify chan struct{}
}

var _ Sender = (*Channel)(nil)

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{notify: make(chan struct{}, 1)}
}

// Send enqueues ev. Delivery is best effort: the only failure is ErrClosed.
func (c *Channel) Send(ev Event) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.queue = append(c.queue, ev)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

// TryRecv dequeues the oldest event without blocking.
func (c *Channel) TryRecv() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil, false
	}
	ev := c.queue[0]
	c.queue[0] = nil
	c.queue = c.queue[1:]
	if len(c.queue) == 0 {
		c.queue = nil
	}
	return ev, true
}

// Ready is signalled after Send. A receive from Ready does not guarantee an
// event is still queued; callers re-check with TryRecv.
func (c *Channel) Ready() <-chan struct{} { return c.notify }

// Len returns the number of queued events.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Close rejects further sends. Queued events stay readable.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
