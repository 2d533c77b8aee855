package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattjoyce/vitrine/internal/events"
	"github.com/mattjoyce/vitrine/internal/surface"
)

// ErrSnapshotTimeout is returned when the loop does not answer in time.
var ErrSnapshotTimeout = errors.New("snapshot timed out")

// SnapshotClient asks the dispatch loop for a copy of the registry from any
// goroutine.
type SnapshotClient struct {
	out     events.Sender
	timeout time.Duration
}

// NewSnapshotClient creates a client. A non-positive timeout means 2s.
func NewSnapshotClient(out events.Sender, timeout time.Duration) *SnapshotClient {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &SnapshotClient{out: out, timeout: timeout}
}

// Snapshot returns the live records, oldest first.
func (c *SnapshotClient) Snapshot(ctx context.Context) ([]surface.Record, error) {
	reply := make(chan []surface.Record, 1)
	if err := c.out.Send(events.SnapshotRequested{Reply: reply}); err != nil {
		return nil, fmt.Errorf("request snapshot: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case records := <-reply:
		return records, nil
	case <-timer.C:
		return nil, ErrSnapshotTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
