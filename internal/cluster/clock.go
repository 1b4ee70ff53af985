// Package cluster provides the cluster-wide clock consumed by the pubsub
// engine. The clock is best-effort: the membership layer periodically
// measures skew against its peers and applies an offset, so timestamps are
// loosely synchronized but never guaranteed monotonic across machines.
package cluster

import (
	"sync"
	"time"

	"github.com/rmacdonaldsmith/pubsubnode-go/pkg/pubsub"
)

// Clock implements pubsub.ClusterClock as the local wall clock plus a
// settable offset. It is safe for concurrent use.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
}

// NewClock creates a cluster clock with zero offset.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current cluster time in UTC.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().UTC().Add(c.offset)
}

// SetOffset replaces the skew offset. Called by the membership layer after
// a skew measurement round; never called by the engine itself.
func (c *Clock) SetOffset(offset time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = offset
}

// Offset returns the current skew offset.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Verify that Clock implements the ClusterClock interface at compile time
var _ pubsub.ClusterClock = (*Clock)(nil)
