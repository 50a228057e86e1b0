package compose

import (
	"sync"
	"time"
)

const postIDLayout = "2006-01-02T15:04:05.000Z07:00"

// PostIDClock hands out post ids: UTC timestamps at millisecond precision,
// strictly increasing across every draft that shares the clock.
type PostIDClock struct {
	now func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewPostIDClock returns a clock reading now, or time.Now when nil.
func NewPostIDClock(now func() time.Time) *PostIDClock {
	if now == nil {
		now = time.Now
	}
	return &PostIDClock{now: now}
}

// Next returns the next post id. When the clock has not moved past the
// previous id, the previous id plus one millisecond is used.
func (c *PostIDClock) Next() string {
	t := c.now().UTC().Truncate(time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return t.Format(postIDLayout)
}
