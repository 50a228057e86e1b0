package compose

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostIDClockFollowsTheClock(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 30, 0, 123456789, time.FixedZone("EET", 2*3600))
	c := NewPostIDClock(func() time.Time { return now })

	assert.Equal(t, "2024-03-01T06:30:00.123Z", c.Next())
	now = now.Add(time.Second)
	assert.Equal(t, "2024-03-01T06:30:01.123Z", c.Next())
}

func TestPostIDClockIsUniqueUnderConcurrency(t *testing.T) {
	frozen := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	c := NewPostIDClock(func() time.Time { return frozen })

	const n = 50
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		ids = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := c.Next()
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, ids, n)
}
