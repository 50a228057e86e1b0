package pubcompose

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/eringen/pubcompose/compose"
)

// DraftFactory builds a new draft with the given id.
type DraftFactory func(id string) *compose.Draft

type draftEntry struct {
	draft    *compose.Draft
	lastSeen time.Time
}

// DraftRegistry owns the drafts of all sessions. Drafts that are not
// touched for the idle TTL are closed by a sweeper goroutine.
type DraftRegistry struct {
	mu      sync.Mutex
	drafts  map[string]*draftEntry
	factory DraftFactory
	idleTTL time.Duration
	now     func() time.Time
	logger  *log.Logger

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewDraftRegistry creates an empty registry.
func NewDraftRegistry(factory DraftFactory, idleTTL time.Duration, logger *log.Logger) *DraftRegistry {
	if logger == nil {
		logger = log.Default()
	}
	return &DraftRegistry{
		drafts:  make(map[string]*draftEntry),
		factory: factory,
		idleTTL: idleTTL,
		now:     time.Now,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// Get returns the draft with id and marks it as used.
func (r *DraftRegistry) Get(id string) (*compose.Draft, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.drafts[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.draft, true
}

// Create starts a new draft under a fresh id.
func (r *DraftRegistry) Create() *compose.Draft {
	id := uuid.NewString()
	d := r.factory(id)
	r.mu.Lock()
	r.drafts[id] = &draftEntry{draft: d, lastSeen: r.now()}
	n := len(r.drafts)
	r.mu.Unlock()
	r.logger.Debug("draft created", "draft", id, "open", n)
	return d
}

// Discard closes and forgets the draft with id.
func (r *DraftRegistry) Discard(id string) {
	r.mu.Lock()
	e, ok := r.drafts[id]
	delete(r.drafts, id)
	r.mu.Unlock()
	if ok {
		e.draft.Close()
		r.logger.Debug("draft discarded", "draft", id)
	}
}

// Len returns the number of open drafts.
func (r *DraftRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drafts)
}

// Sweep closes drafts idle for longer than the TTL and returns how many
// were closed.
func (r *DraftRegistry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)
	var stale []*compose.Draft
	r.mu.Lock()
	for id, e := range r.drafts {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.draft)
			delete(r.drafts, id)
		}
	}
	r.mu.Unlock()
	for _, d := range stale {
		d.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("closed idle drafts", "count", len(stale))
	}
	return len(stale)
}

// StartSweeper runs Sweep every interval until Close.
func (r *DraftRegistry) StartSweeper(interval time.Duration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

// Close stops the sweeper and closes every draft.
func (r *DraftRegistry) Close() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
	r.mu.Lock()
	drafts := r.drafts
	r.drafts = make(map[string]*draftEntry)
	r.mu.Unlock()
	for _, e := range drafts {
		e.draft.Close()
	}
}
