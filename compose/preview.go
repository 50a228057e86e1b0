package compose

import (
	"sync"

	"github.com/google/uuid"
)

// Blob is an in-memory binary payload with its MIME type.
type Blob struct {
	Data        []byte
	ContentType string
}

// NewJPEG wraps data as an image/jpeg blob.
func NewJPEG(data []byte) *Blob {
	return &Blob{Data: data, ContentType: "image/jpeg"}
}

// Size returns the payload length in bytes.
func (b *Blob) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}

// PreviewStore hands out short-lived URLs for blobs shown on the compose
// page. Every acquired Preview must be released.
type PreviewStore struct {
	mu     sync.RWMutex
	prefix string
	blobs  map[string]*Blob
}

// NewPreviewStore creates a store whose URLs start with prefix,
// e.g. "/compose/preview/".
func NewPreviewStore(prefix string) *PreviewStore {
	return &PreviewStore{prefix: prefix, blobs: make(map[string]*Blob)}
}

// Preview is a handle on a served blob.
type Preview struct {
	Token string
	URL   string

	once  sync.Once
	store *PreviewStore
}

// Acquire registers b and returns its handle.
func (s *PreviewStore) Acquire(b *Blob) *Preview {
	token := uuid.NewString()
	s.mu.Lock()
	s.blobs[token] = b
	s.mu.Unlock()
	return &Preview{Token: token, URL: s.prefix + token, store: s}
}

// Get returns the blob behind token.
func (s *PreviewStore) Get(token string) (*Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[token]
	return b, ok
}

// Len returns the number of live previews.
func (s *PreviewStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Release drops the blob from the store. Safe to call more than once.
func (p *Preview) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.store.mu.Lock()
		delete(p.store.blobs, p.Token)
		p.store.mu.Unlock()
	})
}
