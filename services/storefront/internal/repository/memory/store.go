package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/shopsync/pkg/errors"
	"github.com/utafrali/shopsync/services/storefront/internal/repository"
)

// Backend is shared in-process storage. Each Store opened on it plays the
// role of one browser tab: it sees every value, and its watchers hear about
// writes made by the other stores only.
type Backend struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers map[*watcher]struct{}
}

// NewBackend creates empty storage.
func NewBackend() *Backend {
	return &Backend{
		data:     make(map[string][]byte),
		watchers: make(map[*watcher]struct{}),
	}
}

// Open returns a new Store with its own origin.
func (b *Backend) Open() *Store {
	return &Store{backend: b, origin: uuid.NewString()}
}

// Watchers returns the number of active Watch calls.
func (b *Backend) Watchers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.watchers)
}

type watcher struct {
	origin string
	ch     chan repository.Change
	done   chan struct{}
}

func (b *Backend) write(key string, value []byte, deleted bool, origin string) {
	b.mu.Lock()
	if deleted {
		delete(b.data, key)
	} else {
		b.data[key] = value
	}
	targets := make([]*watcher, 0, len(b.watchers))
	for w := range b.watchers {
		if w.origin != origin {
			targets = append(targets, w)
		}
	}
	b.mu.Unlock()

	for _, w := range targets {
		c := repository.Change{Key: key, Deleted: deleted, Origin: origin}
		if !deleted {
			c.Value = clone(value)
		}
		select {
		case w.ch <- c:
		case <-w.done:
		}
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Store is one handle onto a Backend.
type Store struct {
	backend *Backend
	origin  string
}

// NewStore returns a Store on a fresh private Backend.
func NewStore() *Store {
	return NewBackend().Open()
}

// Origin identifies this store in delivered changes.
func (s *Store) Origin() string {
	return s.origin
}

// Get implements repository.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()

	v, ok := s.backend.data[key]
	if !ok {
		return nil, apperrors.NotFound("storage key", key)
	}
	return clone(v), nil
}

// Set implements repository.Store.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.backend.write(key, clone(value), false, s.origin)
	return nil
}

// Delete implements repository.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.backend.mu.RLock()
	_, ok := s.backend.data[key]
	s.backend.mu.RUnlock()
	if !ok {
		return nil
	}
	s.backend.write(key, nil, true, s.origin)
	return nil
}

// Keys returns every stored key.
func (s *Store) Keys() []string {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	keys := make([]string, 0, len(s.backend.data))
	for k := range s.backend.data {
		keys = append(keys, k)
	}
	return keys
}

// Watch implements repository.Watcher.
func (s *Store) Watch(ctx context.Context, fn func(repository.Change)) error {
	w := &watcher{
		origin: s.origin,
		ch:     make(chan repository.Change, 16),
		done:   make(chan struct{}),
	}

	s.backend.mu.Lock()
	s.backend.watchers[w] = struct{}{}
	s.backend.mu.Unlock()

	defer func() {
		s.backend.mu.Lock()
		delete(s.backend.watchers, w)
		s.backend.mu.Unlock()
		close(w.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-w.ch:
			fn(c)
		}
	}
}
