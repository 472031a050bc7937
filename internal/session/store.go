// Package session keeps one Analytics per browser session.
package session

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sales-explorer/internal/models"
	"sales-explorer/internal/observability"
	"sales-explorer/internal/services"
)

// Store is an LRU of sessions with an idle TTL. Every access slides the
// session's expiry forward.
type Store struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List

	newAnalytics func() *services.Analytics
	seed         atomic.Pointer[models.Dataset]
	now          func() time.Time

	created atomic.Int64
	evicted atomic.Int64
	expired atomic.Int64
}

type entry struct {
	id        string
	analytics *services.Analytics
	expiresAt time.Time
}

func NewStore(maxSize int, ttl time.Duration, factory func() *services.Analytics) *Store {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if factory == nil {
		factory = func() *services.Analytics { return services.NewAnalytics(nil, services.Options{}) }
	}
	return &Store{
		maxSize:      maxSize,
		ttl:          ttl,
		items:        make(map[string]*list.Element),
		lru:          list.New(),
		newAnalytics: factory,
		now:          time.Now,
	}
}

// SetSeed makes ds the initial dataset of sessions created from now on.
// The dataset is shared read-only between those sessions.
func (s *Store) SetSeed(ds *models.Dataset) {
	s.seed.Store(ds)
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Get returns the session's analytics if it exists and has not expired.
func (s *Store) Get(id string) (*services.Analytics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return nil, false
	}

	e := elem.Value.(*entry)
	now := s.now()
	if now.After(e.expiresAt) {
		s.removeElement(elem)
		s.expired.Add(1)
		return nil, false
	}

	e.expiresAt = now.Add(s.ttl)
	s.lru.MoveToFront(elem)
	return e.analytics, true
}

// Create starts a new session, seeded if a seed dataset is set.
func (s *Store) Create() (string, *services.Analytics) {
	a := s.newAnalytics()
	if ds := s.seed.Load(); ds != nil {
		a.SetDataset(ds)
	}

	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	elem := s.lru.PushFront(&entry{id: id, analytics: a, expiresAt: s.now().Add(s.ttl)})
	s.items[id] = elem
	s.created.Add(1)

	if s.lru.Len() > s.maxSize {
		if oldest := s.lru.Back(); oldest != nil {
			s.removeElement(oldest)
			s.evicted.Add(1)
		}
	}
	return id, a
}

// GetOrCreate resolves id, creating a fresh session when id is unknown,
// expired or not a valid session id.
func (s *Store) GetOrCreate(id string) (string, *services.Analytics, bool) {
	if _, err := uuid.Parse(id); err == nil {
		if a, ok := s.Get(id); ok {
			return id, a, false
		}
	}
	newID, a := s.Create()
	return newID, a, true
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[id]; ok {
		s.removeElement(elem)
	}
}

func (s *Store) removeElement(elem *list.Element) {
	e := elem.Value.(*entry)
	delete(s.items, e.id)
	s.lru.Remove(elem)
}

// CleanExpired removes every expired session and returns how many it removed.
func (s *Store) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var stale []*list.Element
	for elem := s.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry).expiresAt) {
			stale = append(stale, elem)
		}
	}
	for _, elem := range stale {
		s.removeElement(elem)
	}

	s.expired.Add(int64(len(stale)))
	return len(stale)
}

func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) Stats() map[string]any {
	stats := map[string]any{
		"active":   s.Size(),
		"max_size": s.maxSize,
		"ttl":      s.ttl.String(),
		"created":  s.created.Load(),
		"evicted":  s.evicted.Load(),
		"expired":  s.expired.Load(),
	}
	if ds := s.seed.Load(); ds != nil {
		stats["seed_file"] = ds.Name
		stats["seed_records"] = ds.Len()
	}
	return stats
}

type contextKey struct{}

// WithSession attaches the session's analytics to ctx and tags the log
// context with its id.
func WithSession(ctx context.Context, id string, a *services.Analytics) context.Context {
	ctx = observability.WithSessionID(ctx, id)
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext returns the request's session analytics.
func FromContext(ctx context.Context) (*services.Analytics, bool) {
	a, ok := ctx.Value(contextKey{}).(*services.Analytics)
	return a, ok && a != nil
}
