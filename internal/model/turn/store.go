package turn

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("turn not found")

// Store is the persistence contract the turn pipeline depends on.
type Store interface {
	Create(ctx context.Context, t Turn) (Turn, error)
	ListByOwner(ctx context.Context, owner string) ([]Turn, error)
	DeleteAllByOwner(ctx context.Context, owner string) (int64, error)
}

// AdminStore adds the reviewer operations used by the administrative routes.
type AdminStore interface {
	Store
	Get(ctx context.Context, id string) (Turn, error)
	List(ctx context.Context, page, limit int) ([]Turn, int64, error)
	UpdateReviewFlag(ctx context.Context, id string, flag ReviewFlag) (Turn, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, since time.Time) (Stats, error)
}

// Stats aggregates turn counts for the admin dashboard.
type Stats struct {
	TotalTurns int64 `json:"totalTurns"`
	TotalUsers int64 `json:"totalUsers"`
	NewTurns   int64 `json:"newTurns"`
	NewUsers   int64 `json:"newUsers"`
}

// Option configures a store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the timestamp source used on create and update.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// prepare assigns identity, timestamps and defaults, then validates.
func prepare(t Turn, now time.Time) (Turn, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.ReviewFlag == "" {
		t.ReviewFlag = ReviewNone
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	if err := t.Validate(); err != nil {
		return Turn{}, err
	}
	return t, nil
}

// sequenceClock hands out strictly increasing creation times, so turns created
// within one clock tick still sort in insertion order. Times are truncated to
// microseconds, the finest resolution Postgres keeps.
type sequenceClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func newSequenceClock(now func() time.Time) *sequenceClock {
	return &sequenceClock{now: now}
}

func (c *sequenceClock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// MemoryStore keeps turns in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	turns   []Turn
	now     func() time.Time
	created *sequenceClock
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		turns:   make([]Turn, 0, 64),
		now:     o.now,
		created: newSequenceClock(o.now),
	}
}

func (s *MemoryStore) Create(_ context.Context, t Turn) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepared, err := prepare(t, s.created.next())
	if err != nil {
		return Turn{}, err
	}
	s.turns = append(s.turns, prepared)
	return prepared, nil
}

func (s *MemoryStore) ListByOwner(_ context.Context, owner string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Turn, 0)
	for _, t := range s.turns {
		if t.Owner == owner {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) DeleteAllByOwner(_ context.Context, owner string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.turns[:0]
	var removed int64
	for _, t := range s.turns {
		if t.Owner == owner {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.turns = kept
	return removed, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.turns[i], nil
	}
	return Turn{}, ErrNotFound
}

// List returns one page of all turns, newest first, plus the total count.
func (s *MemoryStore) List(_ context.Context, page, limit int) ([]Turn, int64, error) {
	page, limit = normalizePage(page, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Turn, 0, len(s.turns))
	for i := len(s.turns) - 1; i >= 0; i-- {
		all = append(all, s.turns[i])
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []Turn{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *MemoryStore) UpdateReviewFlag(_ context.Context, id string, flag ReviewFlag) (Turn, error) {
	if !flag.Valid() {
		return Turn{}, ErrInvalidReviewFlag
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return Turn{}, ErrNotFound
	}
	s.turns[i].ReviewFlag = flag
	s.turns[i].UpdatedAt = s.now().UTC()
	return s.turns[i], nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	s.turns = append(s.turns[:i], s.turns[i+1:]...)
	return nil
}

func (s *MemoryStore) Stats(_ context.Context, since time.Time) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	firstSeen := make(map[string]time.Time)
	var stats Stats
	for _, t := range s.turns {
		stats.TotalTurns++
		if !t.CreatedAt.Before(since) {
			stats.NewTurns++
		}
		if first, ok := firstSeen[t.Owner]; !ok || t.CreatedAt.Before(first) {
			firstSeen[t.Owner] = t.CreatedAt
		}
	}
	stats.TotalUsers = int64(len(firstSeen))
	for _, first := range firstSeen {
		if !first.Before(since) {
			stats.NewUsers++
		}
	}
	return stats, nil
}

func (s *MemoryStore) indexOf(id string) int {
	for i, t := range s.turns {
		if t.ID == id {
			return i
		}
	}
	return -1
}
