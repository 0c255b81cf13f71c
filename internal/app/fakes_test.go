package app_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"property_reviews/internal/domain"
)

// ---- in-memory transactional store ----

type memProperty struct {
	name      string
	top5      []domain.ReviewSnapshot
	updatedAt time.Time
}

type memState struct {
	props   map[string]memProperty
	reviews map[string]domain.Review
}

func (s memState) clone() memState {
	out := memState{
		props:   make(map[string]memProperty, len(s.props)),
		reviews: make(map[string]domain.Review, len(s.reviews)),
	}
	for k, v := range s.props {
		v.top5 = append([]domain.ReviewSnapshot(nil), v.top5...)
		out.props[k] = v
	}
	for k, v := range s.reviews {
		out.reviews[k] = v
	}
	return out
}

// memStore serializes transactions and applies a transaction's writes only
// on commit, which is enough to observe rollback behaviour.
type memStore struct {
	mu    sync.Mutex
	state memState
	clock time.Time
	tick  int

	failMaterialize error
	failCount       error
	countCalls      int
}

func newMemStore() *memStore {
	return &memStore{
		state: memState{props: map[string]memProperty{}, reviews: map[string]domain.Review{}},
		clock: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) addProperty(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.props[id] = memProperty{name: name, top5: []domain.ReviewSnapshot{}, updatedAt: m.clock}
}

// seedReview inserts a row directly, bypassing the pipeline.
func (m *memStore) seedReview(r domain.Review) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Structured == nil {
		r.Structured = map[string]int{}
	}
	m.state.reviews[r.ID] = r
}

func (m *memStore) review(id string) (domain.Review, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.reviews[id]
	return r, ok
}

func (m *memStore) top5(id string) []domain.ReviewSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ReviewSnapshot(nil), m.state.props[id].top5...)
}

func (m *memStore) reviewCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.reviews)
}

func (m *memStore) PropertyExists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.state.props[id]
	return ok, nil
}

func (m *memStore) GetTop5(_ context.Context, id string) (domain.PropertyTop5, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return readTop5(m.state, id)
}

func (m *memStore) ListPropertyIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.state.props))
	for id := range m.state.props {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx domain.ReviewTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{store: m, work: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = tx.work
	return nil
}

func readTop5(s memState, id string) (domain.PropertyTop5, error) {
	p, ok := s.props[id]
	if !ok {
		return domain.PropertyTop5{}, domain.ErrNotFound
	}
	return domain.PropertyTop5{
		PropertyID:  id,
		Name:        p.name,
		Top5Reviews: append([]domain.ReviewSnapshot{}, p.top5...),
		UpdatedAt:   p.updatedAt,
	}, nil
}

type memTx struct {
	store *memStore
	work  memState
}

func (t *memTx) now() time.Time {
	// strictly increasing so created_at ordering is deterministic
	t.store.tick++
	return t.store.clock.Add(time.Duration(t.store.tick) * time.Millisecond)
}

func (t *memTx) CountRecentByAuthor(_ context.Context, userName string, window time.Duration) (int, error) {
	t.store.countCalls++
	if t.store.failCount != nil {
		return 0, t.store.failCount
	}
	since := t.store.clock.Add(time.Duration(t.store.tick)*time.Millisecond - window)
	n := 0
	for _, r := range t.work.reviews {
		if r.UserName == userName && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) LockProperty(_ context.Context, id string) error {
	if _, ok := t.work.props[id]; !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (t *memTx) InsertReview(_ context.Context, r domain.Review) error {
	if _, dup := t.work.reviews[r.ID]; dup {
		return errors.New("duplicate review id")
	}
	if _, ok := t.work.props[r.PropertyID]; !ok {
		return errors.New("foreign key violation")
	}
	if r.Structured == nil {
		r.Structured = map[string]int{}
	}
	r.CreatedAt = t.now()
	t.work.reviews[r.ID] = r
	return nil
}

func (t *memTx) GetReview(_ context.Context, id string) (domain.Review, error) {
	r, ok := t.work.reviews[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return r, nil
}

func (t *memTx) LockReview(_ context.Context, id string) (string, error) {
	r, ok := t.work.reviews[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return r.PropertyID, nil
}

func (t *memTx) MarkPublished(_ context.Context, id string) error {
	r, ok := t.work.reviews[id]
	if !ok {
		return nil
	}
	r.Status = domain.StatusPublished
	t.work.reviews[id] = r
	return nil
}

func (t *memTx) MaterializeTop5(_ context.Context, propertyID string) error {
	if t.store.failMaterialize != nil {
		return t.store.failMaterialize
	}
	p, ok := t.work.props[propertyID]
	if !ok {
		return domain.ErrNotFound
	}
	var published []domain.Review
	for _, r := range t.work.reviews {
		if r.PropertyID == propertyID && r.Status == domain.StatusPublished {
			published = append(published, r)
		}
	}
	sort.Slice(published, func(i, j int) bool {
		if !published[i].CreatedAt.Equal(published[j].CreatedAt) {
			return published[i].CreatedAt.After(published[j].CreatedAt)
		}
		return published[i].ID > published[j].ID
	})
	if len(published) > domain.MaxTop5 {
		published = published[:domain.MaxTop5]
	}
	snaps := make([]domain.ReviewSnapshot, 0, len(published))
	for _, r := range published {
		snaps = append(snaps, r.Snapshot())
	}
	p.top5 = snaps
	p.updatedAt = t.now()
	t.work.props[propertyID] = p
	return nil
}

func (t *memTx) GetTop5(_ context.Context, id string) (domain.PropertyTop5, error) {
	return readTop5(t.work, id)
}

// ---- cache ----

// fakeCache keeps the version floor the Redis adapter keeps, and records
// every write and eviction.
type fakeCache struct {
	mu       sync.Mutex
	store    map[string]any
	versions map[string]int64
	writes   []string
	dels     []string

	failGet error
	failSet error
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet != nil {
		return false, c.failGet
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.PropertyTop5:
		*d = v.(domain.PropertyTop5)
	}
	return true, nil
}

func (c *fakeCache) SetIfNewer(ctx context.Context, key string, v any, version int64, ttlSec int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSet != nil {
		return false, c.failSet
	}
	if c.store == nil {
		c.store = map[string]any{}
		c.versions = map[string]int64{}
	}
	if cur, ok := c.versions[key]; ok && cur > version {
		return false, nil
	}
	c.versions[key] = version
	c.store[key] = v
	c.writes = append(c.writes, key)
	return true, nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

func (c *fakeCache) cached(key string) (domain.PropertyTop5, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return domain.PropertyTop5{}, false
	}
	return v.(domain.PropertyTop5), true
}
