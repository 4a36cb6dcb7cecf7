package store

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is a bounded in-process store with least-recently-used
// eviction and lazy TTL expiry. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	byKey   map[string]*list.Element
	order   *list.List // front = most recently used
	cfg     Config
	now     func() time.Time
	stopCh  chan struct{}
	stopped sync.Once
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryStore creates a MemoryStore from cfg, filling in defaults
// for unset fields.
func NewMemoryStore(cfg Config) *MemoryStore {
	def := DefaultConfig()
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	s := &MemoryStore{
		byKey:  make(map[string]*list.Element),
		order:  list.New(),
		cfg:    cfg,
		now:    cfg.clock(),
		stopCh: make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *MemoryStore) expiry(from time.Time) time.Time {
	if s.cfg.TTL <= 0 {
		return time.Time{}
	}
	return from.Add(s.cfg.TTL)
}

func (s *MemoryStore) expired(me *memoryEntry) bool {
	return !me.expiresAt.IsZero() && s.now().After(me.expiresAt)
}

// Get returns the entry for key, treating expired entries as absent.
// A found entry is marked most recently used.
func (s *MemoryStore) Get(ctx context.Context, key string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.byKey[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	me := elem.Value.(*memoryEntry)
	if s.expired(me) {
		s.remove(elem)
		return Entry{}, ErrNotFound
	}
	s.order.MoveToFront(elem)
	return me.entry, nil
}

// Put inserts a new entry or refreshes an existing one. Hit bookkeeping
// of an existing entry survives the refresh.
func (s *MemoryStore) Put(ctx context.Context, key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.Key = key
	if elem, ok := s.byKey[key]; ok {
		me := elem.Value.(*memoryEntry)
		entry.HitCount = me.entry.HitCount
		if me.entry.LastAccessedAt.After(entry.LastAccessedAt) {
			entry.LastAccessedAt = me.entry.LastAccessedAt
		}
		elem.Value = &memoryEntry{entry: entry, expiresAt: s.expiry(entry.CreatedAt)}
		s.order.MoveToFront(elem)
		return nil
	}

	for int64(s.order.Len()) >= s.cfg.MaxEntries {
		s.evictOldest()
	}
	elem := s.order.PushFront(&memoryEntry{entry: entry, expiresAt: s.expiry(entry.CreatedAt)})
	s.byKey[key] = elem
	return nil
}

// Touch bumps hit bookkeeping on an existing entry.
func (s *MemoryStore) Touch(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.byKey[key]
	if !ok {
		return ErrNotFound
	}
	me := elem.Value.(*memoryEntry)
	if s.expired(me) {
		s.remove(elem)
		return ErrNotFound
	}
	me.entry.HitCount++
	me.entry.LastAccessedAt = s.now()
	s.order.MoveToFront(elem)
	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.byKey[key]
	if !ok {
		return ErrNotFound
	}
	s.remove(elem)
	return nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byKey = make(map[string]*list.Element)
	s.order.Init()
	return nil
}

// Len returns the number of live entries, counting expired-but-unpurged
// entries as absent.
func (s *MemoryStore) Len(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		if !s.expired(elem.Value.(*memoryEntry)) {
			n++
		}
	}
	return n, nil
}

// Entries calls fn for each live entry, oldest first. It snapshots the
// entries under the read lock so fn may block without stalling lookups.
func (s *MemoryStore) Entries(ctx context.Context, fn func(Entry) error) error {
	s.mu.RLock()
	snapshot := make([]Entry, 0, s.order.Len())
	for elem := s.order.Back(); elem != nil; elem = elem.Prev() {
		if me := elem.Value.(*memoryEntry); !s.expired(me) {
			snapshot = append(snapshot, me.entry)
		}
	}
	s.mu.RUnlock()

	for _, entry := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the background cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.stopped.Do(func() { close(s.stopCh) })
	return nil
}

// remove must be called with the write lock held.
func (s *MemoryStore) remove(elem *list.Element) {
	me := elem.Value.(*memoryEntry)
	delete(s.byKey, me.entry.Key)
	s.order.Remove(elem)
}

// evictOldest must be called with the write lock held.
func (s *MemoryStore) evictOldest() {
	if back := s.order.Back(); back != nil {
		s.remove(back)
	}
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.purgeExpired()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryStore) purgeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*list.Element
	for elem := s.order.Back(); elem != nil; elem = elem.Prev() {
		if s.expired(elem.Value.(*memoryEntry)) {
			expired = append(expired, elem)
		}
	}
	for _, elem := range expired {
		s.remove(elem)
	}
}
