package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/picbot/session"
)

// Store keeps sessions in process memory. Mutations for one owner are
// serialised by a per-owner mutex; the map itself is guarded by mu.
type Store struct {
	sessions map[string]session.Session
	mu       sync.RWMutex
	locks    ownerLocks
	idleTTL  time.Duration
	now      func() time.Time
}

type Option func(*Store)

// WithIdleTTL evicts sessions untouched for longer than ttl. Zero disables eviction.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *Store) { s.idleTTL = ttl }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewInMemorySessionStore(opts ...Option) *Store {
	store := &Store{
		sessions: make(map[string]session.Session),
		locks:    ownerLocks{held: make(map[string]*ownerLock)},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (store *Store) Create(ctx context.Context, owner, query string, results []session.ImageRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sess, err := session.New(uuid.NewString(), owner, query, results, store.now())
	if err != nil {
		return "", err
	}

	unlock := store.locks.lock(owner)
	defer unlock()

	store.mu.Lock()
	store.sessions[owner] = sess
	store.mu.Unlock()
	return sess.ID, nil
}

func (store *Store) Get(ctx context.Context, owner string) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	store.mu.RLock()
	sess, ok := store.sessions[owner]
	store.mu.RUnlock()
	if !ok {
		return session.Session{}, session.ErrSessionExpired
	}
	if store.expired(sess) {
		store.evict(owner, sess.ID)
		return session.Session{}, session.ErrSessionExpired
	}
	return sess.Clone(), nil
}

func (store *Store) Update(ctx context.Context, owner string, position int) error {
	_, err := store.Modify(ctx, owner, func(cur session.Session) (session.Session, error) {
		cur.Position = position
		return cur, nil
	})
	return err
}

func (store *Store) Remove(ctx context.Context, owner string) error {
	unlock := store.locks.lock(owner)
	defer unlock()

	store.mu.Lock()
	delete(store.sessions, owner)
	store.mu.Unlock()
	return nil
}

func (store *Store) Modify(ctx context.Context, owner string, fn session.Mutator) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return session.Session{}, err
	}
	unlock := store.locks.lock(owner)
	defer unlock()

	store.mu.RLock()
	cur, ok := store.sessions[owner]
	store.mu.RUnlock()
	if !ok || store.expired(cur) {
		if ok {
			store.mu.Lock()
			delete(store.sessions, owner)
			store.mu.Unlock()
		}
		return session.Session{}, session.ErrSessionExpired
	}

	next, err := fn(cur.Clone())
	if err != nil {
		return session.Session{}, err
	}
	// Identity and results are fixed for the session lifetime.
	next.ID, next.Owner, next.Query, next.Results, next.CreatedAt = cur.ID, cur.Owner, cur.Query, cur.Results, cur.CreatedAt
	next.UpdatedAt = store.now()

	if next.State == session.Published {
		store.mu.Lock()
		delete(store.sessions, owner)
		store.mu.Unlock()
		return next.Clone(), nil
	}
	if err := next.Validate(); err != nil {
		return session.Session{}, err
	}
	store.mu.Lock()
	store.sessions[owner] = next
	store.mu.Unlock()
	return next.Clone(), nil
}

// Len reports the number of stored sessions, expired ones included until swept.
func (store *Store) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.sessions)
}

// Sweep removes idle sessions and returns how many were evicted.
func (store *Store) Sweep() int {
	if store.idleTTL <= 0 {
		return 0
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	n := 0
	for owner, sess := range store.sessions {
		if store.expired(sess) {
			delete(store.sessions, owner)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (store *Store) Run(ctx context.Context, interval time.Duration) {
	if store.idleTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Sweep()
		}
	}
}

func (store *Store) Close() error { return nil }

func (store *Store) expired(sess session.Session) bool {
	return store.idleTTL > 0 && store.now().Sub(sess.UpdatedAt) > store.idleTTL
}

// evict deletes owner's session only if it is still the expired one we saw.
func (store *Store) evict(owner, id string) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if cur, ok := store.sessions[owner]; ok && cur.ID == id && store.expired(cur) {
		delete(store.sessions, owner)
	}
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

// ownerLocks hands out one mutex per owner and forgets it when nobody holds it.
type ownerLocks struct {
	mu   sync.Mutex
	held map[string]*ownerLock
}

func (l *ownerLocks) lock(owner string) func() {
	l.mu.Lock()
	ol, ok := l.held[owner]
	if !ok {
		ol = &ownerLock{}
		l.held[owner] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.mu.Lock()
	return func() {
		ol.mu.Unlock()
		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.held, owner)
		}
		l.mu.Unlock()
	}
}
