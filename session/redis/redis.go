package redis_session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/picbot/session"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix     = "picbot:session:"
	defaultMaxRetries = 64
)

// Store keeps one JSON document per owner. Modify is an optimistic
// WATCH/MULTI transaction on the owner's key.
type Store struct {
	client     *redis.Client
	prefix     string
	idleTTL    time.Duration
	maxRetries int
	now        func() time.Time
}

type Option func(*Store)

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithIdleTTL sets the key expiry, refreshed on every write. Zero keeps keys forever.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *Store) { s.idleTTL = ttl }
}

func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func NewRedisSessionStore(client *redis.Client, opts ...Option) *Store {
	store := &Store{
		client:     client,
		prefix:     DefaultPrefix,
		maxRetries: defaultMaxRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (store *Store) key(owner string) string { return store.prefix + owner }

func (store *Store) Create(ctx context.Context, owner, query string, results []session.ImageRef) (string, error) {
	sess, err := session.New(uuid.NewString(), owner, query, results, store.now())
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	if err := store.client.Set(ctx, store.key(owner), data, store.idleTTL).Err(); err != nil {
		return "", fmt.Errorf("redis set session %s: %w", owner, err)
	}
	return sess.ID, nil
}

func (store *Store) Get(ctx context.Context, owner string) (session.Session, error) {
	data, err := store.client.Get(ctx, store.key(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Session{}, session.ErrSessionExpired
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("redis get session %s: %w", owner, err)
	}
	return decode(data)
}

func (store *Store) Update(ctx context.Context, owner string, position int) error {
	_, err := store.Modify(ctx, owner, func(cur session.Session) (session.Session, error) {
		cur.Position = position
		return cur, nil
	})
	return err
}

func (store *Store) Remove(ctx context.Context, owner string) error {
	if err := store.client.Del(ctx, store.key(owner)).Err(); err != nil {
		return fmt.Errorf("redis del session %s: %w", owner, err)
	}
	return nil
}

func (store *Store) Modify(ctx context.Context, owner string, fn session.Mutator) (session.Session, error) {
	key := store.key(owner)
	var out session.Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return session.ErrSessionExpired
		}
		if err != nil {
			return err
		}
		cur, err := decode(data)
		if err != nil {
			return err
		}
		next, err := fn(cur.Clone())
		if err != nil {
			return err
		}
		next.ID, next.Owner, next.Query, next.Results, next.CreatedAt = cur.ID, cur.Owner, cur.Query, cur.Results, cur.CreatedAt
		next.UpdatedAt = store.now()

		if next.State != session.Published {
			if err := next.Validate(); err != nil {
				return err
			}
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next.State == session.Published {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, encoded, store.idleTTL)
			return nil
		})
		if err != nil {
			return err
		}
		out = next
		return nil
	}

	for attempt := 0; attempt < store.maxRetries; attempt++ {
		err := store.client.Watch(ctx, txf, key)
		if err == nil {
			return out.Clone(), nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return session.Session{}, err
	}
	return session.Session{}, fmt.Errorf("modify session %s after %d attempts: %w", owner, store.maxRetries, redis.TxFailedErr)
}

// Close releases the underlying client.
func (store *Store) Close() error { return store.client.Close() }

func decode(data []byte) (session.Session, error) {
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return session.Session{}, fmt.Errorf("%w: undecodable session: %v", session.ErrInvariantViolation, err)
	}
	return sess, nil
}

// Conn dials redis and checks it answers PING.
func Conn(ctx context.Context, addr, password string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: timeout,
		Password:    password,
		DB:          db,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}
