package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic-lock retries when writers race on a thread.
const maxTxRetries = 10

// ErrTxConflict indicates a Put lost the optimistic lock too many times.
var ErrTxConflict = errors.New("checkpoint transaction conflict")

// RedisStore persists checkpoints to Redis.
// Each thread is a sorted set scored by sequence; Put uses WATCH/MULTI
// so concurrent writers to one thread cannot interleave.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	mu     sync.RWMutex
	closed bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the expiration applied to a thread's history on every write.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for threads.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis checkpoint store connected to address.
func NewRedisStore(address, password string, db int, opts ...RedisOption) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(client, opts...)
}

// NewRedisStoreFromClient creates a Redis checkpoint store from an existing client.
// The store takes ownership of the client and closes it on Close.
func NewRedisStoreFromClient(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: "stategraph:thread:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(threadID string) string {
	return s.prefix + threadID
}

func (s *RedisStore) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, cp *Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	if s.isClosed() {
		return ErrStoreClosed
	}
	data, err := cp.Marshal()
	if err != nil {
		return err
	}

	key := s.key(cp.ThreadID)
	txf := func(tx *redis.Tx) error {
		latest, err := tx.ZRevRangeWithScores(ctx, key, 0, 0).Result()
		if err != nil {
			return fmt.Errorf("read latest sequence: %w", err)
		}
		if len(latest) > 0 && float64(cp.Sequence) <= latest[0].Score {
			return staleError(cp.ThreadID, cp.Sequence, int(latest[0].Score))
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, key, redis.Z{
				Score:  float64(cp.Sequence),
				Member: data,
			})
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrStaleCheckpoint) {
			return err
		}
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return fmt.Errorf("%w: thread %s", ErrTxConflict, cp.ThreadID)
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	vals, err := s.client.ZRevRange(ctx, s.key(threadID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrNotFound
	}
	return Unmarshal([]byte(vals[0]))
}

// List implements Store.
func (s *RedisStore) List(ctx context.Context, threadID string) ([]Info, error) {
	if s.isClosed() {
		return nil, ErrStoreClosed
	}

	vals, err := s.client.ZRange(ctx, s.key(threadID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	infos := make([]Info, 0, len(vals))
	for _, v := range vals {
		cp, err := Unmarshal([]byte(v))
		if err != nil {
			return nil, fmt.Errorf("decode checkpoint: %w", err)
		}
		infos = append(infos, infoFor(cp, len(v)))
	}
	return infos, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	if s.isClosed() {
		return ErrStoreClosed
	}
	if err := s.client.Del(ctx, s.key(threadID)).Err(); err != nil {
		return fmt.Errorf("delete thread checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
