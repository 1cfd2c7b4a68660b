package refs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/odvcencio/arbor/pkg/object"
)

// RedisConfig holds connection settings for a redis-backed ref store.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	Database int
	// Prefix namespaces every key so several repositories can share a
	// database.
	Prefix string
}

// RedisStore keeps refs in redis. Compare-and-swap uses WATCH on the ref
// key followed by a MULTI/EXEC transaction; a transaction aborted by a
// concurrent writer is retried against the fresh value.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// DialRedisStore connects to redis and verifies the connection.
func DialRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStore(client, cfg.Prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) refKey(name string) string { return s.prefix + "ref:" + name }
func (s *RedisStore) headKey() string           { return s.prefix + "HEAD" }

func (s *RedisStore) Read(ctx context.Context, name string) (object.Hash, bool, error) {
	if err := ValidateName(name); err != nil {
		return "", false, err
	}
	v, err := s.client.Get(ctx, s.refKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read ref %q: %w", name, err)
	}
	return object.Hash(v), true, nil
}

func (s *RedisStore) Update(ctx context.Context, name string, expectedOld, newID object.Hash) (bool, error) {
	if err := checkUpdate(name, expectedOld, newID); err != nil {
		return false, err
	}
	ok, err := s.cas(ctx, s.refKey(name), func(cur string) (string, bool, error) {
		if object.Hash(cur) != expectedOld {
			return "", false, nil
		}
		return string(newID), true, nil
	})
	if err != nil {
		return false, fmt.Errorf("update ref %q: %w", name, err)
	}
	return ok, nil
}

func (s *RedisStore) Delete(ctx context.Context, name string, expectedOld object.Hash) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	ok, err := s.cas(ctx, s.refKey(name), func(cur string) (string, bool, error) {
		if cur == "" || (expectedOld != "" && object.Hash(cur) != expectedOld) {
			return "", false, nil
		}
		return "", true, nil
	})
	if err != nil {
		return false, fmt.Errorf("delete ref %q: %w", name, err)
	}
	return ok, nil
}

func (s *RedisStore) List(ctx context.Context, prefix string) (map[string]object.Hash, error) {
	keyPrefix := s.refKey("")
	out := make(map[string]object.Hash)
	iter := s.client.Scan(ctx, 0, keyPrefix+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		v, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list refs: %w", err)
		}
		out[strings.TrimPrefix(key, keyPrefix)] = object.Hash(v)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return out, nil
}

func (s *RedisStore) ReadHead(ctx context.Context) (Head, error) {
	v, err := s.client.Get(ctx, s.headKey()).Result()
	if errors.Is(err, redis.Nil) {
		return Head{}, nil
	}
	if err != nil {
		return Head{}, fmt.Errorf("read HEAD: %w", err)
	}
	return parseHead(v)
}

func (s *RedisStore) SetHead(ctx context.Context, h Head) error {
	if err := h.validate(); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.headKey(), h.String(), 0).Err(); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	return nil
}

func (s *RedisStore) UpdateHead(ctx context.Context, expected, next Head) (bool, error) {
	if err := next.validate(); err != nil {
		return false, err
	}
	ok, err := s.cas(ctx, s.headKey(), func(cur string) (string, bool, error) {
		curHead, err := parseHead(cur)
		if err != nil {
			return "", false, err
		}
		if curHead != expected {
			return "", false, nil
		}
		return next.String(), true, nil
	})
	if err != nil {
		return false, fmt.Errorf("update HEAD: %w", err)
	}
	return ok, nil
}

// Close releases the client's connections.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// cas watches key, lets decide inspect the current value ("" when absent)
// and commits the replacement in a MULTI/EXEC block. An empty replacement
// deletes the key.
func (s *RedisStore) cas(ctx context.Context, key string, decide func(cur string) (string, bool, error)) (bool, error) {
	for {
		var swapped bool
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				cur = ""
			} else if err != nil {
				return err
			}

			next, ok, err := decide(cur)
			if err != nil || !ok {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if next == "" {
					pipe.Del(ctx, key)
				} else {
					pipe.Set(ctx, key, next, 0)
				}
				return nil
			})
			if err == nil {
				swapped = true
			}
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			continue
		}
		if err != nil {
			return false, err
		}
		return swapped, nil
	}
}
