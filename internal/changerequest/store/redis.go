package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"crboard/pkg/platform/sentinel"
)

// DefaultRedisKey is the hash that holds the document and its version.
const DefaultRedisKey = "crboard:registry"

const (
	fieldDoc     = "doc"
	fieldVersion = "version"
)

// RedisBackend stores the document in a Redis hash. Put uses WATCH/MULTI so
// a concurrent writer between the version check and the write aborts the
// transaction.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedis constructs a Redis-backed document backend. An empty key uses
// DefaultRedisKey.
func NewRedis(client *redis.Client, key string) *RedisBackend {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{client: client, key: key}
}

func (r *RedisBackend) Get(ctx context.Context) ([]byte, int64, error) {
	vals, err := r.client.HMGet(ctx, r.key, fieldDoc, fieldVersion).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis get document: %w", err)
	}
	if vals[0] == nil || vals[1] == nil {
		return nil, 0, sentinel.ErrNotFound
	}
	doc, ok := vals[0].(string)
	if !ok {
		return nil, 0, fmt.Errorf("redis document has type %T", vals[0])
	}
	raw, _ := vals[1].(string)
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("redis document version %q: %w", raw, err)
	}
	return []byte(doc), version, nil
}

func (r *RedisBackend) Put(ctx context.Context, doc []byte, expected int64) (int64, error) {
	var next int64
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, r.key, fieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			current = 0
		} else if err != nil {
			return fmt.Errorf("redis read version: %w", err)
		}
		if current != expected {
			return sentinel.ErrConflict
		}
		next = current + 1
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key, fieldDoc, doc, fieldVersion, next)
			return nil
		})
		return err
	}, r.key)

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, redis.TxFailedErr):
		return 0, sentinel.ErrConflict
	default:
		return 0, fmt.Errorf("redis put document: %w", err)
	}
}
