package cacheredis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"firmaflow/internal/domain"
	"firmaflow/internal/usecase"

	"github.com/redis/go-redis/v9"
)

const keyspace = "firmaflow:validity:"

// Cache stores validation outcomes in redis so multiple instances share
// one view of certificate validity, and revocation on one node
// invalidates everywhere.
type Cache struct {
	client *redis.Client
}

func New(addr, password string, db int) (*Cache, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Cache{client: client}, nil
}

func (c *Cache) Get(ctx context.Context, key string) (*domain.ValidationOutcome, bool, error) {
	raw, err := c.client.Get(ctx, keyspace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var outcome domain.ValidationOutcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return nil, false, err
	}
	return &outcome, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, outcome domain.ValidationOutcome, ttl time.Duration) error {
	raw, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyspace+key, raw, ttl).Err()
}

// Delete scans for keys under the prefix and removes them in batches.
func (c *Cache) Delete(ctx context.Context, keyPrefix string) error {
	iter := c.client.Scan(ctx, 0, keyspace+keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

var _ usecase.ValidationCache = (*Cache)(nil)
