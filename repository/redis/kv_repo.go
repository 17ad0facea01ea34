package redis

import (
	"context"

	redislib "github.com/redis/go-redis/v9"

	"github.com/vidsum/backend/repository"
)

type kvStore struct {
	client *redislib.Client
	prefix string
}

// NewKVStore creates a Redis-backed store for auth bookkeeping. It is an
// alternative to the default Bolt store for deployments that already run
// Redis.
func NewKVStore(client *redislib.Client) repository.KVStore {
	return &kvStore{
		client: client,
		prefix: "authstate:",
	}
}

func (r *kvStore) Get(ctx context.Context, key string) (string, bool, error) {
	result, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if err == redislib.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	return result, true, nil
}

func (r *kvStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

func (r *kvStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
