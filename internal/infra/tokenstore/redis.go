package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	redislib "github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"
)

const defaultKeyPrefix = "jukebox:credential:"

// RedisConfig represents Redis connection configuration.
type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore keeps tokens in Redis so several hosts can share one login.
type RedisStore struct {
	client *redislib.Client
	prefix string
}

// NewRedisStore connects to Redis, retrying the initial ping with backoff.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redislib.NewClient(&redislib.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	attempts := 5
	backoff := 200 * time.Millisecond

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = client.Ping(ctx).Err()
		cancel()

		if err == nil {
			return newRedisStore(client, cfg.KeyPrefix), nil
		}
		if attempt < attempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	_ = client.Close()
	return nil, errors.Wrap(err, "failed to connect to redis")
}

func newRedisStore(client *redislib.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get returns the token for name. Connection errors are reported as absence.
func (s *RedisStore) Get(ctx context.Context, name string) (string, bool) {
	v, err := s.client.Get(ctx, s.key(name)).Result()
	if err != nil {
		if !errors.Is(err, redislib.Nil) {
			zlog.Debug().Err(err).Msgf("tokenstore: redis get failed: name=%s", name)
		}
		return "", false
	}
	return v, v != ""
}

// Set stores a token. An empty value deletes it.
func (s *RedisStore) Set(ctx context.Context, name, value string) error {
	if value == "" {
		if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
			return errors.Wrapf(err, "failed to delete %s", name)
		}
		return nil
	}
	if err := s.client.Set(ctx, s.key(name), value, 0).Err(); err != nil {
		return errors.Wrapf(err, "failed to store %s", name)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}
