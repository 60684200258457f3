package tokenstore

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/jukebox/internal/app/credential"
	"github.com/osa030/jukebox/internal/infra/config"
)

// Backend types.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config selects and configures a store backend.
type Config struct {
	Backend string
	File    string
	Redis   RedisConfig
}

// Open creates the configured store. The returned close function releases
// backend connections and is never nil.
func Open(cfg Config) (credential.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case BackendMemory, "":
		return credential.NewMemoryStore(), noop, nil
	case BackendFile:
		s, err := NewFileStore(cfg.File)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case BackendRedis:
		s, err := NewRedisStore(cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, errors.Newf("unknown credential backend: %s", cfg.Backend)
	}
}

// OpenFromConfig creates the store selected by the credentials config section.
func OpenFromConfig(cfg config.CredentialsConfig) (credential.Store, func() error, error) {
	return Open(Config{
		Backend: cfg.Backend,
		File:    cfg.File,
		Redis: RedisConfig{
			Host:      cfg.Redis.Host,
			Port:      cfg.Redis.Port,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		},
	})
}
