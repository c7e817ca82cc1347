package dedup

import (
	"context"
	"fmt"
	"time"

	appconfig "fundingwatch/config"
)

// Store remembers which settlements have already been alerted.
type Store interface {
	// Seen reports which of keys were marked and have not expired.
	Seen(ctx context.Context, keys []string) (map[string]bool, error)
	// Mark records keys for ttl.
	Mark(ctx context.Context, keys []string, ttl time.Duration) error
	Close() error
}

// New builds the store selected by cfg. It returns nil when suppression is
// disabled.
func New(ctx context.Context, cfg appconfig.DedupConfig, redisCfg appconfig.RedisConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		store, err := NewRedis(ctx, redisCfg, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown dedup backend %q", cfg.Backend)
	}
}
