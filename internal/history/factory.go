package history

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Driver selects a [Store] implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverRedis    Driver = "redis"
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Options configures [Open].
type Options struct {
	Driver Driver

	// DSN is a redis:// URL, a PostgreSQL connection string or a SQLite file
	// path, depending on Driver. Unused by the memory driver.
	DSN string

	MaxPairs int
	TTL      time.Duration

	// KeyPrefix namespaces Redis keys.
	KeyPrefix string
}

// Open creates the store selected by opts.Driver. An empty driver selects
// the memory store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverMemory, "":
		return NewMemoryStore(opts.MaxPairs, opts.TTL), nil

	case DriverRedis:
		if opts.DSN == "" {
			return nil, fmt.Errorf("%w: redis driver needs a dsn", ErrInvalidConfig)
		}
		ropts, err := redis.ParseURL(opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("%w: redis dsn: %w", ErrInvalidConfig, err)
		}
		client := redis.NewClient(ropts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("history: redis ping: %w", err)
		}
		return NewRedisStore(client, opts.KeyPrefix, opts.MaxPairs, opts.TTL), nil

	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("%w: postgres driver needs a dsn", ErrInvalidConfig)
		}
		return NewPostgresStore(ctx, opts.DSN, opts.MaxPairs, opts.TTL)

	case DriverSQLite:
		return NewSQLiteStore(opts.DSN, opts.MaxPairs, opts.TTL)

	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrInvalidConfig, opts.Driver)
	}
}
