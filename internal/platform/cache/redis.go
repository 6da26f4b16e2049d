// Package cache opens the Redis connection shared by sessions and the item cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Options selects the Redis server and logical database.
type Options struct {
	Addr     string
	Password string
	DB       int
}

func (o Options) client() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB})
}

// Open returns a client without contacting the server.
func Open(opts Options) *redis.Client {
	return opts.client()
}

// Connect returns a client after a successful PING. The client is closed when
// the server does not answer.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := opts.client()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s db %d: %w", opts.Addr, opts.DB, err)
	}
	return client, nil
}
