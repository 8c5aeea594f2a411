package resource

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/hnhuaxi/refsingleton/singleton"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Redis shares one client per singleton. The client is pinged before it is
// handed out and closed with the last reference.
func Redis(opts *redis.Options) Spec[*redis.Client] {
	return RedisClient(func() *redis.Client {
		return redis.NewClient(opts)
	})
}

// RedisClient is Redis with a custom dialer.
func RedisClient(dial func() *redis.Client) Spec[*redis.Client] {
	return Spec[*redis.Client]{
		Name: "redis",
		Factory: func(ctx context.Context) (*redis.Client, error) {
			cli := dial()
			if err := cli.Ping(ctx).Err(); err != nil {
				return nil, multierr.Append(errors.Wrap(err, "resource: redis ping"), cli.Close())
			}
			return cli, nil
		},
		Destroy: singleton.Closer[*redis.Client](),
	}
}
