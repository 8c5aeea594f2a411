package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/hnhuaxi/refsingleton/singleton"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestRedisShared(t *testing.T) {
	var (
		ctx   = context.Background()
		dials atomic.Int32
		mocks []redismock.ClientMock
	)

	spec := RedisClient(func() *redis.Client {
		dials.Inc()
		db, mock := redismock.NewClientMock()
		mock.ExpectPing().SetVal("PONG")
		mock.ExpectGet("session").SetVal("bob")
		mocks = append(mocks, mock)
		return db
	})
	s := spec.Singleton()
	assert.Equal(t, "redis", s.Name())

	r1, err := s.GetOrInit(ctx, spec.Factory)
	require.NoError(t, err)
	r2, err := s.GetOrInit(ctx, spec.Factory)
	require.NoError(t, err)

	assert.True(t, r1.Same(r2))
	assert.EqualValues(t, 1, dials.Load())

	v, err := r2.Value().Get(ctx, "session").Result()
	require.NoError(t, err)
	assert.Equal(t, "bob", v)
	assert.NoError(t, mocks[0].ExpectationsWereMet())

	assert.NoError(t, r1.Release())
	assert.NoError(t, r2.Release())

	r3, err := s.GetOrInit(ctx, spec.Factory)
	require.NoError(t, err)
	defer r3.Release()

	assert.EqualValues(t, 2, dials.Load())
	assert.EqualValues(t, 2, r3.Generation())
}

func TestRedisPingFailure(t *testing.T) {
	var (
		ctx        = context.Background()
		errRefused = errors.New("connection refused")
		attempts   atomic.Int32
		failed     *redis.Client
	)

	spec := RedisClient(func() *redis.Client {
		db, mock := redismock.NewClientMock()
		if attempts.Inc() == 1 {
			failed = db
			mock.ExpectPing().SetErr(errRefused)
		} else {
			mock.ExpectPing().SetVal("PONG")
		}
		return db
	})
	s := spec.Singleton()

	_, err := s.GetOrInit(ctx, spec.Factory)
	assert.ErrorIs(t, err, errRefused)
	assert.Contains(t, err.Error(), "resource: redis ping")
	assert.Equal(t, redis.ErrClosed, failed.Close())

	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, singleton.ErrEmpty)

	ref, err := s.GetOrInit(ctx, spec.Factory)
	require.NoError(t, err)
	assert.EqualValues(t, 1, ref.Generation())
	assert.NoError(t, ref.Release())
}

func TestRedisRegistry(t *testing.T) {
	var (
		ctx  = context.Background()
		base = RedisClient(nil)
		reg  = base.Registry()
	)

	for _, name := range []string{"cache", "session"} {
		spec := RedisClient(func() *redis.Client {
			db, mock := redismock.NewClientMock()
			mock.ExpectPing().SetVal("PONG")
			return db
		})
		assert.True(t, reg.Register(name, spec.Factory))
	}

	cache, err := reg.Acquire(ctx, "cache")
	require.NoError(t, err)
	session, err := reg.Acquire(ctx, "session")
	require.NoError(t, err)

	assert.NotSame(t, cache.Value(), session.Value())
	assert.Equal(t, []string{"cache", "session"}, reg.Live())

	assert.NoError(t, cache.Release())
	assert.NoError(t, session.Release())
	assert.Empty(t, reg.Live())
}
