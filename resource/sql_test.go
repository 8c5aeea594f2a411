package resource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hnhuaxi/refsingleton/singleton"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

type Account struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestGormShared(t *testing.T) {
	var (
		ctx  = context.Background()
		spec = Gorm(sqlite.Open(filepath.Join(t.TempDir(), "shared.db")), nil)
		s    = spec.Singleton()
	)

	r1, err := s.GetOrInit(ctx, spec.Factory)
	require.NoError(t, err)
	r2, err := s.GetOrInit(ctx, spec.Factory)
	require.NoError(t, err)
	assert.Same(t, r1.Value(), r2.Value())

	require.NoError(t, r1.Value().AutoMigrate(&Account{}))
	require.NoError(t, r2.Value().Create(&Account{Name: "bob"}).Error)

	sqlDB, err := r1.Value().DB()
	require.NoError(t, err)

	assert.NoError(t, r1.Release())
	assert.NoError(t, sqlDB.Ping())
	assert.NoError(t, r2.Release())
	assert.Error(t, sqlDB.Ping())

	r3, err := s.GetOrInit(ctx, spec.Factory)
	require.NoError(t, err)
	defer r3.Release()

	var acc Account
	require.NoError(t, r3.Value().First(&acc).Error)
	assert.Equal(t, "bob", acc.Name)
	assert.EqualValues(t, 2, r3.Generation())
}

func TestGormOpenFailure(t *testing.T) {
	var (
		ctx  = context.Background()
		spec = Gorm(sqlite.Open(filepath.Join(t.TempDir(), "missing", "dir", "x.db")), nil)
		s    = spec.Singleton(singleton.OptName("broken"))
	)

	_, err := s.GetOrInit(ctx, spec.Factory)
	assert.Error(t, err)
	assert.Equal(t, "broken", s.Name())
	assert.False(t, s.Stats().Live)
}

func TestMySQLInvalidDSN(t *testing.T) {
	var (
		ctx  = context.Background()
		spec = MySQL("not a dsn")
		s    = spec.Singleton()
	)

	_, err := s.GetOrInit(ctx, spec.Factory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource: mysql dsn")

	_, err = s.Get(ctx)
	assert.ErrorIs(t, err, singleton.ErrEmpty)
}

func TestMySQLCancelledPing(t *testing.T) {
	spec := MySQL("user:secret@tcp(127.0.0.1:3306)/app?parseTime=true")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	db, err := spec.Factory(ctx)
	assert.Nil(t, db)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "127.0.0.1:3306")
}
