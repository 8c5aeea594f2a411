package resource

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/hnhuaxi/refsingleton/singleton"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Gorm opens dialector once per generation and closes the underlying pool on
// the last release.
func Gorm(dialector gorm.Dialector, cfg *gorm.Config) Spec[*gorm.DB] {
	if cfg == nil {
		cfg = &gorm.Config{}
	}

	return Spec[*gorm.DB]{
		Name: "gorm",
		Factory: func(ctx context.Context) (*gorm.DB, error) {
			db, err := gorm.Open(dialector, cfg)
			if err != nil {
				return nil, errors.Wrap(err, "resource: gorm open")
			}

			sqlDB, err := db.DB()
			if err != nil {
				return nil, errors.Wrap(err, "resource: gorm pool")
			}

			if err := sqlDB.PingContext(ctx); err != nil {
				return nil, multierr.Append(errors.Wrap(err, "resource: gorm ping"), sqlDB.Close())
			}

			return db, nil
		},
		Destroy: func(db *gorm.DB) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

// MySQL opens a database/sql pool through go-sql-driver/mysql. The DSN is
// validated up front so a typo fails without dialing.
func MySQL(dsn string) Spec[*sql.DB] {
	return Spec[*sql.DB]{
		Name: "mysql",
		Factory: func(ctx context.Context) (*sql.DB, error) {
			cfg, err := mysql.ParseDSN(dsn)
			if err != nil {
				return nil, errors.Wrap(err, "resource: mysql dsn")
			}

			connector, err := mysql.NewConnector(cfg)
			if err != nil {
				return nil, errors.Wrap(err, "resource: mysql connector")
			}

			db := sql.OpenDB(connector)
			if err := db.PingContext(ctx); err != nil {
				return nil, multierr.Append(errors.Wrapf(err, "resource: mysql ping %s", cfg.Addr), db.Close())
			}

			return db, nil
		},
		Destroy: singleton.Closer[*sql.DB](),
	}
}
