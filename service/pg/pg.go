// Package pg opens the Postgres pool the SQL message store runs on.
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"AirChat/tools/errs"
)

type Config struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

func Open(ctx context.Context, c Config) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, errs.WrapMsg(err, "parse postgres url")
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, errs.WrapMsg(err, "open postgres pool")
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var ok string
	if err := pool.QueryRow(pctx, "SELECT 'ok'").Scan(&ok); err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "postgres ping")
	}
	return pool, nil
}
