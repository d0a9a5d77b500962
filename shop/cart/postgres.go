/*
   plugchain - extension-point runtime
   Copyright (C) 2025  the plugchain Contributors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"plugchain/plugin"
)

const defaultPostgresDSN = "database=plugchain host=/var/run/postgresql port=5432 sslmode=disable"

func init() {
	RegisterBackend("postgres", func(cfg plugin.Config) (Backend, error) {
		db, err := sql.Open("postgres", cfg.String("postgresDSN", defaultPostgresDSN))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		b, err := NewPostgresBackend(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return b, nil
	})
}

var crTablesSQL = []string{
	`CREATE TABLE IF NOT EXISTS carts
(
id TEXT NOT NULL PRIMARY KEY,
doc jsonb NOT NULL,
ctime TIMESTAMPTZ NOT NULL,
mtime TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS carts_mtime
ON carts(mtime);`,
}

const (
	selectCartSQL = `SELECT doc FROM carts WHERE id = $1`
	upsertCartSQL = `INSERT INTO carts (id, doc, ctime, mtime) VALUES ($1, $2, $3, $3)
ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, mtime = EXCLUDED.mtime`
	deleteCartSQL = `DELETE FROM carts WHERE id = $1`
)

// PostgresBackend keeps carts as jsonb documents in PostgreSQL.
type PostgresBackend struct {
	*sql.DB
}

// NewPostgresBackend creates the cart tables if needed.
func NewPostgresBackend(db *sql.DB) (*PostgresBackend, error) {
	b := &PostgresBackend{DB: db}
	if err := b.execSingleTx(crTablesSQL); err != nil {
		return nil, errors.Wrap(err, "failed to create tables")
	}
	return b, nil
}

// sqlDesc turns the first line of each statement into a log-friendly
// identifier.
func sqlDesc(stmt string) string {
	first, _, _ := strings.Cut(stmt, "\n")
	return strings.Replace(first, " ", "_", -1)
}

func (b *PostgresBackend) execSingleTx(stmts []string) (err error) {
	t := time.Now()
	tx, err := b.Begin()
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if err == nil {
			err = tx.Commit()
		}
		if err != nil {
			tx.Rollback()
		}
	}()
	for _, stmt := range stmts {
		if _, err = tx.Exec(stmt); err != nil {
			return errors.Wrapf(err, "issuing DB server job %s", sqlDesc(stmt))
		}
	}
	log.Debugf("Transaction finished in %v", time.Since(t))
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, id string) (*Cart, error) {
	var doc []byte
	err := b.QueryRowContext(ctx, selectCartSQL, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return &Cart{ID: id}, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to get cart %q", id)
	}
	var c Cart
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, errors.Wrapf(err, "corrupt cart %q", id)
	}
	return &c, nil
}

func (b *PostgresBackend) Save(ctx context.Context, c *Cart) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := b.ExecContext(ctx, upsertCartSQL, c.ID, doc, time.Now().UTC()); err != nil {
		return errors.Wrapf(err, "failed to save cart %q", c.ID)
	}
	return nil
}

func (b *PostgresBackend) Delete(ctx context.Context, id string) error {
	if _, err := b.ExecContext(ctx, deleteCartSQL, id); err != nil {
		return errors.Wrapf(err, "failed to delete cart %q", id)
	}
	return nil
}
