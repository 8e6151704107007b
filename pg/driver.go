/*
 * Copyright (c) 2026 QAIL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package pg is the asynchronous PostgreSQL driver of QAIL: commands built
with the qail package compile straight to protocol 3.0 frames, with no SQL
driver library underneath.

Connecting and Querying:
========================

	driver, err := pg.Connect(ctx, "postgres://app@db.internal/orders")
	if err != nil { ... }
	defer driver.Close()

	rows, err := driver.Query(ctx, qail.Get("harbors").Columns("id", "name").Limit(10))
	if err != nil { ... }
	defer rows.Close()
	for rows.Next() { ... }

The driver owns a bounded connection pool. Commands without bind values use
the Simple Query protocol; parameterized commands are prepared once per
connection and cached by their AST fingerprint. Batch pipelines many
executions behind a single Sync.
*/
package pg

import (
	"context"

	qail "github.com/qail-lang/qail-go"
	"github.com/qail-lang/qail-go/internal/logging"
	"github.com/qail-lang/qail-go/qerr"
)

// Affected is a count of rows touched by a command.
type Affected int64

// Driver is the public entry point: a connection pool plus the compile and
// decode machinery around it. Safe for concurrent use.
type Driver struct {
	cfg  *Config
	pool *pool
	log  *logging.Logger
}

// Connect parses the DSN and builds a driver. The minimum pool is warmed
// eagerly; the first failure to warm is logged, not fatal.
func Connect(ctx context.Context, dsn string) (*Driver, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return ConnectConfig(ctx, cfg)
}

// ConnectConfig builds a driver from an already-resolved configuration.
func ConnectConfig(ctx context.Context, cfg *Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{
		cfg:  cfg,
		pool: newPool(cfg),
		log:  logging.NewLogger("driver"),
	}
	d.pool.warm(ctx)
	return d, nil
}

// Query runs a command and streams its rows. The underlying connection
// returns to the pool when the Rows are closed.
func (d *Driver) Query(ctx context.Context, cmd *qail.Cmd) (*Rows, error) {
	c, err := d.pool.checkout(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := c.query(ctx, cmd)
	if err != nil {
		d.pool.checkin(c)
		return nil, err
	}
	rows.release = func(error) {
		d.pool.checkin(c)
	}
	return rows, nil
}

// Execute runs a command to completion and returns its affected-row count.
func (d *Driver) Execute(ctx context.Context, cmd *qail.Cmd) (Affected, error) {
	c, err := d.pool.checkout(ctx)
	if err != nil {
		return 0, err
	}
	defer d.pool.checkin(c)
	return c.execute(ctx, cmd)
}

// Batch pipelines the commands over one connection: N Bind+Execute pairs,
// one Sync. Results come back in send order. An empty batch sends nothing.
func (d *Driver) Batch(ctx context.Context, cmds []*qail.Cmd) ([]Affected, error) {
	c, err := d.pool.checkout(ctx)
	if err != nil {
		return nil, err
	}
	defer d.pool.checkin(c)
	return c.batch(ctx, cmds)
}

// CopyIn bulk-loads rows into a table via COPY FROM STDIN.
func (d *Driver) CopyIn(ctx context.Context, table string, columns []string, src RowSource) (Affected, error) {
	c, err := d.pool.checkout(ctx)
	if err != nil {
		return 0, err
	}
	defer d.pool.checkin(c)
	return c.copyIn(ctx, table, columns, src)
}

// Transaction runs fn inside BEGIN/COMMIT. A non-nil error from fn — or a
// connection poisoned along the way — rolls back instead.
func (d *Driver) Transaction(ctx context.Context, fn func(*Tx) error) error {
	c, err := d.pool.checkout(ctx)
	if err != nil {
		return err
	}
	defer d.pool.checkin(c)

	if _, err := c.executeSQL(ctx, "BEGIN"); err != nil {
		return err
	}
	tx := &Tx{conn: c}
	if err := fn(tx); err != nil {
		d.rollback(ctx, c)
		return err
	}
	if c.poisoned {
		return qerr.ConnPoisoned()
	}
	if _, err := c.executeSQL(ctx, "COMMIT"); err != nil {
		return err
	}
	return nil
}

func (d *Driver) rollback(ctx context.Context, c *conn) {
	if c.poisoned {
		return
	}
	if _, err := c.executeSQL(ctx, "ROLLBACK"); err != nil {
		d.log.Warn("rollback failed", "conn", c.id, "error", err)
	}
}

// Ping checks out a connection and runs the empty health query.
func (d *Driver) Ping(ctx context.Context) error {
	c, err := d.pool.checkout(ctx)
	if err != nil {
		return err
	}
	defer d.pool.checkin(c)
	return c.ping(ctx)
}

// Stats returns a snapshot of pool occupancy.
func (d *Driver) Stats() Stats {
	return d.pool.stats()
}

// Close shuts the driver down. In-flight connections close as they return.
func (d *Driver) Close() {
	d.pool.close()
}

// Tx is a transaction scope over one pinned connection.
type Tx struct {
	conn *conn
}

// Query runs a command inside the transaction.
func (t *Tx) Query(ctx context.Context, cmd *qail.Cmd) (*Rows, error) {
	return t.conn.query(ctx, cmd)
}

// Execute runs a command inside the transaction.
func (t *Tx) Execute(ctx context.Context, cmd *qail.Cmd) (Affected, error) {
	return t.conn.execute(ctx, cmd)
}

// Batch pipelines commands inside the transaction.
func (t *Tx) Batch(ctx context.Context, cmds []*qail.Cmd) ([]Affected, error) {
	return t.conn.batch(ctx, cmds)
}

// Cancel fires an out-of-band CancelRequest against the statement currently
// running on this transaction's connection.
func (t *Tx) Cancel(ctx context.Context) error {
	return t.conn.cancel(ctx)
}
