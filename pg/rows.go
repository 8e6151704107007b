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

package pg

import (
	qail "github.com/qail-lang/qail-go"
	"github.com/qail-lang/qail-go/internal/pgtype"
	"github.com/qail-lang/qail-go/internal/wire"
	"github.com/qail-lang/qail-go/qerr"
)

// Row is one decoded result row: ordered (name, value) pairs.
type Row struct {
	names  []string
	values []qail.Value
}

// Len returns the column count.
func (r Row) Len() int {
	return len(r.values)
}

// Name returns the column name at position i.
func (r Row) Name(i int) string {
	return r.names[i]
}

// Value returns the column value at position i.
func (r Row) Value(i int) qail.Value {
	return r.values[i]
}

// Get returns the value of the named column.
func (r Row) Get(name string) (qail.Value, bool) {
	for i, n := range r.names {
		if n == name {
			return r.values[i], true
		}
	}
	return qail.Null(), false
}

// Rows streams a query's result set off the connection. The connection
// stays checked out until Close, and rows arrive in server order. Usage:
//
//	rows, err := driver.Query(ctx, cmd)
//	if err != nil { ... }
//	defer rows.Close()
//	for rows.Next() {
//		row := rows.Row()
//		...
//	}
//	if err := rows.Err(); err != nil { ... }
type Rows struct {
	conn    *conn
	stop    func()          // context watcher teardown
	release func(err error) // returns the connection to its pool
	strict  bool

	desc  []wire.FieldDesc
	names []string
	row   Row

	err      error
	complete bool // saw CommandComplete or equivalent
	finished bool // saw ReadyForQuery
	closed   bool
	affected int64
}

// Next advances to the next row. It returns false at the end of the set or
// on error; check Err after the loop.
func (r *Rows) Next() bool {
	if r.closed || r.finished || r.err != nil && r.conn.poisoned {
		return false
	}
	for {
		tag, body, err := r.conn.readMessage()
		if err != nil {
			r.setErr(err)
			r.finished = true
			return false
		}
		switch tag {
		case wire.MsgParseComplete, wire.MsgBindComplete, wire.MsgCloseComplete:
		case wire.MsgParameterStatus:
			if k, v, perr := wire.ParseParameterStatus(body); perr == nil {
				r.conn.serverParams[k] = v
			}
		case wire.MsgNotice:
			r.conn.notice(body)
		case wire.MsgRowDescription:
			desc, perr := wire.ParseRowDescription(body)
			if perr != nil {
				r.setErr(r.conn.ioError(perr))
				return false
			}
			r.desc = desc
			r.names = make([]string, len(desc))
			for i, fd := range desc {
				r.names[i] = fd.Name
			}
		case wire.MsgDataRow:
			if r.complete {
				continue
			}
			if e, ok := qerr.As(r.err); r.err != nil && !(ok && e.Category == qerr.CategoryDecode) {
				// Rows after a server or transport error drain silently.
				continue
			}
			row, perr := r.decodeRow(body)
			if perr != nil {
				// Decode failures are per-row: the row is skipped, later rows
				// are still delivered, and Err reports the first failure.
				r.setErr(perr)
				continue
			}
			r.row = row
			return true
		case wire.MsgNoData, wire.MsgEmptyQuery, wire.MsgPortalSuspended:
			r.complete = true
		case wire.MsgCommandComplete:
			if cctag, perr := wire.ParseCommandComplete(body); perr == nil {
				r.affected = wire.AffectedRows(cctag)
			}
			r.complete = true
		case wire.MsgError:
			r.conn.invalidateLastPrepared()
			r.setErr(serverError(body))
		case wire.MsgReadyForQuery:
			status, _ := wire.ParseReadyForQuery(body)
			r.conn.state = stateForTxStatus(status)
			r.conn.clearLastPrepared()
			r.finished = true
			return false
		default:
			r.setErr(r.conn.ioError(qerr.UnexpectedMessage(tag, "result stream")))
			r.finished = true
			return false
		}
	}
}

func (r *Rows) decodeRow(body []byte) (Row, error) {
	cols, err := wire.ParseDataRow(body)
	if err != nil {
		return Row{}, r.conn.ioError(err)
	}
	if len(cols) != len(r.desc) {
		return Row{}, r.conn.ioError(qerr.ProtocolViolation("data row width does not match description"))
	}
	values := make([]qail.Value, len(cols))
	for i, col := range cols {
		fd := r.desc[i]
		if r.strict && !pgtype.Known(fd.TypeOID) {
			return Row{}, qerr.UnknownOid(fd.TypeOID)
		}
		v, derr := pgtype.Decode(fd.TypeOID, fd.Format, col)
		if derr != nil {
			return Row{}, derr
		}
		values[i] = v
	}
	return Row{names: r.names, values: values}, nil
}

// Row returns the current row after a true Next.
func (r *Rows) Row() Row {
	return r.row
}

// Err returns the first error observed on the stream.
func (r *Rows) Err() error {
	return r.err
}

// Affected returns the row count from the command tag, valid after the
// stream ends.
func (r *Rows) Affected() Affected {
	return Affected(r.affected)
}

// Close drains the remainder of the result and returns the connection to
// the pool. It is safe to call more than once.
func (r *Rows) Close() error {
	if r.closed {
		return r.err
	}
	for !r.finished {
		if !r.Next() {
			break
		}
	}
	r.closed = true
	if r.stop != nil {
		r.stop()
	}
	if r.release != nil {
		r.release(r.err)
	}
	return r.err
}

// Collect reads every remaining row and closes the stream.
func (r *Rows) Collect() ([]Row, error) {
	var out []Row
	for r.Next() {
		out = append(out, r.row)
	}
	if err := r.Close(); err != nil {
		return out, err
	}
	return out, nil
}

func (r *Rows) setErr(err error) {
	if r.err == nil {
		r.err = err
	}
}
