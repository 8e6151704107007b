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
	"context"

	qail "github.com/qail-lang/qail-go"
	"github.com/qail-lang/qail-go/internal/encode"
	"github.com/qail-lang/qail-go/internal/wire"
	"github.com/qail-lang/qail-go/qerr"
)

// query compiles and sends one command, returning the streaming result.
// Commands with no bind values ride the Simple Query protocol; everything
// else goes through Parse/Bind/Execute with the statement cache.
func (c *conn) query(ctx context.Context, cmd *qail.Cmd) (*Rows, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	// DDL cannot carry bind parameters; utility statements always ride the
	// Simple path with literals inlined.
	if isDDL(cmd.Action) || !encode.HasParams(cmd) {
		sql, err := encode.Inline(cmd)
		if err != nil {
			return nil, err
		}
		return c.simpleRows(ctx, sql)
	}

	enc, err := encode.Command(cmd)
	if err != nil {
		return nil, err
	}
	key := makePreparedKey(qail.FingerprintOf(cmd), enc.ParamOIDs)

	stop := c.watch(ctx)
	c.w.Reset()
	stmtName, prepared := c.resolveStatement(key, enc.ParamOIDs)
	if err := c.binder.ExtendedQuery(c.w, stmtName, enc, prepared); err != nil {
		// Nothing was sent; the connection is untouched.
		c.w.Reset()
		c.clearLastPrepared()
		stop()
		return nil, err
	}
	if err := c.flush(); err != nil {
		stop()
		return nil, err
	}
	c.state = stateBusy
	return &Rows{conn: c, stop: stop, strict: c.cfg.StrictDecode}, nil
}

// encodeForExtended compiles a command for the extended protocol. DDL is
// rendered with literals inlined since utility statements reject bind
// parameters.
func (c *conn) encodeForExtended(cmd *qail.Cmd) (encode.Encoded, error) {
	if isDDL(cmd.Action) {
		sql, err := encode.Inline(cmd)
		if err != nil {
			return encode.Encoded{}, err
		}
		return encode.Encoded{SQL: sql}, nil
	}
	return encode.Command(cmd)
}

func isDDL(a qail.Action) bool {
	switch a {
	case qail.ActionMake, qail.ActionIndex, qail.ActionDrop,
		qail.ActionCreateView, qail.ActionDropView:
		return true
	}
	return false
}

// simpleRows sends pre-rendered SQL over the Simple Query protocol.
func (c *conn) simpleRows(ctx context.Context, sql string) (*Rows, error) {
	stop := c.watch(ctx)
	c.w.Reset()
	c.w.Query(sql)
	if err := c.flush(); err != nil {
		stop()
		return nil, err
	}
	c.state = stateBusy
	return &Rows{conn: c, stop: stop, strict: c.cfg.StrictDecode}, nil
}

// resolveStatement returns the server-side statement name for the key and
// whether it is already prepared. With caching disabled the unnamed
// statement is re-parsed every time. Evicted statements get their Close
// frame queued ahead of the new Parse; CloseComplete drains with the rest
// of the exchange.
func (c *conn) resolveStatement(key preparedKey, oids []uint32) (string, bool) {
	if c.cache.capacity <= 0 {
		return "", false
	}
	if entry, ok := c.cache.lookup(key); ok {
		return entry.name, true
	}
	entry, evicted := c.cache.insert(key, oids)
	if evicted != nil {
		c.w.Close('S', evicted.name)
		c.log.Debug("statement evicted", "conn", c.id, "stmt", evicted.name)
	}
	c.lastPrepared = &key
	return entry.name, false
}

// invalidateLastPrepared drops a statement parsed in the current cycle; a
// server error may mean the Parse itself failed.
func (c *conn) invalidateLastPrepared() {
	if c.lastPrepared == nil {
		return
	}
	if el, ok := c.cache.entries[*c.lastPrepared]; ok {
		c.cache.lru.Remove(el)
		delete(c.cache.entries, *c.lastPrepared)
	}
	c.lastPrepared = nil
}

func (c *conn) clearLastPrepared() {
	c.lastPrepared = nil
}

// execute runs a command to completion and returns its affected-row count.
func (c *conn) execute(ctx context.Context, cmd *qail.Cmd) (Affected, error) {
	rows, err := c.query(ctx, cmd)
	if err != nil {
		return 0, err
	}
	for rows.Next() {
	}
	if err := rows.Close(); err != nil {
		return rows.Affected(), err
	}
	return rows.Affected(), nil
}

// executeSQL runs a literal statement (BEGIN, COMMIT, ...) over the Simple
// Query protocol.
func (c *conn) executeSQL(ctx context.Context, sql string) (Affected, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	rows, err := c.simpleRows(ctx, sql)
	if err != nil {
		return 0, err
	}
	for rows.Next() {
	}
	if err := rows.Close(); err != nil {
		return rows.Affected(), err
	}
	return rows.Affected(), nil
}

// batch pipelines the commands: per command a Bind+Execute pair (with a
// Parse queued ahead for cache misses), one Sync for the whole batch. The
// backend answers with exactly one CommandComplete per Execute — or an
// ErrorResponse, after which it discards until Sync — then one
// ReadyForQuery.
//
// An empty batch is a no-op: nothing is sent, not even the Sync.
func (c *conn) batch(ctx context.Context, cmds []*qail.Cmd) ([]Affected, error) {
	if len(cmds) == 0 {
		return []Affected{}, nil
	}
	if err := c.usable(); err != nil {
		return nil, err
	}

	var parsedKeys []preparedKey
	var prevFP qail.Fingerprint
	var prevStmt string
	var prevOIDs []uint32
	havePrev := false
	c.w.Reset()
	for _, cmd := range cmds {
		fp := qail.FingerprintOf(cmd)

		// Uniform runs share the previous statement body; only the
		// parameter vector is re-extracted. DDL never parameterizes, so
		// it takes the full encode every time.
		if havePrev && fp == prevFP && !isDDL(cmd.Action) {
			params, err := encode.Params(cmd)
			if err != nil {
				c.w.Reset()
				c.dropParsed(parsedKeys)
				return nil, err
			}
			if err := c.binder.AppendExecution(c.w, prevStmt, params, prevOIDs); err != nil {
				c.w.Reset()
				c.dropParsed(parsedKeys)
				return nil, err
			}
			continue
		}

		enc, err := c.encodeForExtended(cmd)
		if err != nil {
			c.w.Reset()
			c.dropParsed(parsedKeys)
			return nil, err
		}
		key := makePreparedKey(fp, enc.ParamOIDs)
		stmtName, prepared := c.resolveStatement(key, enc.ParamOIDs)
		c.clearLastPrepared()
		if !prepared {
			c.w.Parse(stmtName, enc.SQL, enc.ParamOIDs)
			parsedKeys = append(parsedKeys, key)
		}
		if err := c.binder.AppendExecution(c.w, stmtName, enc.Params, enc.ParamOIDs); err != nil {
			c.w.Reset()
			c.dropParsed(parsedKeys)
			return nil, err
		}
		prevFP, prevStmt, prevOIDs, havePrev = fp, stmtName, enc.ParamOIDs, true
	}
	c.w.Sync()

	stop := c.watch(ctx)
	defer stop()
	if err := c.flush(); err != nil {
		return nil, err
	}
	c.state = statePipelineBusy

	results := make([]Affected, 0, len(cmds))
	var firstErr error
	for {
		tag, body, err := c.readMessage()
		if err != nil {
			return results, err
		}
		switch tag {
		case wire.MsgParseComplete, wire.MsgBindComplete, wire.MsgCloseComplete,
			wire.MsgRowDescription, wire.MsgDataRow, wire.MsgNoData, wire.MsgEmptyQuery,
			wire.MsgPortalSuspended:
		case wire.MsgParameterStatus:
			if k, v, perr := wire.ParseParameterStatus(body); perr == nil {
				c.serverParams[k] = v
			}
		case wire.MsgNotice:
			c.notice(body)
		case wire.MsgCommandComplete:
			cctag, perr := wire.ParseCommandComplete(body)
			if perr != nil {
				return results, c.ioError(perr)
			}
			results = append(results, Affected(wire.AffectedRows(cctag)))
		case wire.MsgError:
			if firstErr == nil {
				firstErr = serverError(body)
				c.dropParsed(parsedKeys)
			}
		case wire.MsgReadyForQuery:
			status, _ := wire.ParseReadyForQuery(body)
			c.state = stateForTxStatus(status)
			if firstErr == nil && len(results) != len(cmds) {
				firstErr = qerr.ProtocolViolation("pipeline completed with missing results")
			}
			return results, firstErr
		default:
			return results, c.ioError(qerr.UnexpectedMessage(tag, "pipeline"))
		}
	}
}

// dropParsed removes statements whose Parse may never have succeeded.
func (c *conn) dropParsed(keys []preparedKey) {
	for _, key := range keys {
		if el, ok := c.cache.entries[key]; ok {
			c.cache.lru.Remove(el)
			delete(c.cache.entries, key)
		}
	}
}
