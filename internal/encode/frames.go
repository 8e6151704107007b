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

package encode

import (
	qail "github.com/qail-lang/qail-go"
	"github.com/qail-lang/qail-go/internal/pgtype"
	"github.com/qail-lang/qail-go/internal/wire"
	"github.com/qail-lang/qail-go/qerr"
)

// Simple renders a command inline and appends one Query frame.
func Simple(w *wire.Writer, cmd *qail.Cmd) error {
	sql, err := Inline(cmd)
	if err != nil {
		return err
	}
	w.Query(sql)
	return nil
}

// Binder encodes Bind frames. It keeps a scratch buffer and a format-code
// slice so batch loops allocate nothing per row. On any error the writer
// holds a half-built frame; the caller must Reset before sending anything.
type Binder struct {
	scratch []byte
	formats []int16
}

// AppendBind appends one Bind frame for the given statement. Formats are
// chosen per parameter from its declared OID: binary for the fixed-width
// scalar types and bytea, text otherwise. Results are always requested in
// text format.
func (b *Binder) AppendBind(w *wire.Writer, stmt string, params []qail.Value, oids []uint32) error {
	b.formats = b.formats[:0]
	for i := range params {
		var oid uint32
		if i < len(oids) {
			oid = oids[i]
		}
		b.formats = append(b.formats, pgtype.PreferredFormat(oid))
	}
	at := w.BindStart("", stmt, b.formats, len(params))
	for i, v := range params {
		if v.IsNull() {
			w.ParamNull()
			continue
		}
		pat := w.ParamStart()
		var err error
		if b.formats[i] == pgtype.FormatBinary {
			b.scratch, err = pgtype.AppendBinary(b.scratch[:0], v)
		} else {
			b.scratch, err = pgtype.AppendText(b.scratch[:0], v)
		}
		if err != nil {
			if err == pgtype.ErrNulByte {
				return qerr.NulInText(i)
			}
			return qerr.InvalidParameter(i, err.Error())
		}
		w.Raw(b.scratch)
		w.ParamEnd(pat)
	}
	w.BindFinish(at, nil)
	return nil
}

// ExtendedQuery appends a full single-statement extended exchange:
// Parse (unless the statement is already prepared), Bind, Describe of the
// unnamed portal, Execute, Sync.
func (b *Binder) ExtendedQuery(w *wire.Writer, name string, enc Encoded, prepared bool) error {
	if !prepared {
		w.Parse(name, enc.SQL, enc.ParamOIDs)
	}
	if err := b.AppendBind(w, name, enc.Params, enc.ParamOIDs); err != nil {
		return err
	}
	w.Describe('P', "")
	w.Execute("", 0)
	w.Sync()
	return nil
}

// AppendExecution appends one Bind+Execute pair for a pipeline batch. The
// caller terminates the batch with a single Sync.
func (b *Binder) AppendExecution(w *wire.Writer, stmt string, params []qail.Value, oids []uint32) error {
	if err := b.AppendBind(w, stmt, params, oids); err != nil {
		return err
	}
	w.Execute("", 0)
	return nil
}

// UniformBatch appends Bind+Execute pairs for executions that share one
// prepared statement and vary only in their parameter vector. The statement
// body is never re-rendered; only parameter slots differ between frames.
// An empty row set appends nothing — in particular no Sync.
func (b *Binder) UniformBatch(w *wire.Writer, stmt string, oids []uint32, rows [][]qail.Value) error {
	for _, params := range rows {
		if err := b.AppendExecution(w, stmt, params, oids); err != nil {
			return err
		}
	}
	if len(rows) > 0 {
		w.Sync()
	}
	return nil
}
