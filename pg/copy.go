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
	"io"
	"strings"

	qail "github.com/qail-lang/qail-go"
	"github.com/qail-lang/qail-go/internal/pgtype"
	"github.com/qail-lang/qail-go/internal/wire"
	"github.com/qail-lang/qail-go/qerr"
)

// RowSource feeds rows to CopyIn. Next returns io.EOF when the source is
// exhausted.
type RowSource interface {
	Next() ([]qail.Value, error)
}

// SliceSource adapts an in-memory row set to a RowSource.
func SliceSource(rows [][]qail.Value) RowSource {
	return &sliceSource{rows: rows}
}

type sliceSource struct {
	rows [][]qail.Value
	pos  int
}

func (s *sliceSource) Next() ([]qail.Value, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// copyFlushThreshold bounds how much COPY data accumulates before a write.
const copyFlushThreshold = 64 * 1024

// copyIn streams rows into table via COPY FROM STDIN in text format:
// tab-separated columns, newline-terminated records, \N for NULL.
func (c *conn) copyIn(ctx context.Context, table string, columns []string, src RowSource) (Affected, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	stop := c.watch(ctx)
	defer stop()

	var sb strings.Builder
	sb.WriteString("COPY ")
	sb.WriteString(table)
	if len(columns) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(columns, ", "))
		sb.WriteString(")")
	}
	sb.WriteString(" FROM STDIN")

	c.w.Reset()
	c.w.Query(sb.String())
	if err := c.flush(); err != nil {
		return 0, err
	}
	c.state = stateBusy

	// Wait for the CopyInResponse.
	for {
		tag, body, err := c.readMessage()
		if err != nil {
			return 0, err
		}
		if tag == wire.MsgCopyInResponse {
			c.state = stateCopying
			break
		}
		switch tag {
		case wire.MsgNotice:
			c.notice(body)
		case wire.MsgParameterStatus:
		case wire.MsgError:
			e := serverError(body)
			if derr := c.drainToReady(); derr != nil {
				return 0, derr
			}
			return 0, e
		default:
			return 0, c.ioError(qerr.UnexpectedMessage(tag, "awaiting copy-in"))
		}
	}

	// Stream rows, flushing in chunks.
	var line []byte
	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.w.Reset()
			c.w.CopyFail(err.Error())
			if ferr := c.flush(); ferr != nil {
				return 0, ferr
			}
			if derr := c.drainToReady(); derr != nil {
				return 0, derr
			}
			return 0, err
		}
		line = line[:0]
		line, err = appendCopyRow(line, row)
		if err != nil {
			c.w.Reset()
			c.w.CopyFail(err.Error())
			if ferr := c.flush(); ferr != nil {
				return 0, ferr
			}
			if derr := c.drainToReady(); derr != nil {
				return 0, derr
			}
			return 0, err
		}
		c.w.CopyData(line)
		if c.w.Len() >= copyFlushThreshold {
			if err := c.flush(); err != nil {
				return 0, err
			}
		}
	}
	c.w.CopyDone()
	if err := c.flush(); err != nil {
		return 0, err
	}

	// Await CommandComplete and ReadyForQuery.
	var affected Affected
	var copyErr error
	for {
		tag, body, err := c.readMessage()
		if err != nil {
			return affected, err
		}
		switch tag {
		case wire.MsgCommandComplete:
			if cctag, perr := wire.ParseCommandComplete(body); perr == nil {
				affected = Affected(wire.AffectedRows(cctag))
			}
		case wire.MsgNotice:
			c.notice(body)
		case wire.MsgParameterStatus:
		case wire.MsgError:
			if copyErr == nil {
				copyErr = serverError(body)
			}
		case wire.MsgReadyForQuery:
			status, _ := wire.ParseReadyForQuery(body)
			c.state = stateForTxStatus(status)
			return affected, copyErr
		default:
			return affected, c.ioError(qerr.UnexpectedMessage(tag, "copy completion"))
		}
	}
}

// drainToReady discards messages until ReadyForQuery.
func (c *conn) drainToReady() error {
	for {
		tag, body, err := c.readMessage()
		if err != nil {
			return err
		}
		if tag == wire.MsgReadyForQuery {
			status, _ := wire.ParseReadyForQuery(body)
			c.state = stateForTxStatus(status)
			return nil
		}
	}
}

// appendCopyRow renders one text-format COPY record. Columns are the text
// encodings with tab, newline, carriage return, and backslash escaped.
func appendCopyRow(dst []byte, row []qail.Value) ([]byte, error) {
	var scratch []byte
	for i, v := range row {
		if i > 0 {
			dst = append(dst, '\t')
		}
		if v.IsNull() {
			dst = append(dst, '\\', 'N')
			continue
		}
		var err error
		scratch, err = pgtype.AppendText(scratch[:0], v)
		if err != nil {
			if err == pgtype.ErrNulByte {
				return dst, qerr.NulInText(i)
			}
			return dst, qerr.InvalidParameter(i, err.Error())
		}
		for _, b := range scratch {
			switch b {
			case '\\':
				dst = append(dst, '\\', '\\')
			case '\t':
				dst = append(dst, '\\', 't')
			case '\n':
				dst = append(dst, '\\', 'n')
			case '\r':
				dst = append(dst, '\\', 'r')
			default:
				dst = append(dst, b)
			}
		}
	}
	return append(dst, '\n'), nil
}
