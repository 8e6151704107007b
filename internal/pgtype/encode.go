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

package pgtype

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"strconv"
	"strings"

	qail "github.com/qail-lang/qail-go"
)

// ErrNulByte reports a text value carrying an embedded NUL. The caller maps
// it to an InvalidParameter with the offending index.
var ErrNulByte = errors.New("text value contains NUL byte (0x00)")

// ErrNullValue reports an attempt to encode NULL as a payload. NULL rides
// as length -1 in Bind, never as bytes.
var ErrNullValue = errors.New("NULL has no payload encoding")

// pgEpochMicros is the offset from the Unix epoch to PostgreSQL's binary
// timestamp epoch (2000-01-01) in microseconds.
const pgEpochMicros int64 = 946684800000000

// timestampLayout renders the text form PostgreSQL accepts for both
// timestamp flavors.
const (
	timestampLayout   = "2006-01-02 15:04:05.999999"
	timestamptzLayout = "2006-01-02 15:04:05.999999-07:00"
)

// AppendText appends the text-format wire encoding of a value to dst.
func AppendText(dst []byte, v qail.Value) ([]byte, error) {
	switch v.Kind() {
	case qail.KindNull:
		return dst, ErrNullValue
	case qail.KindBool:
		if v.BoolVal() {
			return append(dst, "true"...), nil
		}
		return append(dst, "false"...), nil
	case qail.KindInt:
		return strconv.AppendInt(dst, v.IntVal(), 10), nil
	case qail.KindFloat:
		return strconv.AppendFloat(dst, v.FloatVal(), 'g', -1, 64), nil
	case qail.KindText:
		s := v.TextVal()
		if strings.IndexByte(s, 0) != -1 {
			return dst, ErrNulByte
		}
		if dst == nil {
			// Keep an empty string non-nil so it stays distinct from NULL.
			dst = []byte{}
		}
		return append(dst, s...), nil
	case qail.KindNumeric:
		return append(dst, v.TextVal()...), nil
	case qail.KindBytes:
		dst = append(dst, '\\', 'x')
		n := len(dst)
		dst = append(dst, make([]byte, hex.EncodedLen(len(v.BytesVal())))...)
		hex.Encode(dst[n:], v.BytesVal())
		return dst, nil
	case qail.KindUUID:
		return append(dst, v.UUIDVal().String()...), nil
	case qail.KindTimestamp:
		_, tz := v.TimestampVal()
		if tz {
			return v.TimeVal().AppendFormat(dst, timestamptzLayout), nil
		}
		return v.TimeVal().AppendFormat(dst, timestampLayout), nil
	case qail.KindJSON:
		raw := v.BytesVal()
		for _, b := range raw {
			if b == 0 {
				return dst, ErrNulByte
			}
		}
		return append(dst, raw...), nil
	case qail.KindArray:
		return appendTextArray(dst, v.ArrayVal())
	default:
		return dst, errors.New("unsupported value kind")
	}
}

// appendTextArray renders the array-literal form: {e1,e2,...} with string
// elements double-quoted and embedded quotes/backslashes escaped.
func appendTextArray(dst []byte, elems []qail.Value) ([]byte, error) {
	dst = append(dst, '{')
	for i, el := range elems {
		if i > 0 {
			dst = append(dst, ',')
		}
		if el.IsNull() {
			dst = append(dst, "NULL"...)
			continue
		}
		switch el.Kind() {
		case qail.KindText, qail.KindUUID, qail.KindTimestamp:
			var err error
			var scratch []byte
			scratch, err = AppendText(nil, el)
			if err != nil {
				return dst, err
			}
			dst = append(dst, '"')
			for _, b := range scratch {
				if b == '"' || b == '\\' {
					dst = append(dst, '\\')
				}
				dst = append(dst, b)
			}
			dst = append(dst, '"')
		case qail.KindArray:
			var err error
			dst, err = appendTextArray(dst, el.ArrayVal())
			if err != nil {
				return dst, err
			}
		default:
			var err error
			dst, err = AppendText(dst, el)
			if err != nil {
				return dst, err
			}
		}
	}
	return append(dst, '}'), nil
}

// AppendBinary appends the binary-format wire encoding of a value to dst.
// Types without a fixed binary form here (numeric, json, arrays) must be
// sent as text; asking for their binary form is an error.
func AppendBinary(dst []byte, v qail.Value) ([]byte, error) {
	switch v.Kind() {
	case qail.KindNull:
		return dst, ErrNullValue
	case qail.KindBool:
		if v.BoolVal() {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case qail.KindInt:
		return binary.BigEndian.AppendUint64(dst, uint64(v.IntVal())), nil
	case qail.KindFloat:
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(v.FloatVal())), nil
	case qail.KindBytes:
		return append(dst, v.BytesVal()...), nil
	case qail.KindText:
		s := v.TextVal()
		if strings.IndexByte(s, 0) != -1 {
			return dst, ErrNulByte
		}
		return append(dst, s...), nil
	case qail.KindUUID:
		u := v.UUIDVal()
		return append(dst, u[:]...), nil
	case qail.KindTimestamp:
		us, _ := v.TimestampVal()
		return binary.BigEndian.AppendUint64(dst, uint64(us-pgEpochMicros)), nil
	default:
		return dst, errors.New("no binary encoding for " + v.Kind().String())
	}
}
