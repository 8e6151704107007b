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

package qail

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValueKind identifies the variant held by a Value.
type ValueKind uint8

// Value kinds.
const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindText
	KindBytes
	KindUUID
	KindTimestamp
	KindNumeric
	KindJSON
	KindArray
)

// String returns the kind name.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindUUID:
		return "uuid"
	case KindTimestamp:
		return "timestamp"
	case KindNumeric:
		return "numeric"
	case KindJSON:
		return "json"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a scalar (or array of scalars) carried by a command: a literal in
// a filter, an INSERT cell, an UPDATE assignment. It is a tagged union; the
// zero Value is NULL.
//
// Timestamps are stored as microseconds since the Unix epoch with a flag for
// timezone awareness. Numerics are stored in decimal text form so that
// arbitrary precision survives the round-trip to the server unmodified.
type Value struct {
	kind ValueKind

	b   bool
	i   int64 // int, timestamp micros
	f   float64
	s   string // text, numeric
	raw []byte // bytes, json
	u   uuid.UUID
	tz  bool // timestamp with time zone
	arr []Value
}

// Null returns the NULL value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns a 64-bit integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a 64-bit float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Text returns a text value. The string must not contain a NUL byte;
// the encoder rejects it before any bytes reach the wire.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Bytes returns a bytea value.
func Bytes(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// UUID returns a uuid value.
func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }

// TimestampMicros returns a timestamp value from microseconds since the Unix
// epoch. tz marks the value as timezone-aware (timestamptz).
func TimestampMicros(us int64, tz bool) Value {
	return Value{kind: KindTimestamp, i: us, tz: tz}
}

// Time returns a timezone-aware timestamp value from a time.Time.
func Time(t time.Time) Value {
	return Value{kind: KindTimestamp, i: t.UnixMicro(), tz: true}
}

// Numeric returns an arbitrary-precision decimal value from its text form.
func Numeric(s string) Value { return Value{kind: KindNumeric, s: s} }

// JSON returns a raw jsonb value. The bytes are sent verbatim.
func JSON(raw []byte) Value { return Value{kind: KindJSON, raw: raw} }

// Array returns an array value over the given elements.
func Array(elems ...Value) Value { return Value{kind: KindArray, arr: elems} }

// From converts a native Go value into a Value. Supported inputs: nil, bool,
// all int/uint widths, float32/64, string, []byte, uuid.UUID, time.Time,
// Value itself, and the slices []Value, []string, []int64 and []int, which
// become arrays. Other types, other slice types included, become their
// fmt.Sprint text form.
func From(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return Int(int64(x))
	case uint8:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case uint64:
		return Int(int64(x))
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case string:
		return Text(x)
	case []byte:
		return Bytes(x)
	case uuid.UUID:
		return UUID(x)
	case time.Time:
		return Time(x)
	case []Value:
		return Array(x...)
	case []string:
		elems := make([]Value, len(x))
		for i, s := range x {
			elems[i] = Text(s)
		}
		return Array(elems...)
	case []int64:
		elems := make([]Value, len(x))
		for i, n := range x {
			elems[i] = Int(n)
		}
		return Array(elems...)
	case []int:
		elems := make([]Value, len(x))
		for i, n := range x {
			elems[i] = Int(int64(n))
		}
		return Array(elems...)
	default:
		return Text(fmt.Sprint(v))
	}
}

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// BoolVal returns the boolean payload. Valid only for KindBool.
func (v Value) BoolVal() bool { return v.b }

// IntVal returns the integer payload. Valid only for KindInt.
func (v Value) IntVal() int64 { return v.i }

// FloatVal returns the float payload. Valid only for KindFloat.
func (v Value) FloatVal() float64 { return v.f }

// TextVal returns the text payload. Valid for KindText and KindNumeric.
func (v Value) TextVal() string { return v.s }

// BytesVal returns the raw byte payload. Valid for KindBytes and KindJSON.
func (v Value) BytesVal() []byte { return v.raw }

// UUIDVal returns the uuid payload. Valid only for KindUUID.
func (v Value) UUIDVal() uuid.UUID { return v.u }

// TimestampVal returns microseconds since the Unix epoch and the timezone
// flag. Valid only for KindTimestamp.
func (v Value) TimestampVal() (micros int64, tz bool) { return v.i, v.tz }

// TimeVal returns the timestamp as a time.Time in UTC.
func (v Value) TimeVal() time.Time { return time.UnixMicro(v.i).UTC() }

// ArrayVal returns the element slice. Valid only for KindArray.
func (v Value) ArrayVal() []Value { return v.arr }

// Equal reports deep equality of two values, including kind.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindText, KindNumeric:
		return v.s == o.s
	case KindBytes, KindJSON:
		return string(v.raw) == string(o.raw)
	case KindUUID:
		return v.u == o.u
	case KindTimestamp:
		return v.i == o.i && v.tz == o.tz
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders a debug representation. This is not the wire form; the
// internal pgtype package owns text and binary wire encoding.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	case KindNumeric:
		return v.s
	case KindBytes:
		return fmt.Sprintf("\\x%x", v.raw)
	case KindJSON:
		return string(v.raw)
	case KindUUID:
		return v.u.String()
	case KindTimestamp:
		return v.TimeVal().Format(time.RFC3339Nano)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return "?"
	}
}
