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
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq/oid"

	qail "github.com/qail-lang/qail-go"
	"github.com/qail-lang/qail-go/qerr"
)

// Decode converts one column payload into a Value according to its declared
// OID and wire format. A nil payload is NULL regardless of type.
//
// OIDs outside the table decode best-effort as text; callers wanting a hard
// failure instead check Known first and raise UnknownOid.
func Decode(o uint32, format int16, data []byte) (qail.Value, error) {
	if data == nil {
		return qail.Null(), nil
	}
	if format == FormatBinary {
		return decodeBinary(o, data)
	}
	return decodeText(o, data)
}

// Known reports whether the OID has a typed decoding.
func Known(o uint32) bool {
	switch oid.Oid(o) {
	case oid.T_bool, oid.T_int2, oid.T_int4, oid.T_int8,
		oid.T_float4, oid.T_float8, oid.T_numeric,
		oid.T_text, oid.T_varchar, oid.T_bpchar, oid.T_name,
		oid.T_bytea, oid.T_uuid, oid.T_json, oid.T_jsonb,
		oid.T_timestamp, oid.T_timestamptz, oid.T_date, oid.T_time:
		return true
	default:
		return false
	}
}

func decodeText(o uint32, data []byte) (qail.Value, error) {
	switch oid.Oid(o) {
	case oid.T_bool:
		// The server prints t/f; our own text encoding spells the words out.
		switch string(data) {
		case "t", "true":
			return qail.Bool(true), nil
		case "f", "false":
			return qail.Bool(false), nil
		}
		return qail.Null(), qerr.Decode(o, "invalid bool literal "+string(data))
	case oid.T_int2, oid.T_int4, oid.T_int8:
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return qail.Null(), qerr.Decode(o, err.Error())
		}
		return qail.Int(n), nil
	case oid.T_float4, oid.T_float8:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return qail.Null(), qerr.Decode(o, err.Error())
		}
		return qail.Float(f), nil
	case oid.T_numeric:
		return qail.Numeric(string(data)), nil
	case oid.T_bytea:
		if len(data) < 2 || data[0] != '\\' || data[1] != 'x' {
			return qail.Null(), qerr.Decode(o, "bytea text form missing \\x prefix")
		}
		raw := make([]byte, hex.DecodedLen(len(data)-2))
		if _, err := hex.Decode(raw, data[2:]); err != nil {
			return qail.Null(), qerr.Decode(o, err.Error())
		}
		return qail.Bytes(raw), nil
	case oid.T_uuid:
		u, err := uuid.ParseBytes(data)
		if err != nil {
			return qail.Null(), qerr.Decode(o, err.Error())
		}
		return qail.UUID(u), nil
	case oid.T_json, oid.T_jsonb:
		raw := make([]byte, len(data))
		copy(raw, data)
		return qail.JSON(raw), nil
	case oid.T_timestamp:
		t, err := parsePgTimestamp(string(data), false)
		if err != nil {
			return qail.Null(), qerr.Decode(o, err.Error())
		}
		return qail.TimestampMicros(t.UnixMicro(), false), nil
	case oid.T_timestamptz:
		t, err := parsePgTimestamp(string(data), true)
		if err != nil {
			return qail.Null(), qerr.Decode(o, err.Error())
		}
		return qail.TimestampMicros(t.UnixMicro(), true), nil
	default:
		// Best effort: hand back the raw text.
		return qail.Text(string(data)), nil
	}
}

func decodeBinary(o uint32, data []byte) (qail.Value, error) {
	switch oid.Oid(o) {
	case oid.T_bool:
		if len(data) != 1 {
			return qail.Null(), qerr.Decode(o, "bool length != 1")
		}
		return qail.Bool(data[0] != 0), nil
	case oid.T_int2:
		if len(data) != 2 {
			return qail.Null(), qerr.Decode(o, "int2 length != 2")
		}
		return qail.Int(int64(int16(binary.BigEndian.Uint16(data)))), nil
	case oid.T_int4:
		if len(data) != 4 {
			return qail.Null(), qerr.Decode(o, "int4 length != 4")
		}
		return qail.Int(int64(int32(binary.BigEndian.Uint32(data)))), nil
	case oid.T_int8:
		if len(data) != 8 {
			return qail.Null(), qerr.Decode(o, "int8 length != 8")
		}
		return qail.Int(int64(binary.BigEndian.Uint64(data))), nil
	case oid.T_float4:
		if len(data) != 4 {
			return qail.Null(), qerr.Decode(o, "float4 length != 4")
		}
		return qail.Float(float64(math.Float32frombits(binary.BigEndian.Uint32(data)))), nil
	case oid.T_float8:
		if len(data) != 8 {
			return qail.Null(), qerr.Decode(o, "float8 length != 8")
		}
		return qail.Float(math.Float64frombits(binary.BigEndian.Uint64(data))), nil
	case oid.T_bytea:
		raw := make([]byte, len(data))
		copy(raw, data)
		return qail.Bytes(raw), nil
	case oid.T_text, oid.T_varchar, oid.T_bpchar, oid.T_name:
		return qail.Text(string(data)), nil
	case oid.T_uuid:
		if len(data) != 16 {
			return qail.Null(), qerr.Decode(o, "uuid length != 16")
		}
		var u uuid.UUID
		copy(u[:], data)
		return qail.UUID(u), nil
	case oid.T_timestamp:
		if len(data) != 8 {
			return qail.Null(), qerr.Decode(o, "timestamp length != 8")
		}
		us := int64(binary.BigEndian.Uint64(data)) + pgEpochMicros
		return qail.TimestampMicros(us, false), nil
	case oid.T_timestamptz:
		if len(data) != 8 {
			return qail.Null(), qerr.Decode(o, "timestamptz length != 8")
		}
		us := int64(binary.BigEndian.Uint64(data)) + pgEpochMicros
		return qail.TimestampMicros(us, true), nil
	case oid.T_json:
		raw := make([]byte, len(data))
		copy(raw, data)
		return qail.JSON(raw), nil
	case oid.T_jsonb:
		if len(data) < 1 || data[0] != 1 {
			return qail.Null(), qerr.Decode(o, "jsonb missing version byte")
		}
		raw := make([]byte, len(data)-1)
		copy(raw, data[1:])
		return qail.JSON(raw), nil
	default:
		return qail.Text(string(data)), nil
	}
}

// parsePgTimestamp accepts the server's output formats, which vary in
// fractional digits and timezone notation.
func parsePgTimestamp(s string, tz bool) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05.999999-07:00",
		"2006-01-02 15:04:05.999999-07",
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05-07",
		"2006-01-02 15:04:05",
	}
	if !tz {
		layouts = []string{
			"2006-01-02 15:04:05.999999",
			"2006-01-02 15:04:05",
		}
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
