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
Package pgtype maps QAIL values onto PostgreSQL's type system: OID
selection for parameters, text and binary wire encodings, and decoding of
backend column data back into values.

The catalog OIDs come from lib/pq's generated oid package rather than a
hand-maintained table. The global OID mapping is read-only.
*/
package pgtype

import (
	"github.com/lib/pq/oid"

	qail "github.com/qail-lang/qail-go"
)

// Wire format codes.
const (
	FormatText   int16 = 0
	FormatBinary int16 = 1
)

// OIDForValue returns the parameter OID declared for a value. Null returns
// zero so the backend infers the type from context.
func OIDForValue(v qail.Value) uint32 {
	switch v.Kind() {
	case qail.KindNull:
		return 0
	case qail.KindBool:
		return uint32(oid.T_bool)
	case qail.KindInt:
		return uint32(oid.T_int8)
	case qail.KindFloat:
		return uint32(oid.T_float8)
	case qail.KindText:
		return uint32(oid.T_text)
	case qail.KindBytes:
		return uint32(oid.T_bytea)
	case qail.KindUUID:
		return uint32(oid.T_uuid)
	case qail.KindTimestamp:
		_, tz := v.TimestampVal()
		if tz {
			return uint32(oid.T_timestamptz)
		}
		return uint32(oid.T_timestamp)
	case qail.KindNumeric:
		return uint32(oid.T_numeric)
	case qail.KindJSON:
		return uint32(oid.T_jsonb)
	case qail.KindArray:
		return arrayOID(v.ArrayVal())
	default:
		return 0
	}
}

func arrayOID(elems []qail.Value) uint32 {
	if len(elems) == 0 {
		return uint32(oid.T__text)
	}
	switch elems[0].Kind() {
	case qail.KindBool:
		return uint32(oid.T__bool)
	case qail.KindInt:
		return uint32(oid.T__int8)
	case qail.KindFloat:
		return uint32(oid.T__float8)
	case qail.KindUUID:
		return uint32(oid.T__uuid)
	case qail.KindNumeric:
		return uint32(oid.T__numeric)
	default:
		return uint32(oid.T__text)
	}
}

// OIDForColumn returns the OID a column type declares for its parameters.
func OIDForColumn(t qail.ColumnType) uint32 {
	switch t.Kind {
	case qail.TypeUUID:
		return uint32(oid.T_uuid)
	case qail.TypeText:
		return uint32(oid.T_text)
	case qail.TypeVarchar:
		return uint32(oid.T_varchar)
	case qail.TypeInt, qail.TypeSerial:
		return uint32(oid.T_int4)
	case qail.TypeBigInt, qail.TypeBigSerial:
		return uint32(oid.T_int8)
	case qail.TypeBool:
		return uint32(oid.T_bool)
	case qail.TypeFloat:
		return uint32(oid.T_float8)
	case qail.TypeDecimal:
		return uint32(oid.T_numeric)
	case qail.TypeJsonb:
		return uint32(oid.T_jsonb)
	case qail.TypeTimestamp:
		return uint32(oid.T_timestamp)
	case qail.TypeTimestamptz:
		return uint32(oid.T_timestamptz)
	case qail.TypeDate:
		return uint32(oid.T_date)
	case qail.TypeTime:
		return uint32(oid.T_time)
	case qail.TypeBytea:
		return uint32(oid.T_bytea)
	default:
		return uint32(oid.T_text)
	}
}

// PreferredFormat selects the wire format for a known OID: binary for the
// fixed-width scalars and for bytea, whose binary form is the raw bytes;
// text everywhere else.
func PreferredFormat(o uint32) int16 {
	switch oid.Oid(o) {
	case oid.T_bool, oid.T_int2, oid.T_int4, oid.T_int8,
		oid.T_float4, oid.T_float8, oid.T_uuid, oid.T_bytea,
		oid.T_timestamp, oid.T_timestamptz:
		return FormatBinary
	default:
		return FormatText
	}
}

// TypeName returns the catalog name of an OID, or "unknown".
func TypeName(o uint32) string {
	if name, ok := oid.TypeName[oid.Oid(o)]; ok {
		return name
	}
	return "unknown"
}
