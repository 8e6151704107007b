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
)

// ColumnKind identifies a column type for DDL and parameter typing.
type ColumnKind uint8

// Column kinds.
const (
	TypeUUID ColumnKind = iota
	TypeText
	TypeVarchar
	TypeInt
	TypeBigInt
	TypeSerial
	TypeBigSerial
	TypeBool
	TypeFloat
	TypeDecimal
	TypeJsonb
	TypeTimestamp
	TypeTimestamptz
	TypeDate
	TypeTime
	TypeBytea
)

// ColumnType is a column type with optional modifiers (varchar length,
// decimal precision/scale).
type ColumnType struct {
	Kind      ColumnKind
	Length    int // varchar; 0 = unbounded
	Precision int // decimal
	Scale     int // decimal
}

// Varchar returns a varchar type with an optional length (0 = unbounded).
func Varchar(length int) ColumnType { return ColumnType{Kind: TypeVarchar, Length: length} }

// Decimal returns a numeric type with the given precision and scale.
// Precision 0 leaves the type unconstrained.
func Decimal(precision, scale int) ColumnType {
	return ColumnType{Kind: TypeDecimal, Precision: precision, Scale: scale}
}

// Type returns a plain column type with no modifiers.
func Type(kind ColumnKind) ColumnType { return ColumnType{Kind: kind} }

// CanBePrimaryKey reports whether the type may back a primary key.
// Jsonb and bytea cannot; integers, uuid, and text family types can.
func (t ColumnType) CanBePrimaryKey() bool {
	switch t.Kind {
	case TypeJsonb, TypeBytea:
		return false
	default:
		return true
	}
}

// SupportsIndexing reports whether a plain btree index over the type is
// valid. Jsonb needs an operator class and is excluded here.
func (t ColumnType) SupportsIndexing() bool {
	return t.Kind != TypeJsonb
}

// SQL renders the PostgreSQL type name, including modifiers.
func (t ColumnType) SQL() string {
	switch t.Kind {
	case TypeUUID:
		return "uuid"
	case TypeText:
		return "text"
	case TypeVarchar:
		if t.Length > 0 {
			return "varchar(" + strconv.Itoa(t.Length) + ")"
		}
		return "varchar"
	case TypeInt:
		return "integer"
	case TypeBigInt:
		return "bigint"
	case TypeSerial:
		return "serial"
	case TypeBigSerial:
		return "bigserial"
	case TypeBool:
		return "boolean"
	case TypeFloat:
		return "double precision"
	case TypeDecimal:
		if t.Precision > 0 {
			return fmt.Sprintf("numeric(%d,%d)", t.Precision, t.Scale)
		}
		return "numeric"
	case TypeJsonb:
		return "jsonb"
	case TypeTimestamp:
		return "timestamp"
	case TypeTimestamptz:
		return "timestamptz"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeBytea:
		return "bytea"
	default:
		return "text"
	}
}
