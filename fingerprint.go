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
	"encoding/binary"
	"hash"
	"hash/fnv"
)

// Fingerprint is a 128-bit structural hash of a command.
//
// Two commands share a fingerprint exactly when they have the same shape:
// same actions, identifiers, clause structure, and value kinds. Literal
// payloads are excluded, so GET harbors LIMIT 5 and GET harbors LIMIT 9
// collapse onto one fingerprint — they compile to the same SQL template and
// may share one prepared statement. The statement cache keys on the
// fingerprint plus the parameter OID list.
type Fingerprint [16]byte

// node tags mixed into the hash ahead of each variant's payload, so that
// e.g. Named("x") and Literal(Text("x")) can never collide.
const (
	fpStar byte = iota + 1
	fpNamed
	fpAliased
	fpLiteral
	fpParam
	fpAggregate
	fpWindow
	fpCase
	fpCast
	fpJSONAccess
	fpBinary
	fpFunc
	fpArray
	fpRow
	fpSubscript
	fpCollate
	fpFieldAccess
	fpSubquery
	fpColumnDef
	fpAnd
	fpOr
	fpNot
	fpCmp
	fpNilExpr
	fpNilCond
	fpCmd
	fpJoin
	fpCTE
	fpOrderKey
	fpAssignment
	fpConflict
	fpSetOp
	fpIndexDef
	fpTableConstraint
	fpFrame
	fpPresent
	fpAbsent
)

// FingerprintOf computes the structural fingerprint of a command.
func FingerprintOf(c *Cmd) Fingerprint {
	h := &fpHasher{h: fnv.New128a()}
	h.cmd(c)
	var fp Fingerprint
	copy(fp[:], h.h.Sum(nil))
	return fp
}

type fpHasher struct {
	h     hash.Hash
	depth int
}

func (f *fpHasher) tag(t byte) {
	f.h.Write([]byte{t})
}

func (f *fpHasher) str(s string) {
	var lenbuf [4]byte
	binary.BigEndian.PutUint32(lenbuf[:], uint32(len(s)))
	f.h.Write(lenbuf[:])
	f.h.Write([]byte(s))
}

func (f *fpHasher) u32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	f.h.Write(buf[:])
}

func (f *fpHasher) flag(b bool) {
	if b {
		f.tag(fpPresent)
	} else {
		f.tag(fpAbsent)
	}
}

func (f *fpHasher) cmd(c *Cmd) {
	if c == nil {
		f.tag(fpAbsent)
		return
	}
	f.tag(fpCmd)
	f.u32(uint32(c.Action))
	f.str(c.Table)
	f.str(c.Alias)
	f.flag(c.Distinct)

	f.u32(uint32(len(c.Cols)))
	for _, e := range c.Cols {
		f.expr(e)
	}
	f.u32(uint32(len(c.DistinctOn)))
	for _, e := range c.DistinctOn {
		f.expr(e)
	}
	f.u32(uint32(len(c.Rows)))
	for _, row := range c.Rows {
		f.u32(uint32(len(row)))
		for _, v := range row {
			f.value(v)
		}
	}
	f.u32(uint32(len(c.Assignments)))
	for _, a := range c.Assignments {
		f.tag(fpAssignment)
		f.str(a.Column)
		f.expr(a.Value)
	}
	f.cond(c.Where)
	f.cond(c.Having)

	f.u32(uint32(c.Group.Mode))
	f.u32(uint32(len(c.Group.Exprs)))
	for _, e := range c.Group.Exprs {
		f.expr(e)
	}
	f.u32(uint32(len(c.Group.Sets)))
	for _, set := range c.Group.Sets {
		f.u32(uint32(len(set)))
		for _, e := range set {
			f.expr(e)
		}
	}

	f.u32(uint32(len(c.Order)))
	for _, k := range c.Order {
		f.tag(fpOrderKey)
		f.expr(k.Expr)
		f.u32(uint32(k.Order))
	}
	// Limit and offset contribute presence, not magnitude: the count itself
	// rides as a parameter.
	f.flag(c.LimitCount != nil)
	f.flag(c.OffsetCount != nil)

	f.u32(uint32(len(c.Joins)))
	for _, j := range c.Joins {
		f.tag(fpJoin)
		f.u32(uint32(j.Kind))
		f.str(j.Table)
		f.str(j.Alias)
		f.str(j.OnLeft)
		f.str(j.OnRight)
		f.cond(j.On)
	}
	f.u32(uint32(len(c.CTEs)))
	for _, cte := range c.CTEs {
		f.tag(fpCTE)
		f.str(cte.Name)
		f.flag(cte.Recursive)
		f.u32(uint32(len(cte.Columns)))
		for _, col := range cte.Columns {
			f.str(col)
		}
		f.cmd(cte.Query)
	}

	f.u32(uint32(len(c.ReturningCols)))
	for _, e := range c.ReturningCols {
		f.expr(e)
	}
	if c.Conflict != nil {
		f.tag(fpConflict)
		f.u32(uint32(c.Conflict.Action))
		for _, col := range c.Conflict.Columns {
			f.str(col)
		}
		f.u32(uint32(len(c.Conflict.Assignments)))
		for _, a := range c.Conflict.Assignments {
			f.str(a.Column)
			f.expr(a.Value)
		}
	} else {
		f.tag(fpAbsent)
	}
	f.u32(uint32(len(c.SetOps)))
	for _, op := range c.SetOps {
		f.tag(fpSetOp)
		f.u32(uint32(op.Kind))
		f.cmd(op.Query)
	}
	f.cmd(c.Source)
	if c.IndexDef != nil {
		f.tag(fpIndexDef)
		f.str(c.IndexDef.Name)
		f.flag(c.IndexDef.Unique)
		f.str(c.IndexDef.Using)
		for _, col := range c.IndexDef.Columns {
			f.str(col)
		}
	} else {
		f.tag(fpAbsent)
	}
	f.u32(uint32(len(c.Constraints)))
	for _, tc := range c.Constraints {
		f.tag(fpTableConstraint)
		f.u32(uint32(tc.Kind))
		for _, col := range tc.Columns {
			f.str(col)
		}
	}
}

func (f *fpHasher) expr(e Expr) {
	f.depth++
	defer func() { f.depth-- }()
	if f.depth > MaxDepth || e == nil {
		f.tag(fpNilExpr)
		return
	}
	switch x := e.(type) {
	case Star:
		f.tag(fpStar)
	case Named:
		f.tag(fpNamed)
		f.str(x.Name)
	case Aliased:
		f.tag(fpAliased)
		f.str(x.Name)
		f.str(x.Alias)
	case Literal:
		f.tag(fpLiteral)
		f.value(x.Value)
	case Param:
		f.tag(fpParam)
		f.u32(uint32(x.Index))
	case Aggregate:
		f.tag(fpAggregate)
		f.u32(uint32(x.Func))
		f.str(x.Col)
		f.flag(x.Distinct)
		f.cond(x.Filter)
		f.str(x.Alias)
	case Window:
		f.tag(fpWindow)
		f.str(x.Func)
		f.u32(uint32(len(x.Args)))
		for _, v := range x.Args {
			f.value(v)
		}
		for _, p := range x.Partition {
			f.str(p)
		}
		f.u32(uint32(len(x.Order)))
		for _, k := range x.Order {
			f.expr(k.Expr)
			f.u32(uint32(k.Order))
		}
		if x.Frame != nil {
			f.tag(fpFrame)
			f.u32(uint32(x.Frame.Mode))
			f.u32(uint32(x.Frame.Start.Kind))
			f.u32(uint32(x.Frame.Start.Offset))
			f.u32(uint32(x.Frame.End.Kind))
			f.u32(uint32(x.Frame.End.Offset))
		} else {
			f.tag(fpAbsent)
		}
		f.str(x.Alias)
	case Case:
		f.tag(fpCase)
		f.u32(uint32(len(x.Whens)))
		for _, w := range x.Whens {
			f.cond(w.Cond)
			f.value(w.Then)
		}
		if x.Else != nil {
			f.tag(fpPresent)
			f.value(*x.Else)
		} else {
			f.tag(fpAbsent)
		}
		f.str(x.Alias)
	case Cast:
		f.tag(fpCast)
		f.expr(x.Expr)
		f.str(x.Target)
		f.str(x.Alias)
	case JSONAccess:
		f.tag(fpJSONAccess)
		f.str(x.Column)
		f.u32(uint32(len(x.Path)))
		for _, step := range x.Path {
			f.str(step.Key)
			f.flag(step.AsText)
		}
		f.str(x.Alias)
	case Binary:
		f.tag(fpBinary)
		f.expr(x.Left)
		f.u32(uint32(x.Op))
		f.expr(x.Right)
	case Func:
		f.tag(fpFunc)
		f.str(x.Name)
		f.u32(uint32(len(x.Args)))
		for _, a := range x.Args {
			f.expr(a)
		}
		f.str(x.Alias)
	case ArrayExpr:
		f.tag(fpArray)
		f.u32(uint32(len(x.Elems)))
		for _, el := range x.Elems {
			f.expr(el)
		}
	case RowExpr:
		f.tag(fpRow)
		f.u32(uint32(len(x.Elems)))
		for _, el := range x.Elems {
			f.expr(el)
		}
	case Subscript:
		f.tag(fpSubscript)
		f.expr(x.Expr)
		f.expr(x.Index)
	case Collate:
		f.tag(fpCollate)
		f.expr(x.Expr)
		f.str(x.Collation)
	case FieldAccess:
		f.tag(fpFieldAccess)
		f.expr(x.Expr)
		f.str(x.Field)
	case Subquery:
		f.tag(fpSubquery)
		f.cmd(x.Cmd)
	case ColumnDef:
		f.tag(fpColumnDef)
		f.str(x.Name)
		f.str(x.Type.SQL())
		f.u32(uint32(len(x.Constraints)))
		for _, con := range x.Constraints {
			f.u32(uint32(con.Kind))
			f.str(con.Expr)
		}
	default:
		f.tag(fpNilExpr)
	}
}

func (f *fpHasher) cond(c Condition) {
	f.depth++
	defer func() { f.depth-- }()
	if f.depth > MaxDepth || c == nil {
		f.tag(fpNilCond)
		return
	}
	switch x := c.(type) {
	case And:
		f.tag(fpAnd)
		f.u32(uint32(len(x.Conds)))
		for _, sub := range x.Conds {
			f.cond(sub)
		}
	case Or:
		f.tag(fpOr)
		f.u32(uint32(len(x.Conds)))
		for _, sub := range x.Conds {
			f.cond(sub)
		}
	case Not:
		f.tag(fpNot)
		f.cond(x.Cond)
	case Cmp:
		f.tag(fpCmp)
		f.expr(x.Left)
		f.u32(uint32(x.Op))
		f.expr(x.Right)
		f.expr(x.High)
	default:
		f.tag(fpNilCond)
	}
}

// value mixes the kind only. Payloads become bind parameters, and the
// parameter OID list covers them in the cache key.
func (f *fpHasher) value(v Value) {
	f.tag(fpLiteral)
	f.u32(uint32(v.Kind()))
	if v.Kind() == KindArray {
		f.u32(uint32(len(v.ArrayVal())))
		for _, el := range v.ArrayVal() {
			f.value(el)
		}
	}
}
