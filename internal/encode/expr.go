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
	"encoding/hex"
	"strconv"
	"strings"

	qail "github.com/qail-lang/qail-go"
	"github.com/qail-lang/qail-go/qerr"
)

func (r *renderer) expr(e qail.Expr) {
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > qail.MaxDepth {
		r.fail(qerr.DepthLimit(qail.MaxDepth))
		return
	}
	switch x := e.(type) {
	case nil:
		r.fail(qerr.InvalidAst("nil expression"))
	case qail.Star:
		r.raw("*")
	case qail.Named:
		r.raw(quoteIdent(x.Name))
	case qail.Aliased:
		r.raw(quoteIdent(x.Name))
		r.alias(x.Alias)
	case qail.Literal:
		r.value(x.Value)
	case qail.Param:
		if x.Index < 1 {
			r.fail(qerr.InvalidAst("parameter index must be 1-based"))
			return
		}
		r.placeholderAt(x.Index)
	case qail.Aggregate:
		r.aggregate(x)
	case qail.Window:
		r.window(x)
	case qail.Case:
		r.caseExpr(x)
	case qail.Cast:
		r.expr(x.Expr)
		r.raw("::")
		r.raw(x.Target)
		r.alias(x.Alias)
	case qail.JSONAccess:
		r.jsonAccess(x)
	case qail.Binary:
		r.raw("(")
		r.expr(x.Left)
		r.raw(" ")
		r.raw(x.Op.String())
		r.raw(" ")
		r.expr(x.Right)
		r.raw(")")
	case qail.Func:
		r.raw(strings.ToUpper(x.Name))
		r.raw("(")
		for i, a := range x.Args {
			if i > 0 {
				r.raw(", ")
			}
			r.expr(a)
		}
		r.raw(")")
		r.alias(x.Alias)
	case qail.ArrayExpr:
		r.raw("ARRAY[")
		for i, el := range x.Elems {
			if i > 0 {
				r.raw(", ")
			}
			r.expr(el)
		}
		r.raw("]")
	case qail.RowExpr:
		r.raw("ROW(")
		for i, el := range x.Elems {
			if i > 0 {
				r.raw(", ")
			}
			r.expr(el)
		}
		r.raw(")")
	case qail.Subscript:
		r.raw("(")
		r.expr(x.Expr)
		r.raw(")[")
		r.expr(x.Index)
		r.raw("]")
	case qail.Collate:
		r.expr(x.Expr)
		r.raw(` COLLATE "`)
		r.raw(strings.ReplaceAll(x.Collation, `"`, `""`))
		r.raw(`"`)
	case qail.FieldAccess:
		r.raw("(")
		r.expr(x.Expr)
		r.raw(").")
		r.raw(quoteIdent(x.Field))
	case qail.Subquery:
		r.raw("(")
		r.command(x.Cmd)
		r.raw(")")
	case qail.ColumnDef:
		r.fail(qerr.InvalidAst("column definition outside MAKE"))
	default:
		r.fail(qerr.InvalidAst("unknown expression variant"))
	}
}

func (r *renderer) aggregate(x qail.Aggregate) {
	r.raw(x.Func.String())
	r.raw("(")
	if x.Distinct {
		r.raw("DISTINCT ")
	}
	if x.Col == "*" || x.Col == "" {
		r.raw("*")
	} else {
		r.raw(quoteIdent(x.Col))
	}
	r.raw(")")
	if x.Filter != nil {
		r.raw(" FILTER (WHERE ")
		r.cond(x.Filter)
		r.raw(")")
	}
	r.alias(x.Alias)
}

func (r *renderer) window(x qail.Window) {
	if x.Frame != nil && len(x.Order) == 0 {
		r.fail(qerr.InvalidAst("window frame without ORDER BY"))
		return
	}
	r.raw(strings.ToUpper(x.Func))
	r.raw("(")
	for i, arg := range x.Args {
		if i > 0 {
			r.raw(", ")
		}
		r.value(arg)
	}
	r.raw(") OVER (")
	wrote := false
	if len(x.Partition) > 0 {
		r.raw("PARTITION BY ")
		for i, col := range x.Partition {
			if i > 0 {
				r.raw(", ")
			}
			r.raw(quoteIdent(col))
		}
		wrote = true
	}
	if len(x.Order) > 0 {
		if wrote {
			r.raw(" ")
		}
		r.raw("ORDER BY ")
		r.orderKeys(x.Order)
		wrote = true
	}
	if x.Frame != nil {
		if wrote {
			r.raw(" ")
		}
		r.frame(*x.Frame)
	}
	r.raw(")")
	r.alias(x.Alias)
}

func (r *renderer) frame(f qail.WindowFrame) {
	if f.Mode == qail.FrameRange {
		r.raw("RANGE BETWEEN ")
	} else {
		r.raw("ROWS BETWEEN ")
	}
	r.frameBound(f.Start)
	r.raw(" AND ")
	r.frameBound(f.End)
}

func (r *renderer) frameBound(b qail.FrameBound) {
	switch b.Kind {
	case qail.UnboundedPreceding:
		r.raw("UNBOUNDED PRECEDING")
	case qail.Preceding:
		r.raw(strconv.Itoa(b.Offset))
		r.raw(" PRECEDING")
	case qail.CurrentRow:
		r.raw("CURRENT ROW")
	case qail.Following:
		r.raw(strconv.Itoa(b.Offset))
		r.raw(" FOLLOWING")
	case qail.UnboundedFollowing:
		r.raw("UNBOUNDED FOLLOWING")
	}
}

func (r *renderer) caseExpr(x qail.Case) {
	if len(x.Whens) == 0 {
		r.fail(qerr.InvalidAst("CASE without WHEN arms"))
		return
	}
	r.raw("CASE")
	for _, w := range x.Whens {
		r.raw(" WHEN ")
		r.cond(w.Cond)
		r.raw(" THEN ")
		r.value(w.Then)
	}
	if x.Else != nil {
		r.raw(" ELSE ")
		r.value(*x.Else)
	}
	r.raw(" END")
	r.alias(x.Alias)
}

func (r *renderer) jsonAccess(x qail.JSONAccess) {
	if len(x.Path) == 0 {
		r.fail(qerr.InvalidAst("JSON access with empty path"))
		return
	}
	r.raw(quoteIdent(x.Column))
	for _, step := range x.Path {
		if step.AsText {
			r.raw("->>")
		} else {
			r.raw("->")
		}
		r.raw(quoteLiteral(step.Key))
	}
	r.alias(x.Alias)
}

func (r *renderer) cond(c qail.Condition) {
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > qail.MaxDepth {
		r.fail(qerr.DepthLimit(qail.MaxDepth))
		return
	}
	switch x := c.(type) {
	case nil:
		r.fail(qerr.InvalidAst("nil condition"))
	case qail.And:
		r.condList(x.Conds, " AND ")
	case qail.Or:
		r.condList(x.Conds, " OR ")
	case qail.Not:
		r.raw("NOT (")
		r.cond(x.Cond)
		r.raw(")")
	case qail.Cmp:
		r.cmp(x)
	default:
		r.fail(qerr.InvalidAst("unknown condition variant"))
	}
}

func (r *renderer) condList(conds []qail.Condition, sep string) {
	if len(conds) == 0 {
		r.fail(qerr.InvalidAst("empty boolean group"))
		return
	}
	if len(conds) == 1 {
		r.cond(conds[0])
		return
	}
	r.raw("(")
	for i, c := range conds {
		if i > 0 {
			r.raw(sep)
		}
		r.cond(c)
	}
	r.raw(")")
}

func (r *renderer) cmp(x qail.Cmp) {
	switch {
	case x.Op.TakesNoOperand():
		if x.Right != nil {
			r.fail(qerr.InvalidAst(x.Op.String() + " takes no right-hand side"))
			return
		}
		r.expr(x.Left)
		r.raw(" ")
		r.raw(x.Op.String())
	case x.Op.TakesRange():
		if x.Right == nil || x.High == nil {
			r.fail(qerr.InvalidAst(x.Op.String() + " needs two bounds"))
			return
		}
		r.expr(x.Left)
		r.raw(" ")
		r.raw(x.Op.String())
		r.raw(" ")
		r.expr(x.Right)
		r.raw(" AND ")
		r.expr(x.High)
	case x.Op.TakesList():
		r.inList(x)
	default:
		if x.Right == nil {
			r.fail(qerr.InvalidAst(x.Op.String() + " needs a right-hand side"))
			return
		}
		r.expr(x.Left)
		r.raw(" ")
		r.raw(x.Op.String())
		r.raw(" ")
		r.expr(x.Right)
	}
}

func (r *renderer) inList(x qail.Cmp) {
	r.expr(x.Left)
	r.raw(" ")
	r.raw(x.Op.String())
	r.raw(" (")
	switch rhs := x.Right.(type) {
	case qail.ArrayExpr:
		if len(rhs.Elems) == 0 {
			r.fail(qerr.InvalidAst("IN with empty list"))
			return
		}
		for i, el := range rhs.Elems {
			if i > 0 {
				r.raw(", ")
			}
			r.expr(el)
		}
	case qail.Subquery:
		r.command(rhs.Cmd)
	case qail.Literal:
		if rhs.Value.Kind() != qail.KindArray || len(rhs.Value.ArrayVal()) == 0 {
			r.fail(qerr.InvalidAst("IN needs a non-empty list or subquery"))
			return
		}
		for i, el := range rhs.Value.ArrayVal() {
			if i > 0 {
				r.raw(", ")
			}
			r.value(el)
		}
	default:
		r.fail(qerr.InvalidAst("IN needs a list or subquery"))
	}
	r.raw(")")
}

// value renders a literal: a placeholder in parameter mode, the escaped
// literal text otherwise.
func (r *renderer) value(v qail.Value) {
	if r.params != nil && !v.IsNull() {
		*r.params = append(*r.params, v)
		r.placeholderAt(len(*r.params))
		return
	}
	r.inlineValue(v)
}

func (r *renderer) inlineValue(v qail.Value) {
	switch v.Kind() {
	case qail.KindNull:
		r.raw("NULL")
	case qail.KindBool:
		if v.BoolVal() {
			r.raw("TRUE")
		} else {
			r.raw("FALSE")
		}
	case qail.KindInt:
		r.raw(strconv.FormatInt(v.IntVal(), 10))
	case qail.KindFloat:
		r.raw(strconv.FormatFloat(v.FloatVal(), 'g', -1, 64))
	case qail.KindText:
		if strings.IndexByte(v.TextVal(), 0) != -1 {
			r.fail(qerr.NulInText(0))
			return
		}
		r.raw(quoteLiteral(v.TextVal()))
	case qail.KindNumeric:
		r.raw(v.TextVal())
	case qail.KindBytes:
		r.raw("'\\x")
		r.raw(hex.EncodeToString(v.BytesVal()))
		r.raw("'")
	case qail.KindUUID:
		r.raw("'")
		r.raw(v.UUIDVal().String())
		r.raw("'")
	case qail.KindJSON:
		r.raw(quoteLiteral(string(v.BytesVal())))
	case qail.KindTimestamp:
		_, tz := v.TimestampVal()
		if tz {
			r.raw(quoteLiteral(v.TimeVal().Format("2006-01-02 15:04:05.999999-07:00")))
		} else {
			r.raw(quoteLiteral(v.TimeVal().Format("2006-01-02 15:04:05.999999")))
		}
	case qail.KindArray:
		r.raw("ARRAY[")
		for i, el := range v.ArrayVal() {
			if i > 0 {
				r.raw(", ")
			}
			r.inlineValue(el)
		}
		r.raw("]")
	default:
		r.fail(qerr.InvalidAst("unsupported literal kind"))
	}
}

// placeholderAt writes $n, table-driven for the first hundred indexes so
// tight batch loops never format integers.
func (r *renderer) placeholderAt(n int) {
	if n < len(placeholders) {
		r.raw(placeholders[n])
		return
	}
	r.raw("$")
	r.raw(strconv.Itoa(n))
}

var placeholders = func() [100]string {
	var p [100]string
	for i := range p {
		p[i] = "$" + strconv.Itoa(i)
	}
	return p
}()
