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
Package encode compiles command trees into PostgreSQL statements and wire
frames.

Two strategies exist. Inline renders every literal into the SQL text for the
Simple Query path; Command extracts literals as positional parameters for
the Extended Query path. Both are pure: same tree in, byte-identical output
out, no I/O anywhere.
*/
package encode

import (
	"strconv"
	"strings"

	qail "github.com/qail-lang/qail-go"
	"github.com/qail-lang/qail-go/internal/pgtype"
	"github.com/qail-lang/qail-go/qerr"
)

// Encoded is a compiled command: the SQL template, its extracted parameter
// values in placeholder order, and their declared OIDs.
type Encoded struct {
	SQL       string
	Params    []qail.Value
	ParamOIDs []uint32
}

// Command compiles a tree for the Extended Query path: literals become $n
// placeholders and ride as parameters.
func Command(cmd *qail.Cmd) (Encoded, error) {
	var params []qail.Value
	r := &renderer{params: &params}
	r.command(cmd)
	if r.err != nil {
		return Encoded{}, r.err
	}
	oids := make([]uint32, len(params))
	for i, p := range params {
		oids[i] = pgtype.OIDForValue(p)
	}
	return Encoded{SQL: r.sb.String(), Params: params, ParamOIDs: oids}, nil
}

// Params re-extracts only the parameter vector of a tree, skipping text
// assembly. Extraction order is identical to Command's because the same
// renderer walks the tree; only the string writes are suppressed. This is
// the uniform-batch fast path: the SQL template is rendered once and each
// further execution pays for its values alone.
func Params(cmd *qail.Cmd) ([]qail.Value, error) {
	var params []qail.Value
	r := &renderer{params: &params, discard: true}
	r.command(cmd)
	if r.err != nil {
		return nil, r.err
	}
	return params, nil
}

// Inline compiles a tree for the Simple Query path with literals escaped
// into the text.
func Inline(cmd *qail.Cmd) (string, error) {
	r := &renderer{}
	r.command(cmd)
	if r.err != nil {
		return "", r.err
	}
	return r.sb.String(), nil
}

// HasParams reports whether the tree carries any value that would become a
// bind parameter: filter and having comparisons, assignments, insert rows,
// CASE arms, aggregate filters. LIMIT and OFFSET counts do not count — a
// bare paging query stays on the Simple path.
func HasParams(cmd *qail.Cmd) bool {
	if cmd == nil {
		return false
	}
	if len(cmd.Rows) > 0 || len(cmd.Assignments) > 0 {
		return true
	}
	if condHasValues(cmd.Where) || condHasValues(cmd.Having) {
		return true
	}
	for _, e := range cmd.Cols {
		if exprHasValues(e) {
			return true
		}
	}
	for _, j := range cmd.Joins {
		if condHasValues(j.On) {
			return true
		}
	}
	for _, cte := range cmd.CTEs {
		if HasParams(cte.Query) {
			return true
		}
	}
	for _, op := range cmd.SetOps {
		if HasParams(op.Query) {
			return true
		}
	}
	if cmd.Conflict != nil {
		for _, a := range cmd.Conflict.Assignments {
			if exprHasValues(a.Value) {
				return true
			}
		}
	}
	return HasParams(cmd.Source)
}

func condHasValues(c qail.Condition) bool {
	switch x := c.(type) {
	case qail.And:
		for _, sub := range x.Conds {
			if condHasValues(sub) {
				return true
			}
		}
	case qail.Or:
		for _, sub := range x.Conds {
			if condHasValues(sub) {
				return true
			}
		}
	case qail.Not:
		return condHasValues(x.Cond)
	case qail.Cmp:
		return exprHasValues(x.Right) || exprHasValues(x.High)
	}
	return false
}

func exprHasValues(e qail.Expr) bool {
	switch x := e.(type) {
	case qail.Literal:
		return true
	case qail.Param:
		return true
	case qail.Case:
		return true
	case qail.Aggregate:
		return condHasValues(x.Filter)
	case qail.Binary:
		return exprHasValues(x.Left) || exprHasValues(x.Right)
	case qail.Func:
		for _, a := range x.Args {
			if exprHasValues(a) {
				return true
			}
		}
	case qail.ArrayExpr:
		for _, el := range x.Elems {
			if exprHasValues(el) {
				return true
			}
		}
	case qail.RowExpr:
		for _, el := range x.Elems {
			if exprHasValues(el) {
				return true
			}
		}
	case qail.Subscript:
		return exprHasValues(x.Expr) || exprHasValues(x.Index)
	case qail.Collate:
		return exprHasValues(x.Expr)
	case qail.FieldAccess:
		return exprHasValues(x.Expr)
	case qail.Cast:
		return exprHasValues(x.Expr)
	case qail.Subquery:
		return HasParams(x.Cmd)
	}
	return false
}

// renderer walks one command tree and accumulates SQL text. params nil
// means inline mode. The first failure sticks; later writes are no-ops for
// the caller's purposes.
type renderer struct {
	sb      strings.Builder
	params  *[]qail.Value
	discard bool
	depth   int
	err     error
}

func (r *renderer) raw(s string) {
	if r.discard {
		return
	}
	r.sb.WriteString(s)
}

func (r *renderer) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *renderer) alias(a string) {
	if a != "" {
		r.raw(" AS ")
		r.raw(quoteIdent(a))
	}
}

func (r *renderer) command(cmd *qail.Cmd) {
	if cmd == nil {
		r.fail(qerr.InvalidAst("nil command"))
		return
	}
	switch cmd.Action {
	case qail.ActionGet:
		r.selectCmd(cmd)
	case qail.ActionAdd:
		r.insertCmd(cmd)
	case qail.ActionSet:
		r.updateCmd(cmd)
	case qail.ActionDel:
		r.deleteCmd(cmd)
	case qail.ActionMake:
		r.createTableCmd(cmd)
	case qail.ActionIndex:
		r.createIndexCmd(cmd)
	case qail.ActionDrop:
		r.raw("DROP TABLE ")
		r.table(cmd.Table)
	case qail.ActionCreateView:
		r.createViewCmd(cmd)
	case qail.ActionDropView:
		r.raw("DROP VIEW ")
		r.table(cmd.Table)
	default:
		r.fail(qerr.InvalidAst("unknown action"))
	}
}

// table renders a FROM target. Names carrying a parenthesis are emitted
// verbatim so set-returning functions (pg_sleep, generate_series) work as
// sources.
func (r *renderer) table(name string) {
	if name == "" {
		r.fail(qerr.InvalidAst("empty table name"))
		return
	}
	if strings.ContainsRune(name, '(') {
		r.raw(name)
		return
	}
	r.raw(quoteIdent(name))
}

func (r *renderer) selectCmd(cmd *qail.Cmd) {
	r.withClause(cmd)
	r.raw("SELECT ")
	if len(cmd.DistinctOn) > 0 {
		r.raw("DISTINCT ON (")
		r.exprList(cmd.DistinctOn)
		r.raw(") ")
	} else if cmd.Distinct {
		r.raw("DISTINCT ")
	}
	if len(cmd.Cols) == 0 {
		r.raw("*")
	} else {
		r.exprList(cmd.Cols)
	}
	r.raw(" FROM ")
	r.table(cmd.Table)
	if cmd.Alias != "" {
		r.raw(" AS ")
		r.raw(quoteIdent(cmd.Alias))
	}
	r.joins(cmd.Joins)
	r.whereClause(cmd.Where)
	r.groupByClause(cmd.Group)
	if cmd.Having != nil {
		r.raw(" HAVING ")
		r.cond(cmd.Having)
	}
	for _, op := range cmd.SetOps {
		r.raw(" ")
		r.raw(op.Kind.SQL())
		r.raw(" ")
		r.command(op.Query)
	}
	r.orderClause(cmd.Order)
	r.limitOffset(cmd)
}

func (r *renderer) insertCmd(cmd *qail.Cmd) {
	r.withClause(cmd)
	r.raw("INSERT INTO ")
	r.table(cmd.Table)
	if len(cmd.Cols) > 0 {
		r.raw(" (")
		for i, col := range cmd.Cols {
			if i > 0 {
				r.raw(", ")
			}
			named, ok := col.(qail.Named)
			if !ok {
				r.fail(qerr.InvalidAst("INSERT column list must be plain names"))
				return
			}
			r.raw(quoteIdent(named.Name))
		}
		r.raw(")")
	}
	switch {
	case cmd.Source != nil:
		r.raw(" ")
		r.command(cmd.Source)
	case len(cmd.Rows) > 0:
		r.raw(" VALUES ")
		width := -1
		if len(cmd.Cols) > 0 {
			width = len(cmd.Cols)
		}
		for i, row := range cmd.Rows {
			if width >= 0 && len(row) != width {
				r.fail(qerr.InvalidAst("row " + strconv.Itoa(i) + " width does not match column list"))
				return
			}
			if i > 0 {
				r.raw(", ")
			}
			r.raw("(")
			for j, v := range row {
				if j > 0 {
					r.raw(", ")
				}
				r.value(v)
			}
			r.raw(")")
		}
	default:
		r.fail(qerr.InvalidAst("INSERT without rows or source query"))
		return
	}
	if cmd.Conflict != nil {
		r.conflictClause(cmd.Conflict)
	}
	r.returningClause(cmd.ReturningCols)
}

func (r *renderer) updateCmd(cmd *qail.Cmd) {
	r.withClause(cmd)
	if len(cmd.Assignments) == 0 {
		r.fail(qerr.InvalidAst("UPDATE without assignments"))
		return
	}
	r.raw("UPDATE ")
	r.table(cmd.Table)
	if cmd.Alias != "" {
		r.raw(" AS ")
		r.raw(quoteIdent(cmd.Alias))
	}
	r.raw(" SET ")
	r.assignments(cmd.Assignments)
	r.whereClause(cmd.Where)
	r.returningClause(cmd.ReturningCols)
}

func (r *renderer) deleteCmd(cmd *qail.Cmd) {
	r.withClause(cmd)
	r.raw("DELETE FROM ")
	r.table(cmd.Table)
	if cmd.Alias != "" {
		r.raw(" AS ")
		r.raw(quoteIdent(cmd.Alias))
	}
	r.whereClause(cmd.Where)
	r.returningClause(cmd.ReturningCols)
}

func (r *renderer) createTableCmd(cmd *qail.Cmd) {
	if len(cmd.Cols) == 0 {
		r.fail(qerr.InvalidAst("MAKE without column definitions"))
		return
	}
	r.raw("CREATE TABLE ")
	r.table(cmd.Table)
	r.raw(" (")
	for i, col := range cmd.Cols {
		if i > 0 {
			r.raw(", ")
		}
		def, ok := col.(qail.ColumnDef)
		if !ok {
			r.fail(qerr.InvalidAst("MAKE columns must be definitions"))
			return
		}
		r.columnDef(def)
	}
	for _, tc := range cmd.Constraints {
		r.raw(", ")
		if tc.Kind == qail.TablePrimaryKey {
			r.raw("PRIMARY KEY (")
		} else {
			r.raw("UNIQUE (")
		}
		for i, col := range tc.Columns {
			if i > 0 {
				r.raw(", ")
			}
			r.raw(quoteIdent(col))
		}
		r.raw(")")
	}
	r.raw(")")
}

func (r *renderer) columnDef(def qail.ColumnDef) {
	r.raw(quoteIdent(def.Name))
	r.raw(" ")
	r.raw(def.Type.SQL())
	for _, con := range def.Constraints {
		switch con.Kind {
		case qail.ConstraintPrimaryKey:
			if !def.Type.CanBePrimaryKey() {
				r.fail(qerr.InvalidAst(def.Type.SQL() + " cannot be a primary key"))
				return
			}
			r.raw(" PRIMARY KEY")
		case qail.ConstraintUnique:
			r.raw(" UNIQUE")
		case qail.ConstraintNotNull:
			r.raw(" NOT NULL")
		case qail.ConstraintDefault:
			r.raw(" DEFAULT ")
			r.raw(con.Expr)
		case qail.ConstraintCheck:
			r.raw(" CHECK (")
			r.raw(con.Expr)
			r.raw(")")
		case qail.ConstraintReferences:
			r.raw(" REFERENCES ")
			r.raw(con.Expr)
		}
	}
}

func (r *renderer) createIndexCmd(cmd *qail.Cmd) {
	def := cmd.IndexDef
	if def == nil || len(def.Columns) == 0 {
		r.fail(qerr.InvalidAst("INDEX without columns"))
		return
	}
	r.raw("CREATE ")
	if def.Unique {
		r.raw("UNIQUE ")
	}
	r.raw("INDEX ")
	name := def.Name
	if name == "" {
		name = "idx_" + cmd.Table + "_" + strings.Join(def.Columns, "_")
	}
	r.raw(quoteIdent(name))
	r.raw(" ON ")
	r.table(cmd.Table)
	if def.Using != "" {
		r.raw(" USING ")
		r.raw(def.Using)
	}
	r.raw(" (")
	for i, col := range def.Columns {
		if i > 0 {
			r.raw(", ")
		}
		r.raw(quoteIdent(col))
	}
	r.raw(")")
}

func (r *renderer) createViewCmd(cmd *qail.Cmd) {
	if cmd.Source == nil {
		r.fail(qerr.InvalidAst("CREATE VIEW without source query"))
		return
	}
	r.raw("CREATE VIEW ")
	r.table(cmd.Table)
	r.raw(" AS ")
	r.command(cmd.Source)
}

func (r *renderer) withClause(cmd *qail.Cmd) {
	if len(cmd.CTEs) == 0 {
		return
	}
	r.raw("WITH ")
	for _, cte := range cmd.CTEs {
		if cte.Recursive {
			r.raw("RECURSIVE ")
			break
		}
	}
	for i, cte := range cmd.CTEs {
		if i > 0 {
			r.raw(", ")
		}
		r.raw(quoteIdent(cte.Name))
		if len(cte.Columns) > 0 {
			r.raw(" (")
			for j, col := range cte.Columns {
				if j > 0 {
					r.raw(", ")
				}
				r.raw(quoteIdent(col))
			}
			r.raw(")")
		}
		r.raw(" AS (")
		r.command(cte.Query)
		r.raw(")")
	}
	r.raw(" ")
}

func (r *renderer) joins(joins []qail.Join) {
	for _, j := range joins {
		r.raw(" ")
		r.raw(j.Kind.SQL())
		r.raw(" ")
		r.table(j.Table)
		if j.Alias != "" {
			r.raw(" AS ")
			r.raw(quoteIdent(j.Alias))
		}
		if j.Kind == qail.JoinCross {
			continue
		}
		r.raw(" ON ")
		switch {
		case j.On != nil:
			r.cond(j.On)
		case j.OnLeft != "" && j.OnRight != "":
			r.raw(quoteIdent(j.OnLeft))
			r.raw(" = ")
			r.raw(quoteIdent(j.OnRight))
		default:
			r.fail(qerr.InvalidAst("join on " + j.Table + " has no condition"))
			return
		}
	}
}

func (r *renderer) whereClause(c qail.Condition) {
	if c == nil {
		return
	}
	r.raw(" WHERE ")
	r.cond(c)
}

func (r *renderer) groupByClause(g qail.GroupBy) {
	switch g.Mode {
	case qail.GroupSimple:
		if len(g.Exprs) == 0 {
			return
		}
		r.raw(" GROUP BY ")
		r.exprList(g.Exprs)
	case qail.GroupRollup:
		if len(g.Exprs) == 0 {
			r.fail(qerr.InvalidAst("ROLLUP over zero columns"))
			return
		}
		r.raw(" GROUP BY ROLLUP (")
		r.exprList(g.Exprs)
		r.raw(")")
	case qail.GroupCube:
		if len(g.Exprs) == 0 {
			r.fail(qerr.InvalidAst("CUBE over zero columns"))
			return
		}
		r.raw(" GROUP BY CUBE (")
		r.exprList(g.Exprs)
		r.raw(")")
	case qail.GroupGroupingSets:
		if len(g.Sets) == 0 {
			r.fail(qerr.InvalidAst("GROUPING SETS without sets"))
			return
		}
		r.raw(" GROUP BY GROUPING SETS (")
		for i, set := range g.Sets {
			if i > 0 {
				r.raw(", ")
			}
			r.raw("(")
			r.exprList(set)
			r.raw(")")
		}
		r.raw(")")
	}
}

func (r *renderer) orderClause(keys []qail.OrderKey) {
	if len(keys) == 0 {
		return
	}
	r.raw(" ORDER BY ")
	r.orderKeys(keys)
}

func (r *renderer) orderKeys(keys []qail.OrderKey) {
	for i, k := range keys {
		if i > 0 {
			r.raw(", ")
		}
		r.expr(k.Expr)
		r.raw(" ")
		r.raw(k.Order.SQL())
	}
}

// limitOffset renders LIMIT before OFFSET. The counts parameterize in
// extended mode so uniform batches share one statement.
func (r *renderer) limitOffset(cmd *qail.Cmd) {
	if cmd.LimitCount != nil {
		r.raw(" LIMIT ")
		r.value(qail.Int(*cmd.LimitCount))
	}
	if cmd.OffsetCount != nil {
		r.raw(" OFFSET ")
		r.value(qail.Int(*cmd.OffsetCount))
	}
}

func (r *renderer) assignments(assignments []qail.Assignment) {
	for i, a := range assignments {
		if i > 0 {
			r.raw(", ")
		}
		r.raw(quoteIdent(a.Column))
		r.raw(" = ")
		r.expr(a.Value)
	}
}

func (r *renderer) conflictClause(c *qail.OnConflict) {
	r.raw(" ON CONFLICT")
	if len(c.Columns) > 0 {
		r.raw(" (")
		for i, col := range c.Columns {
			if i > 0 {
				r.raw(", ")
			}
			r.raw(quoteIdent(col))
		}
		r.raw(")")
	}
	if c.Action == qail.ConflictDoUpdate {
		if len(c.Assignments) == 0 {
			r.fail(qerr.InvalidAst("ON CONFLICT DO UPDATE without assignments"))
			return
		}
		r.raw(" DO UPDATE SET ")
		r.assignments(c.Assignments)
	} else {
		r.raw(" DO NOTHING")
	}
}

func (r *renderer) returningClause(cols []qail.Expr) {
	if len(cols) == 0 {
		return
	}
	r.raw(" RETURNING ")
	r.exprList(cols)
}

func (r *renderer) exprList(exprs []qail.Expr) {
	for i, e := range exprs {
		if i > 0 {
			r.raw(", ")
		}
		r.expr(e)
	}
}
