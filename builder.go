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

import "sort"

// Columns appends named columns to the select/insert list in call order.
func (c *Cmd) Columns(cols ...string) *Cmd {
	for _, col := range cols {
		c.Cols = append(c.Cols, Named{Name: col})
	}
	return c
}

// Column appends a single named column.
func (c *Cmd) Column(col string) *Cmd {
	c.Cols = append(c.Cols, Named{Name: col})
	return c
}

// ColumnExpr appends an expression to the select list.
func (c *Cmd) ColumnExpr(e Expr) *Cmd {
	c.Cols = append(c.Cols, e)
	return c
}

// ColumnAs appends col AS alias.
func (c *Cmd) ColumnAs(col, alias string) *Cmd {
	c.Cols = append(c.Cols, Aliased{Name: col, Alias: alias})
	return c
}

// SelectAll selects * .
func (c *Cmd) SelectAll() *Cmd {
	c.Cols = append(c.Cols, Star{})
	return c
}

// ColumnType appends a column definition for Make.
func (c *Cmd) ColumnType(name string, t ColumnType, constraints ...Constraint) *Cmd {
	c.Cols = append(c.Cols, ColumnDef{Name: name, Type: t, Constraints: constraints})
	return c
}

// TableAlias sets the FROM alias.
func (c *Cmd) TableAlias(alias string) *Cmd {
	c.Alias = alias
	return c
}

// Filter appends col <op> value to the filter, AND-folded with any previous
// filter.
func (c *Cmd) Filter(col string, op Operator, v any) *Cmd {
	return c.FilterCond(Compare(col, op, v))
}

// WhereEq appends col = value to the filter.
func (c *Cmd) WhereEq(col string, v any) *Cmd {
	return c.FilterCond(Eq(col, v))
}

// FilterCond appends a condition, AND-folded left to right.
func (c *Cmd) FilterCond(cond Condition) *Cmd {
	c.Where = foldAnd(c.Where, cond)
	return c
}

// OrFilterCond appends a condition OR-joined with the existing filter.
func (c *Cmd) OrFilterCond(cond Condition) *Cmd {
	if c.Where == nil {
		c.Where = cond
		return c
	}
	if or, ok := c.Where.(Or); ok {
		or.Conds = append(or.Conds, cond)
		c.Where = or
		return c
	}
	c.Where = Or{Conds: []Condition{c.Where, cond}}
	return c
}

func foldAnd(existing, next Condition) Condition {
	if existing == nil {
		return next
	}
	if and, ok := existing.(And); ok {
		and.Conds = append(and.Conds, next)
		return and
	}
	return And{Conds: []Condition{existing, next}}
}

// OrderBy appends an ORDER BY key. Call order is preserved.
func (c *Cmd) OrderBy(col string, order SortOrder) *Cmd {
	c.Order = append(c.Order, OrderKey{Expr: Named{Name: col}, Order: order})
	return c
}

// OrderDesc appends ORDER BY col DESC.
func (c *Cmd) OrderDesc(col string) *Cmd {
	return c.OrderBy(col, Desc)
}

// OrderByExpr appends an ORDER BY key over an arbitrary expression.
func (c *Cmd) OrderByExpr(e Expr, order SortOrder) *Cmd {
	c.Order = append(c.Order, OrderKey{Expr: e, Order: order})
	return c
}

// Limit sets the LIMIT clause.
func (c *Cmd) Limit(n int64) *Cmd {
	c.LimitCount = &n
	return c
}

// Offset sets the OFFSET clause.
func (c *Cmd) Offset(n int64) *Cmd {
	c.OffsetCount = &n
	return c
}

// InnerJoin appends INNER JOIN table ON onLeft = onRight.
func (c *Cmd) InnerJoin(table, onLeft, onRight string) *Cmd {
	return c.joinOn(JoinInner, table, onLeft, onRight)
}

// LeftJoin appends LEFT JOIN table ON onLeft = onRight.
func (c *Cmd) LeftJoin(table, onLeft, onRight string) *Cmd {
	return c.joinOn(JoinLeft, table, onLeft, onRight)
}

// RightJoin appends RIGHT JOIN table ON onLeft = onRight.
func (c *Cmd) RightJoin(table, onLeft, onRight string) *Cmd {
	return c.joinOn(JoinRight, table, onLeft, onRight)
}

// OuterJoin appends FULL OUTER JOIN table ON onLeft = onRight.
func (c *Cmd) OuterJoin(table, onLeft, onRight string) *Cmd {
	return c.joinOn(JoinFull, table, onLeft, onRight)
}

// CrossJoin appends CROSS JOIN table.
func (c *Cmd) CrossJoin(table string) *Cmd {
	c.Joins = append(c.Joins, Join{Kind: JoinCross, Table: table})
	return c
}

func (c *Cmd) joinOn(kind JoinKind, table, onLeft, onRight string) *Cmd {
	c.Joins = append(c.Joins, Join{Kind: kind, Table: table, OnLeft: onLeft, OnRight: onRight})
	return c
}

// JoinCond appends a join with an arbitrary ON condition.
func (c *Cmd) JoinCond(kind JoinKind, table string, on Condition) *Cmd {
	c.Joins = append(c.Joins, Join{Kind: kind, Table: table, On: on})
	return c
}

// WithCTE prepends a common table expression.
func (c *Cmd) WithCTE(name string, query *Cmd) *Cmd {
	c.CTEs = append(c.CTEs, CTE{Name: name, Query: query})
	return c
}

// WithRecursiveCTE prepends a recursive common table expression with an
// explicit column list.
func (c *Cmd) WithRecursiveCTE(name string, columns []string, query *Cmd) *Cmd {
	c.CTEs = append(c.CTEs, CTE{Name: name, Columns: columns, Recursive: true, Query: query})
	return c
}

// GroupBy sets plain GROUP BY over named columns.
func (c *Cmd) GroupBy(cols ...string) *Cmd {
	c.Group = GroupBy{Mode: GroupSimple, Exprs: namedExprs(cols)}
	return c
}

// GroupByRollup sets GROUP BY ROLLUP(cols...).
func (c *Cmd) GroupByRollup(cols ...string) *Cmd {
	c.Group = GroupBy{Mode: GroupRollup, Exprs: namedExprs(cols)}
	return c
}

// GroupByCube sets GROUP BY CUBE(cols...).
func (c *Cmd) GroupByCube(cols ...string) *Cmd {
	c.Group = GroupBy{Mode: GroupCube, Exprs: namedExprs(cols)}
	return c
}

// GroupByGroupingSets sets GROUP BY GROUPING SETS over the given column
// sets.
func (c *Cmd) GroupByGroupingSets(sets ...[]string) *Cmd {
	g := GroupBy{Mode: GroupGroupingSets}
	for _, s := range sets {
		g.Sets = append(g.Sets, namedExprs(s))
	}
	c.Group = g
	return c
}

func namedExprs(cols []string) []Expr {
	exprs := make([]Expr, len(cols))
	for i, col := range cols {
		exprs[i] = Named{Name: col}
	}
	return exprs
}

// HavingCond sets the HAVING clause, AND-folded on repeat calls.
func (c *Cmd) HavingCond(cond Condition) *Cmd {
	c.Having = foldAnd(c.Having, cond)
	return c
}

// Returning sets RETURNING over named columns.
func (c *Cmd) Returning(cols ...string) *Cmd {
	c.ReturningCols = namedExprs(cols)
	return c
}

// ReturningAll sets RETURNING *.
func (c *Cmd) ReturningAll() *Cmd {
	c.ReturningCols = []Expr{Star{}}
	return c
}

// OnConflictDoUpdate sets ON CONFLICT (cols) DO UPDATE SET with the given
// assignments.
func (c *Cmd) OnConflictDoUpdate(cols []string, assignments ...Assignment) *Cmd {
	c.Conflict = &OnConflict{Columns: cols, Action: ConflictDoUpdate, Assignments: assignments}
	return c
}

// OnConflictDoNothing sets ON CONFLICT (cols) DO NOTHING.
func (c *Cmd) OnConflictDoNothing(cols ...string) *Cmd {
	c.Conflict = &OnConflict{Columns: cols, Action: ConflictDoNothing}
	return c
}

// SetValue appends column = value for UPDATE (and upsert assignments).
func (c *Cmd) SetValue(col string, v any) *Cmd {
	c.Assignments = append(c.Assignments, Assignment{Column: col, Value: Literal{Value: From(v)}})
	return c
}

// SetExpr appends column = expression for UPDATE.
func (c *Cmd) SetExpr(col string, e Expr) *Cmd {
	c.Assignments = append(c.Assignments, Assignment{Column: col, Value: e})
	return c
}

// Values appends one positional row for INSERT. Each argument is converted
// with From.
func (c *Cmd) Values(vals ...any) *Cmd {
	row := make([]Value, len(vals))
	for i, v := range vals {
		row[i] = From(v)
	}
	c.Rows = append(c.Rows, row)
	return c
}

// ValuesRow appends one pre-built row for INSERT.
func (c *Cmd) ValuesRow(row []Value) *Cmd {
	c.Rows = append(c.Rows, row)
	return c
}

// ValuesMap appends one column-keyed row for INSERT. On the first call it
// fixes the column list (sorted for determinism); later rows must supply
// the same keys — missing keys insert NULL.
func (c *Cmd) ValuesMap(m map[string]Value) *Cmd {
	if len(c.Cols) == 0 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		c.Columns(keys...)
	}
	row := make([]Value, 0, len(c.Cols))
	for _, col := range c.Cols {
		name, ok := col.(Named)
		if !ok {
			continue
		}
		if v, present := m[name.Name]; present {
			row = append(row, v)
		} else {
			row = append(row, Null())
		}
	}
	c.Rows = append(c.Rows, row)
	return c
}

// FromSelect feeds the INSERT from a subquery instead of VALUES.
func (c *Cmd) FromSelect(sub *Cmd) *Cmd {
	c.Source = sub
	return c
}

// DistinctAll enables SELECT DISTINCT.
func (c *Cmd) DistinctAll() *Cmd {
	c.Distinct = true
	return c
}

// DistinctOnCols enables SELECT DISTINCT ON (cols...).
func (c *Cmd) DistinctOnCols(cols ...string) *Cmd {
	c.DistinctOn = namedExprs(cols)
	return c
}

// UnionWith chains UNION query.
func (c *Cmd) UnionWith(q *Cmd) *Cmd {
	c.SetOps = append(c.SetOps, SetOp{Kind: Union, Query: q})
	return c
}

// UnionAllWith chains UNION ALL query.
func (c *Cmd) UnionAllWith(q *Cmd) *Cmd {
	c.SetOps = append(c.SetOps, SetOp{Kind: UnionAll, Query: q})
	return c
}

// IntersectWith chains INTERSECT query.
func (c *Cmd) IntersectWith(q *Cmd) *Cmd {
	c.SetOps = append(c.SetOps, SetOp{Kind: Intersect, Query: q})
	return c
}

// ExceptWith chains EXCEPT query.
func (c *Cmd) ExceptWith(q *Cmd) *Cmd {
	c.SetOps = append(c.SetOps, SetOp{Kind: Except, Query: q})
	return c
}

// IndexName names the index for an Index command.
func (c *Cmd) IndexName(name string) *Cmd {
	if c.IndexDef != nil {
		c.IndexDef.Name = name
	}
	return c
}

// IndexUnique marks the index as UNIQUE.
func (c *Cmd) IndexUnique() *Cmd {
	if c.IndexDef != nil {
		c.IndexDef.Unique = true
	}
	return c
}

// IndexColumns appends further columns to the index.
func (c *Cmd) IndexColumns(cols ...string) *Cmd {
	if c.IndexDef != nil {
		c.IndexDef.Columns = append(c.IndexDef.Columns, cols...)
	}
	return c
}

// TableUniqueOn appends a table-level UNIQUE constraint for Make.
func (c *Cmd) TableUniqueOn(cols ...string) *Cmd {
	c.Constraints = append(c.Constraints, TableConstraint{Kind: TableUnique, Columns: cols})
	return c
}

// TablePrimaryKeyOn appends a table-level PRIMARY KEY constraint for Make.
func (c *Cmd) TablePrimaryKeyOn(cols ...string) *Cmd {
	c.Constraints = append(c.Constraints, TableConstraint{Kind: TablePrimaryKey, Columns: cols})
	return c
}
