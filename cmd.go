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

// Action identifies the command verb.
type Action uint8

// Command actions.
const (
	ActionGet Action = iota
	ActionAdd
	ActionSet
	ActionDel
	ActionMake
	ActionIndex
	ActionDrop
	ActionCreateView
	ActionDropView
)

// String returns the QAIL verb name.
func (a Action) String() string {
	switch a {
	case ActionGet:
		return "GET"
	case ActionAdd:
		return "ADD"
	case ActionSet:
		return "SET"
	case ActionDel:
		return "DEL"
	case ActionMake:
		return "MAKE"
	case ActionIndex:
		return "INDEX"
	case ActionDrop:
		return "DROP"
	case ActionCreateView:
		return "CREATE_VIEW"
	case ActionDropView:
		return "DROP_VIEW"
	default:
		return "GET"
	}
}

// SortOrder is an ORDER BY direction, optionally with NULLS placement.
type SortOrder uint8

// Sort orders.
const (
	Asc SortOrder = iota
	Desc
	AscNullsFirst
	AscNullsLast
	DescNullsFirst
	DescNullsLast
)

// SQL returns the ORDER BY suffix for the direction.
func (o SortOrder) SQL() string {
	switch o {
	case Asc:
		return "ASC"
	case Desc:
		return "DESC"
	case AscNullsFirst:
		return "ASC NULLS FIRST"
	case AscNullsLast:
		return "ASC NULLS LAST"
	case DescNullsFirst:
		return "DESC NULLS FIRST"
	case DescNullsLast:
		return "DESC NULLS LAST"
	default:
		return "ASC"
	}
}

// OrderKey is one ORDER BY entry.
type OrderKey struct {
	Expr  Expr
	Order SortOrder
}

// JoinKind enumerates join types.
type JoinKind uint8

// Join kinds.
const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

// SQL returns the join keyword.
func (k JoinKind) SQL() string {
	switch k {
	case JoinInner:
		return "INNER JOIN"
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	case JoinFull:
		return "FULL OUTER JOIN"
	case JoinCross:
		return "CROSS JOIN"
	default:
		return "INNER JOIN"
	}
}

// Join is one joined table. When On is nil the OnLeft/OnRight column pair
// forms the equality predicate; Cross joins carry neither.
type Join struct {
	Kind    JoinKind
	Table   string
	Alias   string
	OnLeft  string
	OnRight string
	On      Condition
}

// CTE is one WITH-clause entry.
type CTE struct {
	Name      string
	Columns   []string
	Recursive bool
	Query     *Cmd
}

// GroupByMode selects plain GROUP BY or one of the grouping extensions.
type GroupByMode uint8

// Group-by modes.
const (
	GroupSimple GroupByMode = iota
	GroupRollup
	GroupCube
	GroupGroupingSets
)

// GroupBy is the GROUP BY clause. Sets is used only for GroupGroupingSets.
type GroupBy struct {
	Mode  GroupByMode
	Exprs []Expr
	Sets  [][]Expr
}

// Assignment is one column = expression pair (UPDATE SET, ON CONFLICT DO
// UPDATE SET).
type Assignment struct {
	Column string
	Value  Expr
}

// ConflictAction selects the ON CONFLICT branch.
type ConflictAction uint8

// Conflict actions.
const (
	ConflictDoNothing ConflictAction = iota
	ConflictDoUpdate
)

// OnConflict is the INSERT upsert clause.
type OnConflict struct {
	Columns     []string
	Action      ConflictAction
	Assignments []Assignment
}

// SetOpKind enumerates query set operations.
type SetOpKind uint8

// Set operations.
const (
	Union SetOpKind = iota
	UnionAll
	Intersect
	Except
)

// SQL returns the set operation keyword.
func (k SetOpKind) SQL() string {
	switch k {
	case Union:
		return "UNION"
	case UnionAll:
		return "UNION ALL"
	case Intersect:
		return "INTERSECT"
	case Except:
		return "EXCEPT"
	default:
		return "UNION"
	}
}

// SetOp chains another query onto a Get with a set operation.
type SetOp struct {
	Kind  SetOpKind
	Query *Cmd
}

// IndexDef describes a CREATE INDEX target.
type IndexDef struct {
	Name    string
	Columns []string
	Unique  bool
	Using   string // access method; empty = btree
}

// TableConstraintKind enumerates table-level constraints for Make.
type TableConstraintKind uint8

// Table constraint kinds.
const (
	TablePrimaryKey TableConstraintKind = iota
	TableUnique
)

// TableConstraint is a composite-key constraint for CREATE TABLE.
type TableConstraint struct {
	Kind    TableConstraintKind
	Columns []string
}

// Cmd is a complete QAIL command: one action over one target with clauses.
// Fields are exported so the encoder can walk the tree; callers normally
// build through the fluent mutators rather than touching fields directly.
type Cmd struct {
	Action Action
	Table  string
	Alias  string

	Cols []Expr

	// Add: positional value rows. Set: assignments.
	Rows        [][]Value
	Assignments []Assignment

	Where  Condition // left-folded AND of FilterCond calls
	Having Condition

	Group       GroupBy
	Order       []OrderKey
	LimitCount  *int64
	OffsetCount *int64

	Joins []Join
	CTEs  []CTE

	Distinct   bool
	DistinctOn []Expr

	ReturningCols []Expr
	Conflict      *OnConflict
	SetOps        []SetOp

	// Source feeds INSERT ... SELECT and CREATE VIEW ... AS.
	Source *Cmd

	IndexDef    *IndexDef
	Constraints []TableConstraint
}

// Get starts a SELECT command on the given table.
func Get(table string) *Cmd {
	return &Cmd{Action: ActionGet, Table: table}
}

// Add starts an INSERT command on the given table.
func Add(table string) *Cmd {
	return &Cmd{Action: ActionAdd, Table: table}
}

// Set starts an UPDATE command on the given table.
func Set(table string) *Cmd {
	return &Cmd{Action: ActionSet, Table: table}
}

// Del starts a DELETE command on the given table.
func Del(table string) *Cmd {
	return &Cmd{Action: ActionDel, Table: table}
}

// Make starts a CREATE TABLE command.
func Make(table string) *Cmd {
	return &Cmd{Action: ActionMake, Table: table}
}

// Index starts a CREATE INDEX command over the given column.
func Index(table, col string) *Cmd {
	return &Cmd{
		Action:   ActionIndex,
		Table:    table,
		IndexDef: &IndexDef{Columns: []string{col}},
	}
}

// Drop starts a DROP TABLE command.
func Drop(table string) *Cmd {
	return &Cmd{Action: ActionDrop, Table: table}
}

// CreateView starts a CREATE VIEW command backed by the given query.
func CreateView(name string, query *Cmd) *Cmd {
	return &Cmd{Action: ActionCreateView, Table: name, Source: query}
}

// DropView starts a DROP VIEW command.
func DropView(name string) *Cmd {
	return &Cmd{Action: ActionDropView, Table: name}
}
