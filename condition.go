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

// Operator enumerates comparison operators usable in conditions.
type Operator uint8

// Comparison operators.
const (
	OpEq Operator = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpLike
	OpNotLike
	OpILike
	OpNotILike
	OpIn
	OpNotIn
	OpIsNull
	OpIsNotNull
	OpBetween
	OpNotBetween
)

// String returns the SQL token for the operator.
func (op Operator) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpLike:
		return "LIKE"
	case OpNotLike:
		return "NOT LIKE"
	case OpILike:
		return "ILIKE"
	case OpNotILike:
		return "NOT ILIKE"
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	case OpBetween:
		return "BETWEEN"
	case OpNotBetween:
		return "NOT BETWEEN"
	default:
		return "="
	}
}

// TakesNoOperand reports whether the operator stands alone on the right side
// (IS NULL / IS NOT NULL).
func (op Operator) TakesNoOperand() bool {
	return op == OpIsNull || op == OpIsNotNull
}

// TakesRange reports whether the operator needs two bounds (BETWEEN family).
func (op Operator) TakesRange() bool {
	return op == OpBetween || op == OpNotBetween
}

// TakesList reports whether the operator compares against a list or
// subquery (IN family).
func (op Operator) TakesList() bool {
	return op == OpIn || op == OpNotIn
}

// Condition is a node in a boolean filter tree. The concrete variants below
// are the only implementations.
type Condition interface {
	isCond()
}

// And joins child conditions with AND.
type And struct {
	Conds []Condition
}

// Or joins child conditions with OR.
type Or struct {
	Conds []Condition
}

// Not negates a child condition.
type Not struct {
	Cond Condition
}

// Cmp compares a left expression against a right operand.
//
// The right shape must match the operator: IsNull/IsNotNull leave Right nil;
// Between/NotBetween set both Right and High; In/NotIn set Right to an
// ArrayExpr or Subquery. The encoder enforces these shapes.
type Cmp struct {
	Left  Expr
	Op    Operator
	Right Expr
	High  Expr // second bound for BETWEEN
}

func (And) isCond() {}
func (Or) isCond()  {}
func (Not) isCond() {}
func (Cmp) isCond() {}

// Eq builds col = value.
func Eq(col string, v any) Condition {
	return Cmp{Left: Named{Name: col}, Op: OpEq, Right: Literal{Value: From(v)}}
}

// Compare builds col <op> value.
func Compare(col string, op Operator, v any) Condition {
	if op.TakesNoOperand() {
		return Cmp{Left: Named{Name: col}, Op: op}
	}
	return Cmp{Left: Named{Name: col}, Op: op, Right: Literal{Value: From(v)}}
}

// IsNull builds col IS NULL.
func IsNull(col string) Condition {
	return Cmp{Left: Named{Name: col}, Op: OpIsNull}
}

// IsNotNull builds col IS NOT NULL.
func IsNotNull(col string) Condition {
	return Cmp{Left: Named{Name: col}, Op: OpIsNotNull}
}

// In builds col IN (v1, v2, ...).
func In(col string, vals ...any) Condition {
	elems := make([]Expr, len(vals))
	for i, v := range vals {
		elems[i] = Literal{Value: From(v)}
	}
	return Cmp{Left: Named{Name: col}, Op: OpIn, Right: ArrayExpr{Elems: elems}}
}

// Between builds col BETWEEN low AND high.
func Between(col string, low, high any) Condition {
	return Cmp{
		Left:  Named{Name: col},
		Op:    OpBetween,
		Right: Literal{Value: From(low)},
		High:  Literal{Value: From(high)},
	}
}
