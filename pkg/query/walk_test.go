package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

func TestConjuncts(t *testing.T) {
	a := BinaryExpr{Left: ColumnRef{Name: "a"}, Operator: OpEq, Right: Literal{Value: columnar.NewUint64Value(1)}}
	b := IsNullExpr{Expr: ColumnRef{Table: "t", Name: "b"}}
	c := BetweenExpr{Expr: ColumnRef{Name: "c"}, Lower: ColumnRef{Name: "a"}, Upper: NullLiteral{}}
	or := BinaryExpr{Left: b, Operator: OpOr, Right: c}
	where := BinaryExpr{Left: a, Operator: OpAnd, Right: BinaryExpr{Left: or, Operator: OpAnd, Right: UnaryExpr{Operator: OpNot, Expr: a}}}

	parts := Conjuncts(where)
	assert.Len(t, parts, 3)
	assert.Equal(t, a, parts[0])
	assert.Equal(t, or, parts[1])
	assert.Nil(t, Conjuncts(nil))
}

func TestWalkCanPrune(t *testing.T) {
	expr := UnaryExpr{Operator: OpNot, Expr: ColumnRef{Name: "x"}}
	visited := 0
	Walk(expr, func(Expression) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}

func TestExpressionStrings(t *testing.T) {
	expr := BinaryExpr{
		Left:     BetweenExpr{Expr: ColumnRef{Name: "id"}, Lower: Literal{Value: columnar.NewUint64Value(1)}, Upper: Literal{Value: columnar.NewUint64Value(9)}, Not: true},
		Operator: OpOr,
		Right:    BinaryExpr{Left: ColumnRef{Name: "name"}, Operator: OpLike, Right: Literal{Value: columnar.NewStringValue("O'B%")}},
	}
	assert.Equal(t, "((id NOT BETWEEN 1 AND 9) OR (name LIKE 'O''B%'))", expr.String())
	assert.Equal(t, "COUNT(DISTINCT t.*)", FunctionCall{Name: "COUNT", Distinct: true, Args: []Expression{Wildcard{Table: "t"}}}.String())
}
