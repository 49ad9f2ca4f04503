package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
	"github.com/Jonatan852/columnar-datasource/pkg/query"
)

// ErrUnsupported marca construções SQL válidas que o motor não executa.
var ErrUnsupported = errors.New("parser: construção não suportada")

// comparisons traduz os operadores do sqlparser para os do AST. Operadores
// ausentes (IN, REGEXP, <=>) são recusados.
var comparisons = map[string]string{
	sqlparser.EqualStr:        query.OpEq,
	sqlparser.NotEqualStr:     query.OpNe,
	sqlparser.LessThanStr:     query.OpLt,
	sqlparser.LessEqualStr:    query.OpLe,
	sqlparser.GreaterThanStr:  query.OpGt,
	sqlparser.GreaterEqualStr: query.OpGe,
	sqlparser.LikeStr:         query.OpLike,
	sqlparser.NotLikeStr:      query.OpNotLike,
}

// Parse converte SQL em um SelectStatement usando sqlparser. Só SELECT é aceito.
func Parse(sql string) (*query.SelectStatement, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("erro ao parsear SQL: %w", err)
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, fmt.Errorf("%w: apenas SELECT (recebido %T)", ErrUnsupported, stmt)
	}
	return convertSelect(sel)
}

func unsupported(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

func convertSelect(sel *sqlparser.Select) (*query.SelectStatement, error) {
	out := &query.SelectStatement{Distinct: sel.Distinct != ""}
	var err error

	for _, item := range sel.SelectExprs {
		converted, err := selectItem(item)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, converted)
	}
	for _, te := range sel.From {
		if join, ok := te.(*sqlparser.JoinTableExpr); ok {
			if len(sel.From) > 1 {
				return nil, unsupported("JOIN misturado com lista de tabelas")
			}
			base, joins, err := joinChain(join)
			if err != nil {
				return nil, err
			}
			out.From = append(out.From, base)
			out.Joins = joins
			continue
		}
		ref, err := tableRef(te)
		if err != nil {
			return nil, err
		}
		out.From = append(out.From, ref)
	}
	if sel.Where != nil {
		if out.Where, err = convertExpr(sel.Where.Expr); err != nil {
			return nil, err
		}
	}
	for _, g := range sel.GroupBy {
		e, err := convertExpr(g)
		if err != nil {
			return nil, err
		}
		out.GroupBy = append(out.GroupBy, e)
	}
	if sel.Having != nil {
		if out.Having, err = convertExpr(sel.Having.Expr); err != nil {
			return nil, err
		}
	}
	for _, o := range sel.OrderBy {
		e, err := convertExpr(o.Expr)
		if err != nil {
			return nil, err
		}
		dir := query.SortAsc
		if strings.EqualFold(o.Direction, sqlparser.DescScr) {
			dir = query.SortDesc
		}
		out.OrderBy = append(out.OrderBy, query.OrderExpression{Expr: e, Direction: dir})
	}
	if sel.Limit != nil {
		if out.Limit, err = count("LIMIT", sel.Limit.Rowcount); err != nil {
			return nil, err
		}
		if out.Offset, err = count("OFFSET", sel.Limit.Offset); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func selectItem(expr sqlparser.SelectExpr) (query.SelectItem, error) {
	switch e := expr.(type) {
	case *sqlparser.StarExpr:
		return query.SelectItem{Wildcard: &query.Wildcard{Table: e.TableName.Name.String()}}, nil
	case *sqlparser.AliasedExpr:
		converted, err := convertExpr(e.Expr)
		if err != nil {
			return query.SelectItem{}, err
		}
		return query.SelectItem{Expr: converted, Alias: e.As.String()}, nil
	default:
		return query.SelectItem{}, unsupported("item de SELECT %T", expr)
	}
}

func tableRef(expr sqlparser.TableExpr) (query.TableReference, error) {
	switch e := expr.(type) {
	case *sqlparser.AliasedTableExpr:
		name, ok := e.Expr.(sqlparser.TableName)
		if !ok {
			return query.TableReference{}, unsupported("subconsulta no FROM")
		}
		if !name.Qualifier.IsEmpty() {
			return query.TableReference{}, unsupported("tabela qualificada %s.%s", name.Qualifier, name.Name)
		}
		return query.TableReference{Name: name.Name.String(), Alias: e.As.String()}, nil
	case *sqlparser.JoinTableExpr:
		return query.TableReference{}, unsupported("JOIN aninhado à direita")
	case *sqlparser.ParenTableExpr:
		return query.TableReference{}, unsupported("expressão de tabela entre parênteses")
	default:
		return query.TableReference{}, unsupported("expressão de tabela %T", expr)
	}
}

// joins aceitos; RIGHT, NATURAL e STRAIGHT_JOIN são recusados.
var joinTypes = map[string]query.JoinType{
	sqlparser.JoinStr:     query.JoinInner,
	sqlparser.LeftJoinStr: query.JoinLeft,
}

// joinChain achata "a JOIN b ON .. LEFT JOIN c ON .." na tabela base e nos joins em ordem.
func joinChain(expr *sqlparser.JoinTableExpr) (query.TableReference, []query.JoinClause, error) {
	var (
		base  query.TableReference
		joins []query.JoinClause
		err   error
	)
	if left, ok := expr.LeftExpr.(*sqlparser.JoinTableExpr); ok {
		base, joins, err = joinChain(left)
	} else {
		base, err = tableRef(expr.LeftExpr)
	}
	if err != nil {
		return query.TableReference{}, nil, err
	}
	typ, ok := joinTypes[expr.Join]
	if !ok {
		return query.TableReference{}, nil, unsupported("%s", strings.ToUpper(expr.Join))
	}
	right, err := tableRef(expr.RightExpr)
	if err != nil {
		return query.TableReference{}, nil, err
	}
	if len(expr.Condition.Using) > 0 {
		return query.TableReference{}, nil, unsupported("JOIN ... USING")
	}
	if expr.Condition.On == nil {
		return query.TableReference{}, nil, unsupported("JOIN sem ON")
	}
	on, err := convertExpr(expr.Condition.On)
	if err != nil {
		return query.TableReference{}, nil, err
	}
	return base, append(joins, query.JoinClause{Type: typ, Table: right, On: on}), nil
}

// count lê LIMIT/OFFSET; ausência devolve nil.
func count(clause string, expr sqlparser.Expr) (*int64, error) {
	if expr == nil {
		return nil, nil
	}
	val, ok := expr.(*sqlparser.SQLVal)
	if !ok || val.Type != sqlparser.IntVal {
		return nil, fmt.Errorf("%s deve ser um inteiro não negativo, obtido %s", clause, sqlparser.String(expr))
	}
	n, err := strconv.ParseInt(string(val.Val), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("valor %s inválido: %w", clause, err)
	}
	if n < 0 {
		return nil, fmt.Errorf("%s não pode ser negativo", clause)
	}
	return &n, nil
}

func binary(op string, l, r sqlparser.Expr) (query.Expression, error) {
	left, err := convertExpr(l)
	if err != nil {
		return nil, err
	}
	right, err := convertExpr(r)
	if err != nil {
		return nil, err
	}
	return query.BinaryExpr{Left: left, Operator: op, Right: right}, nil
}

func convertExpr(expr sqlparser.Expr) (query.Expression, error) {
	switch e := expr.(type) {
	case *sqlparser.ColName:
		return query.ColumnRef{Table: e.Qualifier.Name.String(), Name: e.Name.String()}, nil
	case *sqlparser.SQLVal:
		return literal(e)
	case *sqlparser.NullVal:
		return query.NullLiteral{}, nil
	case *sqlparser.ParenExpr:
		return convertExpr(e.Expr)
	case *sqlparser.AndExpr:
		return binary(query.OpAnd, e.Left, e.Right)
	case *sqlparser.OrExpr:
		return binary(query.OpOr, e.Left, e.Right)
	case *sqlparser.NotExpr:
		inner, err := convertExpr(e.Expr)
		if err != nil {
			return nil, err
		}
		return query.UnaryExpr{Operator: query.OpNot, Expr: inner}, nil
	case *sqlparser.ComparisonExpr:
		op, ok := comparisons[e.Operator]
		if !ok {
			return nil, unsupported("operador %s", strings.ToUpper(e.Operator))
		}
		return binary(op, e.Left, e.Right)
	case *sqlparser.BinaryExpr:
		// aritmética; o runner recusa na avaliação
		return binary(e.Operator, e.Left, e.Right)
	case *sqlparser.UnaryExpr:
		if e.Operator == sqlparser.UMinusStr {
			return nil, unsupported("valores negativos, colunas inteiras são uint64")
		}
		if e.Operator == sqlparser.BangStr {
			inner, err := convertExpr(e.Expr)
			if err != nil {
				return nil, err
			}
			return query.UnaryExpr{Operator: query.OpNot, Expr: inner}, nil
		}
		return nil, unsupported("operador unário %s", e.Operator)
	case *sqlparser.RangeCond:
		subject, err := convertExpr(e.Left)
		if err != nil {
			return nil, err
		}
		lower, err := convertExpr(e.From)
		if err != nil {
			return nil, err
		}
		upper, err := convertExpr(e.To)
		if err != nil {
			return nil, err
		}
		return query.BetweenExpr{
			Expr:  subject,
			Lower: lower,
			Upper: upper,
			Not:   e.Operator == sqlparser.NotBetweenStr,
		}, nil
	case *sqlparser.IsExpr:
		if e.Operator != sqlparser.IsNullStr && e.Operator != sqlparser.IsNotNullStr {
			return nil, unsupported("%s", strings.ToUpper(e.Operator))
		}
		subject, err := convertExpr(e.Expr)
		if err != nil {
			return nil, err
		}
		return query.IsNullExpr{Expr: subject, Not: e.Operator == sqlparser.IsNotNullStr}, nil
	case *sqlparser.FuncExpr:
		return function(e)
	case sqlparser.ValTuple:
		return nil, unsupported("listas de valores (IN)")
	default:
		return nil, unsupported("expressão %s", sqlparser.String(expr))
	}
}

// function converte chamadas como COUNT(*); o planner recusa qualquer função.
func function(e *sqlparser.FuncExpr) (query.Expression, error) {
	call := query.FunctionCall{Name: strings.ToUpper(e.Name.String()), Distinct: e.Distinct}
	for _, arg := range e.Exprs {
		switch a := arg.(type) {
		case *sqlparser.StarExpr:
			call.Args = append(call.Args, query.Wildcard{Table: a.TableName.Name.String()})
		case *sqlparser.AliasedExpr:
			converted, err := convertExpr(a.Expr)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, converted)
		default:
			return nil, unsupported("argumento de função %T", arg)
		}
	}
	return call, nil
}

// literal: inteiros viram uint64, strings ficam texto; o resto é recusado.
func literal(val *sqlparser.SQLVal) (query.Expression, error) {
	switch val.Type {
	case sqlparser.StrVal:
		return query.Literal{Value: columnar.NewStringValue(string(val.Val))}, nil
	case sqlparser.IntVal:
		n, err := strconv.ParseUint(string(val.Val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("valor inteiro inválido %s: %w", val.Val, err)
		}
		return query.Literal{Value: columnar.NewUint64Value(n)}, nil
	default:
		return nil, unsupported("literal %s", sqlparser.String(val))
	}
}
