package query

import (
	"strings"

	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
)

// Operadores normalizados pelo parser. Comparações mantêm o símbolo SQL.
const (
	OpAnd     = "AND"
	OpOr      = "OR"
	OpNot     = "NOT"
	OpLike    = "LIKE"
	OpNotLike = "NOT LIKE"
	OpEq      = "="
	OpNe      = "<>"
	OpLt      = "<"
	OpLe      = "<="
	OpGt      = ">"
	OpGe      = ">="
)

// SelectStatement é a consulta de tabela única aceita pelo motor. GroupBy,
// Having, Distinct e Offset são preenchidos apenas para o planner recusá-los
// com uma mensagem precisa.
type SelectStatement struct {
	Distinct bool
	Columns  []SelectItem
	From     []TableReference
	Joins    []JoinClause
	Where    Expression
	GroupBy  []Expression
	Having   Expression
	OrderBy  []OrderExpression
	Limit    *int64
	Offset   *int64
}

// SelectItem é uma entrada da lista do SELECT: expressão com alias opcional, ou wildcard.
type SelectItem struct {
	Expr     Expression
	Alias    string
	Wildcard *Wildcard
}

// TableReference é uma tabela do FROM.
type TableReference struct {
	Name  string
	Alias string
}

type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
)

// JoinClause junta Table ao que está à esquerda dela no FROM.
type JoinClause struct {
	Type  JoinType
	Table TableReference
	On    Expression
}

type OrderExpression struct {
	Expr      Expression
	Direction SortDirection
}

type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// Expression é implementada por todos os nós de expressão. String devolve a
// forma SQL totalmente parentizada, usada em mensagens e no EXPLAIN.
type Expression interface {
	expression()
	String() string
}

type ColumnRef struct {
	Table string
	Name  string
}

type Wildcard struct {
	Table string
}

// Literal carrega um valor já tipado: uint64 para inteiros, texto para strings.
type Literal struct {
	Value columnar.Value
}

type NullLiteral struct{}

// BinaryExpr cobre comparações, AND/OR, LIKE e aritmética (recusada na avaliação).
type BinaryExpr struct {
	Left     Expression
	Operator string
	Right    Expression
}

type UnaryExpr struct {
	Operator string
	Expr     Expression
}

// FunctionCall só existe para o planner recusar funções com o nome correto.
type FunctionCall struct {
	Name     string
	Args     []Expression
	Distinct bool
}

// IsNullExpr é "expr IS [NOT] NULL".
type IsNullExpr struct {
	Expr Expression
	Not  bool
}

// BetweenExpr é "expr [NOT] BETWEEN lower AND upper", limites inclusivos.
type BetweenExpr struct {
	Expr  Expression
	Lower Expression
	Upper Expression
	Not   bool
}

func (ColumnRef) expression()    {}
func (Wildcard) expression()     {}
func (Literal) expression()      {}
func (NullLiteral) expression()  {}
func (BinaryExpr) expression()   {}
func (UnaryExpr) expression()    {}
func (FunctionCall) expression() {}
func (IsNullExpr) expression()   {}
func (BetweenExpr) expression()  {}

func (c ColumnRef) String() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

func (w Wildcard) String() string {
	if w.Table == "" {
		return "*"
	}
	return w.Table + ".*"
}

func (l Literal) String() string {
	if l.Value.Type == columnar.TypeString && !l.Value.IsNull() {
		s, _ := l.Value.AsString()
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return l.Value.String()
}

func (NullLiteral) String() string { return "NULL" }

func (b BinaryExpr) String() string {
	return render("(", b.Left, " ", b.Operator, " ", b.Right, ")")
}

func (u UnaryExpr) String() string {
	return render("(", u.Operator, " ", u.Expr, ")")
}

func (f FunctionCall) String() string {
	parts := []interface{}{f.Name, "("}
	if f.Distinct {
		parts = append(parts, "DISTINCT ")
	}
	for i, arg := range f.Args {
		if i > 0 {
			parts = append(parts, ", ")
		}
		parts = append(parts, arg)
	}
	return render(append(parts, ")")...)
}

func (e IsNullExpr) String() string {
	op := " IS NULL)"
	if e.Not {
		op = " IS NOT NULL)"
	}
	return render("(", e.Expr, op)
}

func (b BetweenExpr) String() string {
	op := " BETWEEN "
	if b.Not {
		op = " NOT BETWEEN "
	}
	return render("(", b.Expr, op, b.Lower, " AND ", b.Upper, ")")
}

// render concatena texto e expressões; expressões nulas aparecem como "?".
func render(parts ...interface{}) string {
	var sb strings.Builder
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			sb.WriteString(v)
		case Expression:
			if v == nil {
				sb.WriteString("?")
			} else {
				sb.WriteString(v.String())
			}
		default:
			sb.WriteString("?")
		}
	}
	return sb.String()
}
