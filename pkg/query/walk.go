package query

// Walk visita expr em pré-ordem. fn devolve false para não descer nos filhos.
func Walk(expr Expression, fn func(Expression) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	switch e := expr.(type) {
	case BinaryExpr:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case UnaryExpr:
		Walk(e.Expr, fn)
	case IsNullExpr:
		Walk(e.Expr, fn)
	case BetweenExpr:
		Walk(e.Expr, fn)
		Walk(e.Lower, fn)
		Walk(e.Upper, fn)
	case FunctionCall:
		for _, arg := range e.Args {
			Walk(arg, fn)
		}
	}
}

// Conjuncts separa uma cadeia de AND nos seus termos, da esquerda para a direita.
func Conjuncts(expr Expression) []Expression {
	if expr == nil {
		return nil
	}
	if bin, ok := expr.(BinaryExpr); ok && bin.Operator == OpAnd {
		return append(Conjuncts(bin.Left), Conjuncts(bin.Right)...)
	}
	return []Expression{expr}
}

