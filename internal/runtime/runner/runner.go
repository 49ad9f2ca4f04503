package runner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Jonatan852/columnar-datasource/internal/executor"
	"github.com/Jonatan852/columnar-datasource/internal/planner"
	"github.com/Jonatan852/columnar-datasource/pkg/columnar"
	"github.com/Jonatan852/columnar-datasource/pkg/query"
)

// Runner executa planos montando o pipeline de executores.
type Runner struct {
	batchSize int
}

// New cria um runner; batchSize controla o tamanho dos batches emitidos pelo sort.
func New(batchSize int) *Runner {
	return &Runner{batchSize: batchSize}
}

// Result guarda os records produzidos por uma consulta.
type Result struct {
	Columns []string
	Schema  *arrow.Schema
	Records []arrow.Record
}

// NumRows soma as linhas de todos os records.
func (r *Result) NumRows() int64 {
	var n int64
	for _, rec := range r.Records {
		n += rec.NumRows()
	}
	return n
}

// Rows converte os records em linhas posicionais prontas para JSON.
func (r *Result) Rows() ([][]interface{}, error) {
	rows := make([][]interface{}, 0, r.NumRows())
	for _, rec := range r.Records {
		for i := 0; i < int(rec.NumRows()); i++ {
			row := make([]interface{}, rec.NumCols())
			for c := range row {
				v, err := columnar.ValueAt(rec.Column(c), i)
				if err != nil {
					return nil, err
				}
				row[c] = v.Interface()
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// Maps converte os records em linhas indexadas pelo nome da coluna.
func (r *Result) Maps() ([]map[string]interface{}, error) {
	rows, err := r.Rows()
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		m := make(map[string]interface{}, len(row))
		for c, v := range row {
			m[r.Columns[c]] = v
		}
		out = append(out, m)
	}
	return out, nil
}

// Release libera os records do resultado.
func (r *Result) Release() {
	for _, rec := range r.Records {
		rec.Release()
	}
	r.Records = nil
}

// Build monta o pipeline SCAN → COMPUTE → JOIN → FILTER → SORT → LIMIT → PROJECT para o plano.
func (r *Runner) Build(plan *planner.Plan) (executor.Executor, error) {
	if plan == nil {
		return nil, fmt.Errorf("runner: plano vazio")
	}
	exec, err := relationExecutor(&plan.Relation)
	if err != nil {
		return nil, err
	}
	for _, j := range plan.Joins {
		right, err := relationExecutor(&j.Right)
		if err != nil {
			exec.Close()
			return nil, err
		}
		joined, err := executor.NewHashJoinExecutor(exec, right, joinTypes[j.Type], executor.JoinCondition{
			LeftColumns:  j.LeftKeys,
			RightColumns: j.RightKeys,
		})
		if err != nil {
			exec.Close()
			right.Close()
			return nil, fmt.Errorf("runner: join com %s: %w", j.Right.Alias, err)
		}
		exec = joined
	}

	if plan.Filter != nil {
		pred, err := compilePredicate(plan, plan.Filter)
		if err != nil {
			exec.Close()
			return nil, err
		}
		exec = executor.NewFilterExecutor(exec, pred)
	}
	if len(plan.SortKeys) > 0 {
		keys := make([]executor.SortKey, 0, len(plan.SortKeys))
		for _, k := range plan.SortKeys {
			keys = append(keys, executor.SortKey{Column: k.Index, Ascending: !k.Descending})
		}
		exec = executor.NewSortExecutor(exec, keys, r.batchSize)
	}
	if plan.Limit != nil {
		exec = executor.NewLimitExecutor(exec, *plan.Limit)
	}
	cols := make([]executor.ProjectColumn, 0, len(plan.Output))
	for _, out := range plan.Output {
		cols = append(cols, executor.ProjectColumn{Index: out.Index, Name: out.Name})
	}
	project, err := executor.NewProjectExecutor(exec, cols)
	if err != nil {
		exec.Close()
		return nil, err
	}
	return project, nil
}

var joinTypes = map[query.JoinType]executor.JoinType{
	query.JoinInner: executor.JoinTypeInner,
	query.JoinLeft:  executor.JoinTypeLeft,
}

// relationExecutor lê uma relação e acrescenta as colunas derivadas dela.
func relationExecutor(rel *planner.Relation) (executor.Executor, error) {
	var exec executor.Executor = executor.NewScanExecutor(rel.Exec)
	if len(rel.Derived) == 0 {
		return exec, nil
	}
	cols := make([]executor.ComputedColumn, 0, len(rel.Derived))
	for _, d := range rel.Derived {
		cols = append(cols, executor.ComputedColumn{Name: d.Name, Arg: d.Arg, Fn: d.Function.Fn})
	}
	compute, err := executor.NewComputeExecutor(exec, cols)
	if err != nil {
		exec.Close()
		return nil, fmt.Errorf("runner: %s: %w", rel.Alias, err)
	}
	return compute, nil
}

// Execute roda o plano até o fim e devolve os records produzidos.
func (r *Runner) Execute(ctx context.Context, plan *planner.Plan) (*Result, error) {
	exec, err := r.Build(plan)
	if err != nil {
		return nil, err
	}
	defer exec.Close()
	records, err := executor.Drain(ctx, exec)
	if err != nil {
		return nil, err
	}
	return &Result{
		Columns: plan.OutputNames(),
		Schema:  exec.Schema(),
		Records: records,
	}, nil
}

// truth é a lógica de três valores do SQL: comparações com NULL são desconhecidas.
type truth int

const (
	truthFalse truth = iota
	truthTrue
	truthUnknown
)

func truthOf(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

func (t truth) not() truth {
	switch t {
	case truthTrue:
		return truthFalse
	case truthFalse:
		return truthTrue
	default:
		return truthUnknown
	}
}

// rowContext resolve colunas e chamadas escalares já ligadas às posições da linha juntada.
type rowContext struct {
	row     executor.RowView
	columns map[string]int
	likes   map[string]*regexp.Regexp
}

func compilePredicate(plan *planner.Plan, expr query.Expression) (executor.Predicate, error) {
	columns := map[string]int{}
	var rerr error
	query.Walk(expr, func(e query.Expression) bool {
		if rerr != nil {
			return false
		}
		switch e.(type) {
		case query.ColumnRef, query.FunctionCall:
			idx, err := plan.Resolve(e)
			if err != nil {
				rerr = err
				return false
			}
			columns[e.String()] = idx
			return false
		}
		return true
	})
	if rerr != nil {
		return nil, rerr
	}
	likes := map[string]*regexp.Regexp{}
	return func(row executor.RowView) (bool, error) {
		t, err := evaluateBoolean(expr, rowContext{row: row, columns: columns, likes: likes})
		return t == truthTrue, err
	}, nil
}

func (rc rowContext) getColumn(expr query.Expression) (columnar.Value, error) {
	idx, ok := rc.columns[expr.String()]
	if !ok {
		return columnar.Value{}, fmt.Errorf("coluna %s não encontrada", expr)
	}
	return rc.row.Value(idx)
}

func evaluateBoolean(expr query.Expression, ctx rowContext) (truth, error) {
	if expr == nil {
		return truthTrue, nil
	}
	switch e := expr.(type) {
	case query.BinaryExpr:
		op := strings.ToUpper(e.Operator)
		switch op {
		case query.OpAnd:
			left, err := evaluateBoolean(e.Left, ctx)
			if err != nil {
				return truthFalse, err
			}
			if left == truthFalse {
				return truthFalse, nil
			}
			right, err := evaluateBoolean(e.Right, ctx)
			if err != nil {
				return truthFalse, err
			}
			if right == truthFalse {
				return truthFalse, nil
			}
			if left == truthUnknown || right == truthUnknown {
				return truthUnknown, nil
			}
			return truthTrue, nil
		case query.OpOr:
			left, err := evaluateBoolean(e.Left, ctx)
			if err != nil {
				return truthFalse, err
			}
			if left == truthTrue {
				return truthTrue, nil
			}
			right, err := evaluateBoolean(e.Right, ctx)
			if err != nil {
				return truthFalse, err
			}
			if right == truthTrue {
				return truthTrue, nil
			}
			if left == truthUnknown || right == truthUnknown {
				return truthUnknown, nil
			}
			return truthFalse, nil
		case query.OpLike, query.OpNotLike:
			return evaluateLike(e, op == query.OpNotLike, ctx)
		default:
			leftVal, err := evaluateValue(e.Left, ctx)
			if err != nil {
				return truthFalse, err
			}
			rightVal, err := evaluateValue(e.Right, ctx)
			if err != nil {
				return truthFalse, err
			}
			if leftVal.IsNull() || rightVal.IsNull() {
				return truthUnknown, nil
			}
			cmp, err := compareValues(leftVal, rightVal)
			if err != nil {
				return truthFalse, err
			}
			switch op {
			case "=", "==":
				return truthOf(cmp == 0), nil
			case "!=", "<>":
				return truthOf(cmp != 0), nil
			case "<":
				return truthOf(cmp < 0), nil
			case "<=":
				return truthOf(cmp <= 0), nil
			case ">":
				return truthOf(cmp > 0), nil
			case ">=":
				return truthOf(cmp >= 0), nil
			default:
				return truthFalse, fmt.Errorf("operador %s não suportado", e.Operator)
			}
		}
	case query.UnaryExpr:
		if strings.EqualFold(e.Operator, "NOT") || e.Operator == "!" {
			val, err := evaluateBoolean(e.Expr, ctx)
			return val.not(), err
		}
		return truthFalse, fmt.Errorf("operador unário %s não suportado", e.Operator)
	case query.IsNullExpr:
		val, err := evaluateValue(e.Expr, ctx)
		if err != nil {
			return truthFalse, err
		}
		return truthOf(val.IsNull() != e.Not), nil
	case query.BetweenExpr:
		lower := query.BinaryExpr{Left: e.Expr, Operator: ">=", Right: e.Lower}
		upper := query.BinaryExpr{Left: e.Expr, Operator: "<=", Right: e.Upper}
		t, err := evaluateBoolean(query.BinaryExpr{Left: lower, Operator: "AND", Right: upper}, ctx)
		if err != nil {
			return truthFalse, err
		}
		if e.Not {
			return t.not(), nil
		}
		return t, nil
	default:
		return truthFalse, fmt.Errorf("expressão %s não é um predicado", expr)
	}
}

func evaluateValue(expr query.Expression, ctx rowContext) (columnar.Value, error) {
	switch e := expr.(type) {
	case query.ColumnRef, query.FunctionCall:
		return ctx.getColumn(e)
	case query.Literal:
		return e.Value, nil
	case query.NullLiteral:
		return columnar.NewNullValue(columnar.TypeString), nil
	case query.BinaryExpr:
		return columnar.Value{}, fmt.Errorf("expressões aritméticas ainda não suportadas")
	default:
		return columnar.Value{}, fmt.Errorf("expressão %T não suportada", expr)
	}
}

// timestampLayouts são os formatos aceitos ao comparar texto com colunas TIMESTAMP.
var timestampLayouts = []string{columnar.TimestampLayout, time.RFC3339, "2006-01-02"}

// coerce converte um literal texto para timestamp quando o outro lado é TIMESTAMP.
func coerce(value columnar.Value, target columnar.DataType) (columnar.Value, error) {
	if value.Type == target {
		return value, nil
	}
	if value.Type == columnar.TypeString && target == columnar.TypeTimestamp {
		s, _ := value.AsString()
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return columnar.NewTimestampValue(t), nil
			}
		}
		return columnar.Value{}, fmt.Errorf("%q não é um timestamp válido", s)
	}
	return columnar.Value{}, fmt.Errorf("tipos incompatíveis (%v vs %v)", value.Type, target)
}

func compareValues(left, right columnar.Value) (int, error) {
	if left.Type != right.Type {
		var err error
		if left.Type == columnar.TypeTimestamp {
			right, err = coerce(right, left.Type)
		} else {
			left, err = coerce(left, right.Type)
		}
		if err != nil {
			return 0, err
		}
	}
	return columnar.Compare(left, right)
}

func evaluateLike(e query.BinaryExpr, negate bool, ctx rowContext) (truth, error) {
	leftVal, err := evaluateValue(e.Left, ctx)
	if err != nil {
		return truthFalse, err
	}
	patVal, err := evaluateValue(e.Right, ctx)
	if err != nil {
		return truthFalse, err
	}
	if leftVal.IsNull() || patVal.IsNull() {
		return truthUnknown, nil
	}
	s, err := leftVal.AsString()
	if err != nil {
		return truthFalse, fmt.Errorf("LIKE exige texto: %w", err)
	}
	pattern, err := patVal.AsString()
	if err != nil {
		return truthFalse, fmt.Errorf("padrão LIKE exige texto: %w", err)
	}
	re, ok := ctx.likes[pattern]
	if !ok {
		re, err = likeRegexp(pattern)
		if err != nil {
			return truthFalse, err
		}
		ctx.likes[pattern] = re
	}
	return truthOf(re.MatchString(s) != negate), nil
}

// likeRegexp traduz % e _ do SQL para uma expressão regular ancorada.
func likeRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
