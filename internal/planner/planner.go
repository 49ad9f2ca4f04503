package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Jonatan852/columnar-datasource/internal/datasource"
	"github.com/Jonatan852/columnar-datasource/internal/functions"
	"github.com/Jonatan852/columnar-datasource/pkg/query"
)

var (
	// ErrUnsupported indica uma construção SQL fora do subconjunto aceito.
	ErrUnsupported = errors.New("planner: recurso não suportado")
	// ErrUnknownColumn indica uma referência a coluna inexistente nas tabelas do FROM.
	ErrUnknownColumn = errors.New("planner: coluna desconhecida")
	// ErrAmbiguousColumn indica uma coluna sem qualificador presente em mais de uma tabela.
	ErrAmbiguousColumn = errors.New("planner: coluna ambígua")
)

// Catalog descreve o mínimo necessário para resolver tabelas registradas.
type Catalog interface {
	Table(name string) (datasource.TableProvider, error)
}

// Planner transforma uma AST (SelectStatement) em um plano sobre os providers do FROM.
type Planner struct {
	catalog Catalog
}

// New cria um planner usando o catálogo informado.
func New(catalog Catalog) *Planner {
	return &Planner{catalog: catalog}
}

// OutputColumn liga uma coluna de saída à sua posição na linha juntada.
type OutputColumn struct {
	Name  string
	Index int
}

// SortKey ordena pela coluna Index da linha juntada.
type SortKey struct {
	Index      int
	Name       string
	Descending bool
}

// DerivedColumn é uma função escalar calculada logo depois do scan da relação.
type DerivedColumn struct {
	Name     string
	Function functions.Scalar
	// Arg é a posição do argumento no schema do scan.
	Arg int
}

// Relation é uma tabela do FROM e o que é lido dela. A linha da relação é o
// schema do scan seguido das colunas derivadas.
type Relation struct {
	Table    string
	Alias    string
	Provider datasource.TableProvider
	// Projection são os índices lidos do provider; nil significa todas as colunas.
	Projection []int
	Exec       datasource.ExecutionPlan
	Derived    []DerivedColumn
	// Offset é a posição da primeira coluna da relação na linha juntada.
	Offset int
}

// ScanSchema returns the schema produced by the relation's scan node.
func (r *Relation) ScanSchema() *arrow.Schema {
	return r.Exec.Schema()
}

// Width is the number of columns the relation contributes to the joined row.
func (r *Relation) Width() int {
	return r.ScanSchema().NumFields() + len(r.Derived)
}

// ColumnNames names the relation's columns: scanned fields, then derived ones.
func (r *Relation) ColumnNames() []string {
	names := make([]string, 0, r.Width())
	for _, f := range r.ScanSchema().Fields() {
		names = append(names, f.Name)
	}
	for _, d := range r.Derived {
		names = append(names, d.Name)
	}
	return names
}

func (r *Relation) matches(name string) bool {
	return strings.EqualFold(name, r.Alias) || strings.EqualFold(name, r.Table)
}

func (r *Relation) field(name string) int {
	for i, f := range r.Provider.Schema().Fields() {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// scanPos converte um índice do schema completo em posição no schema do scan.
func (r *Relation) scanPos(field int) (int, bool) {
	if r.Projection == nil {
		return field, true
	}
	for i, p := range r.Projection {
		if p == field {
			return i, true
		}
	}
	return -1, false
}

// Join junta Right à linha acumulada pelas relações anteriores.
type Join struct {
	Type  query.JoinType
	Right Relation
	On    query.Expression
	// LeftKeys são posições na linha acumulada; RightKeys, na linha de Right.
	LeftKeys  []int
	RightKeys []int
}

// Plan é o resultado do planejamento de um SELECT. A relação embutida é a base
// do FROM. Filter, SortKeys e Limit são reaplicados pelo engine sobre o que os
// providers devolverem.
type Plan struct {
	Relation
	Joins    []Join
	Output   []OutputColumn
	Filter   query.Expression
	SortKeys []SortKey
	Limit    *int64
}

// Relations returns the base relation followed by each joined one.
func (p *Plan) Relations() []*Relation {
	rels := []*Relation{&p.Relation}
	for i := range p.Joins {
		rels = append(rels, &p.Joins[i].Right)
	}
	return rels
}

// Execs returns the scan node of every relation, in FROM order.
func (p *Plan) Execs() []datasource.ExecutionPlan {
	rels := p.Relations()
	out := make([]datasource.ExecutionPlan, 0, len(rels))
	for _, r := range rels {
		out = append(out, r.Exec)
	}
	return out
}

// ColumnNames names every column of the joined row.
func (p *Plan) ColumnNames() []string {
	var names []string
	for _, r := range p.Relations() {
		names = append(names, r.ColumnNames()...)
	}
	return names
}

// OutputNames returns the labels of the result columns, in order.
func (p *Plan) OutputNames() []string {
	names := make([]string, 0, len(p.Output))
	for _, out := range p.Output {
		names = append(names, out.Name)
	}
	return names
}

// Resolve returns the position of a column or scalar call in the joined row.
func (p *Plan) Resolve(expr query.Expression) (int, error) {
	rels := p.Relations()
	switch e := expr.(type) {
	case query.ColumnRef:
		ri, field, err := locate(rels, e)
		if err != nil {
			return -1, err
		}
		pos, ok := rels[ri].scanPos(field)
		if !ok {
			return -1, fmt.Errorf("%w: %s não é lida pelo scan", ErrUnknownColumn, e)
		}
		return rels[ri].Offset + pos, nil
	case query.FunctionCall:
		scalar, arg, err := scalarCall(e)
		if err != nil {
			return -1, err
		}
		ri, field, err := locate(rels, arg)
		if err != nil {
			return -1, err
		}
		rel := rels[ri]
		if pos, ok := rel.scanPos(field); ok {
			for d, dc := range rel.Derived {
				if dc.Function.Name == scalar.Name && dc.Arg == pos {
					return rel.Offset + rel.ScanSchema().NumFields() + d, nil
				}
			}
		}
		return -1, fmt.Errorf("%w: %s não é calculada pelo plano", ErrUnknownColumn, e)
	default:
		return -1, fmt.Errorf("%w: %s", ErrUnsupported, expr)
	}
}

// locate acha a relação e o índice do campo referenciado por col.
func locate(rels []*Relation, col query.ColumnRef) (int, int, error) {
	rel, field, found := -1, -1, 0
	tableSeen := col.Table == ""
	for i, r := range rels {
		if col.Table != "" {
			if !r.matches(col.Table) {
				continue
			}
			tableSeen = true
		}
		if f := r.field(col.Name); f >= 0 {
			rel, field = i, f
			found++
		}
	}
	switch {
	case !tableSeen:
		return -1, -1, fmt.Errorf("%w: tabela %s não está no FROM", ErrUnknownColumn, col.Table)
	case found == 0:
		return -1, -1, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
	case found > 1:
		return -1, -1, fmt.Errorf("%w: %s", ErrAmbiguousColumn, col)
	}
	return rel, field, nil
}

// scalarCall valida uma chamada de função escalar de um argumento coluna.
func scalarCall(call query.FunctionCall) (functions.Scalar, query.ColumnRef, error) {
	scalar, err := functions.Lookup(call.Name)
	if err != nil {
		return functions.Scalar{}, query.ColumnRef{}, fmt.Errorf("%w: %w (disponíveis: %s)", ErrUnsupported, err, strings.Join(functions.Names(), ", "))
	}
	if call.Distinct || len(call.Args) != 1 {
		return functions.Scalar{}, query.ColumnRef{}, fmt.Errorf("%w: %s espera um único argumento", ErrUnsupported, scalar.Name)
	}
	arg, ok := call.Args[0].(query.ColumnRef)
	if !ok {
		return functions.Scalar{}, query.ColumnRef{}, fmt.Errorf("%w: argumento de %s deve ser uma coluna", ErrUnsupported, scalar.Name)
	}
	return scalar, arg, nil
}

// Build gera o plano para a query. Cada provider recebe a própria projeção; os
// filtros e o limite só são repassados quando a consulta lê uma única tabela.
func (p *Planner) Build(ctx context.Context, stmt *query.SelectStatement) (*Plan, error) {
	if stmt == nil {
		return nil, fmt.Errorf("select statement não pode ser nulo")
	}
	if len(stmt.From) == 0 {
		return nil, fmt.Errorf("cláusula FROM obrigatória")
	}
	if len(stmt.From) > 1 {
		return nil, fmt.Errorf("%w: lista de tabelas, use JOIN ... ON", ErrUnsupported)
	}
	if len(stmt.GroupBy) > 0 {
		return nil, fmt.Errorf("%w: GROUP BY", ErrUnsupported)
	}
	if stmt.Having != nil {
		return nil, fmt.Errorf("%w: HAVING", ErrUnsupported)
	}
	if stmt.Distinct {
		return nil, fmt.Errorf("%w: DISTINCT", ErrUnsupported)
	}
	if stmt.Offset != nil && *stmt.Offset > 0 {
		return nil, fmt.Errorf("%w: OFFSET", ErrUnsupported)
	}

	b := &builder{}
	if err := b.addRelation(p.catalog, stmt.From[0]); err != nil {
		return nil, err
	}
	for _, j := range stmt.Joins {
		if err := b.addRelation(p.catalog, j.Table); err != nil {
			return nil, err
		}
	}
	if err := b.selectList(stmt.Columns); err != nil {
		return nil, err
	}
	joinKeys := make([][2][]slot, len(stmt.Joins))
	for i, j := range stmt.Joins {
		left, right, err := b.joinCondition(i+1, j.On)
		if err != nil {
			return nil, err
		}
		joinKeys[i] = [2][]slot{left, right}
	}
	if err := b.where(stmt.Where); err != nil {
		return nil, err
	}
	if err := b.orderBy(stmt.OrderBy); err != nil {
		return nil, err
	}

	single := len(stmt.Joins) == 0
	offset := 0
	for _, st := range b.rels {
		filters, limit := []query.Expression(nil), (*int64)(nil)
		if single {
			filters, limit = query.Conjuncts(stmt.Where), stmt.Limit
		}
		if err := st.finish(ctx, filters, limit); err != nil {
			return nil, err
		}
		st.rel.Offset = offset
		offset += st.rel.Width()
	}

	plan := &Plan{
		Relation: *b.rels[0].rel,
		Filter:   stmt.Where,
		Limit:    stmt.Limit,
	}
	for i, j := range stmt.Joins {
		right := b.rels[i+1]
		join := Join{Type: j.Type, Right: *right.rel, On: j.On}
		for k := range joinKeys[i][0] {
			join.LeftKeys = append(join.LeftKeys, b.position(joinKeys[i][0][k]))
			join.RightKeys = append(join.RightKeys, b.position(joinKeys[i][1][k])-right.rel.Offset)
		}
		plan.Joins = append(plan.Joins, join)
	}
	for _, out := range b.outputs {
		plan.Output = append(plan.Output, OutputColumn{Name: out.name, Index: b.position(out.slot)})
	}
	for _, s := range b.sorts {
		plan.SortKeys = append(plan.SortKeys, SortKey{
			Index:      b.position(s.slot),
			Name:       b.slotName(s.slot),
			Descending: s.desc,
		})
	}
	return plan, nil
}

// slot aponta para um campo do provider (derived=false) ou para uma coluna derivada.
type slot struct {
	rel     int
	derived bool
	idx     int
}

type relState struct {
	rel      *Relation
	order    []int
	seen     map[int]int
	derived  []derivedRef
	wildcard bool
}

type derivedRef struct {
	name   string
	scalar functions.Scalar
	field  int
}

func (st *relState) use(field int) {
	if _, ok := st.seen[field]; ok {
		return
	}
	st.seen[field] = len(st.order)
	st.order = append(st.order, field)
}

func (st *relState) derive(name string, scalar functions.Scalar, field int) int {
	for i, d := range st.derived {
		if d.scalar.Name == scalar.Name && d.field == field {
			return i
		}
	}
	st.derived = append(st.derived, derivedRef{name: name, scalar: scalar, field: field})
	return len(st.derived) - 1
}

// finish fixa a projeção, pede o scan ao provider e liga as colunas derivadas.
func (st *relState) finish(ctx context.Context, filters []query.Expression, limit *int64) error {
	full := st.rel.Provider.Schema()
	projection := append([]int{}, st.order...)
	if st.wildcard && isIdentity(st.order, full.NumFields()) {
		projection = nil
	}
	exec, err := st.rel.Provider.Scan(ctx, projection, filters, limit)
	if err != nil {
		return err
	}
	st.rel.Projection = projection
	st.rel.Exec = exec
	for _, d := range st.derived {
		st.rel.Derived = append(st.rel.Derived, DerivedColumn{Name: d.name, Function: d.scalar, Arg: st.seen[d.field]})
	}
	return nil
}

type pendingOutput struct {
	name string
	slot slot
}

type pendingSort struct {
	slot slot
	desc bool
}

type builder struct {
	rels    []*relState
	outputs []pendingOutput
	aliases map[string]slot
	sorts   []pendingSort
}

func (b *builder) relations() []*Relation {
	rels := make([]*Relation, 0, len(b.rels))
	for _, st := range b.rels {
		rels = append(rels, st.rel)
	}
	return rels
}

func (b *builder) addRelation(catalog Catalog, ref query.TableReference) error {
	provider, err := catalog.Table(ref.Name)
	if err != nil {
		return err
	}
	alias := ref.Alias
	if alias == "" {
		alias = ref.Name
	}
	for _, st := range b.rels {
		if strings.EqualFold(st.rel.Alias, alias) {
			return fmt.Errorf("%w: %s aparece duas vezes no FROM, use aliases distintos", ErrUnsupported, alias)
		}
	}
	b.rels = append(b.rels, &relState{
		rel:  &Relation{Table: ref.Name, Alias: alias, Provider: provider},
		seen: map[int]int{},
	})
	return nil
}

func (b *builder) column(col query.ColumnRef) (slot, error) {
	ri, field, err := locate(b.relations(), col)
	if err != nil {
		return slot{}, err
	}
	b.rels[ri].use(field)
	return slot{rel: ri, idx: field}, nil
}

func (b *builder) function(call query.FunctionCall) (slot, error) {
	scalar, arg, err := scalarCall(call)
	if err != nil {
		return slot{}, err
	}
	s, err := b.column(arg)
	if err != nil {
		return slot{}, err
	}
	name := strings.ToLower(call.String())
	return slot{rel: s.rel, derived: true, idx: b.rels[s.rel].derive(name, scalar, s.idx)}, nil
}

func (b *builder) expression(expr query.Expression) (slot, error) {
	switch e := expr.(type) {
	case query.ColumnRef:
		return b.column(e)
	case query.FunctionCall:
		return b.function(e)
	default:
		return slot{}, fmt.Errorf("%w: esperada coluna ou função escalar, obtido %s", ErrUnsupported, expr)
	}
}

// aliased aceita também um alias do SELECT quando a coluna sem qualificador não existe.
func (b *builder) aliased(expr query.Expression) (slot, error) {
	s, err := b.expression(expr)
	if err == nil {
		return s, nil
	}
	col, isCol := expr.(query.ColumnRef)
	if !isCol || col.Table != "" || !errors.Is(err, ErrUnknownColumn) {
		return slot{}, err
	}
	if s, ok := b.aliases[strings.ToLower(col.Name)]; ok {
		return s, nil
	}
	return slot{}, err
}

func (b *builder) slotName(s slot) string {
	st := b.rels[s.rel]
	if s.derived {
		return st.derived[s.idx].name
	}
	return st.rel.Provider.Schema().Field(s.idx).Name
}

// position só vale depois de finish: offsets e projeções já fixados.
func (b *builder) position(s slot) int {
	st := b.rels[s.rel]
	if s.derived {
		return st.rel.Offset + st.rel.ScanSchema().NumFields() + s.idx
	}
	pos, _ := st.rel.scanPos(s.idx)
	return st.rel.Offset + pos
}

func (b *builder) selectList(items []query.SelectItem) error {
	b.aliases = map[string]slot{}
	if len(items) == 0 {
		items = []query.SelectItem{{Wildcard: &query.Wildcard{}}}
	}
	for _, item := range items {
		if item.Wildcard != nil {
			matched := false
			for ri, st := range b.rels {
				if item.Wildcard.Table != "" && !st.rel.matches(item.Wildcard.Table) {
					continue
				}
				matched = true
				st.wildcard = true
				for i, f := range st.rel.Provider.Schema().Fields() {
					st.use(i)
					b.outputs = append(b.outputs, pendingOutput{name: f.Name, slot: slot{rel: ri, idx: i}})
				}
			}
			if !matched {
				return fmt.Errorf("%w: tabela %s não está no FROM", ErrUnknownColumn, item.Wildcard.Table)
			}
			continue
		}
		s, err := b.expression(item.Expr)
		if err != nil {
			return err
		}
		name := item.Alias
		if name == "" {
			name = b.slotName(s)
		} else {
			b.aliases[strings.ToLower(name)] = s
		}
		b.outputs = append(b.outputs, pendingOutput{name: name, slot: s})
	}
	return nil
}

// joinCondition exige uma conjunção de igualdades entre a relação right e as anteriores.
func (b *builder) joinCondition(right int, on query.Expression) ([]slot, []slot, error) {
	var lefts, rights []slot
	for _, term := range query.Conjuncts(on) {
		eq, ok := term.(query.BinaryExpr)
		if !ok || eq.Operator != query.OpEq {
			return nil, nil, fmt.Errorf("%w: JOIN aceita apenas igualdades ligadas por AND, obtido %s", ErrUnsupported, term)
		}
		l, err := b.aliased(eq.Left)
		if err != nil {
			return nil, nil, err
		}
		r, err := b.aliased(eq.Right)
		if err != nil {
			return nil, nil, err
		}
		if l.rel == right {
			l, r = r, l
		}
		if r.rel != right || l.rel >= right {
			return nil, nil, fmt.Errorf("%w: %s deve comparar %s com uma tabela anterior", ErrUnsupported, term, b.rels[right].rel.Alias)
		}
		lefts = append(lefts, l)
		rights = append(rights, r)
	}
	return lefts, rights, nil
}

func (b *builder) where(expr query.Expression) error {
	var werr error
	query.Walk(expr, func(e query.Expression) bool {
		if werr != nil {
			return false
		}
		switch ex := e.(type) {
		case query.ColumnRef:
			_, werr = b.column(ex)
		case query.FunctionCall:
			_, werr = b.function(ex)
			return false
		}
		return werr == nil
	})
	return werr
}

func (b *builder) orderBy(items []query.OrderExpression) error {
	for _, order := range items {
		s, err := b.aliased(order.Expr)
		if err != nil {
			return err
		}
		b.sorts = append(b.sorts, pendingSort{slot: s, desc: order.Direction == query.SortDesc})
	}
	return nil
}

func isIdentity(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	for i, v := range order {
		if v != i {
			return false
		}
	}
	return true
}
