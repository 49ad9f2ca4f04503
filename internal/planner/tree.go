package planner

import (
	"github.com/Jonatan852/columnar-datasource/pkg/query"
)

// ProjectionSpec descreve cada item de projeção para documentar a saída.
type ProjectionSpec struct {
	Expr  string `json:"expr"`
	Alias string `json:"alias,omitempty"`
}

// SortSpec define a ordenação aplicada.
type SortSpec struct {
	Expr      string              `json:"expr"`
	Direction query.SortDirection `json:"direction"`
}

// Tree monta a árvore exibida pelo EXPLAIN: ROOT → LIMIT → SORT → PROJECT → FILTER → JOIN → SCAN.
func (p *Plan) Tree() *query.PhysicalPlan {
	root := relationNode(&p.Relation)
	for i := range p.Joins {
		j := &p.Joins[i]
		join := query.NewPlanNode(query.PlanNodeJoin)
		join.Properties["type"] = j.Type
		join.Properties["on"] = expressionsToStrings(query.Conjuncts(j.On))
		join.Properties["left_keys"] = j.LeftKeys
		join.Properties["right_keys"] = j.RightKeys
		join.AddChild(root)
		join.AddChild(relationNode(&j.Right))
		root = join
	}

	if p.Filter != nil {
		filter := query.NewPlanNode(query.PlanNodeFilter)
		filter.Properties["predicates"] = expressionsToStrings(query.Conjuncts(p.Filter))
		filter.AddChild(root)
		root = filter
	}

	project := query.NewPlanNode(query.PlanNodeProject)
	project.Properties["items"] = projectionSpecs(p)
	project.AddChild(root)
	root = project

	if len(p.SortKeys) > 0 {
		sortNode := query.NewPlanNode(query.PlanNodeSort)
		sortNode.Properties["keys"] = sortSpecs(p.SortKeys)
		sortNode.AddChild(root)
		root = sortNode
	}

	if p.Limit != nil {
		limitNode := query.NewPlanNode(query.PlanNodeLimit)
		limitNode.Properties["count"] = *p.Limit
		limitNode.AddChild(root)
		root = limitNode
	}

	final := query.NewPlanNode(query.PlanNodeRoot)
	final.AddChild(root)
	return &query.PhysicalPlan{Root: final}
}

// relationNode gera SCAN, coberto por COMPUTE quando a relação tem colunas derivadas.
func relationNode(r *Relation) *query.PlanNode {
	scan := query.NewPlanNode(query.PlanNodeScan)
	scan.Properties["table"] = r.Table
	scan.Properties["alias"] = r.Alias
	scan.Properties["columns"] = fieldNames(r)
	scan.Properties["exec"] = r.Exec.String()
	scan.Properties["partitions"] = r.Exec.Properties().Partitioning.PartitionCount()
	if projected, ok := r.Exec.(interface{ Projection() []int }); ok && projected.Projection() != nil {
		scan.Properties["projection"] = projected.Projection()
	}
	if sized, ok := r.Provider.(interface{ NumRows() int64 }); ok {
		scan.Stats["rows"] = sized.NumRows()
	}
	if len(r.Derived) == 0 {
		return scan
	}
	compute := query.NewPlanNode(query.PlanNodeCompute)
	names := make([]string, 0, len(r.Derived))
	for _, d := range r.Derived {
		names = append(names, d.Name)
	}
	compute.Properties["columns"] = names
	compute.AddChild(scan)
	return compute
}

func fieldNames(r *Relation) []string {
	fields := r.ScanSchema().Fields()
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return names
}

func projectionSpecs(p *Plan) []ProjectionSpec {
	names := p.ColumnNames()
	result := make([]ProjectionSpec, 0, len(p.Output))
	for _, out := range p.Output {
		spec := ProjectionSpec{Expr: names[out.Index]}
		if out.Name != spec.Expr {
			spec.Alias = out.Name
		}
		result = append(result, spec)
	}
	return result
}

func sortSpecs(keys []SortKey) []SortSpec {
	result := make([]SortSpec, 0, len(keys))
	for _, key := range keys {
		dir := query.SortAsc
		if key.Descending {
			dir = query.SortDesc
		}
		result = append(result, SortSpec{Expr: key.Name, Direction: dir})
	}
	return result
}

func expressionsToStrings(exprs []query.Expression) []string {
	out := make([]string, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, expr.String())
	}
	return out
}
