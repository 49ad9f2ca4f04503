package visualizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Jonatan852/columnar-datasource/internal/datasource"
	"github.com/Jonatan852/columnar-datasource/pkg/query"
)

var errEmptyPlan = errors.New("visualizer: plano vazio")

// PlanToJSON devolve a árvore lógica em JSON indentado.
func PlanToJSON(plan *query.PhysicalPlan) ([]byte, error) {
	if plan == nil || plan.Root == nil {
		return nil, errEmptyPlan
	}
	return json.MarshalIndent(plan, "", "  ")
}

// nodeStyle destaca a folha que lê a fonte de dados.
var nodeStyle = map[query.PlanNodeType]string{
	query.PlanNodeScan:   `shape=cylinder, style=filled, fillcolor="#dbeafe"`,
	query.PlanNodeFilter: `shape=box, style=rounded`,
	query.PlanNodeJoin:   `shape=diamond`,
	query.PlanNodeRoot:   `shape=box, style=bold`,
}

// PlanToDOT gera um grafo Graphviz; as propriedades de cada nó entram no rótulo.
func PlanToDOT(plan *query.PhysicalPlan) (string, error) {
	if plan == nil || plan.Root == nil {
		return "", errEmptyPlan
	}
	var sb strings.Builder
	sb.WriteString("digraph Plan {\n  rankdir=TB;\n  node [fontname=\"monospace\"];\n")
	plan.Root.Walk(func(node *query.PlanNode, _ int) bool {
		lines := append([]string{node.ID, string(node.Type)}, propertyLines(node.Properties)...)
		for i, l := range lines {
			lines[i] = dotEscape(l)
		}
		style, ok := nodeStyle[node.Type]
		if !ok {
			style = "shape=box"
		}
		fmt.Fprintf(&sb, "  %q [label=\"%s\", %s];\n", node.ID, strings.Join(lines, `\n`), style)
		for _, child := range node.Children {
			fmt.Fprintf(&sb, "  %q -> %q;\n", node.ID, child.ID)
		}
		return true
	})
	sb.WriteString("}\n")
	return sb.String(), nil
}

func propertyLines(props map[string]interface{}) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s=%v", k, props[k]))
	}
	return lines
}

func dotEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s)
}

// FormatExecutionPlan renderiza a árvore de ExecutionPlan indentada, um nó por
// linha com particionamento e modo de execução.
func FormatExecutionPlan(plan datasource.ExecutionPlan) string {
	var sb strings.Builder
	var visit func(p datasource.ExecutionPlan, depth int)
	visit = func(p datasource.ExecutionPlan, depth int) {
		if p == nil {
			return
		}
		props := p.Properties()
		fmt.Fprintf(&sb, "%s%s [%s, %s]\n", strings.Repeat("  ", depth), p, props.Partitioning, props.Mode)
		for _, child := range p.Children() {
			visit(child, depth+1)
		}
	}
	visit(plan, 0)
	return sb.String()
}
