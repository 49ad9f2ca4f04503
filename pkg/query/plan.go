package query

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// PlanNodeType identifica o operador físico executado.
type PlanNodeType string

const (
	PlanNodeScan    PlanNodeType = "SCAN"
	PlanNodeFilter  PlanNodeType = "FILTER"
	PlanNodeCompute PlanNodeType = "COMPUTE"
	PlanNodeJoin    PlanNodeType = "JOIN"
	PlanNodeProject PlanNodeType = "PROJECT"
	PlanNodeSort    PlanNodeType = "SORT"
	PlanNodeLimit   PlanNodeType = "LIMIT"
	PlanNodeRoot    PlanNodeType = "ROOT"
)

var planNodeCounter atomic.Int64

// PhysicalPlan representa a árvore de operadores exibida pelo EXPLAIN.
type PhysicalPlan struct {
	Root *PlanNode
}

// PlanNode é um nó simples com filhos e propriedades específicas do operador.
type PlanNode struct {
	ID         string                 `json:"id"`
	Type       PlanNodeType           `json:"type"`
	Children   []*PlanNode            `json:"children,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Stats      map[string]interface{} `json:"stats,omitempty"`
}

// NewPlanNode cria um nó com ID único e tipo informado.
func NewPlanNode(typ PlanNodeType) *PlanNode {
	id := planNodeCounter.Add(1)
	return &PlanNode{
		ID:         fmt.Sprintf("node-%03d", id),
		Type:       typ,
		Children:   []*PlanNode{},
		Properties: map[string]interface{}{},
		Stats:      map[string]interface{}{},
	}
}

// AddChild anexa um filho à lista do nó.
func (n *PlanNode) AddChild(child *PlanNode) {
	n.Children = append(n.Children, child)
}

// Walk visita os nós em pré-ordem; retornar false interrompe a descida naquele ramo.
func (n *PlanNode) Walk(fn func(node *PlanNode, depth int) bool) {
	n.walk(fn, 0)
}

func (n *PlanNode) walk(fn func(node *PlanNode, depth int) bool, depth int) {
	if n == nil || !fn(n, depth) {
		return
	}
	for _, child := range n.Children {
		child.walk(fn, depth+1)
	}
}

// Find retorna o primeiro nó do tipo informado.
func (p *PhysicalPlan) Find(typ PlanNodeType) *PlanNode {
	if p == nil {
		return nil
	}
	var found *PlanNode
	p.Root.Walk(func(node *PlanNode, _ int) bool {
		if found != nil {
			return false
		}
		if node.Type == typ {
			found = node
			return false
		}
		return true
	})
	return found
}

// String renderiza a árvore indentada, uma linha por nó, com propriedades em ordem alfabética.
func (p *PhysicalPlan) String() string {
	if p == nil || p.Root == nil {
		return ""
	}
	var b strings.Builder
	p.Root.Walk(func(node *PlanNode, depth int) bool {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(string(node.Type))
		keys := make([]string, 0, len(node.Properties))
		for k := range node.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i == 0 {
				b.WriteString(": ")
			} else {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, node.Properties[k])
		}
		b.WriteString("\n")
		return true
	})
	return b.String()
}
