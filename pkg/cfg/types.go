// Package cfg defines the instruction-level Control Flow Graph of a program and
// the backward liveness analysis that runs over it.
//
// A graph is a dense slice of nodes addressed by index. Successor and
// predecessor relations are sorted index sets, never pointers.
package cfg

import (
	"errors"
	"sort"
	"strings"

	"github.com/l3aro/go-liveness/pkg/ast"
)

var (
	// ErrUnsupportedStatement is returned when the builder meets a statement
	// variant it has no flattening rule for.
	ErrUnsupportedStatement = errors.New("unsupported statement")

	// ErrUnsupportedExpr is returned for expression variants with no use-set rule.
	ErrUnsupportedExpr = errors.New("unsupported expression")

	// ErrIndexOutOfRange is the panic value for lookups of a node that does not exist.
	ErrIndexOutOfRange = errors.New("node index out of range")

	// ErrNotAnalyzed is the panic value for liveness queries on a graph that
	// has not been analyzed.
	ErrNotAnalyzed = errors.New("liveness not computed")

	// ErrNotConverged is returned when an iteration cap is hit before the fixed point.
	ErrNotConverged = errors.New("liveness did not converge")
)

// NodeKind represents the type of a CFG node.
type NodeKind string

const (
	KindAssignment NodeKind = "assignment" // target = expr;
	KindReturn     NodeKind = "return"     // return expr;
	KindCondition  NodeKind = "condition"  // branch of if, while or do-while
)

// VarSet is a set of variable names.
type VarSet map[string]struct{}

// NewVarSet returns a set holding names.
func NewVarSet(names ...string) VarSet {
	s := make(VarSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts name.
func (s VarSet) Add(name string) { s[name] = struct{}{} }

// Has reports whether name is in s.
func (s VarSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Clone returns a copy of s.
func (s VarSet) Clone() VarSet {
	dst := make(VarSet, len(s))
	for k := range s {
		dst[k] = struct{}{}
	}
	return dst
}

// Union returns s ∪ other as a new set.
func (s VarSet) Union(other VarSet) VarSet {
	dst := s.Clone()
	for k := range other {
		dst[k] = struct{}{}
	}
	return dst
}

// Diff returns s − other as a new set.
func (s VarSet) Diff(other VarSet) VarSet {
	dst := make(VarSet, len(s))
	for k := range s {
		if _, killed := other[k]; !killed {
			dst[k] = struct{}{}
		}
	}
	return dst
}

// Intersect returns s ∩ other as a new set.
func (s VarSet) Intersect(other VarSet) VarSet {
	dst := make(VarSet)
	for k := range s {
		if _, ok := other[k]; ok {
			dst[k] = struct{}{}
		}
	}
	return dst
}

// Equal reports whether both sets hold the same names.
func (s VarSet) Equal(other VarSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the names in lexical order.
func (s VarSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s VarSet) String() string {
	return "{" + strings.Join(s.Sorted(), ", ") + "}"
}

// Node is one flattened instruction: an assignment, a return or a branch condition.
type Node struct {
	Index  int      `json:"index"`
	Kind   NodeKind `json:"kind"`
	Target string   `json:"target,omitempty"` // assigned variable, assignments only
	Expr   ast.Expr `json:"-"`                // assigned value, returned value or condition
	Uses   VarSet   `json:"-"`
	Defs   VarSet   `json:"-"`
	Preds  []int    `json:"preds"`
	Succs  []int    `json:"succs"`
}

// Code renders the node as a line of source.
func (n *Node) Code() string {
	switch n.Kind {
	case KindAssignment:
		return n.Target + " = " + n.Expr.String() + ";"
	case KindReturn:
		return "return " + n.Expr.String() + ";"
	case KindCondition:
		return "if " + n.Expr.String()
	default:
		return ""
	}
}

// HasSucc reports whether j is a successor of n.
func (n *Node) HasSucc(j int) bool { return containsIndex(n.Succs, j) }

// HasPred reports whether i is a predecessor of n.
func (n *Node) HasPred(i int) bool { return containsIndex(n.Preds, i) }

// Edge is a directed CFG edge between two node indices.
type Edge struct {
	From int `json:"from" yaml:"from" msgpack:"from"`
	To   int `json:"to" yaml:"to" msgpack:"to"`
}

// ControlFlowGraph is the flattened program. Liveness results are attached by
// Analyze and kept until the next Analyze or Reset.
type ControlFlowGraph struct {
	nodes    []Node
	liveIn   []VarSet
	liveOut  []VarSet
	analyzed bool
}

// Len returns the number of nodes.
func (g *ControlFlowGraph) Len() int { return len(g.nodes) }

// Node returns the node at index i. It panics if i is not a valid index.
func (g *ControlFlowGraph) Node(i int) *Node {
	g.mustIndex(i)
	return &g.nodes[i]
}

// Nodes returns the nodes in index order. Callers must not modify them.
func (g *ControlFlowGraph) Nodes() []Node { return g.nodes }

// Edges returns every edge ordered by source, then target.
func (g *ControlFlowGraph) Edges() []Edge {
	var edges []Edge
	for i := range g.nodes {
		for _, j := range g.nodes[i].Succs {
			edges = append(edges, Edge{From: i, To: j})
		}
	}
	return edges
}

// Variables returns every name defined or used anywhere in the graph.
func (g *ControlFlowGraph) Variables() []string {
	all := make(VarSet)
	for i := range g.nodes {
		for v := range g.nodes[i].Defs {
			all.Add(v)
		}
		for v := range g.nodes[i].Uses {
			all.Add(v)
		}
	}
	return all.Sorted()
}

// String lists one node per line.
func (g *ControlFlowGraph) String() string {
	var sb strings.Builder
	for i := range g.nodes {
		sb.WriteString(g.nodes[i].Code())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (g *ControlFlowGraph) mustIndex(i int) {
	if i < 0 || i >= len(g.nodes) {
		panic(indexError(i, len(g.nodes)))
	}
}

func containsIndex(set []int, x int) bool {
	k := sort.SearchInts(set, x)
	return k < len(set) && set[k] == x
}

// insertIndex adds x to a sorted set and returns the set.
func insertIndex(set []int, x int) []int {
	k := sort.SearchInts(set, x)
	if k < len(set) && set[k] == x {
		return set
	}
	set = append(set, 0)
	copy(set[k+1:], set[k:])
	set[k] = x
	return set
}

// removeIndex deletes x from a sorted set and returns the set.
func removeIndex(set []int, x int) []int {
	k := sort.SearchInts(set, x)
	if k < len(set) && set[k] == x {
		return append(set[:k], set[k+1:]...)
	}
	return set
}
