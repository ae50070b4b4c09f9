package cfg

import (
	"container/list"
	"fmt"
	"strings"

	"github.com/l3aro/go-liveness/internal/log"
)

// Order is the order in which nodes are visited during one pass.
type Order string

const (
	OrderReverse Order = "reverse" // highest index first, usually fewer passes for a backward problem
	OrderForward Order = "forward" // index order
)

// ParseOrder converts a name to an Order.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(s)) {
	case OrderReverse, "":
		return OrderReverse, nil
	case OrderForward:
		return OrderForward, nil
	default:
		return "", fmt.Errorf("invalid order: %s (must be 'reverse' or 'forward')", s)
	}
}

// Strategy selects how the fixed point is reached.
type Strategy string

const (
	StrategyRoundRobin Strategy = "round-robin" // recompute every node each pass
	StrategyWorklist   Strategy = "worklist"    // revisit predecessors of changed nodes only
)

// ParseStrategy converts a name to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(s)) {
	case StrategyRoundRobin, "":
		return StrategyRoundRobin, nil
	case StrategyWorklist:
		return StrategyWorklist, nil
	default:
		return "", fmt.Errorf("invalid strategy: %s (must be 'round-robin' or 'worklist')", s)
	}
}

// Stats describes one run of the analysis.
type Stats struct {
	Order      Order    `json:"order" yaml:"order" msgpack:"order"`
	Strategy   Strategy `json:"strategy" yaml:"strategy" msgpack:"strategy"`
	Iterations int      `json:"iterations" yaml:"iterations" msgpack:"iterations"` // full passes, or visits/len for the worklist
	Visits     int      `json:"visits" yaml:"visits" msgpack:"visits"`             // node updates performed
}

type analyzeOptions struct {
	order    Order
	strategy Strategy
	maxIter  int
	logger   log.Logger
}

// AnalyzeOption configures Analyze.
type AnalyzeOption func(*analyzeOptions)

// WithOrder sets the node visiting order.
func WithOrder(o Order) AnalyzeOption {
	return func(a *analyzeOptions) { a.order = o }
}

// WithStrategy sets the iteration strategy.
func WithStrategy(s Strategy) AnalyzeOption {
	return func(a *analyzeOptions) { a.strategy = s }
}

// WithMaxIterations caps the number of passes. Zero means no cap.
// Hitting the cap makes Analyze return ErrNotConverged.
func WithMaxIterations(n int) AnalyzeOption {
	return func(a *analyzeOptions) { a.maxIter = n }
}

// WithLogger traces each pass at debug level.
func WithLogger(l log.Logger) AnalyzeOption {
	return func(a *analyzeOptions) {
		if l != nil {
			a.logger = l
		}
	}
}

// Analyze computes live-in and live-out for every node:
//
//	in[i]  = use[i] ∪ (out[i] − def[i])
//	out[i] = ⋃ in[s] for s in succ(i)
//
// Sets start empty on every call and grow monotonically until a pass changes
// nothing, so repeated calls give identical results for any order or strategy.
// On error the graph is left un-analyzed.
func (g *ControlFlowGraph) Analyze(opts ...AnalyzeOption) (Stats, error) {
	a := analyzeOptions{
		order:    OrderReverse,
		strategy: StrategyRoundRobin,
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(&a)
	}

	g.Reset()

	n := len(g.nodes)
	in := make([]VarSet, n)
	out := make([]VarSet, n)
	for i := 0; i < n; i++ {
		in[i] = make(VarSet)
		out[i] = make(VarSet)
	}

	order, err := visitOrder(n, a.order)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	switch a.strategy {
	case StrategyRoundRobin:
		stats, err = g.roundRobin(order, in, out, a)
	case StrategyWorklist:
		stats, err = g.worklist(order, in, out, a)
	default:
		return Stats{}, fmt.Errorf("invalid strategy: %s", a.strategy)
	}
	stats.Order = a.order
	stats.Strategy = a.strategy
	if err != nil {
		return stats, err
	}

	g.liveIn = in
	g.liveOut = out
	g.analyzed = true

	a.logger.Debug("liveness converged", "nodes", n, "iterations", stats.Iterations, "visits", stats.Visits)
	return stats, nil
}

func (g *ControlFlowGraph) roundRobin(order []int, in, out []VarSet, a analyzeOptions) (Stats, error) {
	var stats Stats
	for {
		if a.maxIter > 0 && stats.Iterations >= a.maxIter {
			return stats, fmt.Errorf("%w after %d passes", ErrNotConverged, stats.Iterations)
		}
		stats.Iterations++

		changed := false
		for _, i := range order {
			stats.Visits++
			if g.update(i, in, out) {
				changed = true
			}
		}

		a.logger.Debug("liveness pass", "pass", stats.Iterations, "changed", changed)
		if !changed {
			return stats, nil
		}
	}
}

func (g *ControlFlowGraph) worklist(order []int, in, out []VarSet, a analyzeOptions) (Stats, error) {
	var stats Stats
	n := len(g.nodes)
	queued := make([]bool, n)

	work := list.New()
	for _, i := range order {
		work.PushBack(i)
		queued[i] = true
	}

	for work.Len() > 0 {
		if a.maxIter > 0 && stats.Visits >= a.maxIter*n {
			return stats, fmt.Errorf("%w after %d visits", ErrNotConverged, stats.Visits)
		}

		i := work.Remove(work.Front()).(int)
		queued[i] = false
		stats.Visits++

		oldIn := in[i]
		g.update(i, in, out)
		if oldIn.Equal(in[i]) {
			continue
		}
		// in[i] feeds out[p] of every predecessor.
		for _, p := range g.nodes[i].Preds {
			if !queued[p] {
				work.PushBack(p)
				queued[p] = true
			}
		}
	}

	if n > 0 {
		stats.Iterations = (stats.Visits + n - 1) / n
	}
	return stats, nil
}

// update applies both equations to node i and reports whether either set changed.
func (g *ControlFlowGraph) update(i int, in, out []VarSet) bool {
	node := &g.nodes[i]

	newOut := make(VarSet)
	for _, s := range node.Succs {
		for v := range in[s] {
			newOut[v] = struct{}{}
		}
	}
	newIn := node.Uses.Union(newOut.Diff(node.Defs))

	changed := !newOut.Equal(out[i]) || !newIn.Equal(in[i])
	out[i] = newOut
	in[i] = newIn
	return changed
}

func visitOrder(n int, o Order) ([]int, error) {
	order := make([]int, n)
	switch o {
	case OrderForward:
		for i := range order {
			order[i] = i
		}
	case OrderReverse:
		for i := range order {
			order[i] = n - 1 - i
		}
	default:
		return nil, fmt.Errorf("invalid order: %s", o)
	}
	return order, nil
}

// Analyzed reports whether liveness results are attached.
func (g *ControlFlowGraph) Analyzed() bool { return g.analyzed }

// Reset drops liveness results.
func (g *ControlFlowGraph) Reset() {
	g.liveIn = nil
	g.liveOut = nil
	g.analyzed = false
}

// LiveIn returns the variables live on entry to node i.
// It panics if the graph has not been analyzed or i is out of range.
func (g *ControlFlowGraph) LiveIn(i int) VarSet {
	g.mustAnalyzed("LiveIn")
	g.mustIndex(i)
	return g.liveIn[i].Clone()
}

// LiveOut returns the variables live on exit from node i.
// It panics if the graph has not been analyzed or i is out of range.
func (g *ControlFlowGraph) LiveOut(i int) VarSet {
	g.mustAnalyzed("LiveOut")
	g.mustIndex(i)
	return g.liveOut[i].Clone()
}

// LiveAcross returns the variables live along the edge i→j.
func (g *ControlFlowGraph) LiveAcross(i, j int) VarSet {
	g.mustAnalyzed("LiveAcross")
	g.mustIndex(i)
	g.mustIndex(j)
	return g.liveOut[i].Intersect(g.liveIn[j])
}

// LiveRange returns every edge i→j where name is live on entry to j,
// ordered by source then target. It panics if the graph has not been analyzed.
func (g *ControlFlowGraph) LiveRange(name string) []Edge {
	g.mustAnalyzed("LiveRange")
	var edges []Edge
	for i := range g.nodes {
		for _, j := range g.nodes[i].Succs {
			if g.liveIn[j].Has(name) {
				edges = append(edges, Edge{From: i, To: j})
			}
		}
	}
	return edges
}

// CheckEquations verifies that the attached results satisfy the dataflow
// equations at every node.
func (g *ControlFlowGraph) CheckEquations() error {
	if !g.analyzed {
		return ErrNotAnalyzed
	}
	for i := range g.nodes {
		node := &g.nodes[i]
		wantOut := make(VarSet)
		for _, s := range node.Succs {
			wantOut = wantOut.Union(g.liveIn[s])
		}
		if !wantOut.Equal(g.liveOut[i]) {
			return fmt.Errorf("node %d: live-out %s, want %s", i, g.liveOut[i], wantOut)
		}
		wantIn := node.Uses.Union(g.liveOut[i].Diff(node.Defs))
		if !wantIn.Equal(g.liveIn[i]) {
			return fmt.Errorf("node %d: live-in %s, want %s", i, g.liveIn[i], wantIn)
		}
	}
	return nil
}

// CheckEdges verifies index density, edge validity and that successor and
// predecessor sets mirror each other.
func (g *ControlFlowGraph) CheckEdges() error {
	n := len(g.nodes)
	for i := range g.nodes {
		node := &g.nodes[i]
		if node.Index != i {
			return fmt.Errorf("node at position %d has index %d", i, node.Index)
		}
		if node.Kind == KindReturn && len(node.Succs) > 0 {
			return fmt.Errorf("return node %d has successors %v", i, node.Succs)
		}
		for _, j := range node.Succs {
			if j < 0 || j >= n {
				return fmt.Errorf("node %d: %w", i, indexError(j, n))
			}
			if !g.nodes[j].HasPred(i) {
				return fmt.Errorf("edge %d->%d missing from predecessors of %d", i, j, j)
			}
		}
		for _, p := range node.Preds {
			if p < 0 || p >= n {
				return fmt.Errorf("node %d: %w", i, indexError(p, n))
			}
			if !g.nodes[p].HasSucc(i) {
				return fmt.Errorf("predecessor %d of %d has no edge to it", p, i)
			}
		}
	}
	return nil
}

func (g *ControlFlowGraph) mustAnalyzed(query string) {
	if !g.analyzed {
		panic(fmt.Errorf("%s: %w", query, ErrNotAnalyzed))
	}
}
