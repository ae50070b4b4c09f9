package cfg

import (
	"fmt"

	"github.com/l3aro/go-liveness/internal/log"
	"github.com/l3aro/go-liveness/pkg/ast"
)

// Builder flattens a program into a ControlFlowGraph.
//
// Statements are laid out in source order, one node per assignment, return or
// loop/branch condition. Bodies of nested statements are sized before they are
// flattened so that branch targets are known when the condition node is appended.
type Builder struct {
	nodes  []Node
	logger log.Logger
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{logger: log.Nop()}
}

// SetLogger sets the logger used to trace node construction.
func (b *Builder) SetLogger(logger log.Logger) {
	if logger == nil {
		logger = log.Nop()
	}
	b.logger = logger
}

// Build flattens p. No graph is returned when any statement or expression
// has no flattening rule.
//
// Only edges that fall off the end of the program are dropped, so a program
// ending in a loop keeps the back-edge from its last node to the condition.
// An if that ends a loop body falls through to that loop's condition.
func Build(p *ast.Program) (*ControlFlowGraph, error) {
	return NewBuilder().Build(p)
}

// MustBuild is like Build but panics on error.
func MustBuild(p *ast.Program) *ControlFlowGraph {
	g, err := Build(p)
	if err != nil {
		panic(err)
	}
	return g
}

// Build flattens p into a new graph. The builder may be reused.
func (b *Builder) Build(p *ast.Program) (*ControlFlowGraph, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil program", ErrUnsupportedStatement)
	}

	size, err := countBlock(p.Statements)
	if err != nil {
		return nil, err
	}

	b.nodes = make([]Node, 0, size)
	defer func() { b.nodes = nil }()

	end, err := b.flattenBlock(p.Statements, 0, size)
	if err != nil {
		return nil, err
	}
	if end != size || len(b.nodes) != size {
		return nil, fmt.Errorf("flattened %d nodes, reserved %d", len(b.nodes), size)
	}

	// Fallthrough past the last node is program exit.
	for i := range b.nodes {
		b.nodes[i].Succs = removeIndex(b.nodes[i].Succs, size)
	}

	b.logger.Debug("built control flow graph", "nodes", size)

	return &ControlFlowGraph{nodes: b.nodes}, nil
}

// flattenBlock lays out stmts starting at pos. follow is where control goes
// after the last statement. It returns the position after the block.
func (b *Builder) flattenBlock(stmts []ast.Statement, pos, follow int) (int, error) {
	for k, stmt := range stmts {
		next := follow
		if k+1 < len(stmts) {
			n, err := countNodes(stmt)
			if err != nil {
				return pos, err
			}
			next = pos + n
		}

		end, err := b.flattenStatement(stmt, pos, next)
		if err != nil {
			return pos, err
		}
		pos = end
	}
	return pos, nil
}

// flattenStatement lays out one statement at pos. next is the fallthrough
// target once the statement completes.
func (b *Builder) flattenStatement(stmt ast.Statement, pos, next int) (int, error) {
	switch s := stmt.(type) {
	case *ast.Assign:
		uses, err := usesOf(s.Value)
		if err != nil {
			return pos, err
		}
		b.appendNode(Node{
			Kind:   KindAssignment,
			Target: s.Target,
			Expr:   s.Value,
			Uses:   uses,
			Defs:   NewVarSet(s.Target),
		}, pos, next)
		return pos + 1, nil

	case *ast.Return:
		uses, err := usesOf(s.Value)
		if err != nil {
			return pos, err
		}
		b.appendNode(Node{
			Kind: KindReturn,
			Expr: s.Value,
			Uses: uses,
			Defs: NewVarSet(),
		}, pos, next)
		return pos + 1, nil

	case *ast.If:
		bodyLen, err := countBlock(s.Body)
		if err != nil {
			return pos, err
		}
		cond, err := conditionNode(s.Cond)
		if err != nil {
			return pos, err
		}
		cond.Succs = insertIndex(cond.Succs, next)
		if bodyLen > 0 {
			cond.Succs = insertIndex(cond.Succs, pos+1)
		}
		b.appendNode(cond, pos, next)
		return b.flattenBlock(s.Body, pos+1, next)

	case *ast.While:
		bodyLen, err := countBlock(s.Body)
		if err != nil {
			return pos, err
		}
		cond, err := conditionNode(s.Cond)
		if err != nil {
			return pos, err
		}
		cond.Succs = insertIndex(cond.Succs, next)
		if bodyLen > 0 {
			cond.Succs = insertIndex(cond.Succs, pos+1)
		} else {
			cond.Succs = insertIndex(cond.Succs, pos)
		}
		b.appendNode(cond, pos, next)
		// The body falls back into the condition.
		return b.flattenBlock(s.Body, pos+1, pos)

	case *ast.DoWhile:
		bodyLen, err := countBlock(s.Body)
		if err != nil {
			return pos, err
		}
		cond, err := conditionNode(s.Cond)
		if err != nil {
			return pos, err
		}
		condPos := pos + bodyLen
		end, err := b.flattenBlock(s.Body, pos, condPos)
		if err != nil {
			return pos, err
		}
		cond.Succs = insertIndex(cond.Succs, pos)
		cond.Succs = insertIndex(cond.Succs, next)
		b.appendNode(cond, end, next)
		return end + 1, nil

	case nil:
		return pos, fmt.Errorf("%w: nil statement at node %d", ErrUnsupportedStatement, pos)

	default:
		return pos, fmt.Errorf("%w: %T at node %d", ErrUnsupportedStatement, stmt, pos)
	}
}

// appendNode places n at pos and registers its edges in both directions.
// A non-return node without explicit successors falls through to follow.
func (b *Builder) appendNode(n Node, pos, follow int) {
	n.Index = pos
	if len(n.Succs) == 0 && n.Kind != KindReturn {
		n.Succs = []int{follow}
	}

	// Backward edges point at nodes that already exist.
	for _, s := range n.Succs {
		switch {
		case s < pos:
			b.nodes[s].Preds = insertIndex(b.nodes[s].Preds, pos)
		case s == pos:
			n.Preds = insertIndex(n.Preds, pos)
		}
	}

	// Forward edges were recorded before this node existed.
	for k := range b.nodes {
		if b.nodes[k].HasSucc(pos) {
			n.Preds = insertIndex(n.Preds, k)
		}
	}

	b.nodes = append(b.nodes, n)

	b.logger.Debug("appended node", "index", pos, "kind", n.Kind, "succs", n.Succs)
}

func conditionNode(e ast.Expr) (Node, error) {
	uses, err := usesOf(e)
	if err != nil {
		return Node{}, err
	}
	return Node{
		Kind: KindCondition,
		Expr: e,
		Uses: uses,
		Defs: NewVarSet(),
	}, nil
}

// usesOf collects the identifiers of e by a pre-order walk, skipping literals.
func usesOf(e ast.Expr) (VarSet, error) {
	uses := make(VarSet)
	var walk func(ast.Expr) error
	walk = func(e ast.Expr) error {
		switch x := e.(type) {
		case *ast.Ident:
			uses.Add(x.Name)
		case *ast.IntLit:
		case *ast.BinaryExpr:
			if err := walk(x.Left); err != nil {
				return err
			}
			return walk(x.Right)
		case nil:
			return fmt.Errorf("%w: nil expression", ErrUnsupportedExpr)
		default:
			return fmt.Errorf("%w: %T", ErrUnsupportedExpr, e)
		}
		return nil
	}
	if err := walk(e); err != nil {
		return nil, err
	}
	return uses, nil
}

// countBlock returns how many nodes stmts flatten to.
func countBlock(stmts []ast.Statement) (int, error) {
	total := 0
	for _, s := range stmts {
		n, err := countNodes(s)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func countNodes(stmt ast.Statement) (int, error) {
	switch s := stmt.(type) {
	case *ast.Assign, *ast.Return:
		return 1, nil
	case *ast.If:
		n, err := countBlock(s.Body)
		return n + 1, err
	case *ast.While:
		n, err := countBlock(s.Body)
		return n + 1, err
	case *ast.DoWhile:
		n, err := countBlock(s.Body)
		return n + 1, err
	case nil:
		return 0, fmt.Errorf("%w: nil statement", ErrUnsupportedStatement)
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedStatement, stmt)
	}
}

func indexError(i, n int) error {
	return fmt.Errorf("%w: %d (graph has %d nodes)", ErrIndexOutOfRange, i, n)
}
