// Package render writes programs, control flow graphs and liveness results
// in human and machine readable formats.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-liveness/pkg/ast"
	"github.com/l3aro/go-liveness/pkg/cfg"
)

// Format is an output format name.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat converts a name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid format: %s (must be text, table, json or yaml)", s)
	}
}

// Program writes p as source text.
func Program(w io.Writer, p *ast.Program) error {
	_, err := io.WriteString(w, p.String())
	return err
}

// Listing writes one line per node with its successors.
func Listing(w io.Writer, g *cfg.ControlFlowGraph) error {
	for _, n := range g.Nodes() {
		line := fmt.Sprintf("%3d  %s", n.Index, n.Code())
		if len(n.Succs) > 0 {
			line += "  -> " + joinInts(n.Succs)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Table writes a bordered table of every node. Live sets are included when
// the graph has been analyzed.
func Table(w io.Writer, g *cfg.ControlFlowGraph) error {
	headers := []string{"#", "kind", "code", "defs", "uses", "preds", "succs"}
	if g.Analyzed() {
		headers = append(headers, "live-in", "live-out")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)

	for _, n := range g.Nodes() {
		row := []string{
			strconv.Itoa(n.Index),
			string(n.Kind),
			n.Code(),
			n.Defs.String(),
			n.Uses.String(),
			joinInts(n.Preds),
			joinInts(n.Succs),
		}
		if g.Analyzed() {
			row = append(row, g.LiveIn(n.Index).String(), g.LiveOut(n.Index).String())
		}
		t.Row(row...)
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// LiveRange writes the edges of a live range, one per line.
func LiveRange(w io.Writer, name string, edges []cfg.Edge) error {
	if len(edges) == 0 {
		_, err := fmt.Fprintf(w, "%s is never live\n", name)
		return err
	}
	if _, err := fmt.Fprintf(w, "%s is live across %d edges:\n", name, len(edges)); err != nil {
		return err
	}
	for _, e := range edges {
		if _, err := fmt.Fprintf(w, "  %d -> %d\n", e.From, e.To); err != nil {
			return err
		}
	}
	return nil
}

// DOTOptions controls DOT output.
type DOTOptions struct {
	Name     string // graph name, defaults to "cfg"
	ShowLive bool   // label edges with the variables live across them
}

// DOT writes g as a Graphviz digraph. Conditions are drawn as diamonds and
// returns as double octagons.
func DOT(w io.Writer, g *cfg.ControlFlowGraph, opts DOTOptions) error {
	name := opts.Name
	if name == "" {
		name = "cfg"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %s {\n", strconv.Quote(name))
	sb.WriteString("  node [shape=box, fontname=\"monospace\"];\n")

	for _, n := range g.Nodes() {
		attrs := "label=" + strconv.Quote(fmt.Sprintf("%d: %s", n.Index, n.Code()))
		switch n.Kind {
		case cfg.KindCondition:
			attrs += ", shape=diamond"
		case cfg.KindReturn:
			attrs += ", shape=doubleoctagon"
		}
		fmt.Fprintf(&sb, "  n%d [%s];\n", n.Index, attrs)
	}

	live := opts.ShowLive && g.Analyzed()
	for _, e := range g.Edges() {
		if live {
			fmt.Fprintf(&sb, "  n%d -> n%d [label=%s];\n", e.From, e.To, strconv.Quote(g.LiveAcross(e.From, e.To).String()))
			continue
		}
		fmt.Fprintf(&sb, "  n%d -> n%d;\n", e.From, e.To)
	}
	sb.WriteString("}\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// NodeReport is the serialisable view of one node.
type NodeReport struct {
	Index   int      `json:"index" yaml:"index" msgpack:"index"`
	Kind    string   `json:"kind" yaml:"kind" msgpack:"kind"`
	Code    string   `json:"code" yaml:"code" msgpack:"code"`
	Defs    []string `json:"defs" yaml:"defs" msgpack:"defs"`
	Uses    []string `json:"uses" yaml:"uses" msgpack:"uses"`
	Preds   []int    `json:"preds" yaml:"preds" msgpack:"preds"`
	Succs   []int    `json:"succs" yaml:"succs" msgpack:"succs"`
	LiveIn  []string `json:"live_in,omitempty" yaml:"live_in,omitempty" msgpack:"live_in,omitempty"`
	LiveOut []string `json:"live_out,omitempty" yaml:"live_out,omitempty" msgpack:"live_out,omitempty"`
}

// Report is the serialisable result of building and optionally analyzing a program.
type Report struct {
	Name       string                `json:"name" yaml:"name" msgpack:"name"`
	Nodes      []NodeReport          `json:"nodes" yaml:"nodes" msgpack:"nodes"`
	Edges      []cfg.Edge            `json:"edges" yaml:"edges" msgpack:"edges"`
	Variables  []string              `json:"variables" yaml:"variables" msgpack:"variables"`
	Analyzed   bool                  `json:"analyzed" yaml:"analyzed" msgpack:"analyzed"`
	Stats      *cfg.Stats            `json:"stats,omitempty" yaml:"stats,omitempty" msgpack:"stats,omitempty"`
	LiveRanges map[string][]cfg.Edge `json:"live_ranges,omitempty" yaml:"live_ranges,omitempty" msgpack:"live_ranges,omitempty"`
}

// NewReport snapshots g. stats may be nil when g has not been analyzed.
func NewReport(name string, g *cfg.ControlFlowGraph, stats *cfg.Stats) *Report {
	r := &Report{
		Name:      name,
		Nodes:     make([]NodeReport, 0, g.Len()),
		Edges:     g.Edges(),
		Variables: g.Variables(),
		Analyzed:  g.Analyzed(),
	}
	if r.Edges == nil {
		r.Edges = []cfg.Edge{}
	}

	for _, n := range g.Nodes() {
		nr := NodeReport{
			Index: n.Index,
			Kind:  string(n.Kind),
			Code:  n.Code(),
			Defs:  n.Defs.Sorted(),
			Uses:  n.Uses.Sorted(),
			Preds: nonNil(n.Preds),
			Succs: nonNil(n.Succs),
		}
		if r.Analyzed {
			nr.LiveIn = g.LiveIn(n.Index).Sorted()
			nr.LiveOut = g.LiveOut(n.Index).Sorted()
		}
		r.Nodes = append(r.Nodes, nr)
	}

	if r.Analyzed {
		r.Stats = stats
		r.LiveRanges = make(map[string][]cfg.Edge, len(r.Variables))
		for _, v := range r.Variables {
			if edges := g.LiveRange(v); len(edges) > 0 {
				r.LiveRanges[v] = edges
			}
		}
	}
	return r
}

// Summary is a one line description of the report.
func (r *Report) Summary() string {
	s := fmt.Sprintf("%s: %d nodes, %d edges, %d variables", r.Name, len(r.Nodes), len(r.Edges), len(r.Variables))
	if r.Stats != nil {
		s += fmt.Sprintf(", converged after %d iterations", r.Stats.Iterations)
	}
	if len(r.LiveRanges) > 0 {
		names := make([]string, 0, len(r.LiveRanges))
		for v := range r.LiveRanges {
			names = append(names, v)
		}
		sort.Strings(names)
		widest := names[0]
		for _, v := range names[1:] {
			if len(r.LiveRanges[v]) > len(r.LiveRanges[widest]) {
				widest = v
			}
		}
		s += fmt.Sprintf(", longest live range %s (%d edges)", widest, len(r.LiveRanges[widest]))
	}
	return s
}

// JSON writes r as indented JSON.
func JSON(w io.Writer, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// YAML writes r as YAML.
func YAML(w io.Writer, r *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func nonNil(xs []int) []int {
	if xs == nil {
		return []int{}
	}
	return xs
}
