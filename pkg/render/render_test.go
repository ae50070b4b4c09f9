package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/l3aro/go-liveness/pkg/parser"
)

const loop = "a = 0; while (a < 3) { a = a + 1; } return a;"

func graph(t *testing.T, src string, analyzed bool) (*cfg.ControlFlowGraph, *cfg.Stats) {
	t.Helper()
	g, err := cfg.Build(parser.MustParse(src))
	require.NoError(t, err)
	if !analyzed {
		return g, nil
	}
	stats, err := g.Analyze()
	require.NoError(t, err)
	return g, &stats
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"TABLE", FormatTable, false},
		{"json", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestProgram(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Program(&buf, parser.MustParse(loop)))
	assert.Equal(t, "a = 0;\nwhile (a < 3) {\n  a = a + 1;\n}\nreturn a;\n", buf.String())
}

func TestListing(t *testing.T) {
	g, _ := graph(t, loop, false)

	var buf bytes.Buffer
	require.NoError(t, Listing(&buf, g))

	want := "" +
		"  0  a = 0;  -> 1\n" +
		"  1  if a < 3  -> 2,3\n" +
		"  2  a = a + 1;  -> 1\n" +
		"  3  return a;\n"
	assert.Equal(t, want, buf.String())
}

func TestTable(t *testing.T) {
	g, _ := graph(t, loop, false)

	var buf bytes.Buffer
	require.NoError(t, Table(&buf, g))
	out := buf.String()
	assert.Contains(t, out, "succs")
	assert.Contains(t, out, "a = a + 1;")
	assert.NotContains(t, out, "live-in")

	_, err := g.Analyze()
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, Table(&buf, g))
	assert.Contains(t, buf.String(), "live-in")
	assert.Contains(t, buf.String(), "{a}")
}

func TestLiveRange(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, LiveRange(&buf, "a", []cfg.Edge{{From: 0, To: 1}, {From: 2, To: 1}}))
	assert.Equal(t, "a is live across 2 edges:\n  0 -> 1\n  2 -> 1\n", buf.String())

	buf.Reset()
	require.NoError(t, LiveRange(&buf, "zz", nil))
	assert.Equal(t, "zz is never live\n", buf.String())
}

func TestDOT(t *testing.T) {
	g, _ := graph(t, loop, true)

	var buf bytes.Buffer
	require.NoError(t, DOT(&buf, g, DOTOptions{}))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "digraph \"cfg\" {\n"))
	assert.Contains(t, out, `n1 [label="1: if a < 3", shape=diamond];`)
	assert.Contains(t, out, `n3 [label="3: return a;", shape=doubleoctagon];`)
	assert.Contains(t, out, "n2 -> n1;\n")
	assert.True(t, strings.HasSuffix(out, "}\n"))

	buf.Reset()
	require.NoError(t, DOT(&buf, g, DOTOptions{Name: "loop", ShowLive: true}))
	assert.Contains(t, buf.String(), `digraph "loop"`)
	assert.Contains(t, buf.String(), `n2 -> n1 [label="{a}"];`)
}

func TestDOT_LiveIgnoredBeforeAnalysis(t *testing.T) {
	g, _ := graph(t, loop, false)

	var buf bytes.Buffer
	require.NoError(t, DOT(&buf, g, DOTOptions{ShowLive: true}))
	assert.NotContains(t, buf.String(), "label=\"{")
}

func TestNewReport(t *testing.T) {
	g, stats := graph(t, loop, true)
	r := NewReport("loop.wl", g, stats)

	require.Len(t, r.Nodes, 4)
	assert.Equal(t, "condition", r.Nodes[1].Kind)
	assert.Equal(t, []int{2, 3}, r.Nodes[1].Succs)
	assert.Equal(t, []string{"a"}, r.Nodes[2].LiveIn)
	assert.Equal(t, []int{}, r.Nodes[3].Succs)
	assert.Equal(t, []string{"a"}, r.Variables)
	assert.True(t, r.Analyzed)
	require.NotNil(t, r.Stats)
	assert.Equal(t, []cfg.Edge{{From: 0, To: 1}, {From: 1, To: 2}, {From: 1, To: 3}, {From: 2, To: 1}}, r.LiveRanges["a"])

	assert.Equal(t, "loop.wl: 4 nodes, 4 edges, 1 variables, converged after 3 iterations, longest live range a (4 edges)", r.Summary())
}

func TestNewReport_Unanalyzed(t *testing.T) {
	g, _ := graph(t, "a = 1;", false)
	r := NewReport("one", g, nil)

	assert.False(t, r.Analyzed)
	assert.Nil(t, r.Stats)
	assert.Empty(t, r.LiveRanges)
	assert.Equal(t, []cfg.Edge{}, r.Edges)
	assert.Nil(t, r.Nodes[0].LiveIn)
	assert.Equal(t, "one: 1 nodes, 0 edges, 1 variables", r.Summary())
}

func TestJSON(t *testing.T) {
	g, stats := graph(t, loop, true)

	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, NewReport("loop", g, stats)))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "loop", decoded["name"])
	assert.Len(t, decoded["nodes"], 4)
	assert.Contains(t, decoded, "live_ranges")
	assert.Equal(t, "reverse", decoded["stats"].(map[string]interface{})["order"])
}

func TestYAML(t *testing.T) {
	g, stats := graph(t, loop, true)

	var buf bytes.Buffer
	require.NoError(t, YAML(&buf, NewReport("loop", g, stats)))

	var decoded Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "loop", decoded.Name)
	assert.Len(t, decoded.Nodes, 4)
	assert.Equal(t, []string{"a"}, decoded.Nodes[1].LiveOut)
	assert.Contains(t, buf.String(), "live_in:")
}
