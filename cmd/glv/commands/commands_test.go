package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-liveness/internal/config"
	"github.com/l3aro/go-liveness/pkg/cache"
	"github.com/l3aro/go-liveness/pkg/render"
)

const loopProgram = `a = 0;
while (a < 3) {
  a = a + 1;
}
return a;
`

// resetFlags restores every flag of cmd and its children to its default, since
// RootCmd is shared by all tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// workspace isolates a test from real config files and returns a project directory.
func workspace(t *testing.T, files map[string]string) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	chdir(t, dir)
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(RootCmd)
	t.Cleanup(func() { resetFlags(RootCmd) })

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func TestCfgCommand(t *testing.T) {
	workspace(t, map[string]string{"loop.wl": loopProgram})

	out, err := run(t, "cfg", "loop.wl")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"  0  a = 0;  -> 1\n"+
		"  1  if a < 3  -> 2,3\n"+
		"  2  a = a + 1;  -> 1\n"+
		"  3  return a;\n", out)

	out, err = run(t, "cfg", "loop.wl", "--format", "json")
	require.NoError(t, err)
	var r render.Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "loop", r.Name)
	assert.Len(t, r.Nodes, 4)
	assert.False(t, r.Analyzed)
}

func TestFmtCommand(t *testing.T) {
	dir := workspace(t, map[string]string{
		"messy.wl": "a=0; // start\nwhile(a<3){a=a+1;}\nreturn a;",
		"bad.wl":   "while (a) {\n",
	})

	out, err := run(t, "fmt", "messy.wl")
	require.NoError(t, err)
	assert.Equal(t, loopProgram, out)

	out, err = run(t, "fmt", "messy.wl", "--write")
	require.NoError(t, err)
	assert.Empty(t, out)
	data, err := os.ReadFile(filepath.Join(dir, "messy.wl"))
	require.NoError(t, err)
	assert.Equal(t, loopProgram, string(data))

	_, err = run(t, "fmt", "bad.wl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.wl")
}

func TestCfgCommandErrors(t *testing.T) {
	dir := workspace(t, map[string]string{"bad.wl": "a = ;\n"})

	_, err := run(t, "cfg", "bad.wl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.wl")
	assert.Contains(t, err.Error(), "1:5")

	_, err = run(t, "cfg", "missing.wl")
	assert.Error(t, err)

	_, err = run(t, "cfg", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")

	_, err = run(t, "cfg", "bad.wl", "--format", "xml")
	assert.Error(t, err)
}

func TestLiveCommand(t *testing.T) {
	workspace(t, map[string]string{"loop.wl": loopProgram})

	out, err := run(t, "live", "loop.wl", "--no-cache")
	require.NoError(t, err)
	assert.Contains(t, out, "live-in")
	assert.Contains(t, out, "converged after 3 iterations (12 node visits, reverse order, round-robin)")

	out, err = run(t, "live", "loop.wl", "--no-cache", "--strategy", "worklist", "--order", "forward")
	require.NoError(t, err)
	assert.Contains(t, out, "forward order, worklist")

	_, err = run(t, "live", "loop.wl", "--strategy", "random")
	assert.Error(t, err)

	_, err = run(t, "live", "loop.wl", "--no-cache", "--max-iterations", "1")
	assert.Error(t, err)
}

func TestLiveCommandUsesCache(t *testing.T) {
	workspace(t, map[string]string{"loop.wl": loopProgram})

	first, err := run(t, "live", "loop.wl", "--format", "json")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(".glv", "cache", cache.FileName))

	second, err := run(t, "live", "loop.wl", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, first, second)

	var r render.Report
	require.NoError(t, json.Unmarshal([]byte(second), &r))
	assert.True(t, r.Analyzed)
	require.NotNil(t, r.Stats)
	assert.Equal(t, 3, r.Stats.Iterations)
	assert.Len(t, r.LiveRanges["a"], 4)
}

func TestRangeCommand(t *testing.T) {
	workspace(t, map[string]string{"loop.wl": loopProgram})

	out, err := run(t, "range", "loop.wl", "a")
	require.NoError(t, err)
	assert.Equal(t, "a is live across 4 edges:\n  0 -> 1\n  1 -> 2\n  1 -> 3\n  2 -> 1\n", out)

	out, err = run(t, "range", "loop.wl", "zzz")
	require.NoError(t, err)
	assert.Equal(t, "zzz is never live\n", out)
}

func TestDotCommand(t *testing.T) {
	dir := workspace(t, map[string]string{"loop.wl": loopProgram})

	out, err := run(t, "dot", "loop.wl")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `digraph "loop" {`))
	assert.Contains(t, out, "n2 -> n1;")

	target := filepath.Join(dir, "out", "loop.dot")
	out, err = run(t, "dot", "loop.wl", "--live", "-o", target)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `n2 -> n1 [label="{a}"];`)
}

func TestBatchCommand(t *testing.T) {
	workspace(t, map[string]string{
		"loop.wl":         loopProgram,
		"sub/straight.wl": "a = 1;\nb = a;\nreturn b;\n",
		"sub/bad.wl":      "while (a) {\n",
		"skip/x.wl":       "a = 1;\n",
		".glvignore":      "skip/\n",
		"notes.txt":       "not a program",
	})

	out, err := run(t, "batch", ".", "--workers", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 files failed")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "loop.wl: 4 nodes, 4 edges, 1 variables, converged after 3 iterations, longest live range a (4 edges)", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "error: sub/bad.wl:"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "sub/straight.wl: 3 nodes"), lines[2])
	assert.Equal(t, "3 files, 1 failed, 0 from cache", lines[4])

	out, _ = run(t, "batch", ".")
	assert.Contains(t, out, "3 files, 1 failed, 2 from cache")
}

func TestBatchCommandEmpty(t *testing.T) {
	workspace(t, nil)

	out, err := run(t, "batch")
	require.NoError(t, err)
	assert.Equal(t, "no .wl files found under .\n", out)
}

func TestCacheCommands(t *testing.T) {
	workspace(t, map[string]string{"loop.wl": loopProgram})

	_, err := run(t, "live", "loop.wl", "-f", "yaml")
	require.NoError(t, err)

	out, err := run(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 1 of 256")

	out, err = run(t, "cache", "clear")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 cached reports\n", out)

	out, err = run(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Entries: 0 of 256")
}

func TestConfigFlag(t *testing.T) {
	dir := workspace(t, map[string]string{"loop.wl": loopProgram})

	c := config.DefaultConfig()
	c.Format = "yaml"
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, c.Save(path))

	out, err := run(t, "cfg", "loop.wl", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "name: loop")

	_, err = run(t, "cfg", "loop.wl", "--config", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestVerboseLogging(t *testing.T) {
	workspace(t, map[string]string{"loop.wl": loopProgram})

	resetFlags(RootCmd)
	t.Cleanup(func() { resetFlags(RootCmd) })
	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs([]string{"cfg", "loop.wl", "-v"})
	require.NoError(t, RootCmd.Execute())

	assert.Contains(t, errOut.String(), "built control flow graph")
}

func TestSaveInitConfig(t *testing.T) {
	dir := workspace(t, nil)

	c := config.DefaultConfig()
	c.Strategy = "worklist"
	c.Workers = 2
	path := filepath.Join(dir, ".glv", "config.yaml")

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, saveInitConfig(cmd, c, path))
	assert.Contains(t, out.String(), "Strategy: worklist")
	assert.Contains(t, out.String(), "Max passes: unlimited")

	loaded, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)

	c.Workers = 0
	assert.Error(t, saveInitConfig(cmd, c, path))
}

func TestIntValidators(t *testing.T) {
	assert.NoError(t, positiveInt("3"))
	assert.Error(t, positiveInt("0"))
	assert.Error(t, positiveInt("x"))
	assert.NoError(t, nonNegativeInt("0"))
	assert.Error(t, nonNegativeInt("-1"))
}

func TestBatchCommandChanged(t *testing.T) {
	dir := workspace(t, map[string]string{
		"a.wl": "a = 1;\nreturn a;\n",
		"b.wl": "b = 2;\nreturn b;\n",
	})

	out, err := run(t, "batch", "--changed")
	require.NoError(t, err)
	assert.Contains(t, out, "a.wl: 2 nodes")
	assert.Contains(t, out, "b.wl: 2 nodes")
	assert.Contains(t, out, "2 files, 0 failed, 0 from cache, 2 changed: a.wl, b.wl\n")

	out, err = run(t, "batch", "--changed")
	require.NoError(t, err)
	assert.NotContains(t, out, "a.wl:")
	assert.Contains(t, out, "2 files, 0 failed, 2 from cache, 0 changed\n")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.wl"), []byte("b = 3;\nc = b;\nreturn c;\n"), 0644))
	out, err = run(t, "batch", "--changed")
	require.NoError(t, err)
	assert.NotContains(t, out, "a.wl:")
	assert.Contains(t, out, "b.wl: 3 nodes")
	assert.Contains(t, out, "2 files, 0 failed, 1 from cache, 1 changed: b.wl\n")
}

func TestDoctorCommand(t *testing.T) {
	workspace(t, nil)

	out, err := run(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "Using config: built-in defaults")
	assert.Contains(t, out, "Config:")
	assert.Contains(t, out, "Status: ✓ ready")
	assert.Contains(t, out, "Cache:")

	require.NoError(t, config.DefaultConfig().Save(config.ProjectConfigFilePath()))
	out, err = run(t, "doctor")
	require.NoError(t, err)
	assert.Contains(t, out, "Using config: "+config.ProjectConfigFilePath()+" (project)")
}

func TestBatchSamplePrograms(t *testing.T) {
	root, err := filepath.Abs(filepath.Join("..", "..", "..", "testdata", "programs"))
	require.NoError(t, err)
	workspace(t, nil)

	out, err := run(t, "batch", root, "--no-cache", "--strategy", "worklist")
	require.NoError(t, err)
	assert.Contains(t, out, "6 files, 0 failed, 0 from cache")
	assert.Contains(t, out, "scenario_a.wl: 1 nodes, 0 edges, 1 variables")
	assert.Contains(t, out, "scenario_e.wl: 6 nodes, 6 edges, 3 variables")
	assert.Contains(t, out, "longest live range c (6 edges)")
	assert.NoFileExists(t, filepath.Join(".glv", "cache", cache.FileName))
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (stand-in for testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
