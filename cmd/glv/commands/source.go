package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-liveness/internal/config"
	"github.com/l3aro/go-liveness/pkg/cache"
	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/l3aro/go-liveness/pkg/parser"
	"github.com/l3aro/go-liveness/pkg/render"
)

// readSource returns the contents of a program file.
func readSource(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory, expected a file: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// buildSource parses src and builds its control flow graph.
func buildSource(name, src string) (*cfg.ControlFlowGraph, error) {
	prog, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	b := cfg.NewBuilder()
	b.SetLogger(logger)
	g, err := b.Build(prog)
	if err != nil {
		return nil, fmt.Errorf("%s: building graph: %w", name, err)
	}
	return g, nil
}

// buildFile reads, parses and builds the program at path.
func buildFile(path string) (*cfg.ControlFlowGraph, error) {
	src, err := readSource(path)
	if err != nil {
		return nil, err
	}
	return buildSource(path, src)
}

// programName is the file name without its extension.
func programName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// analyze runs liveness on g with the analysis settings in c.
func analyze(g *cfg.ControlFlowGraph, c *config.Config) (cfg.Stats, error) {
	opts := append(c.AnalyzeOptions(), cfg.WithLogger(logger))
	stats, err := g.Analyze(opts...)
	if err != nil {
		return stats, fmt.Errorf("analyzing: %w", err)
	}
	return stats, nil
}

// cacheKey identifies the report for src under the analysis settings in c.
func cacheKey(src string, c *config.Config) cache.Key {
	order, _ := cfg.ParseOrder(c.Order)
	strategy, _ := cfg.ParseStrategy(c.Strategy)
	return cache.Key{
		Source:        src,
		Order:         order,
		Strategy:      strategy,
		MaxIterations: c.MaxIterations,
	}
}

// analyzeSource returns the liveness report for src, consulting rc first.
// The second result reports whether the report came from the cache.
func analyzeSource(name, src string, c *config.Config, rc *cache.ReportCache) (*render.Report, bool, error) {
	key := cacheKey(src, c)
	if rc != nil {
		r, err := rc.Get(key)
		if err == nil {
			r.Name = name
			return r, true, nil
		}
		if !errors.Is(err, cache.ErrKeyNotFound) {
			logger.Warn("cache lookup failed", "file", name, "error", err)
		}
	}

	g, err := buildSource(name, src)
	if err != nil {
		return nil, false, err
	}
	stats, err := analyze(g, c)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", name, err)
	}

	r := render.NewReport(name, g, &stats)
	if rc != nil {
		if err := rc.Put(key, r); err != nil {
			logger.Warn("cache store failed", "file", name, "error", err)
		}
	}
	return r, false, nil
}

// writeGraph renders the unanalyzed graph g in the given format.
func writeGraph(w io.Writer, format render.Format, name string, g *cfg.ControlFlowGraph) error {
	switch format {
	case render.FormatTable:
		return render.Table(w, g)
	case render.FormatJSON:
		return render.JSON(w, render.NewReport(name, g, nil))
	case render.FormatYAML:
		return render.YAML(w, render.NewReport(name, g, nil))
	default:
		return render.Listing(w, g)
	}
}

// formatFlag resolves the --format flag against the configured default.
func formatFlag(value string, changed bool) (render.Format, error) {
	if !changed {
		value = conf.Format
	}
	return render.ParseFormat(value)
}
