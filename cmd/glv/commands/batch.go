package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-liveness/internal/config"
	"github.com/l3aro/go-liveness/internal/log"
	"github.com/l3aro/go-liveness/internal/scanner"
	"github.com/l3aro/go-liveness/pkg/cache"
	"github.com/l3aro/go-liveness/pkg/dirty"
	"github.com/l3aro/go-liveness/pkg/render"
)

// BatchResult is the outcome of analyzing one file.
type BatchResult struct {
	Path   string
	Report *render.Report
	Cached bool
	Err    error
}

var batchCmd = &cobra.Command{
	Use:   "batch [dir]",
	Short: "Analyze every program under a directory",
	Long: `Scans a directory for program files (respecting .glvignore), analyzes
them in parallel and prints one summary line per file. Reports are cached
so unchanged programs are not analyzed again. With --changed only programs
whose content changed since the previous --changed run are listed.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}

		c, err := analysisConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("workers") {
			c.Workers, _ = cmd.Flags().GetInt("workers")
			if c.Workers <= 0 {
				return fmt.Errorf("workers must be positive")
			}
		}

		opts := scanner.DefaultOptions()
		opts.Extension = c.Extension
		files, err := scanner.New(opts).Scan(root)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", root, err)
		}
		if len(files) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no %s files found under %s\n", c.Extension, root)
			return nil
		}

		var total int64
		for _, f := range files {
			total += f.Size
		}
		logger.Info("analyzing programs", "files", len(files), "bytes", humanize.Bytes(uint64(total)), "workers", c.Workers)

		rc, err := openCache()
		if err != nil {
			return err
		}

		onlyChanged, _ := cmd.Flags().GetBool("changed")
		var tracker *dirty.Tracker
		if onlyChanged {
			tracker, err = dirty.Open(c.CacheDir)
			if err != nil {
				return fmt.Errorf("loading change tracker: %w", err)
			}
		}

		var spinner *log.ProgressSpinner
		if log.IsTTY() {
			spinner = log.NewProgressSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Analyzing %d files...", len(files)))
			spinner.Start()
		}
		results, err := runBatch(cmd.Context(), files, c, rc, tracker, func(done int) {
			if spinner != nil {
				spinner.Message(fmt.Sprintf("Analyzed %d/%d files...", done, len(files)))
			}
		})
		if spinner != nil {
			spinner.Stop()
		}
		if err != nil {
			return err
		}

		if err := rc.Flush(); err != nil {
			logger.Warn("saving cache failed", "error", err)
		}
		stats := rc.Stats()
		logger.Info("cache usage", "hits", stats.HitCount, "misses", stats.MissCount, "hit_rate", fmt.Sprintf("%.0f%%", stats.HitRate()*100))

		if tracker == nil {
			return printBatch(cmd.OutOrStdout(), results, nil)
		}

		seen := make([]string, len(files))
		for i, f := range files {
			seen[i] = f.Path
		}
		if removed := tracker.Prune(seen); len(removed) > 0 {
			logger.Info("programs removed since last run", "files", removed)
		}
		logger.Info("changed programs", "changed", tracker.Count(), "tracked", tracker.TotalCount())

		printErr := printBatch(cmd.OutOrStdout(), results, tracker)
		tracker.ClearDirty()
		if err := tracker.Save(); err != nil {
			logger.Warn("saving change tracker failed", "error", err)
		}
		return printErr
	},
}

// runBatch analyzes files with at most c.Workers running at once. Results keep
// the order of files; per-file failures are recorded, not returned. tracker
// may be nil.
func runBatch(ctx context.Context, files []scanner.FileInfo, c *config.Config, rc *cache.ReportCache, tracker *dirty.Tracker, progress func(done int)) ([]BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]BatchResult, len(files))
	var done atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Workers)
	for i, f := range files {
		i, f := i, f // per-iteration copies (module targets go 1.21)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := BatchResult{Path: f.Path}
			src, err := readSource(f.FullPath)
			if err == nil {
				name := filepath.ToSlash(f.Path)
				res.Report, res.Cached, err = analyzeSource(name, src, c, rc)
			}
			res.Err = err
			if tracker != nil {
				if err == nil {
					tracker.Check(f.Path, src)
				} else {
					// Failed programs are reported again on the next run.
					tracker.Remove(f.Path)
				}
			}
			results[i] = res

			n := done.Add(1)
			if progress != nil {
				progress(int(n))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// printBatch writes one summary line per result. With a tracker only the
// programs it marks dirty are listed, followed by the changed paths.
func printBatch(w io.Writer, results []BatchResult, tracker *dirty.Tracker) error {
	failed, cached := 0, 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "error: %v\n", r.Err)
			continue
		}
		if r.Cached {
			cached++
		}
		if tracker != nil && !tracker.IsDirty(r.Path) {
			continue
		}
		fmt.Fprintln(w, r.Report.Summary())
	}
	fmt.Fprintf(w, "\n%d files, %d failed, %d from cache", len(results), failed, cached)
	if tracker != nil {
		fmt.Fprintf(w, ", %d changed", tracker.Count())
		if changed := tracker.Dirty(); len(changed) > 0 {
			fmt.Fprintf(w, ": %s", strings.Join(changed, ", "))
		}
	}
	fmt.Fprintln(w)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func init() {
	addAnalysisFlags(batchCmd)
	batchCmd.Flags().IntP("workers", "w", 4, "Number of files analyzed in parallel")
	batchCmd.Flags().Bool("changed", false, "Only list programs changed since the previous --changed run")
	RootCmd.AddCommand(batchCmd)
}
