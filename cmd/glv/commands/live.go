package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-liveness/internal/config"
	"github.com/l3aro/go-liveness/pkg/render"
)

// liveCmd represents the live command
var liveCmd = &cobra.Command{
	Use:   "live <file>",
	Short: "Run liveness analysis on a program",
	Long: `Builds the control flow graph of a program and computes the variables
live on entry to and exit from every node. Structured formats (json, yaml)
are served from the report cache when the program and settings are unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := analysisConfig(cmd)
		if err != nil {
			return err
		}
		value, _ := cmd.Flags().GetString("format")
		format, err := formatFlag(value, cmd.Flags().Changed("format"))
		if err != nil {
			return err
		}

		path := args[0]
		src, err := readSource(path)
		if err != nil {
			return err
		}
		name := programName(path)
		out := cmd.OutOrStdout()

		if format == render.FormatJSON || format == render.FormatYAML {
			rc, err := openCache()
			if err != nil {
				return err
			}
			r, cached, err := analyzeSource(name, src, c, rc)
			if err != nil {
				return err
			}
			logger.Debug("liveness report", "file", path, "cached", cached)
			if err := rc.Flush(); err != nil {
				logger.Warn("saving cache failed", "error", err)
			}
			if format == render.FormatJSON {
				return render.JSON(out, r)
			}
			return render.YAML(out, r)
		}

		g, err := buildSource(path, src)
		if err != nil {
			return err
		}
		stats, err := analyze(g, c)
		if err != nil {
			return err
		}
		if err := render.Table(out, g); err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "converged after %d iterations (%d node visits, %s order, %s)\n",
			stats.Iterations, stats.Visits, stats.Order, stats.Strategy)
		return err
	},
}

// analysisConfig copies the loaded config and applies the analysis flags of cmd.
func analysisConfig(cmd *cobra.Command) (*config.Config, error) {
	c := *conf
	flags := cmd.Flags()
	if flags.Changed("order") {
		c.Order, _ = flags.GetString("order")
	}
	if flags.Changed("strategy") {
		c.Strategy, _ = flags.GetString("strategy")
	}
	if flags.Changed("max-iterations") {
		c.MaxIterations, _ = flags.GetInt("max-iterations")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().String("order", "reverse", "Node visiting order (reverse or forward)")
	cmd.Flags().String("strategy", "round-robin", "Iteration strategy (round-robin or worklist)")
	cmd.Flags().Int("max-iterations", 0, "Give up after this many passes (0 means no limit)")
}

func init() {
	addAnalysisFlags(liveCmd)
	liveCmd.Flags().StringP("format", "f", "text", "Output format (text, table, json or yaml)")
	RootCmd.AddCommand(liveCmd)
}
