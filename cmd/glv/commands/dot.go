package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-liveness/pkg/render"
)

var dotCmd = &cobra.Command{
	Use:   "dot <file>",
	Short: "Write the control flow graph as Graphviz",
	Long: `Writes the control flow graph in DOT format. With --live the graph is
analyzed first and every edge is labelled with the variables live across it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		showLive := conf.ShowLive
		if flags.Changed("live") {
			showLive, _ = flags.GetBool("live")
		}
		output, _ := flags.GetString("output")

		c, err := analysisConfig(cmd)
		if err != nil {
			return err
		}
		g, err := buildFile(args[0])
		if err != nil {
			return err
		}
		if showLive {
			if _, err := analyze(g, c); err != nil {
				return err
			}
		}

		opts := render.DOTOptions{Name: programName(args[0]), ShowLive: showLive}
		if output == "" || output == "-" {
			return render.DOT(cmd.OutOrStdout(), g, opts)
		}

		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()

		if err := render.DOT(f, g, opts); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
		logger.Info("wrote graph", "file", output, "nodes", g.Len())
		return f.Close()
	},
}

func init() {
	addAnalysisFlags(dotCmd)
	dotCmd.Flags().Bool("live", false, "Label edges with live variables")
	dotCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	RootCmd.AddCommand(dotCmd)
}
