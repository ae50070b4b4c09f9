package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/go-liveness/pkg/render"
)

var rangeCmd = &cobra.Command{
	Use:   "range <file> <variable>",
	Short: "Show the live range of one variable",
	Long: `Prints every control flow edge across which the variable is live,
that is, the edges whose source has it live-out and whose target has it live-in.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := analysisConfig(cmd)
		if err != nil {
			return err
		}
		g, err := buildFile(args[0])
		if err != nil {
			return err
		}
		if _, err := analyze(g, c); err != nil {
			return err
		}

		name := args[1]
		if !contains(g.Variables(), name) {
			logger.Warn("variable does not occur in program", "variable", name)
		}
		return render.LiveRange(cmd.OutOrStdout(), name, g.LiveRange(name))
	},
}

func contains(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}

func init() {
	addAnalysisFlags(rangeCmd)
	RootCmd.AddCommand(rangeCmd)
}
