package commands

import (
	"github.com/spf13/cobra"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <file>",
	Short: "Print the control flow graph of a program",
	Long: `Parses a program and prints its control flow graph: one node per
assignment, return and loop or branch condition, with its successor
indices. The table format also lists predecessors, defs and uses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, _ := cmd.Flags().GetString("format")
		format, err := formatFlag(value, cmd.Flags().Changed("format"))
		if err != nil {
			return err
		}

		g, err := buildFile(args[0])
		if err != nil {
			return err
		}
		return writeGraph(cmd.OutOrStdout(), format, programName(args[0]), g)
	},
}

func init() {
	cfgCmd.Flags().StringP("format", "f", "text", "Output format (text, table, json or yaml)")
	RootCmd.AddCommand(cfgCmd)
}
