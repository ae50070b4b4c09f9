package commands

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-liveness/pkg/parser"
	"github.com/l3aro/go-liveness/pkg/render"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt <file>",
	Short: "Print a program in canonical layout",
	Long: `Parses a program and prints it back with two-space indentation, one
statement per line and comments removed. With --write the file is rewritten
in place when its layout differs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		src, err := readSource(path)
		if err != nil {
			return err
		}
		prog, err := parser.Parse(src)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		var buf bytes.Buffer
		if err := render.Program(&buf, prog); err != nil {
			return err
		}

		write, _ := cmd.Flags().GetBool("write")
		if !write {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		if buf.String() == src {
			logger.Debug("already formatted", "file", path)
			return nil
		}
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		logger.Info("formatted", "file", path)
		return nil
	},
}

func init() {
	fmtCmd.Flags().BoolP("write", "w", false, "Rewrite the file instead of printing it")
	RootCmd.AddCommand(fmtCmd)
}
