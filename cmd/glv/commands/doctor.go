package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-liveness/internal/config"
	"github.com/l3aro/go-liveness/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on configuration, cache and Graphviz",
	Long: `Checks which configuration file is in effect and that it is valid,
that the report cache can be read, and whether Graphviz is available to
render the output of glv dot.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := healthcheck.Check(conf, effectiveConfigPath())
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(cmd.OutOrStdout(), result)

		if !result.Healthy() {
			return fmt.Errorf("health check failed: one or more components are broken")
		}
		return nil
	},
}

// effectiveConfigPath returns the config file that Load would give the last
// word to, or "" when only defaults and environment apply.
func effectiveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if fileExists(config.ProjectConfigFilePath()) {
		return config.ProjectConfigFilePath()
	}
	if fileExists(config.GlobalConfigFilePath()) {
		return config.GlobalConfigFilePath()
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func displayDoctorResult(w io.Writer, result *healthcheck.HealthCheckResult) {
	if result.EffectivePath == "" {
		fmt.Fprintln(w, "Using config: built-in defaults (run 'glv init' to create a config file)")
	} else {
		fmt.Fprintf(w, "Using config: %s (%s)\n", result.EffectivePath, result.EffectiveScope)
	}

	for _, c := range result.Components() {
		fmt.Fprintf(w, "\n%s:\n", c.Name)
		if c.Detail != "" {
			fmt.Fprintf(w, "  %s\n", c.Detail)
		}
		fmt.Fprintf(w, "  Status: %s %s\n", formatStatusIcon(c.Status), c.Status)
		if c.Error != "" {
			fmt.Fprintf(w, "  Note: %s\n", c.Error)
		}
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case healthcheck.StatusReady:
		return "✓"
	case healthcheck.StatusMissing:
		return "◐"
	case healthcheck.StatusError:
		return "✗"
	default:
		return "?"
	}
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}
