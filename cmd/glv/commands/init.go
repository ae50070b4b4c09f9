package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-liveness/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create glv configuration interactively",
	Long: `Guides you through setting up glv configuration step by step:
analysis order and strategy, output format and batch parallelism.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd)
	},
}

func runInit(cmd *cobra.Command) error {
	c := config.DefaultConfig()
	workers := strconv.Itoa(c.Workers)
	maxIterations := strconv.Itoa(c.MaxIterations)

	// === SECTION 1: Analysis ===
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Visiting order").
				Description("Order in which nodes are revisited during each pass").
				Options(
					huh.NewOption("Reverse (fewest passes for liveness)", "reverse"),
					huh.NewOption("Forward", "forward"),
				).
				Value(&c.Order),
			huh.NewSelect[string]().
				Title("Iteration strategy").
				Options(
					huh.NewOption("Round robin", "round-robin"),
					huh.NewOption("Worklist", "worklist"),
				).
				Value(&c.Strategy),
			huh.NewInput().
				Title("Maximum passes (0 for no limit)").
				Placeholder("0").
				Validate(nonNegativeInt).
				Value(&maxIterations),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 2: Output ===
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default output format").
				Options(
					huh.NewOption("Text listing", "text"),
					huh.NewOption("Table", "table"),
					huh.NewOption("JSON", "json"),
					huh.NewOption("YAML", "yaml"),
				).
				Value(&c.Format),
			huh.NewConfirm().
				Title("Label DOT edges with live variables?").
				Affirmative("Yes").
				Negative("No").
				Value(&c.ShowLive),
			huh.NewInput().
				Title("Files analyzed in parallel by batch").
				Placeholder("4").
				Validate(positiveInt).
				Value(&workers),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	c.Workers, _ = strconv.Atoi(workers)
	c.MaxIterations, _ = strconv.Atoi(maxIterations)

	// === SECTION 3: Config Location ===
	var location string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Project (./.glv/config.yaml)", "project"),
					huh.NewOption("Global (~/.glv/config.yaml)", "global"),
				).
				Value(&location),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	path := config.ProjectConfigFilePath()
	if location == "global" {
		path = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(path); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", path)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	return saveInitConfig(cmd, c, path)
}

// saveInitConfig validates c, shows a preview and writes it to path.
func saveInitConfig(cmd *cobra.Command, c *config.Config, path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n=== Configuration Preview ===")
	fmt.Fprintf(out, "Config path: %s\n", path)
	fmt.Fprintf(out, "Order: %s\n", c.Order)
	fmt.Fprintf(out, "Strategy: %s\n", c.Strategy)
	if c.MaxIterations > 0 {
		fmt.Fprintf(out, "Max passes: %d\n", c.MaxIterations)
	} else {
		fmt.Fprintln(out, "Max passes: unlimited")
	}
	fmt.Fprintf(out, "Format: %s\n", c.Format)
	fmt.Fprintf(out, "Show live edges: %v\n", c.ShowLive)
	fmt.Fprintf(out, "Workers: %d\n", c.Workers)
	fmt.Fprintln(out, "================================")

	if err := c.Save(path); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(out, "Configuration saved to: %s\n", path)
	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func nonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("enter zero or a positive number")
	}
	return nil
}

func init() {
	RootCmd.AddCommand(initCmd)
}
