// Package commands provides the CLI commands for glv.
package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-liveness/internal/config"
	"github.com/l3aro/go-liveness/internal/log"
	"github.com/l3aro/go-liveness/pkg/cache"
)

var (
	configPath string
	verbose    bool
	jsonLogs   bool
	noCache    bool

	// Set by the root command before any subcommand runs.
	conf   = config.DefaultConfig()
	logger log.Logger = log.Nop()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "glv",
	Short: "glv - control flow graphs and liveness analysis for while-language programs",
	Long: `glv builds control flow graphs for programs written in a small imperative
language and computes which variables are live at every program point.

Commands:
  cfg     Print the control flow graph of a program
  fmt     Print a program in canonical layout
  live    Run liveness analysis on a program
  range   Show the live range of one variable
  dot     Write the control flow graph as Graphviz
  batch   Analyze every program under a directory
  init    Create a configuration file interactively
  cache   Inspect or clear the report cache
  doctor  Run health checks on configuration, cache and Graphviz

Use "glv [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cmd.Flags().Changed("verbose") {
			c.Verbose = verbose
		}
		if cmd.Flags().Changed("json-logs") {
			c.JSONLogs = jsonLogs
		}
		conf = c
		logger = newLogger(c, cmd.ErrOrStderr())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig reads path when given, otherwise the project and global files.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func newLogger(c *config.Config, w io.Writer) log.Logger {
	level := log.WarnLevel
	if c.Verbose {
		level = log.DebugLevel
	}
	return log.New(log.LoggerConfig{
		Level:      level,
		JSONOutput: c.JSONLogs,
		Output:     w,
		Colors:     !c.JSONLogs && log.IsTTY(),
	})
}

// openCache returns the configured report cache, or an in-memory one when
// caching is disabled.
func openCache() (*cache.ReportCache, error) {
	if noCache {
		return cache.NewReportCache(conf.CacheSize), nil
	}
	rc, err := cache.Open(conf.CacheDir, conf.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return rc, nil
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ./.glv/config.yaml, then ~/.glv/config.yaml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	RootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Write logs as JSON")
	RootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Do not read or write the report cache")
}
