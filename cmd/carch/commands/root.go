package commands

import (
	"github.com/spf13/cobra"

	"github.com/l3aro/carch/internal/config"
	"github.com/l3aro/carch/internal/log"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "carch",
	Short: "carch - C program architecture analysis",
	Long: `carch analyzes C source trees and recovers their architecture:
a function call graph, a typed data-flow graph, heap-provenance
classification of variables, and a partitioning of functions into modules
with dependency edges and complexity metrics.

Commands:
  analyze     Run the full analysis and export the result document
  callgraph   Show the function call graph
  dfg         Show the data-flow graph
  heap        Show heap-classified variables
  modules     Partition functions into modules
  init        Create a configuration file interactively

Use "carch [command] --help" for more information about a command.`,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: .carch/config.yaml)")

	RootCmd.AddCommand(analyzeCmd)
	RootCmd.AddCommand(callgraphCmd)
	RootCmd.AddCommand(dfgCmd)
	RootCmd.AddCommand(heapCmd)
	RootCmd.AddCommand(modulesCmd)
}

// loadConfig resolves the effective configuration for a command invocation.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Verbose = true
	}
	if cfg.Verbose {
		log.Default().SetLevel(log.DebugLevel)
	}
	return cfg, nil
}
