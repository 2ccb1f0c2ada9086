package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/carch/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file interactively",
	Long: `Guides you through setting up carch configuration step by step and
writes a config file with the partitioning, heap-classification, and cache
settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	// Partitioning algorithm
	algorithm := cfg.Algorithm
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Module partitioning").
				Description("How should functions be clustered into modules?").
				Options(
					huh.NewOption("Community detection (Louvain)", "community"),
					huh.NewOption("Connected components", "components"),
				).
				Value(&algorithm),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.Algorithm = algorithm

	// Heap classification
	aggregate := cfg.AggregateHeuristic
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Aggregate heap heuristic").
				Description("Also mark pointer members of heap-allocated structs as heap?").
				Affirmative("Enable").
				Negative("Disable").
				Value(&aggregate),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.AggregateHeuristic = aggregate

	// Business-module rules
	rulesFile := ""
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Classifier rules file (optional, press Enter to skip)").
				Description("YAML file mapping function name patterns to business modules").
				Placeholder("rules.yaml").
				Value(&rulesFile),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.RulesFile = rulesFile

	// Output path
	output := cfg.Output
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Default output path").
				Placeholder(cfg.Output).
				Value(&output),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	if output != "" {
		cfg.Output = output
	}

	// Fact cache
	cacheEnabled := cfg.CacheEnabled
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Fact cache").
				Description("Cache extracted facts keyed by file content hash?").
				Affirmative("Enable").
				Negative("Disable").
				Value(&cacheEnabled),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.CacheEnabled = cacheEnabled

	// Config location
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.carch/config.yaml)", "global"),
					huh.NewOption("Project (./.carch/config.yaml)", "project"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	var configPath string
	if saveLocationChoice == "global" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		configPath = filepath.Join(home, ".carch", "config.yaml")
	} else {
		configPath = ".carch/config.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Algorithm: %s\n", cfg.Algorithm)
	fmt.Printf("Aggregate heuristic: %v\n", cfg.AggregateHeuristic)
	if cfg.RulesFile != "" {
		fmt.Printf("Rules file: %s\n", cfg.RulesFile)
	}
	fmt.Printf("Output: %s\n", cfg.Output)
	fmt.Printf("Fact cache: %v\n", cfg.CacheEnabled)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)
	return nil
}

func init() {
	RootCmd.AddCommand(initCmd)
}
