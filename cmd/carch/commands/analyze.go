package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/carch/internal/config"
	"github.com/l3aro/carch/internal/log"
	"github.com/l3aro/carch/internal/scanner"
	"github.com/l3aro/carch/pkg/analyzer"
	"github.com/l3aro/carch/pkg/cache"
	"github.com/l3aro/carch/pkg/fact"
	"github.com/l3aro/carch/pkg/heap"
	"github.com/l3aro/carch/pkg/partition"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Run the full analysis and export the result document",
	Long: `Analyzes the C sources under the given path (a directory or a single
file), runs heap-provenance classification and module partitioning, and
writes the result document as JSON.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		a, err := runAnalysis(path, cfg, cmd)
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = cfg.Output
		}
		if err := a.Export(output); err != nil {
			return fmt.Errorf("exporting analysis: %w", err)
		}

		printSummary(a, output)
		return nil
	},
}

// runAnalysis scans path, ingests every C source through the fact cache,
// and runs the remaining phases. Shared by the reporting commands.
func runAnalysis(path string, cfg *config.Config, cmd *cobra.Command) (*analyzer.Analysis, error) {
	opts, err := analysisOptions(cfg, cmd)
	if err != nil {
		return nil, err
	}
	a, err := analyzer.New(opts)
	if err != nil {
		return nil, err
	}

	files, err := collectSources(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no C sources found under %s", path)
	}

	noCache, _ := cmd.Flags().GetBool("no-cache")
	useCache := cfg.CacheEnabled && !noCache

	facts := cache.New(cfg.CacheMaxEntries)
	if useCache {
		if err := facts.LoadFile(cfg.CachePath); err != nil {
			log.Default().Warn("ignoring unreadable fact cache", "path", cfg.CachePath, "error", err)
		}
	}

	spinner := log.NewProgressSpinner(fmt.Sprintf("Analyzing %d files...", len(files)))
	spinner.Start()
	for _, file := range files {
		if err := ingestThroughCache(a, facts, file, useCache); err != nil {
			spinner.Stop()
			return nil, err
		}
	}
	spinner.Stop()

	a.Finish()

	if useCache {
		if dir := filepath.Dir(cfg.CachePath); dir != "." {
			os.MkdirAll(dir, 0755)
		}
		if err := facts.SaveFile(cfg.CachePath); err != nil {
			log.Default().Warn("failed to persist fact cache", "path", cfg.CachePath, "error", err)
		}
	}
	return a, nil
}

// ingestThroughCache feeds one file's facts into the analysis, extracting
// only on a cache miss. Unreadable or unparsable files are skipped the same
// way the analyzer skips them.
func ingestThroughCache(a *analyzer.Analysis, facts *cache.FactCache, path string, useCache bool) error {
	if !useCache {
		return a.IngestFile(path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return a.IngestFile(path) // records the skip issue
	}
	key := cache.Key(content)
	if cached, ok := facts.Get(key); ok {
		return a.IngestFacts(cached)
	}

	extracted, err := fact.NewCAdapterFromBytes(path, content).Facts()
	if err != nil {
		return a.IngestFile(path)
	}
	facts.Set(key, path, extracted)
	return a.IngestFacts(extracted)
}

// analysisOptions translates the config into analyzer options.
func analysisOptions(cfg *config.Config, cmd *cobra.Command) (analyzer.Options, error) {
	opts := analyzer.DefaultOptions()

	algo := cfg.Algorithm
	if v, _ := cmd.Flags().GetString("algorithm"); v != "" {
		algo = v
	}
	switch algo {
	case "community":
		opts.Algorithm = partition.AlgorithmCommunity
	case "components":
		opts.Algorithm = partition.AlgorithmComponents
	default:
		return opts, fmt.Errorf("unknown algorithm: %s (use 'community' or 'components')", algo)
	}

	if len(cfg.HeapAllocators) > 0 || len(cfg.HeapPatterns) > 0 {
		opts.HeapPolicy = heap.NewPolicy(cfg.HeapAllocators, cfg.HeapPatterns)
	}
	opts.AggregateHeuristic = cfg.AggregateHeuristic

	rulesFile := cfg.RulesFile
	if v, _ := cmd.Flags().GetString("rules"); v != "" {
		rulesFile = v
	}
	if rulesFile != "" {
		rules, err := partition.LoadRules(rulesFile)
		if err != nil {
			return opts, err
		}
		opts.Rules = rules
	}
	return opts, nil
}

// collectSources resolves a path argument to the list of C files to analyze.
func collectSources(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".c" && ext != ".h" {
			return nil, fmt.Errorf("%s is not a C source file", path)
		}
		return []string{path}, nil
	}

	found, err := scanner.Scan(path)
	if err != nil {
		return nil, fmt.Errorf("scanning directory: %w", err)
	}
	paths := make([]string, 0, len(found))
	for _, f := range found {
		paths = append(paths, f.FullPath)
	}
	return paths, nil
}

func printSummary(a *analyzer.Analysis, output string) {
	fmt.Printf("=== Analysis Summary ===\n\n")
	fmt.Printf("Files analyzed: %d\n", len(a.Files))
	fmt.Printf("Functions: %d\n", len(a.Symbols.Functions()))
	fmt.Printf("Variables: %d\n", len(a.Symbols.Variables()))
	fmt.Printf("Call edges: %d\n", len(a.Graph.CallEdges()))
	fmt.Printf("Data-flow edges: %d\n", len(a.Graph.FlowEdges()))
	fmt.Printf("Heap variables: %d\n", len(a.Symbols.HeapVariables()))
	fmt.Printf("Modules: %d", len(a.Partition.Modules))
	if a.Partition.FellBack {
		fmt.Print(" (connected-components fallback)")
	}
	fmt.Println()

	if len(a.Issues) > 0 {
		fmt.Printf("\nIssues (%d):\n", len(a.Issues))
		for _, issue := range a.Issues {
			if issue.Location != "" {
				fmt.Printf("  [%s] %s (%s)\n", issue.Kind, issue.Message, issue.Location)
			} else {
				fmt.Printf("  [%s] %s\n", issue.Kind, issue.Message)
			}
		}
	}

	fmt.Printf("\nDocument written to %s\n", output)
}

func init() {
	analyzeCmd.Flags().StringP("output", "o", "", "Output path for the analysis document")
	analyzeCmd.Flags().String("algorithm", "", "Partitioning algorithm (community or components)")
	analyzeCmd.Flags().String("rules", "", "Business-module classifier rules YAML")
	analyzeCmd.Flags().Bool("no-cache", false, "Bypass the fact cache")
}
