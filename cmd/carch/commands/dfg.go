package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/carch/pkg/graph"
)

// dfgCmd represents the dfg command
var dfgCmd = &cobra.Command{
	Use:   "dfg [path]",
	Short: "Show the data-flow graph",
	Long: `Analyzes the C sources under the given path and prints the typed
data-flow graph. Edge kinds: parameter, argument, assignment, return,
heap_reference.`,
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

		kind, _ := cmd.Flags().GetString("kind")
		var edges []graph.FlowEdge
		if kind != "" {
			edges = a.Graph.FlowEdgesOfKind(graph.EdgeKind(kind))
		} else {
			edges = a.Graph.FlowEdges()
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, err := json.MarshalIndent(edges, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("=== Data-Flow Graph ===\n\n")
		fmt.Printf("Edges: %d\n\n", len(edges))
		for _, e := range edges {
			if e.Location != "" {
				fmt.Printf("  %s -[%s]-> %s (%s)\n", e.Source, e.Kind, e.Target, e.Location)
			} else {
				fmt.Printf("  %s -[%s]-> %s\n", e.Source, e.Kind, e.Target)
			}
		}
		return nil
	},
}

func init() {
	dfgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	dfgCmd.Flags().String("kind", "", "Filter edges by kind")
	dfgCmd.Flags().String("algorithm", "", "Partitioning algorithm (community or components)")
	dfgCmd.Flags().String("rules", "", "Business-module classifier rules YAML")
	dfgCmd.Flags().Bool("no-cache", false, "Bypass the fact cache")
}
