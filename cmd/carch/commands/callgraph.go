package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/carch/pkg/graph"
)

// CallGraphOutput represents the output of the callgraph command
type CallGraphOutput struct {
	Functions  []string         `json:"functions"`
	Edges      []graph.CallEdge `json:"edges"`
	TotalEdges int              `json:"total_edges"`
}

// callgraphCmd represents the callgraph command
var callgraphCmd = &cobra.Command{
	Use:   "callgraph [path]",
	Short: "Show the function call graph",
	Long: `Analyzes the C sources under the given path and prints the function
call graph: one node per defined function and one edge per call site.`,
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

		output := CallGraphOutput{
			Functions:  a.Graph.CallNodes(),
			Edges:      a.Graph.CallEdges(),
			TotalEdges: len(a.Graph.CallEdges()),
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("=== Call Graph ===\n\n")
		fmt.Printf("Functions: %d\n", len(output.Functions))
		fmt.Printf("Edges: %d\n\n", output.TotalEdges)
		for _, e := range output.Edges {
			if e.Location != "" {
				fmt.Printf("  %s -> %s (%s)\n", e.Caller, e.Callee, e.Location)
			} else {
				fmt.Printf("  %s -> %s\n", e.Caller, e.Callee)
			}
		}
		return nil
	},
}

func init() {
	callgraphCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	callgraphCmd.Flags().String("algorithm", "", "Partitioning algorithm (community or components)")
	callgraphCmd.Flags().String("rules", "", "Business-module classifier rules YAML")
	callgraphCmd.Flags().Bool("no-cache", false, "Bypass the fact cache")
}
