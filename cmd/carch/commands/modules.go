package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// modulesCmd represents the modules command
var modulesCmd = &cobra.Command{
	Use:   "modules [path]",
	Short: "Partition functions into modules",
	Long: `Analyzes the C sources under the given path and clusters the call
graph into modules, printing each module's members, complexity metrics, and
the inter-module dependency edges.`,
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

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, err := json.MarshalIndent(a.Partition, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("=== Modules (%s", a.Partition.Algorithm)
		if a.Partition.FellBack {
			fmt.Print(", fell back to components")
		}
		fmt.Printf(") ===\n\n")

		for _, m := range a.Partition.Modules {
			fmt.Printf("%s (%d functions)\n", m.Name, m.Metrics.NodeCount)
			fmt.Printf("  members: %s\n", strings.Join(m.Members, ", "))
			fmt.Printf("  edges: %d internal, %d external\n",
				m.Metrics.InternalEdges, m.Metrics.ExternalEdges)
			if m.Metrics.GlobalVars > 0 || m.Metrics.HeapVars > 0 {
				fmt.Printf("  variables: %d global, %d heap\n",
					m.Metrics.GlobalVars, m.Metrics.HeapVars)
			}
			fmt.Println()
		}

		if len(a.Partition.Dependencies) > 0 {
			fmt.Println("Dependencies:")
			for _, d := range a.Partition.Dependencies {
				fmt.Printf("  %s -> %s (%s)\n", d.Source, d.Target, d.Evidence)
			}
		}
		return nil
	},
}

func init() {
	modulesCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	modulesCmd.Flags().String("algorithm", "", "Partitioning algorithm (community or components)")
	modulesCmd.Flags().String("rules", "", "Business-module classifier rules YAML")
	modulesCmd.Flags().Bool("no-cache", false, "Bypass the fact cache")
}
