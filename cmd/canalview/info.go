package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/philipparndt/canalview/internal/format"
	"github.com/philipparndt/canalview/pkg/analysis"
	"github.com/philipparndt/canalview/pkg/stl"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>...",
	Short: "Display local mesh statistics",
	Long: `Show dimensions, triangle count, surface area, enclosed volume and edge
statistics of one or more mesh files. Nothing is sent to the analysis service.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	for i, filename := range args {
		model, err := stl.Parse(filename)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", filename, err)
		}

		if i > 0 {
			fmt.Println()
		}
		fmt.Println("Mesh Information")
		fmt.Println("================")
		if model.Name != "" {
			fmt.Printf("Name: %s\n", model.Name)
		}
		fmt.Printf("File: %s\n\n", filename)

		result := analysis.AnalyzeModel(model)
		for _, row := range format.Rows(result.Fields(), analysis.InfoKeys) {
			fmt.Printf("  %-22s %s\n", row.Key, row.Value)
		}

		bounds := result.BoundingBox
		fmt.Println()
		fmt.Printf("  Min:    %s\n", analysis.FormatVector(bounds.Min))
		fmt.Printf("  Max:    %s\n", analysis.FormatVector(bounds.Max))
		fmt.Printf("  Center: %s\n", analysis.FormatVector(bounds.Center()))
	}
	return nil
}
