package main

import (
	"github.com/spf13/cobra"

	"github.com/philipparndt/canalview/internal/ui"
)

var guiCmd = &cobra.Command{
	Use:   "gui [right.stl left.stl]",
	Short: "Open the desktop window",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runGUI,
}

func init() {
	rootCmd.AddCommand(guiCmd)
}

func runGUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var rightPath, leftPath string
	if len(args) > 0 {
		rightPath = args[0]
	}
	if len(args) > 1 {
		leftPath = args[1]
	}
	return ui.Run(cfg, rightPath, leftPath)
}
