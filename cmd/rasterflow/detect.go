package main

import (
	"fmt"
	"os"

	"github.com/rasterlabs/rasterflow/internal/imaging"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Identify an image file's container format from its header",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(_ *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	format, err := imaging.Detect(data)
	if err != nil {
		return fmt.Errorf("detect %s: %w", args[0], err)
	}

	fmt.Println(format)
	return nil
}
