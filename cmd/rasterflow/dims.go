package main

import (
	"fmt"
	"os"

	"github.com/rasterlabs/rasterflow/internal/imaging"
	"github.com/spf13/cobra"
)

var dimsCmd = &cobra.Command{
	Use:   "dims <file>",
	Short: "Print an image's width and height without decoding pixels",
	Args:  cobra.ExactArgs(1),
	RunE:  runDims,
}

func init() {
	rootCmd.AddCommand(dimsCmd)
}

func runDims(_ *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	dims, err := imaging.GetDimensions(data)
	if err != nil {
		return fmt.Errorf("probe %s: %w", args[0], err)
	}

	fmt.Printf("%dx%d\n", dims.Width, dims.Height)
	return nil
}
