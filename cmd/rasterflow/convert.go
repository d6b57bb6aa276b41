package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rasterlabs/rasterflow/internal/imaging"
	"github.com/spf13/cobra"
)

var (
	convertTo      string
	convertOut     string
	convertQuality int
)

var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Re-encode an image into another container format",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertTo, "to", "", "target format: png, jpeg, gif, or bmp")
	convertCmd.Flags().StringVarP(&convertOut, "out", "o", "", "output path (default: input path with the target extension)")
	convertCmd.Flags().IntVar(&convertQuality, "quality", 0, "JPEG quality 1-100 (0 uses the encoder default)")
	_ = convertCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(_ *cobra.Command, args []string) error {
	inputPath := args[0]

	target, err := imaging.ParseFormat(convertTo)
	if err != nil {
		return err
	}
	if convertQuality < 0 || convertQuality > 100 {
		return fmt.Errorf("quality must be between 1 and 100")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", inputPath, err)
	}

	out, err := imaging.ConvertWith(data, target, imaging.EncodeOptions{Quality: convertQuality})
	if err != nil {
		return fmt.Errorf("convert %s: %w", inputPath, err)
	}

	outputPath := convertOut
	if outputPath == "" {
		outputPath = replaceExtension(inputPath, target.String())
	}
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}

	fmt.Printf("%s → %s (%d bytes)\n", inputPath, outputPath, len(out))
	return nil
}

func replaceExtension(path, ext string) string {
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexByte(path, '/') {
		return path[:i+1] + ext
	}
	return path + "." + ext
}
