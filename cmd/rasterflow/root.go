package main

import (
	"fmt"
	"runtime"

	"github.com/rasterlabs/rasterflow/internal/imaging"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "rasterflow",
	Short: "Convert raster images between PNG, JPEG, WebP, GIF, and BMP",
	Long: `rasterflow — inspect and convert raster images from the command line.

Detects the container format from file headers, probes dimensions
without a full decode, and re-encodes between the supported formats
(WebP is decode-only).`,
	Version: version,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return imaging.Startup()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		imaging.Shutdown()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"rasterflow %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}
