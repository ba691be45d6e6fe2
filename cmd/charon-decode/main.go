// Command charon-decode recovers a file from a barcode video stream
// produced by charon-encode.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charonvid/charon/internal/buildinfo"
	"github.com/charonvid/charon/internal/logger"
	"github.com/charonvid/charon/internal/pipeline"
	"github.com/charonvid/charon/pkg/codecerr"
	"github.com/spf13/cobra"
)

var (
	opts      pipeline.DecodeOptions
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "charon-decode",
	Short: "Decode a barcode video stream back into its original file",
	Long: `charon-decode extracts frames from a video produced by
charon-encode, reads the 2-D barcode tiles in each frame, reconstructs any
missing erasure-coded blocks, unseals the embedded private key, and unseals
the original payload.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&opts.VideoPath, "video", "", "path to the encoded video file (required)")
	flags.StringVar(&opts.OutputPath, "output", "recovered.bin", "path to write the decoded file")
	flags.StringVar(&opts.ManifestPath, "manifest", "", "path to the JSON side-channel manifest (optional)")
	flags.StringVar(&opts.PrivkeyFramePass, "privkey-frame-password", "", "password protecting the embedded private-key frame (required)")
	flags.IntVar(&opts.Grid, "grid", 2, "barcode tiles per frame side; used only without --manifest")
	flags.BoolVar(&opts.Obfuscation, "obfuscation", false, "whether a decoy frame was prepended; used only without --manifest")
	flags.BoolVar(&opts.ObfuscationCheck, "obfuscation-check", false, "compute and log the decoy frame's expected seed from --aux-file (the frame itself is not compared)")
	flags.StringVar(&opts.AuxFile, "aux-file", "", "auxiliary file the obfuscation frame was seeded from")
	flags.StringVar(&logLevel, "log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	flags.StringVar(&logFormat, "log-format", "text", "log format: text or json")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func run(cmd *cobra.Command, args []string) error {
	if err := logger.Init(logger.Config{Level: logLevel, Format: logFormat, Output: "stderr"}); err != nil {
		return fmt.Errorf("--log-level/--log-format: %w", err)
	}

	if opts.VideoPath == "" || opts.PrivkeyFramePass == "" {
		return fmt.Errorf("--video and --privkey-frame-password are required")
	}

	result, err := pipeline.Decode(context.Background(), opts)
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		"output_size", result.OutputSize,
		"file_sha256", result.FileSHA256,
		"sha256_verified", result.SHA256Verified,
		"blocks_recovered", result.BlocksRecovered,
		"blocks_total", result.BlocksTotal,
	)
	return nil
}

func main() {
	rootCmd.Version = buildinfo.String()
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrf("Error: %v\n", err)
		if codecerr.IsDependency(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
