// Command charon-encode seals a file, erasure-codes it, and renders it as a
// sequence of 2-D barcode video frames.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charonvid/charon/internal/buildinfo"
	"github.com/charonvid/charon/internal/bytesize"
	"github.com/charonvid/charon/internal/logger"
	"github.com/charonvid/charon/internal/pipeline"
	"github.com/charonvid/charon/pkg/codecerr"
	"github.com/spf13/cobra"
)

var (
	opts           pipeline.EncodeOptions
	chunkSizeFlag  string
	resolutionFlag string
	logLevel       string
	logFormat      string
)

// resolutionPresets maps the --resolution names the original tool accepts to
// pixel dimensions; explicit --width/--height always take precedence.
var resolutionPresets = map[string][2]int{
	"1080p": {1920, 1080},
	"720p":  {1280, 720},
	"4k":    {3840, 2160},
	"2160p": {3840, 2160},
}

var rootCmd = &cobra.Command{
	Use:   "charon-encode",
	Short: "Encode a file into a barcode video stream",
	Long: `charon-encode seals an arbitrary file with AES-256-GCM, wraps the
session key to a generated RSA keypair, optionally erasure-codes the result
with cross-chunk Reed-Solomon parity, and renders it as a sequence of 2-D
barcode frames muxed into a video file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&opts.InputPath, "input", "", "path to the file to encode (required)")
	flags.StringVar(&opts.OutputPath, "output", "out.mp4", "path to the encoded video file")
	flags.StringVar(&opts.ManifestPath, "manifest", "", "path to write the JSON side-channel manifest (optional)")
	flags.IntVar(&opts.Grid, "grid", 2, "barcode tiles per frame side (grid x grid tiles per frame)")
	flags.IntVar(&opts.FPS, "fps", 60, "output video frame rate")
	flags.StringVar(&resolutionFlag, "resolution", "1080p", "output resolution: 720p, 1080p, 2160p/4k (ignored if --width and --height are both set)")
	flags.IntVar(&opts.ResolutionW, "width", 0, "output frame width in pixels (overrides --resolution only together with --height)")
	flags.IntVar(&opts.ResolutionH, "height", 0, "output frame height in pixels (overrides --resolution only together with --width)")
	flags.BoolVar(&opts.EnableFEC, "enable-fec", true, "enable cross-chunk Reed-Solomon erasure coding")
	flags.Float64Var(&opts.FECRatio, "fec-ratio", 0.3, "parity/data ratio, clamped to [0.15, 0.35]")
	flags.StringVar(&opts.Passphrase, "passphrase", "", "passphrase for the payload session key derivation (required)")
	flags.IntVar(&opts.PrivkeyFrame, "privkey-frame", 0, "insertion position for the metadata and private-key frames, among the data frames")
	flags.StringVar(&opts.PrivkeyFramePass, "privkey-frame-pass", "", "password protecting the embedded private-key frame (required)")
	flags.BoolVar(&opts.Obfuscation, "obfuscation", false, "prepend a decoy rectangle frame")
	flags.StringVar(&opts.AuxFile, "aux-file", "", "auxiliary file seeding the obfuscation frame (defaults to --input)")
	flags.StringVar(&chunkSizeFlag, "chunk-size", "800", "chunk size before FEC encoding, accepts human-readable sizes like 800 or 1Ki; keep it small enough to fit a QR code's binary-mode capacity")
	flags.StringVar(&logLevel, "log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	flags.StringVar(&logFormat, "log-format", "text", "log format: text or json")

	// pubkey-hint is accepted for wire compatibility with the original
	// tooling's argument surface; charon-encode always generates a fresh
	// keypair, so the flag has no effect.
	flags.String("pubkey-hint", "", "unused; retained for CLI compatibility")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func run(cmd *cobra.Command, args []string) error {
	if err := logger.Init(logger.Config{Level: logLevel, Format: logFormat, Output: "stderr"}); err != nil {
		return fmt.Errorf("--log-level/--log-format: %w", err)
	}

	if opts.InputPath == "" || opts.Passphrase == "" || opts.PrivkeyFramePass == "" {
		return fmt.Errorf("--input, --passphrase, and --privkey-frame-pass are required")
	}

	chunkSize, err := bytesize.ParseByteSize(chunkSizeFlag)
	if err != nil {
		return fmt.Errorf("--chunk-size: %w", err)
	}
	opts.ChunkSize = int(chunkSize)

	if opts.ResolutionW == 0 || opts.ResolutionH == 0 {
		preset, ok := resolutionPresets[strings.ToLower(resolutionFlag)]
		if !ok {
			preset = resolutionPresets["1080p"]
		}
		opts.ResolutionW, opts.ResolutionH = preset[0], preset[1]
	}

	result, err := pipeline.Encode(context.Background(), opts)
	if err != nil {
		return err
	}

	logger.Info("encode complete",
		"original_size", bytesize.ByteSize(result.OriginalSize).String(),
		"file_sha256", result.FileSHA256,
		"frames", result.FrameCount,
		"original_chunks", result.OriginalChunks,
		"total_chunks", result.TotalChunks,
		"fec_overhead", result.FECOverhead,
	)
	return nil
}

func main() {
	rootCmd.Version = buildinfo.String()
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrf("Error: %v\n", err)
		if codecerr.IsDependency(err) {
			os.Exit(3)
		}
		os.Exit(2)
	}
}
