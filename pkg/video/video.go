// Package video is the thin boundary between the codec pipeline and the
// external ffmpeg binary used to mux a PNG frame sequence into a video
// container, and to extract frames back out of one.
package video

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/charonvid/charon/pkg/codecerr"
)

// Options configures the ffmpeg invocations. Command defaults to "ffmpeg"
// and can be overridden via the FFMPEG_CMD environment variable; Preset and
// CRF mirror FFMPEG_PRESET and FFMPEG_CRF.
type Options struct {
	Command string
	Preset  string
	CRF     string
	FPS     int
}

// DefaultOptions reads FFMPEG_CMD, FFMPEG_PRESET, and FFMPEG_CRF from the
// environment, falling back to values tuned for lossless-enough barcode
// frames: veryslow preset, CRF 0.
func DefaultOptions(fps int) Options {
	o := Options{Command: "ffmpeg", Preset: "veryslow", CRF: "0", FPS: fps}
	if v := os.Getenv("FFMPEG_CMD"); v != "" {
		o.Command = v
	}
	if v := os.Getenv("FFMPEG_PRESET"); v != "" {
		o.Preset = v
	}
	if v := os.Getenv("FFMPEG_CRF"); v != "" {
		o.CRF = v
	}
	return o
}

// Mux encodes the PNG frames in framesDir (named frame_%06d.png) into a
// single video file at outPath.
func Mux(framesDir, outPath string, opts Options) error {
	pattern := filepath.Join(framesDir, "frame_%06d.png")
	cmd := exec.Command(opts.Command,
		"-y",
		"-framerate", fmt.Sprintf("%d", opts.FPS),
		"-i", pattern,
		"-c:v", "libx264",
		"-preset", opts.Preset,
		"-crf", opts.CRF,
		"-pix_fmt", "yuv420p",
		outPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return codecerr.Wrap("video", "mux", fmt.Errorf("%w: ffmpeg: %w: %s", codecerr.ErrDependency, err, out))
	}
	return nil
}

// Extract splits videoPath back into PNG frames under outDir (named
// frame_%06d.png).
func Extract(videoPath, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return codecerr.Wrap("video", "extract", fmt.Errorf("%w: %w", codecerr.ErrDependency, err))
	}
	pattern := filepath.Join(outDir, "frame_%06d.png")
	cmd := exec.Command("ffmpeg", "-y", "-i", videoPath, pattern)
	if v := os.Getenv("FFMPEG_CMD"); v != "" {
		cmd = exec.Command(v, "-y", "-i", videoPath, pattern)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return codecerr.Wrap("video", "extract", fmt.Errorf("%w: ffmpeg: %w: %s", codecerr.ErrDependency, err, out))
	}
	return nil
}
