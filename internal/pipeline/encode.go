// Package pipeline wires together pkg/envelope, pkg/privkey, pkg/chunk,
// pkg/fec, pkg/framer, pkg/frame, pkg/barcode, pkg/video, and pkg/manifest
// into the two end-to-end operations the CLIs expose: Encode and Decode.
package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/charonvid/charon/internal/logger"
	"github.com/charonvid/charon/pkg/barcode"
	"github.com/charonvid/charon/pkg/chunk"
	"github.com/charonvid/charon/pkg/codecerr"
	"github.com/charonvid/charon/pkg/envelope"
	"github.com/charonvid/charon/pkg/fec"
	"github.com/charonvid/charon/pkg/frame"
	"github.com/charonvid/charon/pkg/framer"
	"github.com/charonvid/charon/pkg/keypair"
	"github.com/charonvid/charon/pkg/manifest"
	"github.com/charonvid/charon/pkg/privkey"
	"github.com/charonvid/charon/pkg/video"
	"github.com/google/uuid"
)

// EncodeOptions mirrors the charon-encode CLI flags.
type EncodeOptions struct {
	InputPath        string
	OutputPath       string
	ManifestPath     string
	Grid             int
	FPS              int
	ResolutionW      int
	ResolutionH      int
	EnableFEC        bool
	FECRatio         float64
	Passphrase       string
	PrivkeyFrame     int
	PrivkeyFramePass string
	Obfuscation      bool
	AuxFile          string
	ChunkSize        int
}

// EncodeResult carries the stats the original tool prints on success.
type EncodeResult struct {
	OriginalSize   int
	FileSHA256     string
	FrameCount     int
	OriginalChunks int
	TotalChunks    int
	FECOverhead    float64
}

// Encode runs the full encode pipeline: seal, chunk, FEC-encode, frame, and
// mux to a video file, writing an optional manifest alongside it.
func Encode(ctx context.Context, opts EncodeOptions) (EncodeResult, error) {
	lc := logger.NewLogContext(opts.InputPath)
	ctx = logger.WithContext(ctx, lc)

	data, err := readFile(opts.InputPath)
	if err != nil {
		return EncodeResult{}, err
	}
	sum := sha256.Sum256(data)
	fileSHA := hex.EncodeToString(sum[:])

	pubPEM, privPEM, err := keypair.Generate()
	if err != nil {
		return EncodeResult{}, codecerr.Wrap("pipeline", "encode", err)
	}
	pub, err := keypair.ParsePublic(pubPEM)
	if err != nil {
		return EncodeResult{}, codecerr.Wrap("pipeline", "encode", err)
	}

	logger.InfoCtx(logger.WithContext(ctx, lc.WithStage("envelope").WithOp("seal")), "sealing payload", logger.KeySize, len(data))
	sealed, err := envelope.Seal(data, opts.Passphrase, pub)
	if err != nil {
		return EncodeResult{}, err
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = chunk.DefaultSize
	}
	chunks, err := chunk.Split(sealed, chunkSize)
	if err != nil {
		return EncodeResult{}, err
	}

	var blocks [][]byte
	var info fec.Info
	if opts.EnableFEC {
		logger.InfoCtx(logger.WithContext(ctx, lc.WithStage("fec").WithOp("encode")), "fec encoding", logger.KeyDataBlocks, len(chunks), logger.KeyFECRatio, opts.FECRatio)
		blocks, info, err = fec.Encode(chunks, opts.FECRatio)
		if err != nil {
			return EncodeResult{}, err
		}
	} else {
		blocks = chunks
		info = fec.Info{DataBlocks: len(chunks), ParityBlocks: 0, ShardLen: 0}
	}

	records := make([][]byte, len(blocks))
	for i, b := range blocks {
		kind := framer.KindData
		if i >= info.DataBlocks {
			kind = framer.KindParity
		}
		rec, err := framer.Marshal(framer.Record{Index: uint32(i), Total: uint32(len(blocks)), Kind: kind, Payload: b})
		if err != nil {
			return EncodeResult{}, err
		}
		records[i] = rec
	}

	sealedPriv, err := privkey.Seal(privPEM, opts.PrivkeyFramePass)
	keypair.Zeroize(privPEM)
	if err != nil {
		return EncodeResult{}, err
	}

	metaRecord := frame.BuildMetaRecord(pubPEM)
	fecInfoRecord, err := frame.BuildFECInfoRecord(frame.FECInfo{
		OriginalChunks: len(chunks),
		TotalChunks:    len(blocks),
		FECRatio:       opts.FECRatio,
		ChunkSize:      chunkSize,
	})
	if err != nil {
		return EncodeResult{}, err
	}

	var obfFrame frame.Frame
	if opts.Obfuscation {
		auxData := data
		if opts.AuxFile != "" {
			auxData, err = os.ReadFile(opts.AuxFile)
			if err != nil {
				return EncodeResult{}, codecerr.Wrap("pipeline", "encode", fmt.Errorf("%w: %w", codecerr.ErrDependency, err))
			}
		}
		seed := frame.ObfuscationSeed(auxData)
		obfFrame, err = frame.BuildObfuscationFrame(seed, opts.ResolutionW, opts.ResolutionH)
		if err != nil {
			return EncodeResult{}, err
		}
	}

	layout, err := frame.Assemble(records, metaRecord, fecInfoRecord, sealedPriv, opts.Grid, opts.PrivkeyFrame, opts.Obfuscation, obfFrame)
	if err != nil {
		return EncodeResult{}, err
	}

	stagingDir := filepath.Join(os.TempDir(), "charon-"+uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return EncodeResult{}, codecerr.Wrap("pipeline", "encode", fmt.Errorf("%w: %w", codecerr.ErrDependency, err))
	}
	defer os.RemoveAll(stagingDir)

	logger.InfoCtx(logger.WithContext(ctx, lc.WithStage("frame").WithOp("render")), "rendering frames", logger.KeyFrameCount, len(layout.Frames))
	for i, f := range layout.Frames {
		img, err := renderFrame(f, opts.Obfuscation && i == 0, opts.Grid, opts.ResolutionW, opts.ResolutionH)
		if err != nil {
			return EncodeResult{}, err
		}
		if err := writePNG(filepath.Join(stagingDir, fmt.Sprintf("frame_%06d.png", i)), img); err != nil {
			return EncodeResult{}, err
		}
	}

	videoOpts := video.DefaultOptions(opts.FPS)
	if err := video.Mux(stagingDir, opts.OutputPath, videoOpts); err != nil {
		return EncodeResult{}, err
	}

	if opts.ManifestPath != "" {
		m := manifest.Manifest{
			Version:          2,
			FileSHA256:       fileSHA,
			Frames:           len(layout.Frames),
			Grid:             opts.Grid,
			FPS:              opts.FPS,
			Resolution:       [2]int{opts.ResolutionW, opts.ResolutionH},
			PrivFrameIndex:   layout.PrivFrameIndex,
			PubkeyPEMB64:     base64.StdEncoding.EncodeToString(pubPEM),
			Encryption:       envelope.Magic,
			FECEnabled:       opts.EnableFEC,
			FECRatio:         opts.FECRatio,
			OriginalChunks:   len(chunks),
			TotalChunks:      len(blocks),
			ChunkSize:        chunkSize,
			ObfuscationFrame: opts.Obfuscation,
		}
		if err := manifest.Write(opts.ManifestPath, m); err != nil {
			return EncodeResult{}, err
		}
	}

	overhead := float64(info.ParityBlocks) / float64(info.DataBlocks+info.ParityBlocks)
	return EncodeResult{
		OriginalSize:   len(data),
		FileSHA256:     fileSHA,
		FrameCount:     len(layout.Frames),
		OriginalChunks: len(chunks),
		TotalChunks:    len(blocks),
		FECOverhead:    overhead,
	}, nil
}

// renderFrame composites a frame's tiles into a single grid image. The
// obfuscation frame is a pre-rendered PNG blob rather than barcode tiles.
func renderFrame(f frame.Frame, isObfuscation bool, grid, width, height int) (image.Image, error) {
	if isObfuscation {
		img, err := png.Decode(bytes.NewReader(f[0]))
		if err != nil {
			return nil, codecerr.Wrap("pipeline", "render", err)
		}
		return img, nil
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	tileW := width / grid
	tileH := height / grid
	side := tileW
	if tileH < side {
		side = tileH
	}

	for i, payload := range f {
		tileImg, err := barcode.Encode(payload, side)
		if err != nil {
			return nil, err
		}
		row := i / grid
		col := i % grid
		dstRect := image.Rect(col*tileW, row*tileH, col*tileW+side, row*tileH+side)
		draw.Draw(canvas, dstRect, tileImg, image.Point{}, draw.Src)
	}
	return canvas, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return codecerr.Wrap("pipeline", "render", fmt.Errorf("%w: %w", codecerr.ErrDependency, err))
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return codecerr.Wrap("pipeline", "render", err)
	}
	return nil
}
