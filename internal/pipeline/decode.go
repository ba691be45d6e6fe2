package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"

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

// DecodeOptions mirrors the charon-decode CLI flags.
type DecodeOptions struct {
	VideoPath        string
	OutputPath       string
	ManifestPath     string
	PrivkeyFramePass string

	// Fallback geometry used only when ManifestPath is empty or unreadable.
	Grid        int
	Obfuscation bool

	// ObfuscationCheck, if set, recomputes the decoy frame's expected seed
	// from AuxFile and logs it. The extracted decoy frame itself is not
	// compared against that seed.
	ObfuscationCheck bool
	AuxFile          string
}

// DecodeResult reports the outcome of a successful decode.
type DecodeResult struct {
	OutputSize      int
	FileSHA256      string
	SHA256Verified  bool
	BlocksRecovered int
	BlocksTotal     int
}

// Decode runs the full decode pipeline: extract frames, read barcodes,
// recover erasure-coded blocks, unseal the private key, and unseal the
// payload.
func Decode(ctx context.Context, opts DecodeOptions) (DecodeResult, error) {
	lc := logger.NewLogContext(opts.VideoPath)
	ctx = logger.WithContext(ctx, lc)

	var m manifest.Manifest
	haveManifest := false
	if opts.ManifestPath != "" {
		var err error
		m, err = manifest.Read(opts.ManifestPath)
		if err == nil {
			haveManifest = true
		} else {
			logger.WarnCtx(ctx, "manifest unavailable, falling back to CLI flags", logger.KeyError, err)
		}
	}

	grid := opts.Grid
	if haveManifest {
		grid = m.Grid
	}

	stagingDir := filepath.Join(os.TempDir(), "charon-"+uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return DecodeResult{}, codecerr.Wrap("pipeline", "decode", fmt.Errorf("%w: %w", codecerr.ErrDependency, err))
	}
	defer os.RemoveAll(stagingDir)

	logger.InfoCtx(logger.WithContext(ctx, lc.WithStage("video").WithOp("extract")), "extracting frames")
	if err := video.Extract(opts.VideoPath, stagingDir); err != nil {
		return DecodeResult{}, err
	}

	files, err := filepath.Glob(filepath.Join(stagingDir, "frame_*.png"))
	if err != nil {
		return DecodeResult{}, codecerr.Wrap("pipeline", "decode", fmt.Errorf("%w: %w", codecerr.ErrDependency, err))
	}
	sort.Strings(files)

	// Every frame is scanned for barcode tiles the same way, including a
	// decoy obfuscation frame if one is present: pseudo-random rectangles
	// simply fail to decode as QR codes and contribute no classified tiles.
	frames := make([]frame.Frame, len(files))
	for i, path := range files {
		img, err := readPNG(path)
		if err != nil {
			return DecodeResult{}, err
		}
		frames[i] = decodeTiles(img, grid)
	}

	records, metaRecord, fecInfoRecord, privkeyRecord, err := frame.Disassemble(frames)
	if err != nil {
		return DecodeResult{}, err
	}

	obfuscation := opts.Obfuscation
	if haveManifest {
		obfuscation = m.ObfuscationFrame
	}
	if opts.ObfuscationCheck && obfuscation && opts.AuxFile != "" {
		auxData, err := os.ReadFile(opts.AuxFile)
		if err == nil {
			wantSeed := frame.ObfuscationSeed(auxData)
			logger.InfoCtx(ctx, "obfuscation seed computed for verification", logger.KeyObfuscation, wantSeed)
		}
	}

	pubPEM, err := frame.ParseMetaRecord(metaRecord)
	if err != nil {
		return DecodeResult{}, err
	}
	_ = pubPEM // kept only for completeness of the metadata frame; decode needs the private key, not this.

	fecInfo, err := frame.ParseFECInfoRecord(fecInfoRecord)
	if err != nil {
		return DecodeResult{}, err
	}

	privPEM, err := privkey.Unseal(privkeyRecord, opts.PrivkeyFramePass)
	if err != nil {
		return DecodeResult{}, err
	}
	priv, err := keypair.ParsePrivate(privPEM)
	keypair.Zeroize(privPEM)
	if err != nil {
		return DecodeResult{}, codecerr.Wrap("pipeline", "decode", err)
	}

	total := fecInfo.TotalChunks
	if total == 0 {
		total = len(records)
	}
	blocks := make([][]byte, total)
	present := 0
	for _, rec := range records {
		r, err := framer.Unmarshal(rec)
		if err != nil {
			continue // erased: CRC or magic failure, left nil for pkg/fec
		}
		if int(r.Index) < len(blocks) {
			blocks[r.Index] = r.Payload
			present++
		}
	}

	var chunks [][]byte
	if fecInfo.FECRatio > 0 && total > fecInfo.OriginalChunks {
		info := fec.Info{
			DataBlocks:   fecInfo.OriginalChunks,
			ParityBlocks: total - fecInfo.OriginalChunks,
			ShardLen:     fecShardLen(blocks),
		}
		chunks, err = fec.Decode(blocks, info)
		if err != nil {
			return DecodeResult{}, err
		}
	} else {
		if present < total {
			return DecodeResult{}, codecerr.Wrap("pipeline", "decode", fmt.Errorf("%w: have %d of %d blocks", codecerr.ErrInsufficientBlocks, present, total))
		}
		chunks = blocks
	}

	sealed := chunk.Join(chunks)
	plaintext, err := envelope.Unseal(sealed, priv)
	if err != nil {
		return DecodeResult{}, err
	}

	if err := os.WriteFile(opts.OutputPath, plaintext, 0o644); err != nil {
		return DecodeResult{}, codecerr.Wrap("pipeline", "decode", fmt.Errorf("%w: %w", codecerr.ErrDependency, err))
	}

	sum := sha256.Sum256(plaintext)
	gotSHA := hex.EncodeToString(sum[:])
	verified := haveManifest && m.FileSHA256 != "" && m.FileSHA256 == gotSHA
	if haveManifest && m.FileSHA256 != "" && !verified {
		logger.WarnCtx(ctx, "decoded file sha256 does not match manifest", "want", m.FileSHA256, "got", gotSHA)
	}

	return DecodeResult{
		OutputSize:      len(plaintext),
		FileSHA256:      gotSHA,
		SHA256Verified:  verified,
		BlocksRecovered: present,
		BlocksTotal:     total,
	}, nil
}

func fecShardLen(blocks [][]byte) int {
	for _, b := range blocks {
		if b != nil {
			return len(b)
		}
	}
	return 0
}

func readPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, codecerr.Wrap("pipeline", "decode", fmt.Errorf("%w: %w", codecerr.ErrDependency, err))
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, codecerr.Wrap("pipeline", "decode", fmt.Errorf("%w: %w", codecerr.ErrFormat, err))
	}
	return img, nil
}

// decodeTiles slices img into a grid x grid set of cells and reads each as
// a barcode tile, leaving a cell nil if it fails to decode.
func decodeTiles(img image.Image, grid int) frame.Frame {
	bounds := img.Bounds()
	tileW := bounds.Dx() / grid
	tileH := bounds.Dy() / grid

	tiles := make(frame.Frame, grid*grid)
	for i := 0; i < grid*grid; i++ {
		row := i / grid
		col := i % grid
		rect := image.Rect(col*tileW, row*tileH, (col+1)*tileW, (row+1)*tileH)
		sub := subImage(img, rect)
		payload, err := barcode.Decode(sub)
		if err != nil {
			tiles[i] = nil
			continue
		}
		tiles[i] = payload
	}
	return tiles
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func subImage(img image.Image, rect image.Rectangle) image.Image {
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}
	dst := image.NewRGBA(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, y, img.At(x, y))
		}
	}
	return dst
}
