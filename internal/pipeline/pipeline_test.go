package pipeline_test

import (
	"bytes"
	"context"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/charonvid/charon/internal/pipeline"
	"github.com/charonvid/charon/pkg/chunk"
	"github.com/charonvid/charon/pkg/codecerr"
	"github.com/charonvid/charon/pkg/envelope"
	"github.com/charonvid/charon/pkg/fec"
	"github.com/charonvid/charon/pkg/frame"
	"github.com/charonvid/charon/pkg/framer"
	"github.com/charonvid/charon/pkg/keypair"
	"github.com/charonvid/charon/pkg/privkey"
	"github.com/stretchr/testify/require"
)

// logicalEncode mirrors pipeline.Encode's own seal -> chunk -> FEC ->
// QDV2-wrap -> frame-record composition, stopping short of barcode
// rendering and video muxing, so the erasure-pattern scenarios below can
// corrupt the record set directly without needing a real QR/video round
// trip.
type logicalEncode struct {
	records    [][]byte
	metaRecord []byte
	fecRecord  []byte
	privRecord []byte
	fecInfo    frame.FECInfo
	privPass   string
	passphrase string
}

func encodeLogical(t *testing.T, plaintext []byte, fecRatio float64, privPass, passphrase string) logicalEncode {
	t.Helper()

	pubPEM, privPEM, err := keypair.Generate()
	require.NoError(t, err)
	pub, err := keypair.ParsePublic(pubPEM)
	require.NoError(t, err)

	sealed, err := envelope.Seal(plaintext, passphrase, pub)
	require.NoError(t, err)

	chunks, err := chunk.Split(sealed, chunk.DefaultSize)
	require.NoError(t, err)

	blocks, info, err := fec.Encode(chunks, fecRatio)
	require.NoError(t, err)

	records := make([][]byte, len(blocks))
	for i, b := range blocks {
		kind := framer.KindData
		if i >= info.DataBlocks {
			kind = framer.KindParity
		}
		rec, err := framer.Marshal(framer.Record{Index: uint32(i), Total: uint32(len(blocks)), Kind: kind, Payload: b})
		require.NoError(t, err)
		records[i] = rec
	}

	sealedPriv, err := privkey.Seal(privPEM, privPass)
	require.NoError(t, err)
	keypair.Zeroize(privPEM)

	fecInfo := frame.FECInfo{
		OriginalChunks: len(chunks),
		TotalChunks:    len(blocks),
		FECRatio:       fecRatio,
		ChunkSize:      chunk.DefaultSize,
	}
	fecRecord, err := frame.BuildFECInfoRecord(fecInfo)
	require.NoError(t, err)

	return logicalEncode{
		records:    records,
		metaRecord: frame.BuildMetaRecord(pubPEM),
		fecRecord:  fecRecord,
		privRecord: sealedPriv,
		fecInfo:    fecInfo,
		privPass:   privPass,
		passphrase: passphrase,
	}
}

// decodeLogical reverses encodeLogical given a (possibly lossy) set of
// frames, exercising the exact same frame.Disassemble -> framer.Unmarshal ->
// fec.Decode -> chunk.Join -> envelope.Unseal chain pipeline.Decode runs.
func decodeLogical(t *testing.T, frames []frame.Frame, privPass, passphrase string) ([]byte, error) {
	t.Helper()

	records, metaRecord, fecInfoRecord, privkeyRecord, err := frame.Disassemble(frames)
	if err != nil {
		return nil, err
	}

	pubPEM, err := frame.ParseMetaRecord(metaRecord)
	require.NoError(t, err)
	_ = pubPEM

	fecInfo, err := frame.ParseFECInfoRecord(fecInfoRecord)
	require.NoError(t, err)

	privPEM, err := privkey.Unseal(privkeyRecord, privPass)
	if err != nil {
		return nil, err
	}
	priv, err := keypair.ParsePrivate(privPEM)
	keypair.Zeroize(privPEM)
	require.NoError(t, err)

	total := fecInfo.TotalChunks
	blocks := make([][]byte, total)
	present := 0
	for _, rec := range records {
		r, err := framer.Unmarshal(rec)
		if err != nil {
			continue
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
			ShardLen:     shardLen(blocks),
		}
		chunks, err = fec.Decode(blocks, info)
		if err != nil {
			return nil, err
		}
	} else {
		if present < total {
			return nil, codecerr.Wrap("pipeline_test", "decode", codecerr.ErrInsufficientBlocks)
		}
		chunks = blocks
	}

	sealed := chunk.Join(chunks)
	return envelope.Unseal(sealed, priv)
}

func shardLen(blocks [][]byte) int {
	for _, b := range blocks {
		if b != nil {
			return len(b)
		}
	}
	return 0
}

// dropFraction zeroes out a deterministic pseudo-random fraction of records,
// simulating barcode tiles that never decoded (as opposed to corrupted
// ones). exclude lists indices that must never be dropped, used to keep
// block K (the length-vector carrier) out of ordinary loss scenarios so
// they test pure erasure recovery rather than the length-recovery fallback.
func dropFraction(records [][]byte, fraction float64, seed int64, exclude ...int) [][]byte {
	out := make([][]byte, len(records))
	copy(out, records)
	excluded := make(map[int]bool, len(exclude))
	for _, i := range exclude {
		excluded[i] = true
	}
	candidates := make([]int, 0, len(out))
	for i := range out {
		if !excluded[i] {
			candidates = append(candidates, i)
		}
	}
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	n := int(float64(len(out)) * fraction)
	if n > len(candidates) {
		n = len(candidates)
	}
	for _, i := range candidates[:n] {
		out[i] = nil
	}
	return out
}

func framesOf(le logicalEncode, grid int) []frame.Frame {
	layout, err := frame.Assemble(compactNonNil(le.records), le.metaRecord, le.fecRecord, le.privRecord, grid, 0, false, nil)
	if err != nil {
		panic(err)
	}
	return layout.Frames
}

func compactNonNil(records [][]byte) [][]byte {
	out := make([][]byte, 0, len(records))
	for _, r := range records {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

const (
	testPassphrase = "correct horse battery staple"
	testPrivPass   = "private-key-frame-password"
)

func TestRoundTripEmptyFile(t *testing.T) {
	le := encodeLogical(t, []byte{}, 0.3, testPrivPass, testPassphrase)
	frames := framesOf(le, 2)
	got, err := decodeLogical(t, frames, testPrivPass, testPassphrase)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRoundTripOneChunkFile(t *testing.T) {
	plaintext := []byte("a small file that fits in a single 800-byte chunk")
	le := encodeLogical(t, plaintext, 0.3, testPrivPass, testPassphrase)
	require.Equal(t, 1, le.fecInfo.OriginalChunks)

	frames := framesOf(le, 2)
	got, err := decodeLogical(t, frames, testPrivPass, testPassphrase)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestRoundTripMultiChunkMidRangeLoss(t *testing.T) {
	// Mirrors the scenario named directly in the round-trip property: 4096
	// NUL bytes at the default 800-byte chunk size, 25% of QDV2 records
	// dropped at random, decode still succeeds.
	plaintext := make([]byte, 4096)
	le := encodeLogical(t, plaintext, 0.3, testPrivPass, testPassphrase)
	require.Greater(t, le.fecInfo.TotalChunks, le.fecInfo.OriginalChunks)

	lossy := dropFraction(le.records, 0.25, 1, le.fecInfo.OriginalChunks)
	le.records = lossy
	frames := framesOf(le, 2)

	got, err := decodeLogical(t, frames, testPrivPass, testPassphrase)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestRoundTripTileCorruption(t *testing.T) {
	plaintext := make([]byte, 4096)
	le := encodeLogical(t, plaintext, 0.3, testPrivPass, testPassphrase)

	// Corrupt two records' trailing CRC bytes: framer.Unmarshal must treat
	// these the same as a tile that never decoded at all.
	corrupted := make([][]byte, len(le.records))
	copy(corrupted, le.records)
	for _, i := range []int{0, 1} {
		rec := make([]byte, len(corrupted[i]))
		copy(rec, corrupted[i])
		rec[len(rec)-1] ^= 0xFF
		corrupted[i] = rec
	}
	le.records = corrupted
	frames := framesOf(le, 2)

	got, err := decodeLogical(t, frames, testPrivPass, testPassphrase)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestRoundTripOverLimitLossFails(t *testing.T) {
	plaintext := make([]byte, 4096)
	le := encodeLogical(t, plaintext, 0.3, testPrivPass, testPassphrase)

	// Drop more than MaxRatio (0.35) of all blocks: recovery must fail
	// cleanly rather than return corrupted output.
	lossy := dropFraction(le.records, 0.5, 2)
	le.records = lossy
	frames := framesOf(le, 2)

	_, err := decodeLogical(t, frames, testPrivPass, testPassphrase)
	require.Error(t, err)
}

func TestRoundTripLengthVectorBlockLost(t *testing.T) {
	// Dropping block K (the length-vector carrier) along with at least one
	// other block still lets Reed-Solomon reconstruct every shard, but the
	// original per-chunk lengths are gone: the decoder falls back to
	// treating every chunk as full chunk-size length. The documented
	// outcome is either a correct decode (if the final chunk happened to be
	// full-sized) or a clean AEAD failure — never silently wrong output.
	plaintext := make([]byte, 4096)
	le := encodeLogical(t, plaintext, 0.3, testPrivPass, testPassphrase)

	lossy := make([][]byte, len(le.records))
	copy(lossy, le.records)
	lossy[le.fecInfo.OriginalChunks] = nil // block K
	lossy[le.fecInfo.OriginalChunks+1] = nil
	le.records = lossy
	frames := framesOf(le, 2)

	got, err := decodeLogical(t, frames, testPrivPass, testPassphrase)
	if err != nil {
		return
	}
	require.Equal(t, plaintext, got)
}

func TestRoundTripWrongPassphraseStillDecodes(t *testing.T) {
	// The payload passphrase is write-only with respect to decryption:
	// envelope.Unseal recovers the session key through the private key
	// alone, so a decode given a different passphrase still succeeds.
	plaintext := []byte("secret contents")
	le := encodeLogical(t, plaintext, 0.3, testPrivPass, testPassphrase)
	frames := framesOf(le, 2)

	got, err := decodeLogical(t, frames, testPrivPass, "wrong passphrase entirely")
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

// TestEncodeDecodeEndToEnd exercises the actual public pipeline.Encode and
// pipeline.Decode entry points, including barcode rendering and the ffmpeg
// mux/extract round trip. It is skipped where ffmpeg isn't installed, the
// same guard the original tooling's own test harness uses for binaries it
// doesn't control.
func TestEncodeDecodeEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.txt")
	outputPath := filepath.Join(dir, "output.mp4")
	manifestPath := filepath.Join(dir, "manifest.json")
	recoveredPath := filepath.Join(dir, "recovered.bin")

	plaintext := []byte("round trip through real barcode frames and an ffmpeg-muxed video")
	require.NoError(t, os.WriteFile(inputPath, plaintext, 0o644))

	encRes, err := pipeline.Encode(context.Background(), pipeline.EncodeOptions{
		InputPath:        inputPath,
		OutputPath:       outputPath,
		ManifestPath:     manifestPath,
		Grid:             2,
		FPS:              30,
		ResolutionW:      640,
		ResolutionH:      480,
		EnableFEC:        true,
		FECRatio:         0.3,
		Passphrase:       testPassphrase,
		PrivkeyFrame:     0,
		PrivkeyFramePass: testPrivPass,
		ChunkSize:        chunk.DefaultSize,
	})
	require.NoError(t, err)
	require.Equal(t, len(plaintext), encRes.OriginalSize)

	decRes, err := pipeline.Decode(context.Background(), pipeline.DecodeOptions{
		VideoPath:        outputPath,
		OutputPath:       recoveredPath,
		ManifestPath:     manifestPath,
		PrivkeyFramePass: testPrivPass,
	})
	require.NoError(t, err)
	require.True(t, decRes.SHA256Verified)

	got, err := os.ReadFile(recoveredPath)
	require.NoError(t, err)
	require.True(t, bytes.Equal(plaintext, got))
}
