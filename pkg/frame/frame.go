// Package frame assembles and disassembles the logical frame sequence of an
// encoded video: which wrapped chunk records land in which frame, where the
// metadata and private-key frames sit relative to them, and the optional
// decoy obfuscation frame prepended ahead of everything else.
//
// A Frame is the set of tile payloads that get rasterized (by pkg/barcode)
// into one grid image; this package only reasons about which bytes go where,
// not how they're drawn.
package frame

import (
	"bytes"
	"fmt"

	"github.com/charonvid/charon/pkg/codecerr"
	"github.com/charonvid/charon/pkg/framer"
	"github.com/charonvid/charon/pkg/privkey"
)

// Frame is the ordered list of tile payloads belonging to one video frame.
type Frame [][]byte

// Layout is the result of Assemble: the full frame sequence plus the index
// recorded in the manifest for the private-key frame. The metadata frame
// always sits immediately before it, at PrivFrameIndex-1.
type Layout struct {
	Frames         []Frame
	PrivFrameIndex int
}

// Assemble groups data/parity records (already QDV2-wrapped by pkg/framer)
// into frames of at most grid*grid tiles, then splices in one metadata frame
// (holding the META2 and FEC_INFO records) immediately followed by one
// private-key frame.
//
// privPos is the caller's desired insertion point for the metadata+private-key
// pair, expressed as an index into the data-frame list computed before that
// splice — and, if requested, the obfuscation frame — are applied; it is
// clamped to [0, len(dataFrames)]. The returned PrivFrameIndex is the private
// key frame's actual position in Layout.Frames once both splices are
// accounted for; the metadata frame always sits one slot before it.
func Assemble(records [][]byte, metaRecord, fecInfoRecord, privkeyRecord []byte, grid int, privPos int, obfuscation bool, obfuscationFrame Frame) (Layout, error) {
	if grid <= 0 {
		return Layout{}, codecerr.Wrap("frame", "assemble", fmt.Errorf("%w: grid must be positive", codecerr.ErrFormat))
	}
	tilesPerFrame := grid * grid

	var dataFrames []Frame
	for off := 0; off < len(records); off += tilesPerFrame {
		end := off + tilesPerFrame
		if end > len(records) {
			end = len(records)
		}
		dataFrames = append(dataFrames, Frame(records[off:end]))
	}
	if len(dataFrames) == 0 {
		dataFrames = []Frame{{}}
	}

	if privPos < 0 {
		privPos = 0
	}
	if privPos > len(dataFrames) {
		privPos = len(dataFrames)
	}

	metaFrame := Frame{metaRecord, fecInfoRecord}
	privFrame := Frame{privkeyRecord}

	// The metadata frame and the private-key frame are spliced in together,
	// metadata first, at the caller's chosen position.
	frames := make([]Frame, 0, len(dataFrames)+3)
	frames = append(frames, dataFrames[:privPos]...)
	frames = append(frames, metaFrame)
	frames = append(frames, privFrame)
	frames = append(frames, dataFrames[privPos:]...)
	privFrameIndex := privPos + 1

	if obfuscation {
		frames = append([]Frame{obfuscationFrame}, frames...)
		privFrameIndex++
	}

	return Layout{Frames: frames, PrivFrameIndex: privFrameIndex}, nil
}

// Disassemble reverses Assemble by classifying every tile recovered from
// every frame by its leading magic, independent of which frame or position it
// came from. This lets a decoder recover the metadata, FEC parameters, and
// sealed private key without knowing the layout the encoder chose — the
// obfuscation frame, being pseudo-random pixels rather than barcodes,
// naturally yields no classified tiles and needs no special-casing.
func Disassemble(frames []Frame) (records [][]byte, metaRecord, fecInfoRecord, privkeyRecord []byte, err error) {
	for _, f := range frames {
		for _, tile := range f {
			if tile == nil {
				continue
			}
			switch {
			case bytes.HasPrefix(tile, []byte(MetaMagic)):
				metaRecord = tile
			case bytes.HasPrefix(tile, []byte(FECInfoMagic)):
				fecInfoRecord = tile
			case bytes.HasPrefix(tile, []byte(privkey.Magic)):
				privkeyRecord = tile
			case bytes.HasPrefix(tile, []byte(framer.Magic)):
				records = append(records, tile)
			}
		}
	}

	if metaRecord == nil {
		return nil, nil, nil, nil, codecerr.Wrap("frame", "disassemble", fmt.Errorf("%w: no META2 tile recovered", codecerr.ErrFormat))
	}
	if fecInfoRecord == nil {
		return nil, nil, nil, nil, codecerr.Wrap("frame", "disassemble", fmt.Errorf("%w: no FEC_INFO tile recovered", codecerr.ErrFormat))
	}
	if privkeyRecord == nil {
		return nil, nil, nil, nil, codecerr.Wrap("frame", "disassemble", fmt.Errorf("%w: no PRIVKEY_AES tile recovered", codecerr.ErrFormat))
	}
	return records, metaRecord, fecInfoRecord, privkeyRecord, nil
}
