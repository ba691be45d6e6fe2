// Package manifest reads and writes the optional JSON side-channel that
// accompanies an encoded video: a human-inspectable record of everything
// needed to decode, so a decoder can skip re-deriving grid geometry or
// frame indices from the video itself.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charonvid/charon/pkg/codecerr"
)

// Manifest mirrors the JSON structure the original tooling emits
// (pubkey_pem_b64 is kept under that exact name for wire compatibility).
type Manifest struct {
	Version          int     `json:"version"`
	FileSHA256       string  `json:"file_sha256"`
	Frames           int     `json:"frames"`
	Grid             int     `json:"grid"`
	FPS              int     `json:"fps"`
	Resolution       [2]int  `json:"resolution"`
	PrivFrameIndex   int     `json:"privkey_frame_index"`
	PubkeyPEMB64     string  `json:"pubkey_pem_b64"`
	Encryption       string  `json:"encryption"`
	FECEnabled       bool    `json:"fec_enabled"`
	FECRatio         float64 `json:"fec_ratio"`
	OriginalChunks   int     `json:"original_chunks"`
	TotalChunks      int     `json:"total_chunks"`
	ChunkSize        int     `json:"chunk_size"`
	ObfuscationFrame bool    `json:"obfuscation"`
}

// Write serializes m as indented JSON to path.
func Write(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return codecerr.Wrap("manifest", "write", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return codecerr.Wrap("manifest", "write", fmt.Errorf("%w: %w", codecerr.ErrDependency, err))
	}
	return nil
}

// Read loads a manifest from path. The manifest is optional for decoding:
// every tile recovered from the video classifies itself by its leading
// magic (META2, FEC_INFO, PRIVKEY_AES, QDV2), independent of which frame or
// position it came from, so PrivFrameIndex and Frames are provenance only.
// Grid still has to come from somewhere, though — without a manifest the
// decoder falls back to a CLI-supplied value. Callers should treat a
// missing manifest file as "no manifest available", not a fatal error.
func Read(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, codecerr.Wrap("manifest", "read", fmt.Errorf("%w: %w", codecerr.ErrDependency, err))
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, codecerr.Wrap("manifest", "read", fmt.Errorf("%w: %w", codecerr.ErrFormat, err))
	}
	return m, nil
}
