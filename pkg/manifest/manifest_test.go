package manifest_test

import (
	"path/filepath"
	"testing"

	"github.com/charonvid/charon/pkg/manifest"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	m := manifest.Manifest{
		Version:          2,
		FileSHA256:       "abc123",
		Frames:           42,
		Grid:             4,
		FPS:              2,
		Resolution:       [2]int{1920, 1080},
		PrivFrameIndex:   5,
		PubkeyPEMB64:     "ZmFrZQ==",
		Encryption:       "AES256GCM",
		FECEnabled:       true,
		FECRatio:         0.25,
		OriginalChunks:   10,
		TotalChunks:      13,
		ChunkSize:        4096,
		ObfuscationFrame: true,
	}

	require.NoError(t, manifest.Write(path, m))

	got, err := manifest.Read(path)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestReadMissingFile(t *testing.T) {
	_, err := manifest.Read(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
