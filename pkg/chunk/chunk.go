// Package chunk splits a sealed payload into fixed-size chunks before FEC
// encoding, and rejoins recovered chunks back into a byte stream.
package chunk

import (
	"fmt"

	"github.com/charonvid/charon/pkg/codecerr"
)

// DefaultSize is the chunk size used when the caller does not override it,
// matching the original tool's hardcoded 800-byte size, chosen to keep a
// QDV2-wrapped chunk within a QR code's binary-mode capacity.
const DefaultSize = 800

// Split divides data into chunks of size bytes each, with the final chunk
// shorter if data's length is not a multiple of size. An empty data slice
// still yields exactly one (empty) chunk, so downstream stages always have
// at least one block to carry the length vector.
func Split(data []byte, size int) ([][]byte, error) {
	if size <= 0 {
		return nil, codecerr.Wrap("chunk", "split", fmt.Errorf("%w: chunk size must be positive, got %d", codecerr.ErrFormat, size))
	}
	if len(data) == 0 {
		return [][]byte{{}}, nil
	}
	var chunks [][]byte
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		c := make([]byte, end-off)
		copy(c, data[off:end])
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Join concatenates chunks back into a single byte stream, in order.
func Join(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
