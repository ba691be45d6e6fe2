// Package barcode is the thin boundary between the codec pipeline and the
// external 2-D barcode libraries that actually rasterize and read tiles. It
// carries no framing, crypto, or FEC logic of its own.
package barcode

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/charonvid/charon/pkg/codecerr"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	qr "github.com/skip2/go-qrcode"
)

// Encode rasterizes payload as a QR code image, sized to side pixels
// square, and returns it as an image.Image ready for tile compositing.
func Encode(payload []byte, side int) (image.Image, error) {
	code, err := qr.New(string(payload), qr.Low)
	if err != nil {
		return nil, codecerr.Wrap("barcode", "encode", fmt.Errorf("%w: %w", codecerr.ErrDependency, err))
	}
	return code.Image(side), nil
}

// Decode reads the QR code out of img and returns its original payload
// bytes. A tile that fails to decode (blur, occlusion, wrong region) returns
// codecerr.ErrFormat; callers treat that identically to a CRC failure —
// the block is erased and left to pkg/fec.
func Decode(img image.Image) ([]byte, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, codecerr.Wrap("barcode", "decode", fmt.Errorf("%w: %w", codecerr.ErrFormat, err))
	}
	reader := qrcode.NewQRCodeReader()
	result, err := reader.Decode(bmp, nil)
	if err != nil {
		return nil, codecerr.Wrap("barcode", "decode", fmt.Errorf("%w: %w", codecerr.ErrFormat, err))
	}
	// gozxing decodes to a Go string from whatever byte segments the tile
	// encoded; round-tripping through Latin-1 bytes preserves the original
	// payload bytes exactly, since Encode above wrote payload as a raw
	// (non-UTF8) string.
	text := result.GetText()
	out := make([]byte, 0, len(text))
	for _, r := range text {
		out = append(out, byte(r))
	}
	return out, nil
}

// EncodePNG is a convenience wrapper returning the rasterized tile already
// PNG-encoded, for callers that composite raw bytes rather than
// image.Image values (e.g. when handing tiles to an external video muxer
// that reads files, not in-memory images).
func EncodePNG(payload []byte, side int) ([]byte, error) {
	img, err := Encode(payload, side)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, codecerr.Wrap("barcode", "encode-png", err)
	}
	return buf.Bytes(), nil
}
