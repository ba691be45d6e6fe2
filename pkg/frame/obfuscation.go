package frame

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"

	"github.com/charonvid/charon/pkg/codecerr"
)

// ObfuscationSeed derives the deterministic PRNG seed for the decoy frame
// from the first 4 bytes of SHA256(auxFile), read big-endian. Any caller
// with the same aux file reproduces the identical decoy frame. pkg/frame does
// not compare a received decoy frame against it; the decoder's
// obfuscation-check step only computes and logs this seed.
func ObfuscationSeed(auxFile []byte) uint32 {
	sum := sha256.Sum256(auxFile)
	return binary.BigEndian.Uint32(sum[:4])
}

// BuildObfuscationFrame renders a decoy frame: a solid background plus a
// fixed number of pseudo-random rectangles, seeded from seed. It carries no
// barcode tiles, so it is represented as a single-element Frame whose entry
// is a PNG-encoded image rather than a QDV2 record; the caller compositing
// frames into a video must special-case it rather than passing it to the
// barcode rasterizer.
func BuildObfuscationFrame(seed uint32, width, height int) (Frame, error) {
	rng := rand.New(rand.NewSource(int64(seed)))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	const rectCount = 40
	for i := 0; i < rectCount; i++ {
		x0 := rng.Intn(width)
		y0 := rng.Intn(height)
		w := rng.Intn(width/4 + 1)
		h := rng.Intn(height/4 + 1)
		c := color.RGBA{
			R: uint8(rng.Intn(256)),
			G: uint8(rng.Intn(256)),
			B: uint8(rng.Intn(256)),
			A: 255,
		}
		rect := image.Rect(x0, y0, x0+w, y0+h).Intersect(img.Bounds())
		draw.Draw(img, rect, &image.Uniform{C: c}, image.Point{}, draw.Src)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, codecerr.Wrap("frame", "build-obfuscation", err)
	}
	return Frame{buf.Bytes()}, nil
}
