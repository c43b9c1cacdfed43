package canvas

import (
	"image"
	"io"

	"github.com/mattn/go-sixel"
)

// EncodeSixelFrame encodes frame as a Sixel escape sequence using
// go-sixel, the library the rest of the pack reaches for instead of
// hand-rolling the sixel color-quantization and row-padding logic
// original_source's vendored ratatui_image::protocol::sixel does with
// icy_sixel (spec §6.4).
func EncodeSixelFrame(w io.Writer, frame FrameSpec) error {
	img := frameToImage(frame)
	padded := padToSixelRows(img)

	enc := sixel.NewEncoder(w)
	return enc.Encode(padded)
}

// padToSixelRows pads an image's height up to a multiple of 6 (a sixel
// "row" covers 6 pixel rows); go-sixel itself doesn't pad ragged source
// images, so a source with e.g. height=802 would otherwise render a
// truncated or skewed last row.
func padToSixelRows(img image.Image) image.Image {
	b := img.Bounds()
	h := b.Dy()
	if h%6 == 0 {
		return img
	}

	paddedH := h + (6 - h%6)
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), paddedH))
	for y := 0; y < h; y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
