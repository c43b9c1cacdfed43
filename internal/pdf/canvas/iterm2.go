package canvas

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/bugzmanov/bookokrat/internal/pdf/docmodel"
)

// iTerm2's inline image protocol (OSC 1337) has no shared-memory or
// chunked-transfer variant: the whole PNG (or JPEG) goes inline, base64
// encoded, in a single escape sequence.

// maxIndexedColors is the ceiling under which a frame is PNG-encoded with
// an indexed palette instead of truecolor, shrinking the escape sequence
// for pages that are mostly text (spec §6.3).
const maxIndexedColors = 256

// EncodeITerm2Frame builds the OSC 1337 inline-image escape sequence for
// a decoded RGBA/RGB frame.
func EncodeITerm2Frame(w io.Writer, frame FrameSpec) error {
	img := frameToImage(frame)

	var pngBuf bytes.Buffer
	if paletted, ok := tryIndexedPalette(img); ok {
		if err := png.Encode(&pngBuf, paletted); err != nil {
			return err
		}
	} else if err := png.Encode(&pngBuf, img); err != nil {
		return err
	}

	encoded := base64.StdEncoding.EncodeToString(pngBuf.Bytes())

	_, err := fmt.Fprintf(w, "\x1b]1337;File=inline=1;width=%dpx;height=%dpx;preserveAspectRatio=0:%s\a",
		frame.Width, frame.Height, encoded)
	return err
}

func frameToImage(frame FrameSpec) image.Image {
	bpp := frame.Format.BytesPerPixel()
	img := image.NewRGBA(image.Rect(0, 0, int(frame.Width), int(frame.Height)))
	for y := 0; y < int(frame.Height); y++ {
		for x := 0; x < int(frame.Width); x++ {
			off := (y*int(frame.Width) + x) * bpp
			if off+bpp > len(frame.Pixels) {
				continue
			}
			var c color.RGBA
			if frame.Format == docmodel.FormatRGBA {
				c = color.RGBA{frame.Pixels[off], frame.Pixels[off+1], frame.Pixels[off+2], frame.Pixels[off+3]}
			} else {
				c = color.RGBA{frame.Pixels[off], frame.Pixels[off+1], frame.Pixels[off+2], 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// tryIndexedPalette builds an image.Paletted copy of img if it contains at
// most maxIndexedColors distinct colors, so the PNG encoder emits a
// palette-indexed image instead of truecolor.
func tryIndexedPalette(img image.Image) (*image.Paletted, bool) {
	bounds := img.Bounds()
	seen := make(map[color.RGBA]bool, maxIndexedColors+1)
	palette := make(color.Palette, 0, maxIndexedColors)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			c := color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
			if !seen[c] {
				if len(palette) >= maxIndexedColors {
					return nil, false
				}
				seen[c] = true
				palette = append(palette, c)
			}
		}
	}

	paletted := image.NewPaletted(bounds, palette)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			paletted.Set(x, y, img.At(x, y))
		}
	}
	return paletted, true
}
