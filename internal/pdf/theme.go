package pdf

import "github.com/lucasb-eyer/go-colorful"

// ApplyTheme remaps pixels in place so the darkest input color maps to bg
// and the lightest maps to fg, preserving hue proportionally. pixels must
// be a tightly packed RGB buffer (spec §4.3 step 5).
func ApplyTheme(pixels []byte, fg, bg Color) {
	if len(pixels) == 0 {
		return
	}

	fgC := colorful.Color{R: float64(fg.R) / 255, G: float64(fg.G) / 255, B: float64(fg.B) / 255}
	bgC := colorful.Color{R: float64(bg.R) / 255, G: float64(bg.G) / 255, B: float64(bg.B) / 255}

	minL, maxL := 1.0, 0.0
	lums := make([]float64, len(pixels)/3)
	for i := 0; i < len(pixels); i += 3 {
		_, _, l := rgbToHSL(pixels[i], pixels[i+1], pixels[i+2])
		lums[i/3] = l
		if l < minL {
			minL = l
		}
		if l > maxL {
			maxL = l
		}
	}
	if maxL <= minL {
		// Flat image: nothing to stretch, just tint uniformly to bg.
		maxL = minL + 1
	}

	for i := 0; i < len(pixels); i += 3 {
		l := lums[i/3]
		t := (l - minL) / (maxL - minL) // 0 = darkest, 1 = lightest
		mixed := bgC.BlendLuv(fgC, t)
		r, g, b := mixed.Clamped().RGB255()
		pixels[i] = r
		pixels[i+1] = g
		pixels[i+2] = b
	}
}

// rgbToHSL returns HSL hue, saturation and lightness (h in degrees, s and l
// in [0,1]) for an
// 8-bit RGB triple, used only to rank pixels by lightness before tinting.
func rgbToHSL(r, g, b byte) (h, s, l float64) {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	return c.Hsl()
}
