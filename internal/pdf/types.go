// Package pdf implements the render service, worker pool, and page cache
// that turn PDF pages into raster frames for the terminal canvas.
package pdf

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// Rect is an axis-aligned rectangle in viewport cells.
type Rect struct {
	X, Y, Width, Height int
}

// CellSize is the pixel footprint of one terminal cell.
type CellSize struct {
	Width, Height float64
}

// RenderParams is the tuple of state that determines a page's rasterized
// pixels. Two requests with equal RenderParams and page index produce
// indistinguishable output.
type RenderParams struct {
	Area         Rect
	Scale        float64
	InvertImages bool
	CellSize     CellSize
	ThemeFg      Color
	ThemeBg      Color
}

// Color is an 8-bit-per-channel RGB color.
type Color struct {
	R, G, B uint8
}

// NormalizeScale clamps scale to the invariant scale >= 0.1, mapping
// non-finite values to 1.0.
func NormalizeScale(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 1.0
	}
	if s < 0.1 {
		return 0.1
	}
	return s
}

// CacheKey is derived from the subset of RenderParams that affects pixels.
// Equal keys must produce equal rendered pixels.
type CacheKey struct {
	Page            int
	AreaWidth       int
	AreaHeight      int
	ScaleMillionths int64
	InvertImages    bool
	ThemeFg         Color
	ThemeBg         Color
}

// NewCacheKey derives a CacheKey from a page index and RenderParams.
func NewCacheKey(page int, p RenderParams) CacheKey {
	return CacheKey{
		Page:            page,
		AreaWidth:       p.Area.Width,
		AreaHeight:      p.Area.Height,
		ScaleMillionths: int64(math.Round(p.Scale * 1_000_000)),
		InvertImages:    p.InvertImages,
		ThemeFg:         p.ThemeFg,
		ThemeBg:         p.ThemeBg,
	}
}

// Hash returns a fast, non-cryptographic hash of the key for debug
// correlation and cheap map-bucket hinting; it is not used for equality.
func (k CacheKey) Hash() uint64 {
	var buf [32]byte
	putInt(buf[0:8], k.Page)
	putInt(buf[8:16], k.AreaWidth)
	putInt(buf[16:24], k.AreaHeight)
	putInt(buf[24:32], int(k.ScaleMillionths))
	return xxhash.Sum64(buf[:])
}

func putInt(b []byte, v int) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

// PageData is the cached render output, owned by the cache and handed out
// as a shared immutable reference.
type PageData struct {
	Pixels       []byte
	Width, Height int
	WidthCells   int
	HeightCells  int
	Page         int
	Scale        float64
	LineBounds   []LineBounds
	Links        []LinkRect
	PageHeightPx float64
}

// RequestID is a monotonically increasing identifier correlating requests
// and responses.
type RequestID uint64

// PageSelectionBounds describes a text selection rectangle on one page.
type PageSelectionBounds struct {
	Page         int
	StartX, EndX float64
	MinY, MaxY   float64
}

// KittyMaxDimension is the largest pixel dimension the Kitty protocol
// accepts on either axis.
const KittyMaxDimension = 10000.0
