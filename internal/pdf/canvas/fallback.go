package canvas

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"

	"github.com/blacktop/go-termimg"
	"github.com/nfnt/resize"
)

// maxFallbackCacheEntries bounds the half-blocks render cache, the same
// size internal/image/image.go's Renderer uses for file-backed images.
const maxFallbackCacheEntries = 20

type fallbackCacheKey struct {
	page   int64
	width  int
	height int
}

// FallbackRenderer renders decoded page frames as Unicode half-block text
// when no terminal graphics protocol is available, adapted from
// internal/image/image.go's Renderer: same LRU cache shape, re-pointed at
// in-memory image.Image frames instead of file paths (spec §6.5).
type FallbackRenderer struct {
	mu    sync.RWMutex
	cache map[fallbackCacheKey]string
	order []fallbackCacheKey
}

// NewFallbackRenderer returns an empty fallback renderer.
func NewFallbackRenderer() *FallbackRenderer {
	return &FallbackRenderer{cache: make(map[fallbackCacheKey]string)}
}

// Render renders frame to Unicode half-block text fit within maxW/maxH
// cells, downscaling with nfnt/resize before handing the reduced image to
// go-termimg's Halfblocks protocol (the same protocol choice
// internal/image/image.go makes, for the same reason: half-blocks are the
// only one of the library's protocols that composes inside a text UI
// rather than writing escape sequences straight past it).
func (r *FallbackRenderer) Render(frame FrameSpec, maxW, maxH int) (string, error) {
	key := fallbackCacheKey{page: frame.Page, width: maxW, height: maxH}

	r.mu.RLock()
	if cached, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	img := frameToImage(frame)
	scaled := resize.Thumbnail(uint(maxW*2), uint(maxH*2), img, resize.Lanczos3)

	rendered, err := renderHalfblocks(scaled, maxW, maxH)
	if err != nil {
		return "", fmt.Errorf("render halfblocks: %w", err)
	}

	r.mu.Lock()
	r.cache[key] = rendered
	r.order = append(r.order, key)
	for len(r.cache) > maxFallbackCacheEntries {
		delete(r.cache, r.order[0])
		r.order = r.order[1:]
	}
	r.mu.Unlock()

	return rendered, nil
}

// renderHalfblocks hands img to go-termimg the same way
// internal/image/image.go does: via termimg.Open(path), since go-termimg's
// public API loads from a file path rather than an in-memory image.Image.
// The scaled frame is spilled to a throwaway temp PNG for the duration of
// the call.
func renderHalfblocks(img image.Image, maxW, maxH int) (string, error) {
	f, err := os.CreateTemp("", "bookokrat-fallback-*.png")
	if err != nil {
		return "", err
	}
	path := f.Name()
	defer os.Remove(path)

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	ti, err := termimg.Open(path)
	if err != nil {
		return "", err
	}
	return ti.
		Width(maxW).
		Height(maxH).
		Scale(termimg.ScaleFit).
		Protocol(termimg.Halfblocks).
		Render()
}

// InvalidatePage removes cached half-block renders for a page.
func (r *FallbackRenderer) InvalidatePage(page int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	newOrder := make([]fallbackCacheKey, 0, len(r.order))
	for _, key := range r.order {
		if key.page == page {
			delete(r.cache, key)
		} else {
			newOrder = append(newOrder, key)
		}
	}
	r.order = newOrder
}

// ClearCache empties the render cache.
func (r *FallbackRenderer) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[fallbackCacheKey]string)
	r.order = nil
}
