package canvas

import "sync"

// FrameRegistry tracks which protocol image ID the terminal currently has
// stored for each page, so repeat views of a page can reuse the terminal's
// copy instead of re-transmitting pixels (spec §6.2).
type FrameRegistry struct {
	mu      sync.Mutex
	entries map[int64]uint32
}

// NewFrameRegistry returns an empty registry.
func NewFrameRegistry() *FrameRegistry {
	return &FrameRegistry{entries: make(map[int64]uint32)}
}

// Record associates page with the protocol image ID the terminal now holds
// for it.
func (r *FrameRegistry) Record(page int64, imageID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[page] = imageID
}

// Lookup returns the image ID recorded for page, if any.
func (r *FrameRegistry) Lookup(page int64) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.entries[page]
	return id, ok
}

// Invalidate removes the entry for page.
func (r *FrameRegistry) Invalidate(page int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, page)
}

// InvalidateByImageID removes whichever entry currently points at imageID,
// reporting the page it belonged to. Used when the terminal reports an
// image as evicted: the canvas only learns the image ID from the protocol
// response, not the page (spec §4.11's "canvas forgets the registry entry"
// behavior).
func (r *FrameRegistry) InvalidateByImageID(imageID uint32) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for page, id := range r.entries {
		if id == imageID {
			delete(r.entries, page)
			return page, true
		}
	}
	return 0, false
}

// InvalidateRange removes every entry whose page falls within [min, max].
func (r *FrameRegistry) InvalidateRange(min, max int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for page := range r.entries {
		if page >= min && page <= max {
			delete(r.entries, page)
		}
	}
}

// Clear removes every entry.
func (r *FrameRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[int64]uint32)
}

// RegisteredFrame is one entry returned by FramesInRange.
type RegisteredFrame struct {
	Page    int64
	ImageID uint32
}

// FramesInRange returns the (page, imageID) pairs within [min, max], in no
// particular order.
func (r *FrameRegistry) FramesInRange(min, max int64) []RegisteredFrame {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []RegisteredFrame
	for page, id := range r.entries {
		if page >= min && page <= max {
			out = append(out, RegisteredFrame{Page: page, ImageID: id})
		}
	}
	return out
}
