package pdf

import (
	"context"
	"fmt"
)

// FakeEngine is a deterministic synthetic Engine used in tests (spec §8's
// "synthetic document" scenarios). It never touches the filesystem.
type FakeEngine struct {
	// Docs maps a path to a canned document. Open fails for unknown paths.
	Docs map[string]*FakeDocument
}

// NewFakeEngine returns an engine with no documents registered.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{Docs: make(map[string]*FakeDocument)}
}

// NewSyntheticDocument builds a FakeDocument with nPages pages of the given
// intrinsic pixel size, each with one line of placeholder text.
func NewSyntheticDocument(nPages int, width, height float64) *FakeDocument {
	pages := make([]*fakePage, nPages)
	for i := range pages {
		pages[i] = &fakePage{
			width:  width,
			height: height,
			text: []LineBounds{{
				X0: 10, Y0: 10, X1: width - 10, Y1: 30,
				Chars: []CharPos{{X: 10, C: 'P'}, {X: 17, C: 'a'}, {X: 24, C: 'g'}, {X: 31, C: 'e'}},
			}},
		}
	}
	return &FakeDocument{pages: pages, meta: map[string]string{}}
}

func (e *FakeEngine) Open(path string) (Document, error) {
	doc, ok := e.Docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: no synthetic document registered for %q", ErrInvalidInput, path)
	}
	return doc, nil
}

// FakeDocument is an in-memory synthetic PDF document.
type FakeDocument struct {
	pages    []*fakePage
	meta     map[string]string
	outlines []Outline
}

// SetOutlines overrides the document's metadata outline entries.
func (d *FakeDocument) SetOutlines(o []Outline) { d.outlines = o }

// SetMetadata sets a single metadata key.
func (d *FakeDocument) SetMetadata(key, value string) { d.meta[key] = value }

func (d *FakeDocument) PageCount() int { return len(d.pages) }

func (d *FakeDocument) Metadata(key string) (string, bool) {
	v, ok := d.meta[key]
	return v, ok
}

func (d *FakeDocument) Outlines() ([]Outline, error) { return d.outlines, nil }

func (d *FakeDocument) Page(idx int) (EnginePage, error) {
	if idx < 0 || idx >= len(d.pages) {
		return nil, fmt.Errorf("%w: page %d", ErrPageOutOfRange, idx)
	}
	return d.pages[idx], nil
}

func (d *FakeDocument) Close() error { return nil }

type fakePage struct {
	width, height float64
	text          []LineBounds
}

func (p *fakePage) Bounds() (float64, float64) { return p.width, p.height }

func (p *fakePage) Render(ctx context.Context, scale float64, invertImages bool) (ImageData, error) {
	if err := ctx.Err(); err != nil {
		return ImageData{}, err
	}
	w := int(p.width * scale)
	h := int(p.height * scale)
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	pixels := make([]byte, w*h*3)
	fg, bg := byte(0), byte(255)
	if invertImages {
		fg, bg = bg, fg
	}
	for i := range pixels {
		if i%3 == 0 {
			pixels[i] = bg
		} else {
			pixels[i] = fg
		}
	}
	return ImageData{Pixels: pixels, Width: w, Height: h, Format: FormatRGB}, nil
}

func (p *fakePage) TextLines() ([]LineBounds, error) { return p.text, nil }

func (p *fakePage) Links() ([]LinkRect, error) { return nil, nil }
