//go:build cgo

package pdf

import (
	"context"
	"fmt"
	"image"
	"math"

	fitz "github.com/gen2brain/go-fitz"
)

// FitzEngine is the default real Engine, backed by MuPDF via cgo.
type FitzEngine struct{}

// NewFitzEngine returns an Engine that opens documents through go-fitz.
func NewFitzEngine() *FitzEngine { return &FitzEngine{} }

func (FitzEngine) Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) PageCount() int { return d.doc.NumPage() }

func (d *fitzDocument) Metadata(key string) (string, bool) {
	v, ok := d.doc.Metadata()[key]
	return v, ok
}

func (d *fitzDocument) Outlines() ([]Outline, error) {
	toc, err := d.doc.ToC()
	if err != nil {
		return nil, fmt.Errorf("load outline: %w", err)
	}
	out := make([]Outline, 0, len(toc))
	for _, entry := range toc {
		o := Outline{
			Title: entry.Title,
			Depth: entry.Level - 1,
		}
		if entry.URI != "" && entry.Page < 0 {
			o.URI = entry.URI
		} else {
			o.HasPage = true
			o.PageIdx = entry.Page
		}
		out = append(out, o)
	}
	return out, nil
}

func (d *fitzDocument) Page(idx int) (EnginePage, error) {
	if idx < 0 || idx >= d.doc.NumPage() {
		return nil, fmt.Errorf("%w: page %d", ErrPageOutOfRange, idx)
	}
	return &fitzPage{doc: d.doc, idx: idx}, nil
}

func (d *fitzDocument) Close() error { return d.doc.Close() }

type fitzPage struct {
	doc *fitz.Document
	idx int
}

func (p *fitzPage) Bounds() (float64, float64) {
	rect, err := p.doc.Bound(p.idx)
	if err != nil {
		return 0, 0
	}
	return float64(rect.Dx()), float64(rect.Dy())
}

func (p *fitzPage) Render(ctx context.Context, scale float64, invertImages bool) (ImageData, error) {
	if err := ctx.Err(); err != nil {
		return ImageData{}, err
	}
	dpi := 72.0 * scale
	img, err := p.doc.ImageDPI(p.idx, dpi)
	if err != nil {
		return ImageData{}, fmt.Errorf("rasterize page %d: %w", p.idx, err)
	}
	return imageToRGB(img), nil
}

func (p *fitzPage) TextLines() ([]LineBounds, error) {
	text, err := p.doc.Text(p.idx)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	return textToLineBounds(text), nil
}

func (p *fitzPage) Links() ([]LinkRect, error) {
	links, err := p.doc.Links(p.idx)
	if err != nil {
		return nil, fmt.Errorf("extract links: %w", err)
	}
	out := make([]LinkRect, 0, len(links))
	for _, l := range links {
		out = append(out, LinkRect{Target: LinkTarget{URI: l.URI}})
	}
	return out, nil
}

// imageToRGB converts a stdlib image.Image into a tightly packed RGB buffer.
func imageToRGB(img image.Image) ImageData {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pixels := make([]byte, w*h*3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			pixels[i] = byte(r >> 8)
			pixels[i+1] = byte(g >> 8)
			pixels[i+2] = byte(bl >> 8)
			i += 3
		}
	}
	return ImageData{Pixels: pixels, Width: w, Height: h, Format: FormatRGB}
}

// textToLineBounds is a best-effort splitter used when the engine only
// exposes flat text without per-character geometry; it synthesizes
// monotonically increasing line boxes so downstream selection code has a
// uniform LineBounds shape to consume regardless of engine.
func textToLineBounds(text string) []LineBounds {
	var bounds []LineBounds
	y := 0.0
	const lineHeight = 14.0
	line := LineBounds{}
	flush := func() {
		if len(line.Chars) > 0 {
			line.Y0 = y
			line.Y1 = y + lineHeight
			bounds = append(bounds, line)
			y += lineHeight
		}
		line = LineBounds{}
	}
	x := 0.0
	const charWidth = 7.0
	for _, r := range text {
		if r == '\n' {
			flush()
			x = 0
			continue
		}
		line.Chars = append(line.Chars, CharPos{X: x, C: r})
		line.X1 = math.Max(line.X1, x+charWidth)
		x += charWidth
	}
	flush()
	return bounds
}
