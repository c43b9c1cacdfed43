package toc

import (
	"context"
	"strings"
	"testing"

	"github.com/bugzmanov/bookokrat/internal/pdf/docmodel"
)

type fakePage struct {
	lines  []docmodel.LineBounds
	height float64
}

func (p *fakePage) Bounds() (float64, float64) { return 600, p.height }
func (p *fakePage) Render(ctx context.Context, scale float64, invert bool) (docmodel.ImageData, error) {
	return docmodel.ImageData{}, nil
}
func (p *fakePage) TextLines() ([]docmodel.LineBounds, error) { return p.lines, nil }
func (p *fakePage) Links() ([]docmodel.LinkRect, error)       { return nil, nil }

type fakeDoc struct {
	outlines []docmodel.Outline
	pages    []*fakePage
}

func (d *fakeDoc) Outlines() ([]docmodel.Outline, error) { return d.outlines, nil }
func (d *fakeDoc) PageCount() int                        { return len(d.pages) }
func (d *fakeDoc) Page(idx int) (docmodel.EnginePage, error) {
	return d.pages[idx], nil
}

func lineOf(text string) docmodel.LineBounds {
	chars := make([]docmodel.CharPos, 0, len(text))
	x := 0.0
	for _, r := range text {
		chars = append(chars, docmodel.CharPos{X: x, C: r})
		x += 7
	}
	return docmodel.LineBounds{X1: x, Chars: chars}
}

func TestExtractTOCUsesValidOutline(t *testing.T) {
	doc := &fakeDoc{
		outlines: []docmodel.Outline{
			{Title: "Introduction", Depth: 0, HasPage: true, PageIdx: 0},
			{Title: "Getting Started", Depth: 0, HasPage: true, PageIdx: 3},
			{Title: "Advanced Topics", Depth: 0, HasPage: true, PageIdx: 10},
		},
	}
	entries := ExtractTOC(doc)
	if len(entries) != 3 {
		t.Fatalf("expected metadata outline to be used, got %d entries", len(entries))
	}
}

func TestExtractTOCRejectsBodyTextOutline(t *testing.T) {
	longSentence := strings.Repeat("this is body text. ", 10)
	doc := &fakeDoc{
		outlines: []docmodel.Outline{
			{Title: longSentence, HasPage: true, PageIdx: 0},
			{Title: longSentence, HasPage: true, PageIdx: 1},
			{Title: longSentence, HasPage: true, PageIdx: 2},
			{Title: longSentence, HasPage: true, PageIdx: 3},
			{Title: "Short", HasPage: true, PageIdx: 4},
		},
		pages: []*fakePage{
			{lines: []docmodel.LineBounds{lineOf("not contents")}, height: 800},
		},
	}
	entries := ExtractTOC(doc)
	if len(entries) != 0 {
		t.Fatalf("expected fallback to empty page scan, got %d entries", len(entries))
	}
}

func TestStripLeaderChars(t *testing.T) {
	got := stripLeaderChars("Chapter One....")
	if got != "Chapter One" {
		t.Fatalf("want %q got %q", "Chapter One", got)
	}
}

func TestStripLeaderCharsKeepsShortTitles(t *testing.T) {
	if got := stripLeaderChars("Go"); got != "Go" {
		t.Fatalf("want unchanged, got %q", got)
	}
}

func TestLooksLikeValidTOCRequiresThreeEntries(t *testing.T) {
	entries := []Entry{{Title: "A"}, {Title: "B"}}
	if looksLikeValidTOC(entries) {
		t.Fatalf("expected rejection with fewer than 3 entries")
	}
}

func TestExtractTOCFromPagesFindsContentsHeading(t *testing.T) {
	doc := &fakeDoc{
		pages: []*fakePage{
			{lines: []docmodel.LineBounds{lineOf("Preface")}, height: 800},
			{
				lines: []docmodel.LineBounds{
					lineOf("Contents"),
					lineOf("Introduction 1"),
					lineOf("Chapter One 12"),
					lineOf("Chapter Two 34"),
					lineOf("Chapter Three 56"),
					lineOf("Appendix 78"),
				},
				height: 800,
			},
		},
	}
	entries := ExtractTOC(doc)
	if len(entries) != 5 {
		t.Fatalf("expected 5 parsed entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].Title != "Introduction" || entries[0].Target.PrintedPage != 1 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
}
