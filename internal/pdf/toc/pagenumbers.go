package toc

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/bugzmanov/bookokrat/internal/pdf/docmodel"
)

// sampleCount and preferredStart mirror original_source's
// PageNumberTracker sampling window: ~20 pages starting near page 10
// (0-indexed page 9), adjusted for short documents.
const (
	sampleCount    = 20
	preferredStart = 9
)

type pageNumberSample struct {
	pageIdx int
	offset  int
}

// PageNumberTracker maps printed page numbers (as they appear rendered on
// the page) to PDF page indices, by sampling a window of pages and locking
// the offset once samples agree (spec §4.8).
type PageNumberTracker struct {
	targets []int
	samples []pageNumberSample
	offset  *int
}

// NewPageNumberTracker returns an empty tracker; call SetTargets once the
// document's page count is known.
func NewPageNumberTracker() *PageNumberTracker {
	return &PageNumberTracker{}
}

// SetTargets computes the sample window for a document of nPages pages and
// resets any previously observed samples.
func (t *PageNumberTracker) SetTargets(nPages int) {
	t.targets = SampleTargets(nPages)
	t.samples = nil
	t.offset = nil
}

// HasOffset reports whether the printed-to-PDF offset has locked in.
func (t *PageNumberTracker) HasOffset() bool { return t.offset != nil }

// SampleTargets generates the sample page indices for a document of nPages
// pages: 20 pages starting from page index 9, adjusted for short documents.
func SampleTargets(nPages int) []int {
	if nPages == 0 {
		return nil
	}

	start := preferredStart
	if nPages <= preferredStart+sampleCount {
		start = nPages - sampleCount
		if start < 0 {
			start = 0
		}
		if start > preferredStart {
			start = preferredStart
		}
	}

	end := start + sampleCount
	if end > nPages {
		end = nPages
	}

	targets := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		targets = append(targets, i)
	}
	return targets
}

func (t *PageNumberTracker) isTarget(pageIdx int) bool {
	for _, p := range t.targets {
		if p == pageIdx {
			return true
		}
	}
	return false
}

func (t *PageNumberTracker) alreadySampled(pageIdx int) bool {
	for _, s := range t.samples {
		if s.pageIdx == pageIdx {
			return true
		}
	}
	return false
}

// Observe inspects page pageIdx's extracted line bounds for a printed page
// number near the top or bottom edge and records a sample if found.
func (t *PageNumberTracker) Observe(pageIdx int, lineBounds []docmodel.LineBounds, pageHeightPx float64) {
	if t.offset != nil || !t.isTarget(pageIdx) || t.alreadySampled(pageIdx) {
		return
	}
	printed, ok := DetectPageNumber(lineBounds, pageHeightPx)
	if !ok {
		return
	}
	t.ObserveSample(pageIdx, printed)
}

// ObserveSample records a pre-detected printed page number for pageIdx.
func (t *PageNumberTracker) ObserveSample(pageIdx, printed int) {
	if t.offset != nil || !t.isTarget(pageIdx) || t.alreadySampled(pageIdx) || printed <= 0 {
		return
	}

	offset := printed - (pageIdx + 1)
	t.samples = append(t.samples, pageNumberSample{pageIdx: pageIdx, offset: offset})
	t.updateOffset()
}

// updateOffset locks the offset once 3+ samples agree on the same value.
func (t *PageNumberTracker) updateOffset() {
	if len(t.samples) < 3 {
		return
	}

	counts := make(map[int]int)
	for _, s := range t.samples {
		counts[s.offset]++
	}

	bestOffset, bestCount := 0, 0
	for offset, count := range counts {
		if count > bestCount {
			bestOffset, bestCount = offset, count
		}
	}
	if bestCount >= 3 {
		o := bestOffset
		t.offset = &o
	}
}

// MapPrintedToPDF maps a 1-based printed page number to a 0-based PDF page
// index, clamped to [0, nPages). Returns false before the offset locks or
// when nPages is not positive.
func (t *PageNumberTracker) MapPrintedToPDF(printedPage, nPages int) (int, bool) {
	if t.offset == nil || nPages <= 0 {
		return 0, false
	}
	target := printedPage - 1 - *t.offset
	if target < 0 {
		target = 0
	} else if target >= nPages {
		target = nPages - 1
	}
	return target, true
}

// ContentPageRange returns the printed-page-number range [start, end] that
// corresponds to the document's PDF page range, once the offset is locked
// (supplemented feature; see SPEC_FULL.md).
func (t *PageNumberTracker) ContentPageRange(nPages int) (start, end int, ok bool) {
	if t.offset == nil || nPages == 0 {
		return 0, 0, false
	}
	minPrinted := 1 + *t.offset
	maxPrinted := nPages + *t.offset
	if maxPrinted < 1 {
		return 0, 0, false
	}
	if minPrinted < 1 {
		minPrinted = 1
	}
	if maxPrinted < 1 {
		maxPrinted = 1
	}
	return minPrinted, maxPrinted, true
}

// DetectPageNumber looks for a line within 20% of the page height from the
// top or bottom edge that parses as a bare page number, preferring the
// closest such line to an edge.
func DetectPageNumber(lineBounds []docmodel.LineBounds, pageHeightPx float64) (int, bool) {
	if len(lineBounds) == 0 || pageHeightPx <= 0 {
		return 0, false
	}

	maxEdgeDistance := pageHeightPx * 0.2
	bestNum, bestScore := 0, maxEdgeDistance+1
	found := false

	for _, line := range lineBounds {
		text := lineText(line)
		num, ok := parsePageNumber(text)
		if !ok {
			continue
		}

		topDist := line.Y0
		bottomDist := pageHeightPx - line.Y1
		if bottomDist < 0 {
			bottomDist = 0
		}
		edgeDist := topDist
		if bottomDist < edgeDist {
			edgeDist = bottomDist
		}
		if edgeDist > maxEdgeDistance {
			continue
		}

		if !found || edgeDist < bestScore {
			bestNum, bestScore, found = num, edgeDist, true
		}
	}

	return bestNum, found
}

// parsePageNumber accepts a bare number, optionally prefixed with "page",
// and rejects anything containing more than one run of digits.
func parsePageNumber(text string) (int, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || runewidth.StringWidth(trimmed) > 12 {
		return 0, false
	}

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "page") {
		return extractSingleNumber(strings.TrimPrefix(lower, "page"))
	}

	for _, r := range trimmed {
		if !(r >= '0' && r <= '9') && !strings.ContainsRune(" \t.,-:;!?()[]", r) {
			return 0, false
		}
	}
	return extractSingleNumber(trimmed)
}

// extractSingleNumber returns the sole run of digits in text, or false if
// there is none or more than one.
func extractSingleNumber(text string) (int, bool) {
	var current strings.Builder
	found := -1
	flush := func() bool {
		if current.Len() == 0 {
			return true
		}
		if found != -1 {
			return false
		}
		n, err := strconv.Atoi(current.String())
		if err != nil {
			return false
		}
		found = n
		current.Reset()
		return true
	}

	for _, r := range text {
		if r >= '0' && r <= '9' {
			current.WriteRune(r)
		} else if !flush() {
			return 0, false
		}
	}
	if !flush() {
		return 0, false
	}

	if found <= 0 {
		return 0, false
	}
	return found, true
}
