package toc

import (
	"testing"

	"github.com/bugzmanov/bookokrat/internal/pdf/docmodel"
)

func TestSampleTargetsPreferredStart(t *testing.T) {
	targets := SampleTargets(100)
	if len(targets) != 20 {
		t.Fatalf("want 20 targets, got %d", len(targets))
	}
	if targets[0] != preferredStart {
		t.Fatalf("want start at %d, got %d", preferredStart, targets[0])
	}
}

func TestSampleTargetsShortDocument(t *testing.T) {
	targets := SampleTargets(5)
	if len(targets) != 5 {
		t.Fatalf("want all 5 pages sampled, got %d", len(targets))
	}
	if targets[0] != 0 {
		t.Fatalf("want start at 0 for short doc, got %d", targets[0])
	}
}

func TestSampleTargetsEmptyDocument(t *testing.T) {
	if targets := SampleTargets(0); targets != nil {
		t.Fatalf("want nil targets for empty doc, got %v", targets)
	}
}

func TestPageNumberTrackerLocksAfterThreeSamples(t *testing.T) {
	tr := NewPageNumberTracker()
	tr.SetTargets(100)

	if tr.HasOffset() {
		t.Fatalf("expected no offset before samples")
	}

	tr.ObserveSample(9, 10)  // offset 0
	tr.ObserveSample(10, 11) // offset 0
	tr.ObserveSample(11, 12) // offset 0

	if !tr.HasOffset() {
		t.Fatalf("expected offset locked after 3 agreeing samples")
	}

	idx, ok := tr.MapPrintedToPDF(15, 100)
	if !ok || idx != 14 {
		t.Fatalf("want page 14, got %d ok=%v", idx, ok)
	}
}

func TestPageNumberTrackerIgnoresDisagreeingSamples(t *testing.T) {
	tr := NewPageNumberTracker()
	tr.SetTargets(100)

	tr.ObserveSample(9, 10)  // offset 0
	tr.ObserveSample(10, 50) // offset 39
	tr.ObserveSample(11, 12) // offset 0

	if tr.HasOffset() {
		t.Fatalf("expected no majority offset yet")
	}
}

func TestDetectPageNumberNearBottomEdge(t *testing.T) {
	lines := []docmodel.LineBounds{
		{Y0: 780, Y1: 795, Chars: []docmodel.CharPos{{C: '4'}, {C: '2'}}},
	}
	// line text extraction relies on Chars; build it via helper
	lines[0] = lineOf("42")
	lines[0].Y0, lines[0].Y1 = 780, 795

	num, ok := DetectPageNumber(lines, 800)
	if !ok || num != 42 {
		t.Fatalf("want 42, got %d ok=%v", num, ok)
	}
}

func TestDetectPageNumberRejectsMiddleOfPage(t *testing.T) {
	lines := []docmodel.LineBounds{lineOf("42")}
	lines[0].Y0, lines[0].Y1 = 390, 410

	_, ok := DetectPageNumber(lines, 800)
	if ok {
		t.Fatalf("expected no detection for a number in the middle of the page")
	}
}

func TestContentPageRange(t *testing.T) {
	tr := NewPageNumberTracker()
	tr.SetTargets(100)
	tr.ObserveSample(9, 10)
	tr.ObserveSample(10, 11)
	tr.ObserveSample(11, 12)

	start, end, ok := tr.ContentPageRange(100)
	if !ok || start != 1 || end != 100 {
		t.Fatalf("want [1,100], got [%d,%d] ok=%v", start, end, ok)
	}
}
