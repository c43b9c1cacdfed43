// Package toc extracts a table of contents and printed-page-number mapping
// from a PDF's metadata outline or, failing that, by scanning page text.
package toc

import (
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"

	"github.com/bugzmanov/bookokrat/internal/pdf/docmodel"
)

// Target is the navigation destination of an Entry.
type Target struct {
	PageIndex    int
	URI          string
	PrintedPage  int
	Kind         TargetKind
}

// TargetKind discriminates the Target variants.
type TargetKind int

const (
	TargetInternalPage TargetKind = iota
	TargetExternal
	TargetPrintedPage
)

// Entry is one node of a flattened table of contents.
type Entry struct {
	Title  string
	Depth  int
	Target Target
}

// docOutline is the minimal surface toc needs from pdf.Document, so this
// package doesn't depend on the full render core.
type docOutline interface {
	Outlines() ([]docmodel.Outline, error)
}

// docPages is the minimal surface toc needs for the page-scan fallback.
type docPages interface {
	PageCount() int
	Page(idx int) (docmodel.EnginePage, error)
}

// ExtractTOC extracts the table of contents from doc's metadata outline,
// falling back to page-text scanning when the outline is absent or fails
// the validation heuristic (spec §4.8).
func ExtractTOC(doc interface {
	docOutline
	docPages
}) []Entry {
	outlines, err := doc.Outlines()
	if err == nil && len(outlines) > 0 {
		entries := flattenOutlines(outlines)
		if looksLikeValidTOC(entries) {
			return entries
		}
	}
	return extractTOCFromPages(doc)
}

func flattenOutlines(outlines []docmodel.Outline) []Entry {
	entries := make([]Entry, 0, len(outlines))
	for _, o := range outlines {
		title := stripLeaderChars(strings.TrimSpace(o.Title))
		if title == "" {
			continue
		}
		var target Target
		if o.HasPage {
			target = Target{Kind: TargetInternalPage, PageIndex: o.PageIdx}
		} else if o.URI != "" {
			target = Target{Kind: TargetExternal, URI: o.URI}
		} else {
			continue
		}
		entries = append(entries, Entry{Title: title, Depth: o.Depth, Target: target})
	}
	return entries
}

// stripLeaderChars strips trailing runs of 3+ repeated non-alphanumeric,
// non-whitespace characters, e.g. dot-leaders before a page number.
func stripLeaderChars(title string) string {
	chars := []rune(title)
	if len(chars) < 3 {
		return title
	}

	last := chars[len(chars)-1]
	runStart := len(chars) - 1
	for runStart > 0 && chars[runStart-1] == last {
		runStart--
	}
	runLen := len(chars) - runStart

	if runLen >= 3 && !unicode.IsLetter(last) && !unicode.IsDigit(last) && !unicode.IsSpace(last) {
		return strings.TrimRight(string(chars[:runStart]), " \t")
	}
	return title
}

// looksLikeValidTOC rejects outlines whose entries look like body text
// rather than titles (spec §4.8 validation heuristic).
func looksLikeValidTOC(entries []Entry) bool {
	if len(entries) < 3 {
		return false
	}

	valid := 0
	for _, e := range entries {
		titleLen := len([]rune(e.Title))
		sentenceBreaks := strings.Count(e.Title, ". ") + strings.Count(e.Title, "? ") + strings.Count(e.Title, "! ")
		if titleLen <= 100 && sentenceBreaks <= 1 {
			valid++
		}
	}
	return valid*100/len(entries) >= 70
}

// extractTOCFromPages scans early pages for a "Contents" heading and parses
// successive lines as "title ... page_number" pairs. Not present in the
// retrieved source fragment of the original implementation; built directly
// from spec §4.8's page-scanning prose.
func extractTOCFromPages(doc docPages) []Entry {
	const scanLimit = 15
	n := doc.PageCount()
	if n == 0 {
		return nil
	}
	limit := scanLimit
	if limit > n {
		limit = n
	}

	headingPage := -1
	for i := 0; i < limit; i++ {
		page, err := doc.Page(i)
		if err != nil {
			continue
		}
		lines, err := page.TextLines()
		if err != nil {
			continue
		}
		if hasContentsHeading(lines) {
			headingPage = i
			break
		}
	}
	if headingPage == -1 {
		return nil
	}

	entries := parseContentsPage(doc, headingPage)
	// Backtrack: if this page under-delivers and the next page has more
	// entries, the heading likely sits alone on its own page.
	if len(entries) < 5 && headingPage+1 < n {
		if next := parseContentsPage(doc, headingPage+1); len(next) >= 5 {
			entries = next
		}
	}

	return inferDepthFromNumbering(entries)
}

func hasContentsHeading(lines []docmodel.LineBounds) bool {
	for _, l := range lines {
		text := strings.ToLower(strings.TrimSpace(lineText(l)))
		if text == "contents" || text == "table of contents" {
			return true
		}
	}
	return false
}

func lineText(l docmodel.LineBounds) string {
	var sb strings.Builder
	for _, c := range l.Chars {
		sb.WriteRune(c.C)
	}
	return sb.String()
}

// parseContentsPage parses each line as "title ... page_number".
func parseContentsPage(doc docPages, idx int) []Entry {
	page, err := doc.Page(idx)
	if err != nil {
		return nil
	}
	lines, err := page.TextLines()
	if err != nil {
		return nil
	}

	var entries []Entry
	for _, l := range lines {
		text := strings.TrimSpace(lineText(l))
		if text == "" || strings.EqualFold(text, "contents") {
			continue
		}
		title, pageNum, ok := splitTitleAndPage(text)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Title:  title,
			Target: Target{Kind: TargetPrintedPage, PrintedPage: pageNum},
		})
	}
	return entries
}

// splitTitleAndPage splits a line of the form "Title .... 42" into its
// title and trailing printed page number.
func splitTitleAndPage(line string) (string, int, bool) {
	trimmed := strings.TrimRight(line, " \t")
	i := len(trimmed)
	for i > 0 && trimmed[i-1] >= '0' && trimmed[i-1] <= '9' {
		i--
	}
	if i == len(trimmed) {
		return "", 0, false
	}
	numStr := trimmed[i:]
	title := stripLeaderChars(strings.TrimSpace(trimmed[:i]))
	if title == "" || runewidth.StringWidth(title) == 0 {
		return "", 0, false
	}
	n := 0
	for _, c := range numStr {
		n = n*10 + int(c-'0')
	}
	if n <= 0 {
		return "", 0, false
	}
	return title, n, true
}

// inferDepthFromNumbering infers hierarchy from leading section numbers
// (1, 1.1, 1.1.1 -> depths 0,1,2), only when a supermajority carry them.
func inferDepthFromNumbering(entries []Entry) []Entry {
	if len(entries) == 0 {
		return entries
	}

	numbered := 0
	depths := make([]int, len(entries))
	for i, e := range entries {
		prefix, ok := leadingSectionNumber(e.Title)
		if !ok {
			depths[i] = -1
			continue
		}
		numbered++
		depths[i] = strings.Count(prefix, ".")
	}

	if numbered*10 < len(entries)*7 { // supermajority ~70%
		return entries
	}

	out := make([]Entry, len(entries))
	for i, e := range entries {
		d := depths[i]
		if d < 0 {
			d = 0
		}
		out[i] = Entry{Title: e.Title, Depth: d, Target: e.Target}
	}
	return out
}

// leadingSectionNumber extracts a leading "1", "1.1", "1.1.1" style prefix.
func leadingSectionNumber(title string) (string, bool) {
	i := 0
	for i < len(title) && (title[i] == '.' || (title[i] >= '0' && title[i] <= '9')) {
		i++
	}
	if i == 0 {
		return "", false
	}
	prefix := title[:i]
	if prefix[len(prefix)-1] == '.' {
		prefix = prefix[:len(prefix)-1]
	}
	if prefix == "" {
		return "", false
	}
	return prefix, true
}
