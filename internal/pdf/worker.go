package pdf

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// DefaultWorkers is the default worker pool size (spec §4.2).
const DefaultWorkers = 2

// WorkerPool rasterizes pages off the service's goroutine. Every worker
// reads off the same request channel: Go's native chan already supports
// many concurrent receivers draining one queue, so no MPMC library
// (the Rust original reaches for flume because std::mpsc::Receiver isn't
// Clone) is needed here — the language primitive already is one.
type WorkerPool struct {
	requests  chan Request
	responses chan Response
	engine    Engine
	doc       func() Document
	cache     *Cache
	logger    *slog.Logger

	wg      sync.WaitGroup
	cancels sync.Map // RequestID -> struct{}
}

// NewWorkerPool starts n workers (DefaultWorkers if n <= 0) consuming from
// requests and rasterizing pages of the document returned by docFn, caching
// results in cache.
func NewWorkerPool(n int, requests chan Request, responses chan Response, docFn func() Document, cache *Cache, logger *slog.Logger) *WorkerPool {
	if n <= 0 {
		n = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &WorkerPool{
		requests:  requests,
		responses: responses,
		doc:       docFn,
		cache:     cache,
		logger:    logger,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
	return p
}

// Wait blocks until every worker goroutine has exited, which happens once a
// Shutdown request has been consumed by each of them.
func (p *WorkerPool) Wait() { p.wg.Wait() }

func (p *WorkerPool) run(id int) {
	defer p.wg.Done()
	// A panic while rendering one page must not take down the whole
	// process: log it and let this worker exit, leaving the remaining
	// workers (and the shared request channel) healthy (spec §7).
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker panicked, exiting", "worker", id, "panic", r)
		}
	}()
	for req := range p.requests {
		switch req.Kind {
		case ReqShutdown:
			return
		case ReqCancel:
			p.cancels.Store(req.CancelID, struct{}{})
			continue
		}

		if _, cancelled := p.cancels.Load(req.ID); cancelled {
			p.cancels.Delete(req.ID)
			p.responses <- Response{ID: req.ID, Kind: RespCancelled}
			continue
		}

		switch req.Kind {
		case ReqPage, ReqPrefetch:
			p.responses <- p.renderPage(req)
		case ReqExtractText:
			p.responses <- p.extractText(req)
		}
	}
}

func (p *WorkerPool) renderPage(req Request) Response {
	doc := p.doc()
	if doc == nil {
		return Response{ID: req.ID, Kind: RespError, Err: errors.New("pdf: no document open")}
	}

	page, err := doc.Page(req.Page)
	if err != nil {
		return Response{ID: req.ID, Kind: RespError, Err: &WorkerFault{Page: req.Page, Cause: err}}
	}

	baseW, baseH := page.Bounds()
	effScale := computeEffectiveScale(baseW, baseH, req.Params)

	img, err := page.Render(context.Background(), effScale, req.Params.InvertImages)
	if err != nil {
		return Response{ID: req.ID, Kind: RespError, Err: &WorkerFault{Page: req.Page, Cause: err}}
	}

	if req.Params.InvertImages {
		ApplyTheme(img.Pixels, req.Params.ThemeFg, req.Params.ThemeBg)
	}

	lines, err := page.TextLines()
	if err != nil {
		p.logger.Warn("text extraction failed", "page", req.Page, "err", err)
	}
	links, err := page.Links()
	if err != nil {
		p.logger.Warn("link extraction failed", "page", req.Page, "err", err)
	}

	cellW, cellH := req.Params.CellSize.Width, req.Params.CellSize.Height
	widthCells, heightCells := 0, 0
	if cellW > 0 && cellH > 0 {
		widthCells = int(float64(img.Width) / cellW)
		heightCells = int(float64(img.Height) / cellH)
	}

	data := &PageData{
		Pixels:       img.Pixels,
		Width:        img.Width,
		Height:       img.Height,
		WidthCells:   widthCells,
		HeightCells:  heightCells,
		Page:         req.Page,
		Scale:        effScale,
		LineBounds:   lines,
		Links:        links,
		PageHeightPx: baseH,
	}

	key := NewCacheKey(req.Page, req.Params)
	p.cache.Insert(key, data)

	p.logger.Debug("rendered page", "page", req.Page, "scale", effScale, "prefetch", req.Kind == ReqPrefetch)
	return Response{ID: req.ID, Kind: RespPage, Page: data, IsPrefetch: req.Kind == ReqPrefetch}
}

// computeEffectiveScale derives the rasterization scale from the base page
// size, the user scale and the viewport-fit scale, clamping so neither
// output dimension exceeds KittyMaxDimension (spec §4.3 step 3).
func computeEffectiveScale(baseW, baseH float64, p RenderParams) float64 {
	userScale := NormalizeScale(p.Scale)

	viewportFit := 1.0
	if p.Area.Width > 0 && p.Area.Height > 0 && p.CellSize.Width > 0 && p.CellSize.Height > 0 && baseW > 0 && baseH > 0 {
		areaPxW := float64(p.Area.Width) * p.CellSize.Width
		areaPxH := float64(p.Area.Height) * p.CellSize.Height
		fitW := areaPxW / baseW
		fitH := areaPxH / baseH
		if fitW < fitH {
			viewportFit = fitW
		} else {
			viewportFit = fitH
		}
		if viewportFit <= 0 {
			viewportFit = 1.0
		}
	}

	eff := userScale * viewportFit
	if baseW > 0 && eff*baseW > KittyMaxDimension {
		eff = KittyMaxDimension / baseW
	}
	if baseH > 0 && eff*baseH > KittyMaxDimension {
		if capped := KittyMaxDimension / baseH; capped < eff {
			eff = capped
		}
	}
	if eff <= 0 {
		eff = 0.1
	}
	return eff
}

func (p *WorkerPool) extractText(req Request) Response {
	doc := p.doc()
	if doc == nil {
		return Response{ID: req.ID, Kind: RespError, Err: errors.New("pdf: no document open")}
	}

	out := make([]byte, 0, 256)
	for i, sel := range req.Bounds {
		page, err := doc.Page(sel.Page)
		if err != nil {
			continue
		}
		lines, err := page.TextLines()
		if err != nil {
			continue
		}
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, extractSelectionText(lines, sel)...)
	}

	return Response{ID: req.ID, Kind: RespExtractedText, Text: string(out)}
}

// extractSelectionText clips lines to the vertical band [minY,maxY] and
// keeps characters whose x-position intersects [startX,endX] (spec §4.3
// text extraction).
func extractSelectionText(lines []LineBounds, sel PageSelectionBounds) []byte {
	var buf []byte
	lineBuf := make([]byte, 0, 64)
	for _, line := range lines {
		if line.Y1 < sel.MinY || line.Y0 > sel.MaxY {
			continue
		}
		lineBuf = resetToLen(lineBuf, 0)
		for _, c := range line.Chars {
			if c.X >= sel.StartX && c.X <= sel.EndX {
				lineBuf = append(lineBuf, []byte(string(c.C))...)
			}
		}
		if len(lineBuf) > 0 {
			if len(buf) > 0 {
				buf = append(buf, '\n')
			}
			buf = append(buf, lineBuf...)
		}
	}
	return buf
}

// resetToLen truncates s to n without reallocating its backing array,
// letting callers reuse one scratch buffer across a loop of lines instead
// of allocating a slice per iteration.
func resetToLen[T any](s []T, n int) []T {
	return s[:n]
}
