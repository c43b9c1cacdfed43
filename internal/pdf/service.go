package pdf

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bugzmanov/bookokrat/internal/pdf/toc"
)

// DocumentInfo is the metadata a document reload refreshes.
type DocumentInfo struct {
	Title         string
	PageCount     int
	TOC           []toc.Entry
	PageNumbers   *toc.PageNumberTracker
}

// RenderService owns the state machine, request/response channels, cache,
// worker pool, and in-flight bookkeeping (spec §4.2).
type RenderService struct {
	mu sync.Mutex

	state    RenderState
	engine   Engine
	document Document
	docPath  string

	cache     *Cache
	requests  chan Request
	responses chan Response
	pool      *WorkerPool

	nextID         RequestID
	pending        map[RequestID]bool
	prefetching    map[int]bool
	prefetchRadius int
	workerCount    int

	events *events
	logger *slog.Logger

	watcher    *fsnotify.Watcher
	watcherOff chan struct{}
}

// NewRenderService constructs a service against engine, with the given
// config. The document is not opened until ApplyCommand(Reload) after
// Open has been called.
func NewRenderService(engine Engine, cfg Config, logger *slog.Logger) *RenderService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.PrefetchRadius <= 0 {
		cfg.PrefetchRadius = DefaultPrefetchRadius
	}

	svc := &RenderService{
		state:          NewRenderState(),
		engine:         engine,
		cache:          NewCache(cfg.CacheSize),
		requests:       make(chan Request, 64),
		responses:      make(chan Response, 64),
		pending:        make(map[RequestID]bool),
		prefetching:    make(map[int]bool),
		prefetchRadius: cfg.PrefetchRadius,
		workerCount:    cfg.Workers,
		events:         newEvents(),
		logger:         logger,
	}
	svc.pool = NewWorkerPool(cfg.Workers, svc.requests, svc.responses, svc.currentDocument, svc.cache, logger)
	return svc
}

// Events returns the channel service lifecycle notifications are published
// on (an adapted, domain-specific use of the teacher's event dispatcher).
func (s *RenderService) Events() <-chan Event { return s.events.subscribe() }

// Open registers the document path to be (re)loaded by the next Reload
// command, without performing I/O itself.
func (s *RenderService) Open(path string) {
	s.mu.Lock()
	s.docPath = path
	s.mu.Unlock()
}

// currentDocument is the accessor worker goroutines use; it must not block
// on s.mu for long since workers call it once per request.
func (s *RenderService) currentDocument() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// ApplyCommand mutates state and executes the resulting effects.
func (s *RenderService) ApplyCommand(cmd Command) {
	s.mu.Lock()
	effects := s.state.Apply(cmd)
	s.mu.Unlock()

	for _, eff := range effects {
		s.executeEffect(eff)
	}
}

func (s *RenderService) executeEffect(eff Effect) {
	switch eff.Kind {
	case EffInvalidateCache:
		s.cache.InvalidateAll()
		s.mu.Lock()
		s.prefetching = make(map[int]bool)
		s.mu.Unlock()

	case EffInvalidatePage:
		s.cache.InvalidatePage(eff.Page)
		s.mu.Lock()
		delete(s.prefetching, eff.Page)
		s.mu.Unlock()

	case EffRenderCurrentPage:
		s.mu.Lock()
		page := s.state.CurrentPage
		s.mu.Unlock()
		s.RequestPage(page)

	case EffRenderPage:
		s.RequestPage(eff.Page)

	case EffReloadDocument:
		s.reloadDocument()

	case EffUpdatePrefetch:
		s.updatePrefetch()
	}
}

func (s *RenderService) reloadDocument() {
	s.mu.Lock()
	path := s.docPath
	old := s.document
	s.mu.Unlock()

	if path == "" {
		return
	}
	doc, err := s.engine.Open(path)
	if err != nil {
		s.logger.Warn("reload failed", "path", path, "err", err)
		s.events.publish(Event{Kind: EventReloadFailed, Err: err})
		return
	}
	if old != nil {
		_ = old.Close()
	}

	n := doc.PageCount()
	tocEntries := toc.ExtractTOC(doc)
	numbers := toc.NewPageNumberTracker()
	numbers.SetTargets(n)
	for _, idx := range toc.SampleTargets(n) {
		page, err := doc.Page(idx)
		if err != nil {
			continue
		}
		lines, err := page.TextLines()
		if err != nil {
			continue
		}
		_, h := page.Bounds()
		numbers.Observe(idx, lines, h)
	}

	title, _ := doc.Metadata("Title")

	s.mu.Lock()
	s.document = doc
	s.state.PageCount = n
	if s.state.CurrentPage >= s.state.PageCount {
		s.state.CurrentPage = clampPage(s.state.CurrentPage, s.state.PageCount)
	}
	s.mu.Unlock()

	s.events.publish(Event{Kind: EventDocumentReloaded, Info: &DocumentInfo{
		Title:       title,
		PageCount:   n,
		TOC:         tocEntries,
		PageNumbers: numbers,
	}})
}

// RequestPage enqueues a normal-priority page request, returning its ID.
// Marking the page as prefetching too (not just pending) lets
// RequestPageIfNeeded/requestPrefetchIfNeeded recognize it as already
// in flight, so a later EffUpdatePrefetch in the same effect batch (e.g.
// GoToPage's [EffRenderCurrentPage, EffUpdatePrefetch]) doesn't enqueue a
// second, redundant request for the same page.
func (s *RenderService) RequestPage(page int) RequestID {
	s.mu.Lock()
	id := s.allocID()
	params := s.state.Params()
	s.pending[id] = true
	s.prefetching[page] = true
	s.mu.Unlock()

	s.requests <- Request{ID: id, Kind: ReqPage, Page: page, Params: params}
	return id
}

// RequestPageIfNeeded skips enqueueing if the page is already cached or
// in flight for the current params.
func (s *RenderService) RequestPageIfNeeded(page int) (RequestID, bool) {
	s.mu.Lock()
	params := s.state.Params()
	inFlight := s.prefetching[page]
	s.mu.Unlock()

	if inFlight {
		return 0, false
	}
	if s.cache.Contains(NewCacheKey(page, params)) {
		return 0, false
	}
	return s.RequestPage(page), true
}

// ExtractText enqueues a text-extraction request over the given bounds.
func (s *RenderService) ExtractText(bounds []PageSelectionBounds) RequestID {
	s.mu.Lock()
	id := s.allocID()
	s.pending[id] = true
	s.mu.Unlock()

	s.requests <- Request{ID: id, Kind: ReqExtractText, Bounds: bounds}
	return id
}

// allocID must be called with s.mu held.
func (s *RenderService) allocID() RequestID {
	s.nextID++
	return s.nextID
}

// PollResponses drains completed work, updating in-flight bookkeeping.
func (s *RenderService) PollResponses() []Response {
	var out []Response
	for {
		select {
		case r := <-s.responses:
			s.accountResponse(r)
			out = append(out, r)
		default:
			return out
		}
	}
}

func (s *RenderService) accountResponse(r Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Kind {
	case RespPage, RespCancelled, RespError:
		delete(s.pending, r.ID)
		if r.Page != nil {
			delete(s.prefetching, r.Page.Page)
		}
	case RespExtractedText:
		delete(s.pending, r.ID)
	}
}

// GetCachedPage is a non-blocking cache probe.
func (s *RenderService) GetCachedPage(page int) (*PageData, bool) {
	s.mu.Lock()
	params := s.state.Params()
	s.mu.Unlock()
	return s.cache.Get(NewCacheKey(page, params))
}

// IsPageCached reports whether a page is cached under current params.
func (s *RenderService) IsPageCached(page int) bool {
	s.mu.Lock()
	params := s.state.Params()
	s.mu.Unlock()
	return s.cache.Contains(NewCacheKey(page, params))
}

// updatePrefetch implements the §4.3 prefetch policy.
func (s *RenderService) updatePrefetch() {
	s.mu.Lock()
	current := s.state.CurrentPage
	pageCount := s.state.PageCount
	radius := s.prefetchRadius
	s.mu.Unlock()

	if pageCount <= 0 {
		return
	}

	if _, inFlight := s.RequestPageIfNeeded(current); inFlight {
		s.markPrefetching(current)
	}

	for offset := 1; offset <= radius; offset++ {
		for _, p := range []int{current - offset, current + offset} {
			if p < 0 || p >= pageCount {
				continue
			}
			if _, enqueued := s.requestPrefetchIfNeeded(p); enqueued {
				s.markPrefetching(p)
			}
		}
	}
}

func (s *RenderService) markPrefetching(page int) {
	s.mu.Lock()
	s.prefetching[page] = true
	s.mu.Unlock()
}

func (s *RenderService) requestPrefetchIfNeeded(page int) (RequestID, bool) {
	s.mu.Lock()
	params := s.state.Params()
	inFlight := s.prefetching[page]
	s.mu.Unlock()

	if inFlight {
		return 0, false
	}
	if s.cache.Contains(NewCacheKey(page, params)) {
		return 0, false
	}

	s.mu.Lock()
	id := s.allocID()
	s.pending[id] = true
	params = s.state.Params()
	s.mu.Unlock()

	s.requests <- Request{ID: id, Kind: ReqPrefetch, Page: page, Params: params}
	return id, true
}

// WatchDocument starts watching the open document's file for external
// modification, issuing a Reload command whenever it changes (supplemented
// feature; see SPEC_FULL.md). Safe to call once; a second call is a no-op.
func (s *RenderService) WatchDocument() error {
	s.mu.Lock()
	if s.watcher != nil {
		s.mu.Unlock()
		return nil
	}
	path := s.docPath
	s.mu.Unlock()

	if path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return err
	}

	s.mu.Lock()
	s.watcher = w
	s.watcherOff = make(chan struct{})
	s.mu.Unlock()

	go s.watchLoop(w, s.watcherOff)
	return nil
}

func (s *RenderService) watchLoop(w *fsnotify.Watcher, off chan struct{}) {
	var debounce *time.Timer
	for {
		select {
		case <-off:
			if debounce != nil {
				debounce.Stop()
			}
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(150*time.Millisecond, func() {
				s.ApplyCommand(Command{Kind: CmdReload})
			})
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

// StopWatching stops the document watcher started by WatchDocument.
func (s *RenderService) StopWatching() {
	s.mu.Lock()
	w, off := s.watcher, s.watcherOff
	s.watcher, s.watcherOff = nil, nil
	s.mu.Unlock()

	if off != nil {
		close(off)
	}
	if w != nil {
		_ = w.Close()
	}
}

// Shutdown broadcasts a shutdown sentinel to all workers and waits for them
// to exit.
func (s *RenderService) Shutdown() {
	s.StopWatching()
	for i := 0; i < s.workerCount; i++ {
		s.requests <- Request{Kind: ReqShutdown}
	}
	s.pool.Wait()
	s.events.close()

	s.mu.Lock()
	if s.document != nil {
		_ = s.document.Close()
		s.document = nil
	}
	s.mu.Unlock()
}
