package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/feed-pager/pkg/logging"
	"github.com/Sternrassler/feed-pager/pkg/querycache"
	"github.com/rs/zerolog"
)

// EstimatedTotalItems is the list size assumed when switching to paged mode
// while the source still reports more items. The source never reports a
// total, so TotalPages is an estimate until HasMore becomes false.
const EstimatedTotalItems = 100

// ErrClosed is returned by Wait after Close.
var ErrClosed = errors.New("controller closed")

// Operation names used in logs and metrics.
const (
	opInitial  = "initial"
	opLoadMore = "load_more"
	opGoToPage = "go_to_page"
)

type taskKind int

const (
	taskInit taskKind = iota
	taskLoadMore
	taskGoToPage
	taskBarrier
)

type task struct {
	kind    taskKind
	page    int
	counted bool // contributes to IsLoading
	done    chan struct{}
}

// state is owned by the worker goroutine; other goroutines read it under mu.
type state[T any] struct {
	items       []T
	all         []T
	cursor      string
	hasMore     bool
	infinite    bool
	currentPage int
	totalPages  int
	err         error
	initialized bool
}

// Controller drives one paginated list.
type Controller[T any] struct {
	fetch  FetchFunc[T]
	config Config
	store  querycache.Store[T]
	logger zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wake    chan struct{}
	stopped chan struct{}

	mu        sync.RWMutex
	st        state[T]
	queue     []task
	busy      int
	closed    bool
	listeners map[int]func(View[T])
	nextID    int

	sentinel  *Sentinel[T]
	closeOnce sync.Once
}

// Option configures a Controller.
type Option[T any] func(*Controller[T])

// WithStore enables the query cache for controllers with a CacheKey.
func WithStore[T any](store querycache.Store[T]) Option[T] {
	return func(c *Controller[T]) {
		c.store = store
	}
}

// WithLogger replaces the default component logger.
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(c *Controller[T]) {
		c.logger = logger
	}
}

// New creates a controller and schedules its initial load. The initial
// load restores the cached snapshot for cfg.CacheKey when one exists and
// fetches cfg.InitialPageSize items otherwise.
func New[T any](fetch FetchFunc[T], cfg Config, opts ...Option[T]) (*Controller[T], error) {
	if fetch == nil {
		return nil, fmt.Errorf("fetch function is required")
	}

	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller[T]{
		fetch:     fetch,
		config:    cfg,
		logger:    logging.NewLogger(logging.ComponentPagination),
		ctx:       ctx,
		cancel:    cancel,
		wake:      make(chan struct{}, 1),
		stopped:   make(chan struct{}),
		listeners: make(map[int]func(View[T])),
		st: state[T]{
			hasMore:     true,
			infinite:    true,
			currentPage: 1,
			totalPages:  1,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.CacheKey != "" {
		if c.store == nil {
			cancel()
			return nil, fmt.Errorf("cache key %q requires a store (use WithStore)", cfg.CacheKey)
		}
		c.logger = c.logger.With().Str("cache_key", cfg.CacheKey).Logger()
	}

	c.sentinel = &Sentinel[T]{c: c, target: -1}
	c.busy = 1

	go c.run()
	c.enqueue(task{kind: taskInit, counted: true})

	return c, nil
}

// LoadMore grows the infinite-scroll window by IncrementSize items.
// It is a no-op while another operation is pending, when the source is
// exhausted or in paged mode. The returned channel is closed once the
// request has been applied or rejected.
func (c *Controller[T]) LoadMore() <-chan struct{} {
	c.mu.Lock()
	if c.closed || c.busy > 0 || !c.st.hasMore || (c.st.initialized && !c.st.infinite) {
		busy := c.busy
		c.mu.Unlock()
		c.logger.Debug().Int("busy", busy).Msg("Load more skipped")
		return closedChan()
	}
	c.busy++
	c.mu.Unlock()

	c.notify()
	return c.enqueue(task{kind: taskLoadMore, counted: true})
}

// GoToPage shows page in paged mode, fetching whatever part of the page has
// not been fetched yet. Requests are queued behind pending operations and
// validated against the state current when they run: page must lie in
// [1, TotalPages] and differ from CurrentPage.
func (c *Controller[T]) GoToPage(page int) <-chan struct{} {
	if page < 1 {
		return closedChan()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return closedChan()
	}
	c.busy++
	c.mu.Unlock()

	c.notify()
	return c.enqueue(task{kind: taskGoToPage, page: page, counted: true})
}

// Wait blocks until every operation submitted before the call has been
// applied.
func (c *Controller[T]) Wait(ctx context.Context) error {
	done := c.enqueue(task{kind: taskBarrier})
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return nil
}

// View returns the current read-only state.
func (c *Controller[T]) View() View[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return View[T]{
		Items:                cloneItems(c.st.items),
		IsLoading:            c.busy > 0,
		Err:                  c.st.err,
		HasMore:              c.st.hasMore,
		CurrentPage:          c.st.currentPage,
		TotalPages:           c.st.totalPages,
		IsInfiniteScrollMode: c.st.infinite,
	}
}

// Snapshot returns the full reconstructable state, including every item
// fetched so far.
func (c *Controller[T]) Snapshot() *querycache.Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// OnChange registers fn to be called with the new view after every state
// change. fn runs on the goroutine that changed the state and must not call
// Close. The returned function unregisters fn.
func (c *Controller[T]) OnChange(fn func(View[T])) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Sentinel returns the visibility trigger attached to the last displayed item.
func (c *Controller[T]) Sentinel() *Sentinel[T] {
	return c.sentinel
}

// Close stops the worker and cancels the context passed to the fetch
// function. It waits for an in-flight fetch to return; results landing
// after Close are discarded.
func (c *Controller[T]) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		pending := c.queue
		c.queue = nil
		c.mu.Unlock()

		c.cancel()
		<-c.stopped

		for _, t := range pending {
			c.complete(t)
		}
	})
}

func (c *Controller[T]) enqueue(t task) <-chan struct{} {
	t.done = make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.complete(t)
		return t.done
	}
	c.queue = append(c.queue, t)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return t.done
}

// run is the single worker serving the task queue.
func (c *Controller[T]) run() {
	defer close(c.stopped)

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		if len(c.queue) == 0 {
			c.mu.Unlock()
			select {
			case <-c.wake:
			case <-c.ctx.Done():
			}
			continue
		}
		t := c.queue[0]
		c.queue[0] = task{}
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.handle(t)
	}
}

func (c *Controller[T]) handle(t task) {
	switch t.kind {
	case taskInit:
		c.initialize()
	case taskLoadMore:
		c.loadMore()
	case taskGoToPage:
		c.goToPage(t.page)
	}
	c.complete(t)
}

func (c *Controller[T]) complete(t task) {
	if t.counted {
		c.mu.Lock()
		c.busy--
		c.mu.Unlock()
	}
	close(t.done)
	if t.counted {
		c.notify()
	}
}

func (c *Controller[T]) notify() {
	c.mu.RLock()
	if len(c.listeners) == 0 {
		c.mu.RUnlock()
		return
	}
	fns := make([]func(View[T]), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	view := c.View()
	for _, fn := range fns {
		fn(view)
	}
}

// initialize restores the cached snapshot or performs the first fetch.
func (c *Controller[T]) initialize() {
	if c.restore() {
		return
	}

	page, err := c.doFetch(opInitial, "", c.config.InitialPageSize)
	if err != nil {
		c.fail(opInitial, err)
		return
	}

	cursor, hasMore := page.next()

	c.mu.Lock()
	c.st = state[T]{
		items:       cloneItems(page.Items),
		all:         cloneItems(page.Items),
		cursor:      cursor,
		hasMore:     hasMore,
		infinite:    true,
		currentPage: 1,
		totalPages:  1,
		initialized: true,
	}
	switched := c.reachThresholdLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug().
		Int("items", len(page.Items)).
		Bool("has_more", hasMore).
		Msg("Initial load complete")
	if switched {
		c.logSwitch(snap)
	}

	c.persist(snap)
}

func (c *Controller[T]) restore() bool {
	if c.store == nil || c.config.CacheKey == "" {
		return false
	}

	snap, err := c.store.Get(c.ctx, c.config.CacheKey)
	if err != nil {
		if !errors.Is(err, querycache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Msg("Query cache get error")
		} else {
			c.logger.Debug().Msg("Query cache miss")
		}
		return false
	}

	c.mu.Lock()
	c.st = state[T]{
		items:       cloneItems(snap.Items),
		all:         cloneItems(snap.AllFetchedItems),
		cursor:      snap.Cursor,
		hasMore:     snap.HasMore,
		infinite:    snap.IsInfiniteScrollMode,
		currentPage: max(snap.CurrentPage, 1),
		totalPages:  max(snap.TotalPages, 1),
		initialized: true,
	}
	c.mu.Unlock()

	c.logger.Debug().
		Int("items", len(snap.Items)).
		Int("fetched", len(snap.AllFetchedItems)).
		Bool("infinite_scroll", snap.IsInfiniteScrollMode).
		Msg("Restored from query cache")
	return true
}

func (c *Controller[T]) loadMore() {
	c.mu.RLock()
	initialized := c.st.initialized
	infinite := c.st.infinite
	hasMore := c.st.hasMore
	cursor := c.st.cursor
	fetched := len(c.st.all)
	c.mu.RUnlock()

	// A failed initial load is retried by the next load-more.
	if !initialized {
		c.initialize()
		return
	}
	if !infinite || !hasMore {
		return
	}

	target := min(fetched+c.config.IncrementSize, c.config.MaxInfiniteScroll)
	count := target - fetched
	if count <= 0 {
		// Threshold already reached, e.g. by a restored snapshot.
		c.mu.Lock()
		switched := c.reachThresholdLocked()
		snap := c.snapshotLocked()
		c.mu.Unlock()
		if switched {
			c.logSwitch(snap)
			c.persist(snap)
		}
		return
	}

	page, err := c.doFetch(opLoadMore, cursor, count)
	if err != nil {
		c.fail(opLoadMore, err)
		return
	}

	cursor, hasMore = page.next()

	c.mu.Lock()
	c.st.all = append(c.st.all, page.Items...)
	c.st.items = append(c.st.items, page.Items...)
	c.st.cursor = cursor
	c.st.hasMore = hasMore
	c.st.err = nil

	switched := c.reachThresholdLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if switched {
		c.logSwitch(snap)
	}

	c.persist(snap)
}

// reachThresholdLocked switches to paged mode once the accumulated set
// reaches MaxInfiniteScroll. Callers hold c.mu.
func (c *Controller[T]) reachThresholdLocked() bool {
	if !c.st.infinite || len(c.st.all) < c.config.MaxInfiniteScroll {
		return false
	}
	c.enterPagedModeLocked()
	return true
}

func (c *Controller[T]) logSwitch(snap *querycache.Snapshot[T]) {
	modeTransitionsTotal.Inc()
	c.logger.Info().
		Int("fetched", len(snap.AllFetchedItems)).
		Int("total_pages", snap.TotalPages).
		Bool("has_more", snap.HasMore).
		Msg("Switched to paged mode")
}

// enterPagedModeLocked performs the one-way switch to paged mode and shows
// page 1. Callers hold c.mu.
func (c *Controller[T]) enterPagedModeLocked() {
	total := len(c.st.all)
	if c.st.hasMore {
		total = max(EstimatedTotalItems, total)
	}

	c.st.infinite = false
	c.st.totalPages = pageCount(total, c.config.FullPageSize)
	c.st.currentPage = 1
	c.st.items = window(c.st.all, 1, c.config.FullPageSize)
}

func (c *Controller[T]) goToPage(page int) {
	c.mu.RLock()
	current := c.st.currentPage
	totalPages := c.st.totalPages
	cursor := c.st.cursor
	hasMore := c.st.hasMore
	have := len(c.st.all)
	c.mu.RUnlock()

	if page < 1 || page > totalPages || page == current {
		return
	}

	end := page * c.config.FullPageSize
	var fetched []T

	for have+len(fetched) < end && hasMore {
		need := min(c.config.FullPageSize, end-(have+len(fetched)))

		resp, err := c.doFetch(opGoToPage, cursor, need)
		if err != nil {
			// Keep what was fetched so far; it is consistent with cursor.
			c.mu.Lock()
			c.st.all = append(c.st.all, fetched...)
			c.st.cursor = cursor
			c.st.hasMore = hasMore
			c.mu.Unlock()

			c.fail(opGoToPage, err)
			return
		}

		cursor, hasMore = resp.next()
		if len(resp.Items) == 0 {
			c.logger.Warn().
				Int("page", page).
				Bool("has_more", hasMore).
				Msg("Source returned no items, stopping page fill")
			break
		}
		fetched = append(fetched, resp.Items...)
	}

	c.mu.Lock()
	c.st.all = append(c.st.all, fetched...)
	c.st.cursor = cursor
	c.st.hasMore = hasMore
	c.st.err = nil

	if !hasMore {
		// The exact total is known once the source is exhausted.
		c.st.totalPages = pageCount(len(c.st.all), c.config.FullPageSize)
		page = min(page, c.st.totalPages)
	} else if page == c.st.totalPages && len(c.st.all) >= page*c.config.FullPageSize {
		c.st.totalPages++
	}

	c.st.items = window(c.st.all, page, c.config.FullPageSize)
	c.st.currentPage = page
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug().
		Int("page", page).
		Int("total_pages", snap.TotalPages).
		Int("fetched", len(snap.AllFetchedItems)).
		Msg("Page changed")

	c.persist(snap)
}

// doFetch calls the fetch function. Results arriving after Close are
// reported as ErrClosed so callers drop them.
func (c *Controller[T]) doFetch(op, cursor string, count int) (Page[T], error) {
	start := time.Now()
	page, err := c.fetch(c.ctx, cursor, count)
	fetchDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	fetchesTotal.WithLabelValues(op).Inc()

	if c.ctx.Err() != nil {
		return Page[T]{}, ErrClosed
	}
	if err != nil {
		fetchErrorsTotal.WithLabelValues(op).Inc()
		return Page[T]{}, fmt.Errorf("%s: %w", op, err)
	}

	itemsFetchedTotal.Add(float64(len(page.Items)))
	c.logger.Debug().
		Str("operation", op).
		Int("requested", count).
		Int("received", len(page.Items)).
		Dur("duration", time.Since(start)).
		Msg("Fetched items")

	return page, nil
}

// fail records err as the controller error. Existing items stay displayed.
func (c *Controller[T]) fail(op string, err error) {
	if errors.Is(err, ErrClosed) {
		return
	}

	c.mu.Lock()
	c.st.err = err
	shown := len(c.st.items)
	c.mu.Unlock()

	c.logger.Warn().
		Err(err).
		Str("operation", op).
		Int("items", shown).
		Msg("Fetch failed")
}

func (c *Controller[T]) persist(snap *querycache.Snapshot[T]) {
	if c.store == nil || c.config.CacheKey == "" {
		return
	}
	if err := c.store.Set(c.ctx, c.config.CacheKey, snap); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to write query cache")
	}
}

func (c *Controller[T]) snapshotLocked() *querycache.Snapshot[T] {
	return &querycache.Snapshot[T]{
		Items:                cloneItems(c.st.items),
		AllFetchedItems:      cloneItems(c.st.all),
		Cursor:               c.st.cursor,
		HasMore:              c.st.hasMore,
		IsInfiniteScrollMode: c.st.infinite,
		CurrentPage:          c.st.currentPage,
		TotalPages:           c.st.totalPages,
	}
}

// pageCount returns ceil(n/size), at least 1.
func pageCount(n, size int) int {
	return max((n+size-1)/size, 1)
}

// window returns a copy of the items shown on page.
func window[T any](all []T, page, size int) []T {
	lo := min((page-1)*size, len(all))
	hi := min(page*size, len(all))
	return cloneItems(all[lo:hi])
}

func cloneItems[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
