package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/feed-pager/pkg/logging"
	"github.com/Sternrassler/feed-pager/pkg/metrics"
	"github.com/Sternrassler/feed-pager/pkg/pagination"
	"github.com/Sternrassler/feed-pager/pkg/querycache"
	"github.com/Sternrassler/feed-pager/pkg/source"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// viewerHeader scopes a list identity to one viewer.
const viewerHeader = "X-Viewer"

// requestIDHeader carries the request ID, generated when the caller sends none.
const requestIDHeader = "X-Request-ID"

// requestTimeout bounds how long a handler waits for a list operation.
const requestTimeout = 30 * time.Second

type listController = pagination.Controller[json.RawMessage]

type proxyConfig struct {
	Source   *source.Client
	Store    querycache.Store[json.RawMessage]
	Redis    *redis.Client // optional, checked by /ready
	Lists    pagination.Config
	MaxLists int
}

// proxy hosts one controller per list identity.
type proxy struct {
	config proxyConfig
	logger zerolog.Logger

	mu    sync.Mutex
	lists *lru.Cache[string, *listController]
}

// listView is the JSON form of a controller view.
type listView struct {
	Items                []json.RawMessage `json:"items"`
	IsLoading            bool              `json:"isLoading"`
	Error                string            `json:"error,omitempty"`
	HasMore              bool              `json:"hasMore"`
	CurrentPage          int               `json:"currentPage"`
	TotalPages           int               `json:"totalPages"`
	IsInfiniteScrollMode bool              `json:"isInfiniteScrollMode"`
}

func newProxy(cfg proxyConfig) (*proxy, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("source client is required")
	}
	if cfg.MaxLists <= 0 {
		cfg.MaxLists = defaultMaxLists
	}

	p := &proxy{
		config: cfg,
		logger: logging.NewLogger(logging.ComponentProxy),
	}

	lists, err := lru.NewWithEvict(cfg.MaxLists, func(key string, c *listController) {
		p.logger.Debug().Str("key", key).Msg("Closing evicted list controller")
		go c.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("create list registry: %w", err)
	}
	p.lists = lists

	return p, nil
}

func (p *proxy) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(p.config.Redis))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /lists/{name}", p.viewHandler)
	mux.HandleFunc("POST /lists/{name}/more", p.loadMoreHandler)
	mux.HandleFunc("POST /lists/{name}/pages/{page}", p.goToPageHandler)
	return p.withRequestLog(mux)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLog tags every request with an ID and logs its outcome.
func (p *proxy) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		p.logger.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}

// Close closes every live controller.
func (p *proxy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, key := range p.lists.Keys() {
		if c, ok := p.lists.Peek(key); ok {
			c.Close()
		}
	}
	p.lists.Purge()
}

// controller returns the controller for the list identity of r, creating
// it on first use.
func (p *proxy) controller(r *http.Request) (*listController, error) {
	name := r.PathValue("name")
	params := r.URL.Query()
	key := querycache.Key{
		List:   name,
		Params: params,
		Viewer: r.Header.Get(viewerHeader),
	}.String()

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.lists.Get(key); ok {
		return c, nil
	}

	endpoint := "/lists/" + url.PathEscape(name)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	cfg := p.config.Lists
	cfg.CacheKey = key
	c, err := pagination.New(source.Fetch[json.RawMessage](p.config.Source, endpoint), cfg,
		pagination.WithStore(p.config.Store),
		pagination.WithLogger[json.RawMessage](p.logger.With().Str("list", name).Logger()),
	)
	if err != nil {
		return nil, err
	}
	p.lists.Add(key, c)

	p.logger.Debug().Str("key", key).Msg("Created list controller")
	return c, nil
}

func (p *proxy) viewHandler(w http.ResponseWriter, r *http.Request) {
	c, err := p.controller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := c.Wait(ctx); err != nil {
		p.writeWaitError(w, err)
		return
	}
	writeView(w, c.View())
}

func (p *proxy) loadMoreHandler(w http.ResponseWriter, r *http.Request) {
	c, err := p.controller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	p.apply(w, r, c, c.LoadMore())
}

func (p *proxy) goToPageHandler(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page < 1 {
		http.Error(w, fmt.Sprintf("invalid page %q", r.PathValue("page")), http.StatusBadRequest)
		return
	}

	c, err := p.controller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	p.apply(w, r, c, c.GoToPage(page))
}

// apply waits for an operation to be applied and writes the resulting view.
func (p *proxy) apply(w http.ResponseWriter, r *http.Request, c *listController, done <-chan struct{}) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	select {
	case <-done:
	case <-ctx.Done():
		p.writeWaitError(w, ctx.Err())
		return
	}
	writeView(w, c.View())
}

func (p *proxy) writeWaitError(w http.ResponseWriter, err error) {
	p.logger.Warn().Err(err).Msg("List operation did not complete")
	http.Error(w, err.Error(), http.StatusServiceUnavailable)
}

func writeView(w http.ResponseWriter, v pagination.View[json.RawMessage]) {
	out := listView{
		Items:                v.Items,
		IsLoading:            v.IsLoading,
		HasMore:              v.HasMore,
		CurrentPage:          v.CurrentPage,
		TotalPages:           v.TotalPages,
		IsInfiniteScrollMode: v.IsInfiniteScrollMode,
	}
	if out.Items == nil {
		out.Items = []json.RawMessage{}
	}
	if v.Err != nil {
		out.Error = v.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(out)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports readiness; with Redis configured it must answer PING.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}
