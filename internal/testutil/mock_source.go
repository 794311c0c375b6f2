// Package testutil provides testing utilities for feed-pager.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a canned response for a mock list endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockItem is the item served by MockSource lists.
type MockItem struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type mockPageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

type mockPage struct {
	Items    []MockItem    `json:"items"`
	PageInfo *mockPageInfo `json:"pageInfo"`
}

// MockSource is a configurable cursor-paginated list server for testing.
// Lists are served under /lists/{name}?count=N&cursor=C where the cursor is
// the offset of the next item.
type MockSource struct {
	server *httptest.Server

	mu       sync.RWMutex
	lists    map[string]int
	failures map[string][]MockResponse

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	LastQuery         map[string]string
}

// NewMockSource creates a new mock list server.
func NewMockSource() *MockSource {
	mock := &MockSource{
		lists:    make(map[string]int),
		failures: make(map[string][]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastQuery = make(map[string]string)
		for key := range r.URL.Query() {
			mock.LastQuery[key] = r.URL.Query().Get(key)
		}

		// Queued failures take precedence over list content
		var failure *MockResponse
		if queue := mock.failures[r.URL.Path]; len(queue) > 0 {
			failure = &queue[0]
			mock.failures[r.URL.Path] = queue[1:]
		}
		mock.mu.Unlock()

		if failure != nil {
			writeResponse(w, *failure)
			return
		}
		mock.listHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockSource) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSource) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.LastQuery = nil
}

// SetList serves a list of total items under /lists/{name}.
func (m *MockSource) SetList(name string, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists["/lists/"+name] = total
}

// QueueFailure makes the next request for /lists/{name} return resp.
// Queued responses are served in order before normal list content.
func (m *MockSource) QueueFailure(name string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := "/lists/" + name
	m.failures[path] = append(m.failures[path], resp)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSource) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastQuery returns the query parameters of the last request.
func (m *MockSource) GetLastQuery() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// GetLastHeader returns a header of the last request.
func (m *MockSource) GetLastHeader(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader.Get(key)
}

func (m *MockSource) listHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	total, ok := m.lists[r.URL.Path]
	m.mu.RUnlock()

	if !ok {
		http.Error(w, `{"error": "list not found"}`, http.StatusNotFound)
		return
	}

	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count <= 0 {
		http.Error(w, `{"error": "invalid count"}`, http.StatusBadRequest)
		return
	}

	offset := 0
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		offset, err = strconv.Atoi(cursor)
		if err != nil || offset < 0 {
			http.Error(w, `{"error": "invalid cursor"}`, http.StatusBadRequest)
			return
		}
	}

	end := min(offset+count, total)
	name := strings.TrimPrefix(r.URL.Path, "/lists/")

	page := mockPage{Items: []MockItem{}, PageInfo: &mockPageInfo{HasNextPage: end < total}}
	for i := offset; i < end; i++ {
		page.Items = append(page.Items, MockItem{ID: i, Name: fmt.Sprintf("%s-%d", name, i)})
	}
	if page.PageInfo.HasNextPage {
		next := strconv.Itoa(end)
		page.PageInfo.EndCursor = &next
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(page)
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewBadRequestResponse creates a 400 Bad Request response.
func NewBadRequestResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error": "Bad request"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>not json</html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}
