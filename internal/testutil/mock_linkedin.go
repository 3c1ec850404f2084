// Package testutil provides a mock LinkedIn Marketing API server for tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// MockResponse defines a fixed response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockLinkedIn is a configurable mock API server. Handlers are keyed by URL
// path (for example "/adCampaignsV2").
type MockLinkedIn struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requests          map[string]int
	queries           map[string][]url.Values
	lastRequestHeader http.Header
}

// NewMockLinkedIn starts a mock server. Unknown paths answer 404 with a
// provider error payload.
func NewMockLinkedIn() *MockLinkedIn {
	mock := &MockLinkedIn{
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string]int),
		queries:  make(map[string][]url.Values),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests[r.URL.Path]++
		mock.queries[r.URL.Path] = append(mock.queries[r.URL.Path], r.URL.Query())
		mock.lastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		writeJSON(w, http.StatusNotFound, ErrorBody(http.StatusNotFound, "No resource found for "+r.URL.Path))
	}))

	return mock
}

// URL returns the server base URL.
func (m *MockLinkedIn) URL() string {
	return m.server.URL
}

// Client returns an HTTP client for the server.
func (m *MockLinkedIn) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the server.
func (m *MockLinkedIn) Close() {
	m.server.Close()
}

// Reset clears request tracking.
func (m *MockLinkedIn) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.queries = make(map[string][]url.Values)
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for path.
func (m *MockLinkedIn) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse answers every request to path with resp.
func (m *MockLinkedIn) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
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
	})
}

// SetElements serves elements on path as a paginated collection honouring
// the start and count query parameters.
func (m *MockLinkedIn) SetElements(path string, elements []map[string]any) {
	m.SetHandler(path, PagedHandler(elements))
}

// RequestCount returns the number of requests made to path.
func (m *MockLinkedIn) RequestCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[path]
}

// TotalRequests returns the number of requests made to any path.
func (m *MockLinkedIn) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.requests {
		total += n
	}
	return total
}

// Queries returns the query strings received on path, in order.
func (m *MockLinkedIn) Queries(path string) []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]url.Values(nil), m.queries[path]...)
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockLinkedIn) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// PagedHandler serves elements with {paging, elements} bodies.
func PagedHandler(elements []map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, _ := strconv.Atoi(q.Get("start"))
		count, err := strconv.Atoi(q.Get("count"))
		if err != nil || count <= 0 {
			count = 10
		}

		end := start + count
		if start > len(elements) {
			start = len(elements)
		}
		if end > len(elements) {
			end = len(elements)
		}

		writeJSON(w, http.StatusOK, PageBody(elements[start:end], start, count, len(elements)))
	}
}

// PageBody builds a collection response body.
func PageBody(elements []map[string]any, start, count, total int) map[string]any {
	if elements == nil {
		elements = []map[string]any{}
	}
	return map[string]any{
		"paging": map[string]any{
			"start": start,
			"count": count,
			"total": total,
			"links": []any{},
		},
		"elements": elements,
	}
}

// ErrorBody builds a provider error body.
func ErrorBody(status int, message string) map[string]any {
	return map[string]any{
		"serviceErrorCode": 100,
		"status":           status,
		"message":          message,
	}
}

// NewErrorResponse returns a provider error response.
func NewErrorResponse(status int, message string) MockResponse {
	body, _ := json.Marshal(ErrorBody(status, message))
	return MockResponse{
		StatusCode: status,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse returns a 429 with Retry-After.
func NewRateLimitResponse(retryAfter time.Duration) MockResponse {
	resp := NewErrorResponse(http.StatusTooManyRequests, "Resource level throttle limit for calls to this resource is reached.")
	resp.Headers["Retry-After"] = strconv.Itoa(int(retryAfter.Seconds()))
	return resp
}

// Elements builds n elements with sequential ids starting at first.
func Elements(first, n int, extra func(i int) map[string]any) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		e := map[string]any{"id": first + i, "name": fmt.Sprintf("item-%d", first+i)}
		if extra != nil {
			for k, v := range extra(i) {
				e[k] = v
			}
		}
		out = append(out, e)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
