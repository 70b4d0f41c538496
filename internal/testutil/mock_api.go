// Package testutil provides testing utilities for the ClinicalTrials.gov client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// MockAPI is a configurable mock ClinicalTrials.gov server for testing.
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount int
	LastQuery    url.Values
	LastHeader   http.Header
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = r.URL.Query()
		mock.LastHeader = r.Header.Clone()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL, usable as the client's BaseURL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastQuery = nil
	m.LastHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastQuery returns the query parameters of the most recent request.
func (m *MockAPI) GetLastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// defaultHandler serves the version endpoint and 404s everything else.
func (m *MockAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/version" {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"apiVersion": "2.0.4", "dataTimestamp": "2024-01-15T08:00:00Z"}`)
		return
	}

	w.WriteHeader(http.StatusNotFound)
	fmt.Fprint(w, `{"message": "not found"}`)
}

// Study builds a study record JSON string with the usual nested sections.
func Study(nctID, title, status, sponsor, phase string) string {
	record := map[string]any{
		"protocolSection": map[string]any{
			"identificationModule": map[string]any{
				"nctId":          nctID,
				"briefTitle":     title,
				"orgStudyIdInfo": map[string]any{"id": "ORG-" + nctID},
			},
			"statusModule": map[string]any{
				"overallStatus":        status,
				"startDateStruct":      map[string]any{"date": "2022-01-15"},
				"completionDateStruct": map[string]any{"date": "2024-06"},
			},
			"sponsorCollaboratorsModule": map[string]any{
				"leadSponsor": map[string]any{"name": sponsor},
			},
			"designModule": map[string]any{
				"studyType":      "INTERVENTIONAL",
				"phases":         []string{phase},
				"enrollmentInfo": map[string]any{"count": 42},
			},
			"conditionsModule": map[string]any{
				"conditions": []string{"Pompe Disease"},
				"keywords":   []string{"enzyme replacement"},
			},
			"contactsLocationsModule": map[string]any{
				"locations": []map[string]any{
					{"facility": "General Hospital", "city": "Boston", "country": "United States"},
				},
			},
		},
	}

	data, err := json.Marshal(record)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// PagedStudiesHandler serves the studies endpoint from a fixed record list,
// honoring pageSize and pageToken the way the real endpoint does: tokens are
// opaque, and the last page carries none.
func PagedStudiesHandler(records []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		pageSize, _ := strconv.Atoi(q.Get("pageSize"))
		if pageSize <= 0 {
			pageSize = 10
		}

		start := 0
		if token := q.Get("pageToken"); token != "" {
			start, _ = strconv.Atoi(strings.TrimPrefix(token, "tok-"))
		}
		if start > len(records) {
			start = len(records)
		}

		end := start + pageSize
		if end > len(records) {
			end = len(records)
		}

		var body strings.Builder
		body.WriteString(`{"studies": [`)
		body.WriteString(strings.Join(records[start:end], ", "))
		body.WriteString(`]`)
		if end < len(records) {
			fmt.Fprintf(&body, `, "nextPageToken": "tok-%d"`, end)
		}
		if q.Get("countTotal") == "true" {
			fmt.Fprintf(&body, `, "totalCount": %d`, len(records))
		}
		body.WriteString(`}`)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, body.String())
	}
}

// FlakyHandler fails the first `failures` requests with the given status,
// then delegates to next.
func FlakyHandler(failures int, status int, next http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	attempts := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		failing := attempts <= failures
		mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprint(w, `{"message": "temporary failure"}`)
			return
		}
		next(w, r)
	}
}

// GarbageHandler responds 200 with a body that is not JSON the first
// `failures` requests, then delegates to next.
func GarbageHandler(failures int, next http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	attempts := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		failing := attempts <= failures
		mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "<html>maintenance page</html>")
			return
		}
		next(w, r)
	}
}

// AlwaysFailHandler responds with the given status on every request.
func AlwaysFailHandler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, `{"message": "server error"}`)
	}
}
