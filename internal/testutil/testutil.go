// Package testutil provides common test utilities and helpers for CoachFlow tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coachflow/coachflow/internal/api"
	"github.com/coachflow/coachflow/internal/flow"
	"github.com/coachflow/coachflow/internal/models"
	"github.com/coachflow/coachflow/internal/store"
)

// WebhookRecorder captures the payloads a debouncer drains during a test.
type WebhookRecorder struct {
	mu       sync.Mutex
	payloads []models.WebhookPayload
}

// Process is the flow.ProcessFunc to hand the debouncer under test.
func (r *WebhookRecorder) Process(_ string, batch []models.WebhookPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, batch...)
}

// Payloads returns everything drained so far.
func (r *WebhookRecorder) Payloads() []models.WebhookPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.WebhookPayload, len(r.payloads))
	copy(out, r.payloads)
	return out
}

// WaitForPayloads polls until at least n payloads were drained or the
// timeout elapses.
func (r *WebhookRecorder) WaitForPayloads(t *testing.T, n int, timeout time.Duration) []models.WebhookPayload {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got := r.Payloads(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	got := r.Payloads()
	t.Fatalf("timed out waiting for %d payloads, got %d", n, len(got))
	return got
}

// NewTestServer creates an API server backed by an in-memory store and
// a short-window debouncer draining into the returned recorder.
func NewTestServer(t *testing.T) (*api.Server, *store.InMemoryStore, *WebhookRecorder) {
	t.Helper()
	st := store.NewInMemoryStore()
	rec := &WebhookRecorder{}
	debouncer := flow.NewDebouncer(20*time.Millisecond, rec.Process)
	t.Cleanup(debouncer.Stop)
	return api.NewServer(st, debouncer, api.WithAddr(":0")), st, rec
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// SeedTestUser persists a minimal user record for handler tests.
func SeedTestUser(t *testing.T, st store.Store, subscriberID, handle string) *models.UserRecord {
	t.Helper()
	user := models.NewUserRecord(subscriberID, handle, time.Now())
	if err := st.SaveUser(*user); err != nil {
		t.Fatalf("failed to seed user %s: %v", subscriberID, err)
	}
	return user
}
