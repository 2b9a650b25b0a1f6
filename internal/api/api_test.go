package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coachflow/coachflow/internal/models"
	"github.com/coachflow/coachflow/internal/testutil"
)

func TestWebhookEnqueuesValidEvent(t *testing.T) {
	server, _, rec := testutil.NewTestServer(t)
	handler := server.Handler()

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/webhook", models.WebhookPayload{
		SubscriberID: "sub-1",
		Username:     "lifting_laura",
		MessageText:  "hey coach",
	})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook")
	testutil.AssertJSONResponse(t, rr, "accepted")

	got := rec.WaitForPayloads(t, 1, 2*time.Second)
	if got[0].SubscriberID != "sub-1" || got[0].MessageText != "hey coach" {
		t.Errorf("unexpected drained payload: %+v", got[0])
	}
}

func TestWebhookAcksInvalidJSON(t *testing.T) {
	server, _, rec := testutil.NewTestServer(t)
	handler := server.Handler()

	req, err := http.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// The platform retries failed deliveries, so garbage is acked and
	// dropped rather than rejected.
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook invalid JSON")
	testutil.AssertJSONResponse(t, rr, "accepted")

	time.Sleep(60 * time.Millisecond)
	if got := rec.Payloads(); len(got) != 0 {
		t.Errorf("invalid JSON must not be enqueued, got %v", got)
	}
}

func TestWebhookAcksMissingSubscriberID(t *testing.T) {
	server, _, rec := testutil.NewTestServer(t)
	handler := server.Handler()

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/webhook", models.WebhookPayload{MessageText: "hi"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook missing id")
	testutil.AssertJSONResponse(t, rr, "accepted")

	time.Sleep(60 * time.Millisecond)
	if got := rec.Payloads(); len(got) != 0 {
		t.Errorf("payload without subscriber id must not be enqueued, got %v", got)
	}
}

func TestWebhookRejectsGet(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/webhook", nil))
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "webhook GET")
}

func TestUsersEndpoints(t *testing.T) {
	server, st, _ := testutil.NewTestServer(t)
	handler := server.Handler()
	testutil.SeedTestUser(t, st, "sub-1", "lifting_laura")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/users", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list users")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	users, ok := resp["result"].([]interface{})
	if !ok || len(users) != 1 {
		t.Fatalf("expected 1 user in result, got %v", resp["result"])
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/users/sub-1", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get user")
	resp = testutil.AssertJSONResponse(t, rr, "ok")
	user, ok := resp["result"].(map[string]interface{})
	if !ok || user["handle"] != "lifting_laura" {
		t.Errorf("expected user record in result, got %v", resp["result"])
	}
	if flags, ok := user["pending_flags"].([]interface{}); !ok || len(flags) != 0 {
		t.Errorf("expected empty pending flags, got %v", user["pending_flags"])
	}

	if err := st.SetPendingFlag("sub-1", models.PendingFormCheck); err != nil {
		t.Fatalf("failed to arm pending flag: %v", err)
	}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/users/sub-1", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get user with flag")
	resp = testutil.AssertJSONResponse(t, rr, "ok")
	user = resp["result"].(map[string]interface{})
	flags, ok := user["pending_flags"].([]interface{})
	if !ok || len(flags) != 1 || flags[0] != string(models.PendingFormCheck) {
		t.Errorf("expected armed form-check flag in view, got %v", user["pending_flags"])
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/users/nope", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "get missing user")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestActionItemsEndpoint(t *testing.T) {
	server, st, _ := testutil.NewTestServer(t)
	if _, err := st.AddActionItem(models.ActionItem{Handle: "lifting_laura", Description: "Form check video received"}); err != nil {
		t.Fatalf("failed to seed action item: %v", err)
	}

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/action-items", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list action items")
	resp := testutil.AssertJSONResponse(t, rr, "ok")
	items, ok := resp["result"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("expected 1 action item, got %v", resp["result"])
	}
}

func TestTrackerEndpoint(t *testing.T) {
	server, st, _ := testutil.NewTestServer(t)
	if err := st.SaveTracker(models.DailyTrackerRecord{SubscriberID: "sub-1", DailyMessageCount: 3}); err != nil {
		t.Fatalf("failed to seed tracker: %v", err)
	}

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/tracker", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "tracker")
	testutil.AssertJSONResponse(t, rr, "ok")
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, testutil.CreateHTTPRequest(t, http.MethodGet, "/health", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	testutil.AssertJSONResponse(t, rr, "ok")
}
