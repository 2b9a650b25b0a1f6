package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

func TestSendReply_PayloadShape(t *testing.T) {
	var gotAuth string
	var gotReqs []setFieldsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req setFieldsRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotReqs = append(gotReqs, req)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(WithAPIKey("test-key"), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	err = c.SendReply(context.Background(), "12345", []string{"Hey!", "Training going well?"}, "hi coach")
	if err != nil {
		t.Fatalf("SendReply failed: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if len(gotReqs) != 2 {
		t.Fatalf("expected one call per bubble, got %d", len(gotReqs))
	}
	first := gotReqs[0]
	if first.SubscriberID != "12345" {
		t.Errorf("expected subscriber id 12345, got %q", first.SubscriberID)
	}
	if len(first.Fields) != 2 || first.Fields[0].FieldName != "response" {
		t.Errorf("unexpected first bubble fields: %+v", first.Fields)
	}
	if first.Fields[1].FieldName != echoFieldName || first.Fields[1].FieldValue != "hi coach" {
		t.Errorf("expected inbound echo on first bubble, got %+v", first.Fields[1])
	}
	second := gotReqs[1]
	if len(second.Fields) != 1 || second.Fields[0].FieldName != "response_2" {
		t.Errorf("unexpected second bubble fields: %+v", second.Fields)
	}
	if len(slept) != 1 || slept[0] != chunkDelay("Hey!") {
		t.Errorf("expected one proportional pause, got %v", slept)
	}
}

func TestSendReply_OmitsEmptyFields(t *testing.T) {
	var gotReqs []setFieldsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req setFieldsRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotReqs = append(gotReqs, req)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := NewClient(WithAPIKey("k"), WithBaseURL(srv.URL))
	c.sleep = func(time.Duration) {}
	if err := c.SendReply(context.Background(), "12345", []string{"only chunk", ""}, ""); err != nil {
		t.Fatalf("SendReply failed: %v", err)
	}
	if len(gotReqs) != 1 || len(gotReqs[0].Fields) != 1 {
		t.Errorf("empty chunks and echo must be omitted, got %+v", gotReqs)
	}
}

func TestChunkDelayCapped(t *testing.T) {
	long := make([]byte, 10000)
	for i := range long {
		long[i] = 'a'
	}
	if d := chunkDelay(string(long)); d != maxChunkDelay {
		t.Errorf("expected cap at %v, got %v", maxChunkDelay, d)
	}
	if d := chunkDelay("hi"); d >= chunkDelay("a much longer bubble of text here") {
		t.Error("delay should grow with bubble length")
	}
}

func TestSendReply_ErrorCases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := NewClient(WithAPIKey("k"), WithBaseURL(srv.URL))
	c.sleep = func(time.Duration) {}
	if err := c.SendReply(context.Background(), "12345", []string{"hello"}, ""); err == nil {
		t.Error("expected error on non-success status")
	}
	if err := c.SendReply(context.Background(), "", []string{"hello"}, ""); err == nil {
		t.Error("expected error on empty subscriber ID")
	}
	if err := c.SendReply(context.Background(), "12345", nil, ""); err == nil {
		t.Error("expected error on empty payload")
	}
}

func TestNewClient_Validation(t *testing.T) {
	t.Setenv("CHAT_PLATFORM_API_KEY", "")
	t.Setenv("CHAT_PLATFORM_BASE_URL", "")
	if _, err := NewClient(); err == nil {
		t.Error("expected error when API key not provided")
	}
	if _, err := NewClient(WithAPIKey("k")); err == nil {
		t.Error("expected error when base URL not provided")
	}
}

type mockMessageCreator struct {
	lastParams *twilioApi.CreateMessageParams
	err        error
}

func (m *mockMessageCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	m.lastParams = params
	return &twilioApi.ApiV2010Message{}, m.err
}

func TestTwilioNotifier_NotifyOperator(t *testing.T) {
	mock := &mockMessageCreator{}
	n := &TwilioNotifier{api: mock, from: "+15550001111", to: "+15552223333"}

	if err := n.NotifyOperator(context.Background(), "automation session left open for lean_gains"); err != nil {
		t.Fatalf("NotifyOperator failed: %v", err)
	}
	if mock.lastParams == nil || mock.lastParams.Body == nil {
		t.Fatal("expected message params to be set")
	}
	if *mock.lastParams.Body != "automation session left open for lean_gains" {
		t.Errorf("unexpected body: %q", *mock.lastParams.Body)
	}

	mock.err = errors.New("twilio down")
	if err := n.NotifyOperator(context.Background(), "x"); err == nil {
		t.Error("expected error to propagate")
	}
}

func TestNewTwilioNotifier_Validation(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	t.Setenv("OPERATOR_PHONE_NUMBER", "")
	if _, err := NewTwilioNotifier(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewTwilioNotifier(WithAccountSID("sid"), WithAuthToken("tok")); err == nil {
		t.Error("expected error without phone numbers")
	}
}
