package flow

import (
	"sync"
	"testing"
	"time"

	"github.com/coachflow/coachflow/internal/models"
)

type batchRecorder struct {
	mu      sync.Mutex
	batches map[string][][]models.WebhookPayload
}

func newBatchRecorder() *batchRecorder {
	return &batchRecorder{batches: make(map[string][][]models.WebhookPayload)}
}

func (r *batchRecorder) process(subscriberID string, batch []models.WebhookPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[subscriberID] = append(r.batches[subscriberID], batch)
}

func (r *batchRecorder) get(subscriberID string) [][]models.WebhookPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[subscriberID]
}

func payload(id, text string) models.WebhookPayload {
	return models.WebhookPayload{SubscriberID: id, MessageText: text}
}

func TestDebouncerBatchesRapidMessages(t *testing.T) {
	rec := newBatchRecorder()
	d := NewDebouncer(40*time.Millisecond, rec.process)
	defer d.Stop()

	d.Enqueue(payload("u1", "hey"))
	d.Enqueue(payload("u1", "quick question"))
	d.Enqueue(payload("u1", "about my legs day"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.get("u1")) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	batches := rec.get("u1")
	if len(batches) != 1 {
		t.Fatalf("expected 1 drain, got %d", len(batches))
	}
	if len(batches[0]) != 3 {
		t.Fatalf("expected batch of 3, got %d", len(batches[0]))
	}
	if batches[0][0].MessageText != "hey" || batches[0][2].MessageText != "about my legs day" {
		t.Errorf("batch order wrong: %v", batches[0])
	}
}

func TestDebouncerWindowResetsOnNewMessage(t *testing.T) {
	rec := newBatchRecorder()
	d := NewDebouncer(60*time.Millisecond, rec.process)
	defer d.Stop()

	d.Enqueue(payload("u1", "one"))
	// Keep poking before the window elapses; no drain should fire while
	// messages keep arriving.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		d.Enqueue(payload("u1", "more"))
	}
	if got := rec.get("u1"); len(got) != 0 {
		t.Fatalf("drain fired while messages still arriving: %v", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.get("u1")) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	batches := rec.get("u1")
	if len(batches) != 1 {
		t.Fatalf("expected 1 drain after quiet period, got %d", len(batches))
	}
	if len(batches[0]) != 5 {
		t.Errorf("expected all 5 messages in one batch, got %d", len(batches[0]))
	}
}

func TestDebouncerIsolatesUsers(t *testing.T) {
	rec := newBatchRecorder()
	d := NewDebouncer(30*time.Millisecond, rec.process)

	d.Enqueue(payload("u1", "from one"))
	d.Enqueue(payload("u2", "from two"))
	d.Stop()

	if got := rec.get("u1"); len(got) != 1 || len(got[0]) != 1 {
		t.Errorf("u1 batches wrong: %v", got)
	}
	if got := rec.get("u2"); len(got) != 1 || len(got[0]) != 1 {
		t.Errorf("u2 batches wrong: %v", got)
	}
}

func TestDebouncerStopDrainsPending(t *testing.T) {
	rec := newBatchRecorder()
	d := NewDebouncer(10*time.Second, rec.process)

	d.Enqueue(payload("u1", "still buffered"))
	d.Stop()

	batches := rec.get("u1")
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("Stop did not drain pending buffer: %v", batches)
	}

	// After Stop, new payloads are dropped rather than buffered forever.
	d.Enqueue(payload("u1", "too late"))
	if got := rec.get("u1"); len(got) != 1 {
		t.Errorf("payload accepted after Stop: %v", got)
	}
}

func TestDebouncerRecoversFromPanickingHandler(t *testing.T) {
	rec := newBatchRecorder()
	calls := 0
	var mu sync.Mutex
	d := NewDebouncer(20*time.Millisecond, func(id string, batch []models.WebhookPayload) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			panic("boom")
		}
		rec.process(id, batch)
	})

	d.Enqueue(payload("u1", "causes panic"))
	time.Sleep(100 * time.Millisecond)

	// The buffer was cleared before the panic, so the next message
	// starts a fresh batch.
	d.Enqueue(payload("u1", "after panic"))
	d.Stop()

	batches := rec.get("u1")
	if len(batches) != 1 || len(batches[0]) != 1 || batches[0][0].MessageText != "after panic" {
		t.Fatalf("expected fresh single-message batch after panic, got %v", batches)
	}
}
