package flow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/coachflow/coachflow/internal/models"
)

// DefaultDebounceWindow is how long the engine waits for follow-up
// messages from the same user before processing the batch.
const DefaultDebounceWindow = 15 * time.Second

// ProcessFunc handles one drained batch for a user.
type ProcessFunc func(subscriberID string, batch []models.WebhookPayload)

// Debouncer groups rapid-fire messages from one user into a single
// processing pass. Each user has at most one outstanding timer, which
// is reset on every new message, so exactly one drain runs per batch.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	process ProcessFunc
	buffers map[string][]models.WebhookPayload
	timers  map[string]*time.Timer
	wg      sync.WaitGroup
	stopped bool
}

// NewDebouncer creates a debouncer that calls process after the window
// elapses without further messages from a user.
func NewDebouncer(window time.Duration, process ProcessFunc) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{
		window:  window,
		process: process,
		buffers: make(map[string][]models.WebhookPayload),
		timers:  make(map[string]*time.Timer),
	}
}

// Enqueue buffers the payload for its subscriber and starts or resets
// that subscriber's drain timer.
func (d *Debouncer) Enqueue(payload models.WebhookPayload) {
	id := payload.SubscriberID
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		slog.Warn("Debouncer.Enqueue dropping payload, debouncer stopped", "subscriberID", id)
		return
	}
	d.buffers[id] = append(d.buffers[id], payload)
	if timer, ok := d.timers[id]; ok {
		timer.Reset(d.window)
		slog.Debug("Debouncer.Enqueue reset window", "subscriberID", id, "buffered", len(d.buffers[id]))
		return
	}
	d.timers[id] = time.AfterFunc(d.window, func() { d.drain(id) })
	slog.Debug("Debouncer.Enqueue started window", "subscriberID", id)
}

// drain pops everything buffered for the subscriber and processes it.
// The buffer is cleared unconditionally before processing so a handler
// failure cannot poison future messages.
func (d *Debouncer) drain(id string) {
	d.mu.Lock()
	batch := d.buffers[id]
	delete(d.buffers, id)
	delete(d.timers, id)
	if len(batch) > 0 {
		d.wg.Add(1)
	}
	d.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Debouncer.drain handler panicked", "subscriberID", id, "panic", r)
		}
	}()
	slog.Debug("Debouncer.drain processing batch", "subscriberID", id, "messages", len(batch))
	d.process(id, batch)
}

// Stop drains every pending buffer immediately and waits for in-flight
// processing to finish.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	var ids []string
	for id, timer := range d.timers {
		timer.Stop()
		ids = append(ids, id)
	}
	d.mu.Unlock()

	for _, id := range ids {
		d.drain(id)
	}
	d.wg.Wait()
	slog.Debug("Debouncer.Stop completed", "drained", len(ids))
}
