// Package automation drives the coaching platform's workout editor
// through a browser-automation bridge. The bridge runs as a sidecar
// process next to this service and exposes one endpoint per editor
// action; every action reports plain success or failure with no
// partial-success signalling.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Automator is the workout-editor collaborator. Implementations report
// success as a bare boolean; a failed step leaves the session in
// whatever state it reached so an operator can inspect it.
type Automator interface {
	Login(ctx context.Context) bool
	NavigateToClient(ctx context.Context, name string) bool
	NavigateToTrainingProgram(ctx context.Context) bool
	ClickWorkoutFuzzy(ctx context.Context, workoutType string) bool
	ClickEditWorkout(ctx context.Context) bool
	AddExercise(ctx context.Context, name string, sets int, reps string) bool
	RemoveExercise(ctx context.Context, name string) bool
	SaveWorkout(ctx context.Context) bool
	Cleanup(ctx context.Context)
}

// DefaultRequestTimeout bounds each bridge call. Editor navigation is
// slow, so this is generous compared to ordinary API timeouts.
const DefaultRequestTimeout = 60 * time.Second

// Opts holds configuration for the bridge client.
type Opts struct {
	// BaseURL is the automation bridge address, e.g. http://127.0.0.1:9772.
	BaseURL string
	// Timeout overrides the per-call timeout.
	Timeout time.Duration
}

// Option configures the bridge client.
type Option func(*Opts)

// WithBaseURL sets the automation bridge address.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client is an Automator backed by the HTTP bridge.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a bridge client.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("automation bridge base URL not set")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// bridgeResult is the bridge's uniform response shape.
type bridgeResult struct {
	OK bool `json:"ok"`
}

// call posts the payload to the named bridge endpoint and returns the
// reported outcome. Transport errors count as failure.
func (c *Client) call(ctx context.Context, endpoint string, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("automation.Client call marshal failed", "error", err, "endpoint", endpoint)
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		slog.Error("automation.Client call request build failed", "error", err, "endpoint", endpoint)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("automation.Client call failed", "error", err, "endpoint", endpoint)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		slog.Error("automation.Client call returned non-OK status", "status", resp.StatusCode, "endpoint", endpoint)
		return false
	}
	var result bridgeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Error("automation.Client call decode failed", "error", err, "endpoint", endpoint)
		return false
	}
	slog.Debug("automation.Client call completed", "endpoint", endpoint, "ok", result.OK)
	return result.OK
}

func (c *Client) Login(ctx context.Context) bool {
	return c.call(ctx, "/login", struct{}{})
}

func (c *Client) NavigateToClient(ctx context.Context, name string) bool {
	return c.call(ctx, "/navigate-client", map[string]string{"name": name})
}

func (c *Client) NavigateToTrainingProgram(ctx context.Context) bool {
	return c.call(ctx, "/navigate-program", struct{}{})
}

// ClickWorkoutFuzzy resolves the requested workout type against the
// fixed day categories before asking the bridge to click it. An
// unresolvable type fails without a bridge round trip.
func (c *Client) ClickWorkoutFuzzy(ctx context.Context, workoutType string) bool {
	day, ok := MatchWorkoutDay(workoutType)
	if !ok {
		slog.Warn("automation.Client ClickWorkoutFuzzy no matching day", "workoutType", workoutType)
		return false
	}
	return c.call(ctx, "/click-workout", map[string]string{"day": day})
}

func (c *Client) ClickEditWorkout(ctx context.Context) bool {
	return c.call(ctx, "/click-edit", struct{}{})
}

func (c *Client) AddExercise(ctx context.Context, name string, sets int, reps string) bool {
	return c.call(ctx, "/add-exercise", map[string]any{"name": name, "sets": sets, "reps": reps})
}

func (c *Client) RemoveExercise(ctx context.Context, name string) bool {
	return c.call(ctx, "/remove-exercise", map[string]string{"name": name})
}

func (c *Client) SaveWorkout(ctx context.Context) bool {
	return c.call(ctx, "/save", struct{}{})
}

// Cleanup tears down the bridge's browser session. Outcome is ignored;
// a failed cleanup only means the session stays open for inspection.
func (c *Client) Cleanup(ctx context.Context) {
	c.call(ctx, "/cleanup", struct{}{})
}
