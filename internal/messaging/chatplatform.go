package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// Reply field names the chat platform automation reads. Chunk two and
// three are only written when the reply was split.
var replyFieldNames = []string{"response", "response_2", "response_3"}

// echoFieldName carries a copy of the inbound text for audit.
const echoFieldName = "last_message_echo"

// DefaultRequestTimeout bounds chat platform API calls.
const DefaultRequestTimeout = 10 * time.Second

// Opts holds configuration options for the chat platform client.
type Opts struct {
	// APIKey is the platform API bearer token.
	APIKey string
	// BaseURL is the platform API root.
	BaseURL string
	// Timeout overrides the per-request timeout.
	Timeout time.Duration
}

// Option defines a configuration option for the chat platform client.
type Option func(*Opts)

// WithAPIKey sets the platform API bearer token.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL sets the platform API root.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// maxChunkDelay caps the pause between reply bubbles.
const maxChunkDelay = 4 * time.Second

// chunkDelay returns the pause before sending the next bubble,
// proportional to how long the previous one would take to read.
func chunkDelay(previous string) time.Duration {
	d := time.Duration(len(previous)) * 25 * time.Millisecond
	if d > maxChunkDelay {
		return maxChunkDelay
	}
	return d
}

// Client implements Service against the chat platform's REST API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	sleep   func(time.Duration)
}

// NewClient creates a chat platform client. The API key falls back to
// the CHAT_PLATFORM_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("CHAT_PLATFORM_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("CHAT_PLATFORM_BASE_URL")
	}
	slog.Debug("messaging.NewClient config loaded", "APIKey_set", cfg.APIKey != "", "BaseURL_set", cfg.BaseURL != "")

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("chat platform API key must be provided")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("chat platform base URL must be provided")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		sleep:   time.Sleep,
	}, nil
}

// fieldWrite is one custom-field assignment in the API payload.
type fieldWrite struct {
	FieldName  string `json:"field_name"`
	FieldValue string `json:"field_value"`
}

type setFieldsRequest struct {
	SubscriberID string       `json:"subscriber_id"`
	Fields       []fieldWrite `json:"fields"`
}

// SendReply writes the reply chunks for the subscriber, one field per
// bubble, pausing between bubbles in proportion to the previous
// bubble's length to emulate human multi-message texting. The inbound
// echo rides along with the first bubble; empty values are omitted.
func (c *Client) SendReply(ctx context.Context, subscriberID string, chunks []string, inboundEcho string) error {
	if subscriberID == "" {
		return fmt.Errorf("subscriber ID must not be empty")
	}

	var sent int
	var previous string
	for i, chunk := range chunks {
		if i >= len(replyFieldNames) {
			slog.Warn("Client.SendReply dropping excess chunk", "subscriberID", subscriberID, "index", i)
			break
		}
		if chunk == "" {
			continue
		}
		fields := []fieldWrite{{FieldName: replyFieldNames[i], FieldValue: chunk}}
		if sent == 0 && inboundEcho != "" {
			fields = append(fields, fieldWrite{FieldName: echoFieldName, FieldValue: inboundEcho})
		}
		if sent > 0 {
			c.sleep(chunkDelay(previous))
		}
		if err := c.setFields(ctx, subscriberID, fields); err != nil {
			return err
		}
		sent++
		previous = chunk
	}
	if sent == 0 {
		return fmt.Errorf("nothing to send for subscriber %s", subscriberID)
	}
	slog.Debug("Client.SendReply delivered", "subscriberID", subscriberID, "chunks", sent)
	return nil
}

func (c *Client) setFields(ctx context.Context, subscriberID string, fields []fieldWrite) error {
	body, err := json.Marshal(setFieldsRequest{SubscriberID: subscriberID, Fields: fields})
	if err != nil {
		return fmt.Errorf("failed to marshal reply payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/subscriber/setCustomFields", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("Client.setFields request failed", "error", err, "subscriberID", subscriberID)
		return fmt.Errorf("failed to send reply: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("Client.setFields non-success status", "status", resp.StatusCode, "subscriberID", subscriberID, "body", string(respBody))
		return fmt.Errorf("chat platform returned status %d", resp.StatusCode)
	}
	return nil
}
