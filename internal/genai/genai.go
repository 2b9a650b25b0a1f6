// Package genai provides GenAI-enhanced operations using the OpenAI API.
//
// All text generation runs through a tiered model chain: the primary
// model is tried first and the chain escalates to cheaper fallback
// models when a tier is rate limited or errors out. Rate-limited tiers
// get exactly one backoff retry before escalation.
package genai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoChoicesReturned indicates the API response contained no completion choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// ErrAllTiersExhausted indicates every model in the chain failed.
var ErrAllTiersExhausted = errors.New("all model tiers exhausted")

// DefaultRetryBackoff is the base wait before a rate-limited tier is retried.
const DefaultRetryBackoff = 15 * time.Second

// DefaultMaxRetries bounds rate-limit retries on the fallback tiers.
// The primary tier always escalates after a single backoff so the
// user is not left waiting on the most contended model.
const DefaultMaxRetries = 3

// DefaultModelChain is the tier order used when none is configured.
var DefaultModelChain = []openai.ChatModel{
	openai.ChatModelGPT4o,
	openai.ChatModelGPT4oMini,
	openai.ChatModelGPT3_5Turbo,
}

// chatService defines the minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// transcriptionService defines the minimal interface for audio transcription.
type transcriptionService interface {
	Transcribe(ctx context.Context, params openai.AudioTranscriptionNewParams) (openai.Transcription, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Models is the tier chain, primary first.
	Models []openai.ChatModel
	// RetryBackoff overrides the rate-limit backoff duration.
	RetryBackoff time.Duration
	// MaxRetries overrides the rate-limit retry bound on fallback tiers.
	MaxRetries int
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModelChain sets the model tier chain, primary first.
func WithModelChain(models ...openai.ChatModel) Option {
	return func(o *Opts) { o.Models = models }
}

// WithRetryBackoff sets the base wait before a rate-limited retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *Opts) { o.RetryBackoff = d }
}

// WithMaxRetries sets the rate-limit retry bound on fallback tiers.
func WithMaxRetries(n int) Option {
	return func(o *Opts) { o.MaxRetries = n }
}

// Client wraps the OpenAI services behind the tiered fallback chain.
type Client struct {
	chat       chatService
	audio      transcriptionService
	models     []openai.ChatModel
	backoff    time.Duration
	maxRetries int
	sleep      func(time.Duration)
}

// openaiChat adapts the real completion service to chatService.
type openaiChat struct {
	svc openai.ChatCompletionService
}

func (o openaiChat) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := o.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// openaiAudio adapts the real transcription service to transcriptionService.
type openaiAudio struct {
	svc openai.AudioTranscriptionService
}

func (o openaiAudio) Transcribe(ctx context.Context, params openai.AudioTranscriptionNewParams) (openai.Transcription, error) {
	resp, err := o.svc.New(ctx, params)
	if err != nil {
		return openai.Transcription{}, err
	}
	return *resp, nil
}

// NewClient initializes a new GenAI client. The API key comes from
// options or the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("genai.NewClient invoked", "APIKey_set", cfg.APIKey != "", "tiers", len(cfg.Models))

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		slog.Error("genai.NewClient: OPENAI_API_KEY not set")
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	models := cfg.Models
	if len(models) == 0 {
		models = DefaultModelChain
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		chat:       openaiChat{svc: cli.Chat.Completions},
		audio:      openaiAudio{svc: cli.Audio.Transcriptions},
		models:     models,
		backoff:    backoff,
		maxRetries: maxRetries,
		sleep:      time.Sleep,
	}, nil
}

// GeneratePrompt generates a response for a single system and user prompt pair.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.GenerateWithMessages(ctx,
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	)
}

// GenerateWithMessages runs a chat completion through the model chain.
// A rate-limited tier is retried with growing backoff: the primary
// tier only once, fallback tiers up to the retry bound. Other errors
// escalate one tier per failure.
func (c *Client) GenerateWithMessages(ctx context.Context, messages ...openai.ChatCompletionMessageParamUnion) (string, error) {
	var lastErr error
	for tier, model := range c.models {
		retries := c.maxRetries
		if tier == 0 {
			retries = 1
		}
		for attempt := 0; ; attempt++ {
			out, err := c.tryModel(ctx, model, messages)
			if err == nil {
				return out, nil
			}
			lastErr = err
			if !isRateLimited(err) || attempt >= retries {
				break
			}
			wait := c.backoff * time.Duration(attempt+1)
			slog.Warn("genai.GenerateWithMessages rate limited, backing off", "model", model, "attempt", attempt+1, "wait", wait)
			c.sleep(wait)
		}
		slog.Warn("genai.GenerateWithMessages escalating to next tier", "model", model, "error", lastErr)
	}
	slog.Error("genai.GenerateWithMessages all tiers failed", "error", lastErr)
	return "", fmt.Errorf("%w: %w", ErrAllTiersExhausted, lastErr)
}

func (c *Client) tryModel(ctx context.Context, model openai.ChatModel, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := c.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// DescribeImage asks the model chain to describe the image at the given URL.
func (c *Client) DescribeImage(ctx context.Context, prompt, imageURL string) (string, error) {
	return c.GenerateWithMessages(ctx,
		openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: imageURL}),
		}),
	)
}

// Transcribe converts spoken audio to text using the Whisper model.
// The filename hints the container format to the API.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	resp, err := c.audio.Transcribe(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModelWhisper1,
		File:  openai.File(audio, filename, "application/octet-stream"),
	})
	if err != nil {
		slog.Error("genai.Transcribe failed", "error", err, "filename", filename)
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return resp.Text, nil
}

// isRateLimited reports whether err looks like an HTTP 429 from the API.
func isRateLimited(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "429")
}
