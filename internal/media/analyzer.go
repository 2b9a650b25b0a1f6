// Package media turns media URLs from inbound messages into text so
// the rest of the pipeline only ever deals with plain language. Images
// are captioned, audio is transcribed, and videos are transcribed when
// they carry usable speech or described visually when they do not.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Kind labels what the analyzer decided a URL points at.
type Kind string

const (
	KindImage   Kind = "image"
	KindAudio   Kind = "audio"
	KindVideo   Kind = "video"
	KindUnknown Kind = "unknown"
)

// DefaultDownloadTimeout bounds how long a media download may take.
const DefaultDownloadTimeout = 20 * time.Second

// maxDownloadBytes caps media downloads; Instagram DM attachments are
// well under this.
const maxDownloadBytes = 64 << 20

// cdnURLPattern matches the chat platform's CDN attachment URLs as
// they appear embedded in message text.
var cdnURLPattern = regexp.MustCompile(`https?://(?:[a-z0-9.-]+\.)?(?:cdninstagram\.com|fbcdn\.net|lookaside\.fbsbx\.com)/[^\s"']+`)

// Generator produces completions, optionally over an image URL. It is
// satisfied by genai.Client.
type Generator interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	DescribeImage(ctx context.Context, prompt, imageURL string) (string, error)
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

const imageCaptionPrompt = "Describe this photo in two or three sentences. If it shows food, list the visible items and rough portions. If it shows a person exercising, name the exercise."

const exerciseGatePrompt = "Answer with only YES or NO: does this video transcript or description suggest the clip shows a person performing an exercise?"

const exerciseAnalysisPrompt = "This is a short clip of a client performing an exercise. Describe which exercise it appears to be and anything notable about the movement."

const genericVideoPrompt = "Describe what happens in this short video clip in two or three sentences."

// Analyzer downloads media and produces a text rendering of it.
type Analyzer struct {
	gen    Generator
	client *http.Client
}

// NewAnalyzer creates an analyzer backed by the given generator.
func NewAnalyzer(gen Generator) *Analyzer {
	return &Analyzer{
		gen:    gen,
		client: &http.Client{Timeout: DefaultDownloadTimeout},
	}
}

// Analyze downloads the URL, sniffs its type and returns a text
// rendering. On any failure it returns KindUnknown with empty text;
// media failures never break the pipeline.
func (a *Analyzer) Analyze(ctx context.Context, url string) (Kind, string) {
	contentType, body, err := a.download(ctx, url)
	if err != nil {
		slog.Warn("Analyzer.Analyze download failed", "error", err, "url", url)
		return KindUnknown, ""
	}

	switch {
	case strings.HasPrefix(contentType, "image/"):
		return a.analyzeImage(ctx, url)
	case strings.HasPrefix(contentType, "audio/"):
		return a.analyzeAudio(ctx, url, body)
	case strings.HasPrefix(contentType, "video/"):
		return a.analyzeVideo(ctx, url, body)
	default:
		slog.Debug("Analyzer.Analyze unsupported content type", "contentType", contentType, "url", url)
		return KindUnknown, ""
	}
}

func (a *Analyzer) analyzeImage(ctx context.Context, url string) (Kind, string) {
	caption, err := a.gen.DescribeImage(ctx, imageCaptionPrompt, url)
	if err != nil {
		slog.Error("Analyzer.analyzeImage caption failed", "error", err, "url", url)
		return KindImage, ""
	}
	return KindImage, caption
}

func (a *Analyzer) analyzeAudio(ctx context.Context, url string, body []byte) (Kind, string) {
	text, err := a.gen.Transcribe(ctx, filenameFor(url, "voice.m4a"), bytes.NewReader(body))
	if err != nil {
		slog.Error("Analyzer.analyzeAudio transcription failed", "error", err, "url", url)
		return KindAudio, ""
	}
	return KindAudio, text
}

// analyzeVideo prefers the audio track. When transcription yields
// usable speech that text stands in for the clip; the visual content
// is not separately described. Silent or unintelligible clips go
// through a two-stage visual classification instead.
func (a *Analyzer) analyzeVideo(ctx context.Context, url string, body []byte) (Kind, string) {
	text, err := a.gen.Transcribe(ctx, filenameFor(url, "clip.mp4"), bytes.NewReader(body))
	if err == nil && usableTranscript(text) {
		return KindVideo, text
	}
	if err != nil {
		slog.Debug("Analyzer.analyzeVideo transcription failed, falling back to visual description", "error", err, "url", url)
	}

	verdict, err := a.gen.GeneratePrompt(ctx, exerciseGatePrompt, fmt.Sprintf("Video URL: %s\nTranscript fragment: %s", url, text))
	if err != nil {
		slog.Error("Analyzer.analyzeVideo exercise gate failed", "error", err, "url", url)
		return KindVideo, ""
	}

	prompt := genericVideoPrompt
	if strings.Contains(strings.ToUpper(verdict), "YES") {
		prompt = exerciseAnalysisPrompt
	}
	description, err := a.gen.DescribeImage(ctx, prompt, url)
	if err != nil {
		slog.Error("Analyzer.analyzeVideo description failed", "error", err, "url", url)
		return KindVideo, ""
	}
	return KindVideo, description
}

func (a *Analyzer) download(ctx context.Context, url string) (string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to build media request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("media download returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read media body: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return strings.ToLower(contentType), body, nil
}

// ReplaceMediaURLs swaps every CDN URL embedded in text for its
// analyzer output, so downstream classification and prompts never see
// raw media URLs. URLs the analyzer cannot render are replaced with a
// neutral placeholder.
func (a *Analyzer) ReplaceMediaURLs(ctx context.Context, text string) string {
	return cdnURLPattern.ReplaceAllStringFunc(text, func(url string) string {
		kind, rendered := a.Analyze(ctx, url)
		if rendered == "" {
			return "[attachment]"
		}
		switch kind {
		case KindImage:
			return fmt.Sprintf("[photo: %s]", rendered)
		case KindAudio:
			return fmt.Sprintf("[voice message: %s]", rendered)
		case KindVideo:
			return fmt.Sprintf("[video: %s]", rendered)
		default:
			return "[attachment]"
		}
	})
}

// ExtractMediaURL returns the first CDN URL in text and the text with
// that URL removed.
func ExtractMediaURL(text string) (string, string) {
	url := cdnURLPattern.FindString(text)
	if url == "" {
		return "", text
	}
	stripped := strings.TrimSpace(strings.Replace(text, url, "", 1))
	return url, stripped
}

// ContainsMediaURL reports whether text embeds a CDN URL.
func ContainsMediaURL(text string) bool {
	return cdnURLPattern.MatchString(text)
}

// usableTranscript filters out empty or junk transcriptions such as a
// lone "you" that the speech model emits for silent clips.
func usableTranscript(text string) bool {
	t := strings.TrimSpace(strings.ToLower(text))
	if len(t) < 8 {
		return false
	}
	switch t {
	case "you", "thank you.", "thanks for watching!":
		return false
	}
	return true
}

func filenameFor(url, fallback string) string {
	trimmed := url
	if i := strings.IndexAny(trimmed, "?#"); i != -1 {
		trimmed = trimmed[:i]
	}
	if i := strings.LastIndex(trimmed, "/"); i != -1 && i < len(trimmed)-1 {
		name := trimmed[i+1:]
		if strings.Contains(name, ".") {
			return name
		}
	}
	return fallback
}
