package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type mockGenerator struct {
	promptOut     string
	promptErr     error
	describeOut   string
	describeErr   error
	transcribeOut string
	transcribeErr error

	describePrompts []string
	promptSystems   []string
}

func (m *mockGenerator) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.promptSystems = append(m.promptSystems, systemPrompt)
	return m.promptOut, m.promptErr
}

func (m *mockGenerator) DescribeImage(ctx context.Context, prompt, imageURL string) (string, error) {
	m.describePrompts = append(m.describePrompts, prompt)
	return m.describeOut, m.describeErr
}

func (m *mockGenerator) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	return m.transcribeOut, m.transcribeErr
}

func mediaServer(t *testing.T, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyze_Image(t *testing.T) {
	srv := mediaServer(t, "image/jpeg", []byte("fake-jpeg"))
	gen := &mockGenerator{describeOut: "A plate of grilled chicken with rice."}
	a := NewAnalyzer(gen)

	kind, text := a.Analyze(context.Background(), srv.URL)
	if kind != KindImage {
		t.Errorf("expected image kind, got %s", kind)
	}
	if text != "A plate of grilled chicken with rice." {
		t.Errorf("unexpected caption: %q", text)
	}
}

func TestAnalyze_AudioTranscription(t *testing.T) {
	srv := mediaServer(t, "audio/mp4", []byte("fake-audio"))
	gen := &mockGenerator{transcribeOut: "Hey coach, can we swap my Wednesday session?"}
	a := NewAnalyzer(gen)

	kind, text := a.Analyze(context.Background(), srv.URL)
	if kind != KindAudio {
		t.Errorf("expected audio kind, got %s", kind)
	}
	if !strings.Contains(text, "Wednesday session") {
		t.Errorf("expected transcription returned verbatim, got %q", text)
	}
}

func TestAnalyze_VideoTranscriptionTakesPriority(t *testing.T) {
	srv := mediaServer(t, "video/mp4", []byte("fake-video"))
	gen := &mockGenerator{transcribeOut: "So this is my third set of deadlifts today."}
	a := NewAnalyzer(gen)

	kind, text := a.Analyze(context.Background(), srv.URL)
	if kind != KindVideo {
		t.Errorf("expected video kind, got %s", kind)
	}
	if text != "So this is my third set of deadlifts today." {
		t.Errorf("expected transcription, got %q", text)
	}
	if len(gen.describePrompts) != 0 {
		t.Error("visual description must be skipped when transcription succeeds")
	}
}

func TestAnalyze_SilentVideoExercisePath(t *testing.T) {
	srv := mediaServer(t, "video/mp4", []byte("fake-video"))
	gen := &mockGenerator{
		transcribeErr: errors.New("no speech detected"),
		promptOut:     "YES",
		describeOut:   "A barbell back squat, slight forward lean at the bottom.",
	}
	a := NewAnalyzer(gen)

	kind, text := a.Analyze(context.Background(), srv.URL)
	if kind != KindVideo {
		t.Errorf("expected video kind, got %s", kind)
	}
	if !strings.Contains(text, "back squat") {
		t.Errorf("expected exercise analysis, got %q", text)
	}
	if len(gen.describePrompts) != 1 || gen.describePrompts[0] != exerciseAnalysisPrompt {
		t.Errorf("expected exercise analysis prompt, got %v", gen.describePrompts)
	}
}

func TestAnalyze_SilentVideoGenericPath(t *testing.T) {
	srv := mediaServer(t, "video/mp4", []byte("fake-video"))
	gen := &mockGenerator{
		transcribeOut: "you",
		promptOut:     "NO",
		describeOut:   "A dog running on a beach.",
	}
	a := NewAnalyzer(gen)

	_, text := a.Analyze(context.Background(), srv.URL)
	if text != "A dog running on a beach." {
		t.Errorf("expected generic description, got %q", text)
	}
	if len(gen.describePrompts) != 1 || gen.describePrompts[0] != genericVideoPrompt {
		t.Errorf("expected generic video prompt, got %v", gen.describePrompts)
	}
}

func TestAnalyze_DownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	a := NewAnalyzer(&mockGenerator{})

	kind, text := a.Analyze(context.Background(), srv.URL)
	if kind != KindUnknown || text != "" {
		t.Errorf("expected unknown/empty on download failure, got %s %q", kind, text)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestReplaceMediaURLs(t *testing.T) {
	gen := &mockGenerator{describeOut: "Scrambled eggs on toast."}
	a := NewAnalyzer(gen)
	a.client = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"image/jpeg"}},
			Body:       io.NopCloser(bytes.NewReader([]byte("img"))),
		}, nil
	})}

	in := "check this out https://scontent.cdninstagram.com/v/t51/food.jpg?x=1 pretty good right"
	out := a.ReplaceMediaURLs(context.Background(), in)
	if strings.Contains(out, "cdninstagram") {
		t.Errorf("raw URL must not survive replacement: %q", out)
	}
	if !strings.Contains(out, "[photo: Scrambled eggs on toast.]") {
		t.Errorf("expected caption substitution, got %q", out)
	}
}

func TestExtractMediaURL(t *testing.T) {
	url, rest := ExtractMediaURL("my lunch https://scontent.cdninstagram.com/v/food.jpg chicken and rice")
	if url != "https://scontent.cdninstagram.com/v/food.jpg" {
		t.Errorf("unexpected url: %q", url)
	}
	if rest != "my lunch  chicken and rice" && rest != "my lunch chicken and rice" {
		// exact whitespace depends on the removal, both are acceptable
		t.Errorf("unexpected remainder: %q", rest)
	}

	url, rest = ExtractMediaURL("no links here")
	if url != "" || rest != "no links here" {
		t.Errorf("expected passthrough, got %q %q", url, rest)
	}
}

func TestContainsMediaURL(t *testing.T) {
	if !ContainsMediaURL("https://lookaside.fbsbx.com/ig_messaging_cdn/?asset_id=1") {
		t.Error("expected lookaside URL to match")
	}
	if ContainsMediaURL("https://example.com/photo.jpg") {
		t.Error("non-CDN URL must not match")
	}
}

func TestUsableTranscript(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"So today I hit a new squat PR.", true},
		{"you", false},
		{"  ", false},
		{"Thanks for watching!", false},
		{"ok", false},
	}
	for _, c := range cases {
		if got := usableTranscript(c.in); got != c.want {
			t.Errorf("usableTranscript(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
