package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/coachflow/coachflow/internal/models"
)

type mockGenerator struct {
	out string
	err error
}

func (m *mockGenerator) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.out, m.err
}

func TestClassify_WorkoutEdit(t *testing.T) {
	gen := &mockGenerator{out: `{"intent":"workout_edit","confidence":92,"actions":[{"action":"add","exercise":"Bulgarian Split Squat","workout_type":"Leg Day","sets":3,"reps":10}]}`}
	c := NewClassifier(gen)

	got, err := c.Classify(context.Background(), "can you add split squats to leg day")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Intent != models.IntentWorkoutEdit {
		t.Errorf("expected workout_edit, got %s", got.Intent)
	}
	if !got.Actionable() {
		t.Error("expected actionable result at confidence 92")
	}
	if len(got.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(got.Actions))
	}
	a := got.Actions[0]
	if a.Action != models.WorkoutActionAdd || a.Exercise != "Bulgarian Split Squat" || a.WorkoutType != "Leg Day" {
		t.Errorf("unexpected action: %+v", a)
	}
	if a.Sets != 3 || a.Reps != "10" {
		t.Errorf("unexpected sets/reps: %+v", a)
	}
}

func TestClassify_FencedJSON(t *testing.T) {
	gen := &mockGenerator{out: "```json\n{\"intent\":\"form_check\",\"confidence\":88}\n```"}
	c := NewClassifier(gen)

	got, err := c.Classify(context.Background(), "check my squat form?")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Intent != models.IntentFormCheck || got.Confidence != 88 {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestParseResult_LeadingProse(t *testing.T) {
	raw := `Sure! Here is the classification you asked for:
{"intent":"food_analysis","confidence":85,"has_image":true}
Let me know if you need anything else.`
	got := ParseResult(raw)
	if got.Intent != models.IntentFoodAnalysis {
		t.Errorf("expected food_analysis, got %s", got.Intent)
	}
	if !got.HasImage {
		t.Error("expected has_image to be true")
	}
}

func TestParseResult_TruncatedJSON(t *testing.T) {
	got := ParseResult(`{"intent":"workout_edit","confidence":95,"actions":[{"acti`)
	if got.Intent != models.IntentNone || got.Confidence != 0 {
		t.Errorf("expected none/0 for truncated JSON, got %+v", got)
	}
}

func TestParseResult_NoJSON(t *testing.T) {
	got := ParseResult("I could not classify that message, sorry.")
	if got.Intent != models.IntentNone || got.Confidence != 0 {
		t.Errorf("expected none/0 when no braces present, got %+v", got)
	}
}

func TestParseResult_UnknownIntent(t *testing.T) {
	got := ParseResult(`{"intent":"dance_party","confidence":99}`)
	if got.Intent != models.IntentNone {
		t.Errorf("expected unknown intent to degrade to none, got %s", got.Intent)
	}
}

func TestParseResult_LowConfidenceNotActionable(t *testing.T) {
	got := ParseResult(`{"intent":"workout_edit","confidence":70}`)
	if got.Intent != models.IntentWorkoutEdit {
		t.Errorf("expected intent preserved, got %s", got.Intent)
	}
	if got.Actionable() {
		t.Error("confidence 70 must not clear the gate; the threshold is strict")
	}
}

func TestParseResult_IncompleteActionKept(t *testing.T) {
	got := ParseResult(`{"intent":"workout_edit","confidence":90,"actions":[{"action":"add","exercise":"Lunges"}]}`)
	if got.Intent != models.IntentWorkoutEdit {
		t.Fatalf("expected workout_edit, got %s", got.Intent)
	}
	if len(got.Actions) != 1 {
		t.Fatalf("incomplete action must be kept, got %d actions", len(got.Actions))
	}
	if got.Actions[0].IsComplete() {
		t.Error("action missing workout_type should not report complete")
	}
	if len(got.CompleteActions()) != 0 {
		t.Error("expected no complete actions")
	}
}

func TestParseResult_RepsAsString(t *testing.T) {
	got := ParseResult(`{"intent":"workout_edit","confidence":90,"actions":[{"action":"add","exercise":"Curls","workout_type":"Arm Day","sets":4,"reps":"8-12"}]}`)
	if got.Actions[0].Reps != "8-12" {
		t.Errorf("expected rep range preserved, got %q", got.Actions[0].Reps)
	}
}

func TestParseResult_ToneTags(t *testing.T) {
	got := ParseResult(`{"intent":"none","confidence":0,"tone_tags":["concise","no_emojis"]}`)
	if len(got.ToneTags) != 2 || got.ToneTags[0] != "concise" {
		t.Errorf("expected tone tags carried through, got %v", got.ToneTags)
	}
	if got.ToneSource != "" {
		t.Errorf("expected empty tone source when the model omits it, got %q", got.ToneSource)
	}
}

func TestParseResult_ToneSource(t *testing.T) {
	got := ParseResult(`{"intent":"none","confidence":0,"tone_tags":["short_replies"],"tone_source":" Explicit "}`)
	if got.ToneSource != "explicit" {
		t.Errorf("expected tone source normalized to %q, got %q", "explicit", got.ToneSource)
	}
}

func TestParseResult_ConfidenceClamped(t *testing.T) {
	got := ParseResult(`{"intent":"form_check","confidence":250}`)
	if got.Confidence != 100 {
		t.Errorf("expected confidence clamped to 100, got %d", got.Confidence)
	}
}

func TestClassify_GatewayError(t *testing.T) {
	gen := &mockGenerator{err: errors.New("all model tiers exhausted")}
	c := NewClassifier(gen)

	got, err := c.Classify(context.Background(), "hello")
	if err == nil {
		t.Error("expected gateway error to propagate")
	}
	if got.Intent != models.IntentNone {
		t.Errorf("expected none on gateway error, got %s", got.Intent)
	}
}
