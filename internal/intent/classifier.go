// Package intent classifies inbound messages into typed intents using
// a rigid JSON prompt against the LLM gateway. Parsing is defensive:
// anything the model emits around the JSON object is tolerated, and
// any parse failure degrades to "no intent" so the message falls
// through to general chat.
package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/coachflow/coachflow/internal/models"
)

// Generator produces a completion for a system and user prompt pair.
// It is satisfied by genai.Client.
type Generator interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const classifierSystemPrompt = `You classify Instagram DMs sent to a fitness coach.
Respond with ONLY a JSON object, no commentary, matching this schema:
{
  "intent": "workout_edit" | "form_check" | "food_analysis" | "calorie_tracking" | "onboarding" | "none",
  "confidence": <integer 0-100>,
  "has_image": <true if the message indicates an attached photo>,
  "actions": [
    {"action": "add" | "remove", "exercise": "<name>", "workout_type": "<e.g. Leg Day>", "sets": <int>, "reps": <int>}
  ],
  "tone_tags": [<optional texting-style observations: "concise", "detailed", "formal", "casual", "no_emojis", "emojis_ok", "warm_supportive", "direct_coach", "gentle_coach", "one_question_at_a_time", "likes_numbers", "short_replies">],
  "tone_source": "explicit" | "implicit"
}
Rules:
- "workout_edit" when the user asks to add or remove exercises from their program. Include every requested change in "actions". If a field is unknown leave it empty rather than guessing.
- "form_check" when the user wants technique feedback on an exercise video.
- "food_analysis" when the user sends or describes a meal photo for calorie analysis.
- "calorie_tracking" when the user asks to track food or calories but no photo is attached yet.
- "onboarding" when the user asks to get set up as a new client or requests a meal plan from scratch.
- Otherwise "none".
- "tone_tags" may be included with any intent when the message clearly shows how the user likes to be talked to. Omit it when unsure.
- "tone_source" is "explicit" only when the user directly asks for a style ("keep it short", "no emojis please"); style you merely infer from their writing is "implicit".`

// Classifier turns free-text messages into IntentResult values.
type Classifier struct {
	gen Generator
}

// NewClassifier creates a classifier backed by the given generator.
func NewClassifier(gen Generator) *Classifier {
	return &Classifier{gen: gen}
}

// wireResult mirrors the JSON contract the model is instructed to emit.
type wireResult struct {
	Intent     string       `json:"intent"`
	Confidence int          `json:"confidence"`
	HasImage   bool         `json:"has_image"`
	Actions    []wireAction `json:"actions"`
	ToneTags   []string     `json:"tone_tags"`
	ToneSource string       `json:"tone_source"`
}

type wireAction struct {
	Action      string     `json:"action"`
	Exercise    string     `json:"exercise"`
	WorkoutType string     `json:"workout_type"`
	Sets        int        `json:"sets"`
	Reps        looseValue `json:"reps"`
}

// looseValue accepts either a JSON string or number, since models emit
// rep counts both ways ("10" vs 10 vs "8-12").
type looseValue string

func (v *looseValue) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*v = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = looseValue(s)
		return nil
	}
	*v = looseValue(strings.Trim(raw, `"`))
	return nil
}

// Classify sends the message to the model and parses the structured
// reply. It never returns an error for malformed model output; that
// case yields NoIntent so the caller falls through to general chat.
func (c *Classifier) Classify(ctx context.Context, messageText string) (models.IntentResult, error) {
	raw, err := c.gen.GeneratePrompt(ctx, classifierSystemPrompt, messageText)
	if err != nil {
		slog.Error("Classifier.Classify generation failed", "error", err)
		return models.NoIntent(), err
	}
	result := ParseResult(raw)
	slog.Debug("Classifier.Classify parsed", "intent", result.Intent, "confidence", result.Confidence, "actions", len(result.Actions))
	return result, nil
}

// ParseResult extracts an IntentResult from raw model output. Code
// fences and surrounding prose are stripped before parsing. Any
// failure yields NoIntent.
func ParseResult(raw string) models.IntentResult {
	cleaned := stripCodeFences(raw)
	jsonStr, ok := extractJSONObject(cleaned)
	if !ok {
		slog.Debug("Classifier.ParseResult no JSON object found")
		return models.NoIntent()
	}
	var wire wireResult
	if err := json.Unmarshal([]byte(jsonStr), &wire); err != nil {
		slog.Debug("Classifier.ParseResult unmarshal failed", "error", err)
		return models.NoIntent()
	}

	intent := models.IntentType(wire.Intent)
	if !intent.IsValid() {
		return models.NoIntent()
	}

	result := models.IntentResult{
		Intent:     intent,
		Confidence: clampConfidence(wire.Confidence),
		HasImage:   wire.HasImage,
		ToneTags:   wire.ToneTags,
		ToneSource: strings.ToLower(strings.TrimSpace(wire.ToneSource)),
	}
	for _, a := range wire.Actions {
		// Incomplete actions are kept so the dispatcher can ask a
		// clarifying question instead of dropping the request.
		result.Actions = append(result.Actions, models.WorkoutAction{
			Action:      models.WorkoutActionVerb(strings.ToLower(strings.TrimSpace(a.Action))),
			Exercise:    strings.TrimSpace(a.Exercise),
			WorkoutType: strings.TrimSpace(a.WorkoutType),
			Sets:        a.Sets,
			Reps:        string(a.Reps),
		})
	}
	return result
}

// stripCodeFences removes markdown code-fence wrappers such as
// ```json ... ``` from the model output.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.Contains(trimmed, "```") {
		return trimmed
	}
	var b strings.Builder
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

// extractJSONObject returns the substring from the first '{' to the
// last '}' inclusive, tolerating prose around the object.
func extractJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
