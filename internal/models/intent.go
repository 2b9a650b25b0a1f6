// Package models defines the classified-intent structures for CoachFlow.
package models

import "fmt"

// IntentType is the classified purpose of an inbound message.
type IntentType string

const (
	// IntentWorkoutEdit means the user asked for a workout-plan change.
	IntentWorkoutEdit IntentType = "workout_edit"
	// IntentFormCheck means the user wants a technique review of a video.
	IntentFormCheck IntentType = "form_check"
	// IntentFoodAnalysis means the user wants a food photo analyzed.
	IntentFoodAnalysis IntentType = "food_analysis"
	// IntentCalorieTracking means the user asked to track calories without a photo yet.
	IntentCalorieTracking IntentType = "calorie_tracking"
	// IntentOnboarding means the user asked to start the coaching onboarding.
	IntentOnboarding IntentType = "onboarding"
	// IntentNone means no specific intent was detected; general chat applies.
	IntentNone IntentType = "none"
)

// ConfidenceThreshold is the minimum classifier confidence required before an
// intent other than IntentNone is acted on.
const ConfidenceThreshold = 70

// IsValid checks if the intent type is one of the known values.
func (t IntentType) IsValid() bool {
	switch t {
	case IntentWorkoutEdit, IntentFormCheck, IntentFoodAnalysis, IntentCalorieTracking, IntentOnboarding, IntentNone:
		return true
	}
	return false
}

// WorkoutActionVerb is the operation requested on a workout plan.
type WorkoutActionVerb string

const (
	WorkoutActionAdd    WorkoutActionVerb = "add"
	WorkoutActionRemove WorkoutActionVerb = "remove"
)

// WorkoutAction is one requested change to a workout plan.
type WorkoutAction struct {
	Action      WorkoutActionVerb `json:"action"`
	Exercise    string            `json:"exercise"`
	WorkoutType string            `json:"workout_type"`
	Sets        int               `json:"sets,omitempty"`
	Reps        string            `json:"reps,omitempty"`
}

// IsComplete reports whether the action carries every field the automation
// needs. Incomplete actions still reach the dispatcher so it can ask a
// clarifying question instead of silently dropping the request.
func (a WorkoutAction) IsComplete() bool {
	return a.Exercise != "" && a.Action != "" && a.WorkoutType != ""
}

// String renders the action for audit descriptions.
func (a WorkoutAction) String() string {
	if a.Sets > 0 && a.Reps != "" {
		return fmt.Sprintf("%s %s (%s, %dx%s)", a.Action, a.Exercise, a.WorkoutType, a.Sets, a.Reps)
	}
	return fmt.Sprintf("%s %s (%s)", a.Action, a.Exercise, a.WorkoutType)
}

// IntentResult is the typed outcome of intent classification.
type IntentResult struct {
	Intent     IntentType      `json:"intent"`
	Confidence int             `json:"confidence"` // 0-100
	Actions    []WorkoutAction `json:"actions,omitempty"`
	HasImage   bool            `json:"has_image,omitempty"`

	// ToneTags are optional texting-style observations. They ride along
	// regardless of the intent outcome and are not confidence gated.
	ToneTags []string `json:"tone_tags,omitempty"`
	// ToneSource is "explicit" when the user asked for the style
	// directly, "implicit" when it was inferred from how they write.
	ToneSource string `json:"tone_source,omitempty"`
}

// NoIntent is the defensive default used whenever classification fails.
func NoIntent() IntentResult {
	return IntentResult{Intent: IntentNone, Confidence: 0}
}

// Actionable reports whether the intent clears the confidence gate.
// Low-confidence intents degrade to general chat rather than erroring.
func (r IntentResult) Actionable() bool {
	return r.Intent != IntentNone && r.Intent != "" && r.Confidence > ConfidenceThreshold
}

// CompleteActions returns only the workout actions that carry every required
// field.
func (r IntentResult) CompleteActions() []WorkoutAction {
	var out []WorkoutAction
	for _, a := range r.Actions {
		if a.IsComplete() {
			out = append(out, a)
		}
	}
	return out
}
