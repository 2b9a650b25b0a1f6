// Package models defines the user record structures for CoachFlow.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/coachflow/coachflow/internal/tone"
)

// Profile holds free-form fitness attributes used to personalize prompts.
type Profile struct {
	Goals             string     `json:"goals,omitempty"`
	DietaryNotes      string     `json:"dietary_notes,omitempty"`
	TrainingFrequency string     `json:"training_frequency,omitempty"`
	Bio               string     `json:"bio,omitempty"`
	Interests         string     `json:"interests,omitempty"`
	Tone              tone.State `json:"tone"`
}

// IsEmpty reports whether no profile field has been filled in yet.
func (p Profile) IsEmpty() bool {
	return p.Goals == "" && p.DietaryNotes == "" && p.TrainingFrequency == "" && p.Bio == "" && p.Interests == ""
}

// MacroGoal tracks a single macro-nutrient target for today.
type MacroGoal struct {
	Target   float64 `json:"target"`
	Consumed float64 `json:"consumed"`
}

// Remaining returns how much of the target is left, never below zero.
func (m MacroGoal) Remaining() float64 {
	r := m.Target - m.Consumed
	if r < 0 {
		return 0
	}
	return r
}

// CalorieLog tracks today's calorie and macro intake for one user.
// It is reset whenever Date no longer matches the current local date.
type CalorieLog struct {
	Date             string    `json:"date"` // local date, YYYY-MM-DD
	TargetCalories   float64   `json:"target_calories"`
	ConsumedCalories float64   `json:"consumed_calories"`
	Protein          MacroGoal `json:"protein"`
	Carbs            MacroGoal `json:"carbs"`
	Fats             MacroGoal `json:"fats"`
	MealsToday       []string  `json:"meals_today,omitempty"`
}

// RemainingCalories returns the calories left for today, never below zero.
func (c CalorieLog) RemainingCalories() float64 {
	r := c.TargetCalories - c.ConsumedCalories
	if r < 0 {
		return 0
	}
	return r
}

// ResetIfStale zeroes consumption when the stored date is not today.
// Targets are preserved across the reset.
func (c *CalorieLog) ResetIfStale(today string) {
	if c.Date == today {
		return
	}
	c.Date = today
	c.ConsumedCalories = 0
	c.Protein.Consumed = 0
	c.Carbs.Consumed = 0
	c.Fats.Consumed = 0
	c.MealsToday = nil
}

// AddMeal applies one analyzed meal to today's log.
func (c *CalorieLog) AddMeal(description string, calories, protein, carbs, fats float64) {
	c.ConsumedCalories += calories
	c.Protein.Consumed += protein
	c.Carbs.Consumed += carbs
	c.Fats.Consumed += fats
	if description != "" {
		c.MealsToday = append(c.MealsToday, description)
	}
}

// UserRecord is one conversation participant, keyed by the platform's stable
// subscriber id. The display handle can repeat or be absent, so it is only a
// best-effort lookup key for legacy records.
type UserRecord struct {
	SubscriberID string `json:"subscriber_id"`
	Handle       string `json:"handle"`
	DisplayName  string `json:"display_name,omitempty"`

	ConversationHistory []ConversationEntry `json:"conversation_history,omitempty"`

	FlowStage     FlowStage   `json:"flow_stage"`
	InCheckinFlow bool        `json:"in_checkin_flow"`
	CheckinType   CheckinType `json:"checkin_type,omitempty"`
	IsOnboarding  bool        `json:"is_onboarding"`

	Profile Profile    `json:"profile"`
	Calorie CalorieLog `json:"calorie_tracking"`

	FirstSeenAt time.Time `json:"first_seen_at"` // immutable after creation
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// NewUserRecord creates a record for a first-time sender.
func NewUserRecord(subscriberID, handle string, now time.Time) *UserRecord {
	return &UserRecord{
		SubscriberID: subscriberID,
		Handle:       handle,
		FlowStage:    StageGeneral,
		FirstSeenAt:  now,
		LastSeenAt:   now,
	}
}

// Validate checks the identity invariants of a user record.
func (u *UserRecord) Validate() error {
	if u.SubscriberID == "" {
		return ErrEmptySubscriberID
	}
	return nil
}

// BestName returns the most specific name known for the user, falling back
// to the handle when no display name was ever resolved.
func (u *UserRecord) BestName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Handle
}

// AppendExchange records a user message and the AI reply in one call,
// preserving chronological order.
func (u *UserRecord) AppendExchange(userText, aiText string, now time.Time) {
	u.ConversationHistory = append(u.ConversationHistory,
		ConversationEntry{Timestamp: now, Role: RoleUser, Text: userText},
		ConversationEntry{Timestamp: now, Role: RoleAI, Text: aiText},
	)
	u.LastSeenAt = now
}

// Stage derives the effective flow stage from the persisted flags. Check-in
// flags take priority over onboarding, matching dispatch priority.
func (u *UserRecord) Stage() FlowStage {
	if u.InCheckinFlow {
		return u.CheckinType.Stage()
	}
	if u.IsOnboarding {
		return StageOnboarding
	}
	return StageGeneral
}

// ToJSON serializes the user record to a JSON string.
func (u *UserRecord) ToJSON() (string, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user record: %w", err)
	}
	return string(data), nil
}

// FromJSON deserializes a user record from a JSON string.
func (u *UserRecord) FromJSON(jsonStr string) error {
	if err := json.Unmarshal([]byte(jsonStr), u); err != nil {
		return fmt.Errorf("failed to unmarshal user record: %w", err)
	}
	return nil
}
