// Package models defines daily usage counter structures for CoachFlow.
package models

import "time"

// DailyTrackerRecord holds per-user daily and lifetime usage counters.
// Daily counters fold into the totals and reset to zero at the first access
// after local midnight.
type DailyTrackerRecord struct {
	SubscriberID string `json:"subscriber_id"`

	DailyMessageCount     int `json:"daily_message_count"`
	DailyCaloriesTracked  int `json:"daily_calories_tracked"`
	DailyFormChecks       int `json:"daily_form_checks"`
	DailyWorkoutEdits     int `json:"daily_workout_edits"`
	TotalMessageCount     int `json:"total_message_count"`
	TotalCaloriesTracked  int `json:"total_calories_tracked"`
	TotalFormChecks       int `json:"total_form_checks"`
	TotalWorkoutEdits     int `json:"total_workout_edits"`

	LastDailyUpdate time.Time `json:"last_daily_update"`
}

// FoldIntoTotals adds today's counts to the lifetime totals and zeroes the
// daily counters.
func (r *DailyTrackerRecord) FoldIntoTotals() {
	r.TotalMessageCount += r.DailyMessageCount
	r.TotalCaloriesTracked += r.DailyCaloriesTracked
	r.TotalFormChecks += r.DailyFormChecks
	r.TotalWorkoutEdits += r.DailyWorkoutEdits
	r.DailyMessageCount = 0
	r.DailyCaloriesTracked = 0
	r.DailyFormChecks = 0
	r.DailyWorkoutEdits = 0
}

// CounterKind names one trackable activity.
type CounterKind string

const (
	CounterMessages        CounterKind = "messages"
	CounterCaloriesTracked CounterKind = "calories_tracked"
	CounterFormChecks      CounterKind = "form_checks"
	CounterWorkoutEdits    CounterKind = "workout_edits"
)

// Increment bumps the daily counter for the given kind.
func (r *DailyTrackerRecord) Increment(kind CounterKind, now time.Time) {
	switch kind {
	case CounterMessages:
		r.DailyMessageCount++
	case CounterCaloriesTracked:
		r.DailyCaloriesTracked++
	case CounterFormChecks:
		r.DailyFormChecks++
	case CounterWorkoutEdits:
		r.DailyWorkoutEdits++
	}
	r.LastDailyUpdate = now
}

// TrackerSnapshot is the full tracker document: per-user records plus the
// date of the most recent global reset.
type TrackerSnapshot struct {
	LastResetDate string                         `json:"last_reset_date"` // local date, YYYY-MM-DD
	Users         map[string]*DailyTrackerRecord `json:"users"`
}
