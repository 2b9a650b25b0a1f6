package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coachflow/coachflow/internal/models"
)

const clarificationReply = "Happy to sort your program out! Just so I get it right, which exercise should I change, and on which day (e.g. Leg Day)? Want it added or removed?"

var workoutSuccessPhrases = []string{
	"Done! Your program's updated, check it out in the app.",
	"Sorted! The change is live in your program now.",
	"All done, your workout's been updated!",
}

var workoutPendingPhrases = []string{
	"On it! Still working through your program update, I'll confirm once it's done.",
	"Got it, making that change now. I'll let you know when it's through!",
}

// handleWorkoutEdit drives the automation bridge through one editor
// session. Every action's outcome is recorded independently; the
// session is torn down only when every action and the final save
// succeeded, otherwise it stays open for manual inspection and the
// operator is alerted.
func (d *Dispatcher) handleWorkoutEdit(ctx context.Context, user *models.UserRecord, actions []models.WorkoutAction) string {
	complete := completeActions(actions)
	if len(complete) == 0 {
		slog.Info("Dispatcher.handleWorkoutEdit no complete actions, asking for clarification", "subscriberID", user.SubscriberID, "requested", len(actions))
		return clarificationReply
	}

	outcomes := make([]string, 0, len(complete))
	allSucceeded := true
	record := func(a models.WorkoutAction, ok bool) {
		status := "succeeded"
		if !ok {
			status = "failed"
			allSucceeded = false
		}
		outcomes = append(outcomes, fmt.Sprintf("%s: %s", a.String(), status))
	}

	sessionOK := d.automator.Login(ctx) &&
		d.automator.NavigateToClient(ctx, user.BestName()) &&
		d.automator.NavigateToTrainingProgram(ctx)
	if !sessionOK {
		slog.Error("Dispatcher.handleWorkoutEdit session setup failed", "subscriberID", user.SubscriberID)
		for _, a := range complete {
			record(a, false)
		}
		d.finishWorkoutEdit(ctx, user, outcomes, false)
		return pickPhrase(workoutPendingPhrases)
	}

	for _, group := range groupByWorkoutDay(complete) {
		if !d.automator.ClickWorkoutFuzzy(ctx, group.day) || !d.automator.ClickEditWorkout(ctx) {
			slog.Error("Dispatcher.handleWorkoutEdit could not open workout editor", "subscriberID", user.SubscriberID, "day", group.day)
			for _, a := range group.actions {
				record(a, false)
			}
			continue
		}
		for _, a := range group.actions {
			var ok bool
			switch a.Action {
			case models.WorkoutActionAdd:
				ok = d.automator.AddExercise(ctx, a.Exercise, a.Sets, a.Reps)
			case models.WorkoutActionRemove:
				ok = d.automator.RemoveExercise(ctx, a.Exercise)
			}
			record(a, ok)
		}
		if !d.automator.SaveWorkout(ctx) {
			slog.Error("Dispatcher.handleWorkoutEdit save failed", "subscriberID", user.SubscriberID, "day", group.day)
			allSucceeded = false
		}
	}

	d.finishWorkoutEdit(ctx, user, outcomes, allSucceeded)
	note := incompleteNote(actions)
	if allSucceeded {
		d.tracker.Increment(user.SubscriberID, models.CounterWorkoutEdits)
		return pickPhrase(workoutSuccessPhrases) + note
	}
	return pickPhrase(workoutPendingPhrases) + note
}

// finishWorkoutEdit records the audit trail and either tears the
// session down or leaves it open with an operator alert.
func (d *Dispatcher) finishWorkoutEdit(ctx context.Context, user *models.UserRecord, outcomes []string, allSucceeded bool) {
	item := models.ActionItem{
		Handle:      user.Handle,
		ClientName:  user.BestName(),
		Description: "Workout edit: " + strings.Join(outcomes, "; "),
	}
	if allSucceeded {
		item.Status = models.ActionItemCompleted
	}
	if _, err := d.store.AddActionItem(item); err != nil {
		slog.Error("Dispatcher.finishWorkoutEdit audit record failed", "error", err, "subscriberID", user.SubscriberID)
	}

	if allSucceeded {
		d.automator.Cleanup(ctx)
		return
	}
	slog.Warn("Dispatcher.finishWorkoutEdit leaving automation session open for inspection", "subscriberID", user.SubscriberID)
	alert := fmt.Sprintf("CoachFlow: workout edit for %s needs review, automation session left open. %s", user.BestName(), strings.Join(outcomes, "; "))
	if err := d.notifier.NotifyOperator(ctx, alert); err != nil {
		slog.Error("Dispatcher.finishWorkoutEdit operator alert failed", "error", err)
	}
}

// incompleteNote names the requested changes that were missing a
// detail, so the user knows those did not happen.
func incompleteNote(actions []models.WorkoutAction) string {
	var names []string
	for _, a := range actions {
		if a.IsComplete() {
			continue
		}
		name := strings.TrimSpace(a.Exercise)
		if name == "" {
			name = "one of your requests"
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	return fmt.Sprintf(" I still need a bit more detail for %s (which exercise, and on which day?), so that part isn't changed yet.", strings.Join(names, ", "))
}

func completeActions(actions []models.WorkoutAction) []models.WorkoutAction {
	var out []models.WorkoutAction
	for _, a := range actions {
		if a.IsComplete() {
			out = append(out, a)
		}
	}
	return out
}

type dayGroup struct {
	day     string
	actions []models.WorkoutAction
}

// groupByWorkoutDay batches actions per workout day, preserving the
// order days first appear in.
func groupByWorkoutDay(actions []models.WorkoutAction) []dayGroup {
	var groups []dayGroup
	index := make(map[string]int)
	for _, a := range actions {
		i, ok := index[a.WorkoutType]
		if !ok {
			i = len(groups)
			index[a.WorkoutType] = i
			groups = append(groups, dayGroup{day: a.WorkoutType})
		}
		groups[i].actions = append(groups[i].actions, a)
	}
	return groups
}
