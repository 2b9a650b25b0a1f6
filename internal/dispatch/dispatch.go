// Package dispatch routes classified intents to their handlers. The
// priority order is deliberate: media-bearing requests (form check,
// food photo) are time-sensitive and must not be absorbed into a
// generic chat reply.
package dispatch

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/coachflow/coachflow/internal/automation"
	"github.com/coachflow/coachflow/internal/media"
	"github.com/coachflow/coachflow/internal/messaging"
	"github.com/coachflow/coachflow/internal/models"
	"github.com/coachflow/coachflow/internal/store"
)

// Generator is the slice of the LLM gateway the handlers use.
type Generator interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	DescribeImage(ctx context.Context, prompt, imageURL string) (string, error)
}

// Tracker records per-user daily counters.
type Tracker interface {
	Increment(subscriberID string, kind models.CounterKind)
}

// Dispatcher routes intents to the workout, form-check, food and
// calorie handlers.
type Dispatcher struct {
	store     store.Store
	gen       Generator
	automator automation.Automator
	notifier  messaging.Notifier
	tracker   Tracker
}

// NewDispatcher wires a dispatcher from its collaborators.
func NewDispatcher(st store.Store, gen Generator, automator automation.Automator, notifier messaging.Notifier, tracker Tracker) *Dispatcher {
	return &Dispatcher{store: st, gen: gen, automator: automator, notifier: notifier, tracker: tracker}
}

// Dispatch routes an actionable intent. The second return value is
// false when the intent did not clear the confidence gate or belongs
// to the conversation engine (general chat, onboarding), in which case
// the caller composes the reply itself.
func (d *Dispatcher) Dispatch(ctx context.Context, user *models.UserRecord, result models.IntentResult, messageText string) (string, bool) {
	if !result.Actionable() {
		return "", false
	}
	slog.Debug("Dispatcher.Dispatch routing intent", "subscriberID", user.SubscriberID, "intent", result.Intent, "confidence", result.Confidence)

	switch result.Intent {
	case models.IntentFormCheck:
		return d.handleFormCheck(ctx, user, messageText), true
	case models.IntentFoodAnalysis:
		return d.handleFoodAnalysis(ctx, user, messageText), true
	case models.IntentCalorieTracking:
		return d.handleCalorieRequest(ctx, user), true
	case models.IntentWorkoutEdit:
		return d.handleWorkoutEdit(ctx, user, result.Actions), true
	default:
		return "", false
	}
}

// HandlePendingMedia gives an armed pending flag first claim on a
// media-bearing message, before intent classification runs at all.
// Form check outranks food analysis when both flags are somehow armed,
// but only consumes media the platform declared as video (or left
// undeclared); a declared photo falls through to the food flag with
// the form-check flag still armed.
func (d *Dispatcher) HandlePendingMedia(ctx context.Context, user *models.UserRecord, messageText string, mediaTypes map[string]string) (string, bool) {
	if !media.ContainsMediaURL(messageText) {
		return "", false
	}
	url, description := media.ExtractMediaURL(messageText)
	declared := mediaTypes[url]

	if declared == "" || declared == "video" {
		consumed, err := d.store.ConsumePendingFlag(user.SubscriberID, models.PendingFormCheck)
		if err != nil {
			slog.Error("Dispatcher.HandlePendingMedia form-check flag check failed", "error", err, "subscriberID", user.SubscriberID)
		} else if consumed {
			slog.Info("Dispatcher.HandlePendingMedia consuming form-check flag", "subscriberID", user.SubscriberID)
			return d.analyzeFormVideo(ctx, user, url), true
		}
	} else {
		slog.Debug("Dispatcher.HandlePendingMedia declared non-video media, skipping form-check flag", "subscriberID", user.SubscriberID, "declared", declared)
	}

	consumed, err := d.store.ConsumePendingFlag(user.SubscriberID, models.PendingFoodAnalysis)
	if err != nil {
		slog.Error("Dispatcher.HandlePendingMedia food flag check failed", "error", err, "subscriberID", user.SubscriberID)
	} else if consumed {
		slog.Info("Dispatcher.HandlePendingMedia consuming food-analysis flag", "subscriberID", user.SubscriberID)
		return d.analyzeFoodImage(ctx, user, url, description), true
	}

	return "", false
}

func pickPhrase(phrases []string) string {
	return phrases[rand.IntN(len(phrases))]
}
