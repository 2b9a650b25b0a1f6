// Package flow is the conversation engine: it debounces inbound
// messages per user, resolves media to text, classifies intent,
// dispatches actions, and composes the general-chat reply when no
// specific action fires. One pipeline handles every message; there are
// no per-channel variants.
package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/coachflow/coachflow/internal/checkin"
	"github.com/coachflow/coachflow/internal/messaging"
	"github.com/coachflow/coachflow/internal/models"
	"github.com/coachflow/coachflow/internal/store"
	"github.com/coachflow/coachflow/internal/tone"
	"github.com/coachflow/coachflow/internal/util"
)

// Generator produces the general-chat reply. Satisfied by genai.Client.
type Generator interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Classifier yields a typed intent for a message.
type Classifier interface {
	Classify(ctx context.Context, messageText string) (models.IntentResult, error)
}

// ActionDispatcher routes classified intents and armed pending flags.
// mediaTypes maps attachment URLs to the type the platform declared
// for them (image, video, audio); undeclared URLs are absent.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, user *models.UserRecord, result models.IntentResult, messageText string) (string, bool)
	HandlePendingMedia(ctx context.Context, user *models.UserRecord, messageText string, mediaTypes map[string]string) (string, bool)
}

// MediaResolver swaps media URLs in text for text renderings.
type MediaResolver interface {
	ReplaceMediaURLs(ctx context.Context, text string) string
}

// CheckinSource loads the newest check-in data for a client.
type CheckinSource interface {
	LoadLatest(clientName string) (*checkin.Data, error)
}

// Engine is the per-batch message pipeline.
type Engine struct {
	store      store.Store
	gen        Generator
	classifier Classifier
	dispatcher ActionDispatcher
	resolver   MediaResolver
	sender     messaging.Service
	tracker    *DailyCounterTracker
	checkins   CheckinSource
	now        func() time.Time
}

// NewEngine wires the pipeline from its collaborators.
func NewEngine(st store.Store, gen Generator, classifier Classifier, dispatcher ActionDispatcher, resolver MediaResolver, sender messaging.Service, tracker *DailyCounterTracker, checkins CheckinSource) *Engine {
	return &Engine{
		store:      st,
		gen:        gen,
		classifier: classifier,
		dispatcher: dispatcher,
		resolver:   resolver,
		sender:     sender,
		tracker:    tracker,
		checkins:   checkins,
		now:        time.Now,
	}
}

// ProcessBatch handles one drained debounce batch for a subscriber.
// Every branch ends in a best-effort reply and a persisted exchange;
// nothing propagates out of here.
func (e *Engine) ProcessBatch(ctx context.Context, subscriberID string, batch []models.WebhookPayload) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Engine.ProcessBatch panicked", "subscriberID", subscriberID, "panic", r)
		}
	}()
	if len(batch) == 0 {
		return
	}

	user := e.getOrCreateUser(subscriberID, batch[0])
	e.tracker.Increment(subscriberID, models.CounterMessages)

	combined, mediaTypes := combineBatch(batch)
	if combined == "" {
		slog.Debug("Engine.ProcessBatch batch carried no text or media", "subscriberID", subscriberID)
		return
	}
	batchID := util.GenerateBatchID()
	slog.Info("Engine.ProcessBatch handling batch", "batchID", batchID, "subscriberID", subscriberID, "messages", len(batch), "stage", user.Stage())

	// The closing-keyword reset is staged now and persisted in the
	// same store write that appends the new history entries.
	closing := user.InCheckinFlow && containsClosingKeyword(combined)

	reply, handled := e.dispatcher.HandlePendingMedia(ctx, user, combined, mediaTypes)
	if !handled {
		resolved := e.resolver.ReplaceMediaURLs(ctx, combined)
		result, err := e.classifier.Classify(ctx, resolved)
		if err != nil {
			slog.Warn("Engine.ProcessBatch classification unavailable, falling through to general chat", "error", err, "subscriberID", subscriberID)
			result = models.NoIntent()
		}
		if len(result.ToneTags) > 0 {
			proposal := tone.ValidateProposal(tone.Proposal{
				Tags:   result.ToneTags,
				Source: tone.UpdateSource(result.ToneSource),
			})
			if tone.Apply(&user.Profile.Tone, proposal, e.now()) {
				slog.Debug("Engine.ProcessBatch tone updated", "subscriberID", subscriberID, "source", proposal.Source, "tags", user.Profile.Tone.Tags)
			}
		}
		reply, handled = e.dispatcher.Dispatch(ctx, user, result, combined)
		if !handled {
			if result.Intent == models.IntentOnboarding && result.Actionable() {
				reply = e.startOnboarding(user)
			} else {
				reply = e.generalReply(ctx, user, resolved)
				if strings.Contains(strings.ToLower(reply), onboardingTriggerPhrase) {
					slog.Info("Engine.ProcessBatch legacy onboarding phrase detected in reply", "subscriberID", subscriberID)
					reply = e.startOnboarding(user)
				}
			}
		}
	}

	if closing {
		slog.Info("Engine.ProcessBatch closing keyword ends check-in", "subscriberID", subscriberID)
		user.InCheckinFlow = false
		user.CheckinType = ""
	}
	user.AppendExchange(combined, reply, e.now())
	user.FlowStage = user.Stage()
	if err := e.store.SaveUser(*user); err != nil {
		slog.Error("Engine.ProcessBatch failed to persist exchange", "error", err, "subscriberID", subscriberID)
	}

	if err := e.sender.SendReply(ctx, subscriberID, ChunkReply(reply), combined); err != nil {
		slog.Error("Engine.ProcessBatch failed to deliver reply", "error", err, "batchID", batchID, "subscriberID", subscriberID)
	}
}

// getOrCreateUser loads the user record, creating it on first contact.
// Records imported from before the platform migration are keyed only
// by handle, so a subscriber-id miss falls back to a handle lookup and
// adopts the match under the new id. An unreadable record is treated
// as absent and rebuilt rather than failing the message.
func (e *Engine) getOrCreateUser(subscriberID string, first models.WebhookPayload) *models.UserRecord {
	user, err := e.store.GetUser(subscriberID)
	if err != nil {
		slog.Error("Engine.getOrCreateUser load failed, rebuilding record", "error", err, "subscriberID", subscriberID)
		user = nil
	}
	if user == nil {
		handle := ResolveUsername(first)
		user, err = e.store.GetUserByHandle(handle)
		if err != nil {
			slog.Error("Engine.getOrCreateUser handle lookup failed", "error", err, "handle", handle)
			user = nil
		}
		if user != nil {
			slog.Info("Engine.getOrCreateUser adopting legacy record", "subscriberID", subscriberID, "previousID", user.SubscriberID, "handle", handle)
			user.SubscriberID = subscriberID
		} else {
			user = models.NewUserRecord(subscriberID, handle, e.now())
			if name := strings.TrimSpace(first.ProfileName); name != "" && !isPlaceholderName(name) {
				user.DisplayName = name
			}
			slog.Info("Engine.getOrCreateUser created record", "subscriberID", subscriberID, "handle", handle)
		}
	}
	user.LastSeenAt = e.now()
	return user
}

// startOnboarding flips the persisted onboarding flag, clears any
// previously computed macro targets and returns the fixed opening
// question.
func (e *Engine) startOnboarding(user *models.UserRecord) string {
	user.IsOnboarding = true
	user.Calorie.TargetCalories = 0
	user.Calorie.Protein.Target = 0
	user.Calorie.Carbs.Target = 0
	user.Calorie.Fats.Target = 0
	slog.Info("Engine.startOnboarding flagged user", "subscriberID", user.SubscriberID)
	return onboardingQuestion
}

// generalReply composes the stage-appropriate prompt and generates the
// reply. Check-in stages load the user's newest check-in file; a
// missing or unreadable file falls back to the general template.
func (e *Engine) generalReply(ctx context.Context, user *models.UserRecord, message string) string {
	stage := user.Stage()
	var data *checkin.Data
	if stage == models.StageCheckinMonday || stage == models.StageCheckinWednesday {
		var err error
		data, err = e.checkins.LoadLatest(user.BestName())
		if err != nil {
			slog.Warn("Engine.generalReply check-in data unavailable, using general template", "error", err, "subscriberID", user.SubscriberID)
			data = nil
		}
		if data == nil {
			slog.Warn("Engine.generalReply no check-in file for client", "subscriberID", user.SubscriberID, "client", user.BestName())
		}
	}

	system := systemPromptFor(stage, data)
	if guide := tone.Guide(user.Profile.Tone.Tags); guide != "" {
		system += "\n" + guide
	}
	reply, err := e.gen.GeneratePrompt(ctx, system, buildUserPrompt(user, message))
	if err != nil {
		slog.Error("Engine.generalReply generation failed", "error", err, "subscriberID", user.SubscriberID)
		return genericApologyReply
	}
	return strings.TrimSpace(reply)
}

// combineBatch joins the batch's messages in arrival order, appending
// any attachment URLs so media handling sees them. The second return
// value keeps each URL's declared attachment type, which the batch
// text itself cannot carry.
func combineBatch(batch []models.WebhookPayload) (string, map[string]string) {
	var parts []string
	types := make(map[string]string)
	for _, p := range batch {
		text := resolveMessageText(p)
		if p.Media != nil && p.Media.URL != "" {
			if t := strings.TrimSpace(p.Media.Type); t != "" {
				types[p.Media.URL] = strings.ToLower(t)
			}
			if !strings.Contains(text, p.Media.URL) {
				if text != "" {
					text += " "
				}
				text += p.Media.URL
			}
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), types
}

// resolveMessageText applies the ordered fallback for message content.
func resolveMessageText(p models.WebhookPayload) string {
	if t := strings.TrimSpace(p.MessageText); t != "" {
		return t
	}
	return strings.TrimSpace(p.LastInput)
}

// placeholderNames are profile values the platform substitutes when it
// does not know the real name; they must not become handles.
var placeholderNames = map[string]bool{
	"there":          true,
	"instagram user": true,
	"user":           true,
	"guest":          true,
	"unknown":        true,
}

func isPlaceholderName(name string) bool {
	return placeholderNames[strings.ToLower(strings.TrimSpace(name))]
}

// ResolveUsername applies the ordered username fallback: top-level
// field, then the custom field, then the profile display name with
// placeholders rejected, then a generated identifier.
func ResolveUsername(p models.WebhookPayload) string {
	if u := strings.TrimSpace(p.Username); u != "" {
		return u
	}
	if u := strings.TrimSpace(p.CustomUser); u != "" {
		return u
	}
	if u := strings.TrimSpace(p.ProfileName); u != "" && !isPlaceholderName(u) {
		return u
	}
	return "user_" + p.SubscriberID
}
