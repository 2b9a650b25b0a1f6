package dispatch

import (
	"context"
	"log/slog"

	"github.com/coachflow/coachflow/internal/media"
	"github.com/coachflow/coachflow/internal/models"
)

// Casual acknowledgements sent when a form check is requested before
// the video arrives. Picked at random for tone variety.
var formCheckAckPhrases = []string{
	"Yeah send it through, let's have a look!",
	"Go for it, fire the video over!",
	"Sweet, send the clip and I'll check it out.",
	"Send it over, keen to see how it's looking!",
}

const formCheckFallbackReply = "Had a bit of trouble with that video, can you send it one more time?"

const techniqueAnalysisPrompt = `You are an experienced strength coach reviewing a client's exercise video.
Identify the exercise, then give feedback on technique: what looks good, and the one or two highest-impact fixes.
Keep it friendly and concise, like a DM from a coach.`

// handleFormCheck arms the pending flag if the video hasn't arrived
// yet, or analyzes it directly when the same message carries the clip.
func (d *Dispatcher) handleFormCheck(ctx context.Context, user *models.UserRecord, messageText string) string {
	url, _ := media.ExtractMediaURL(messageText)
	if url == "" {
		if err := d.store.SetPendingFlag(user.SubscriberID, models.PendingFormCheck); err != nil {
			slog.Error("Dispatcher.handleFormCheck failed to arm pending flag", "error", err, "subscriberID", user.SubscriberID)
		}
		slog.Info("Dispatcher.handleFormCheck no video yet, acknowledging", "subscriberID", user.SubscriberID)
		return pickPhrase(formCheckAckPhrases)
	}
	return d.analyzeFormVideo(ctx, user, url)
}

// analyzeFormVideo runs the technique analysis. An ActionItem is
// always recorded for audit; it is only marked completed when the
// analysis succeeded.
func (d *Dispatcher) analyzeFormVideo(ctx context.Context, user *models.UserRecord, videoURL string) string {
	itemID, err := d.store.AddActionItem(models.ActionItem{
		Handle:      user.Handle,
		ClientName:  user.BestName(),
		Description: "Form check video received: " + videoURL,
	})
	if err != nil {
		slog.Error("Dispatcher.analyzeFormVideo audit record failed", "error", err, "subscriberID", user.SubscriberID)
	}

	analysis, err := d.gen.DescribeImage(ctx, techniqueAnalysisPrompt, videoURL)
	if err != nil {
		slog.Error("Dispatcher.analyzeFormVideo analysis failed", "error", err, "subscriberID", user.SubscriberID)
		return formCheckFallbackReply
	}

	if itemID != 0 {
		if err := d.store.CompleteActionItem(itemID); err != nil {
			slog.Error("Dispatcher.analyzeFormVideo failed to complete audit record", "error", err, "id", itemID)
		}
	}
	d.tracker.Increment(user.SubscriberID, models.CounterFormChecks)
	slog.Info("Dispatcher.analyzeFormVideo analysis delivered", "subscriberID", user.SubscriberID)
	return analysis
}
