package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coachflow/coachflow/internal/media"
	"github.com/coachflow/coachflow/internal/models"
)

const askForFoodPhotoReply = "Send the photo over and I'll break down the calories and macros for you!"

const foodAnalysisFallbackReply = "Hmm, I couldn't make that photo out properly. Mind sending it again, maybe with a bit more light?"

// calorieAnalysisPrompt asks for a human-readable analysis with an
// embedded machine-readable block the macro extractor parses.
const calorieAnalysisPrompt = `You are a nutrition coach analyzing a photo of a meal.
Describe the meal and estimate its calories and macros.
After your analysis, append this exact block with your best estimates:
CALORIES_DAILY: <number>
PROTEIN_DAILY: <number>g
FATS_DAILY: <number>g
CARBS_DAILY: <number>g`

// handleFoodAnalysis runs the calorie analysis when the message
// carries an image, otherwise arms the pending flag and asks for one.
func (d *Dispatcher) handleFoodAnalysis(ctx context.Context, user *models.UserRecord, messageText string) string {
	url, description := media.ExtractMediaURL(messageText)
	if url == "" {
		if err := d.store.SetPendingFlag(user.SubscriberID, models.PendingFoodAnalysis); err != nil {
			slog.Error("Dispatcher.handleFoodAnalysis failed to arm pending flag", "error", err, "subscriberID", user.SubscriberID)
		}
		slog.Info("Dispatcher.handleFoodAnalysis no image yet, asking for photo", "subscriberID", user.SubscriberID)
		return askForFoodPhotoReply
	}
	return d.analyzeFoodImage(ctx, user, url, description)
}

// handleCalorieRequest acknowledges a tracking request and arms the
// food-analysis flag so the next photo is consumed directly.
func (d *Dispatcher) handleCalorieRequest(ctx context.Context, user *models.UserRecord) string {
	if err := d.store.SetPendingFlag(user.SubscriberID, models.PendingFoodAnalysis); err != nil {
		slog.Error("Dispatcher.handleCalorieRequest failed to arm pending flag", "error", err, "subscriberID", user.SubscriberID)
	}
	return askForFoodPhotoReply
}

// analyzeFoodImage sends the photo to the calorie-analysis prompt,
// extracts macros from the answer and updates the user's daily log.
// The reply combines the raw analysis with the updated remaining-macros
// summary.
func (d *Dispatcher) analyzeFoodImage(ctx context.Context, user *models.UserRecord, imageURL, description string) string {
	prompt := calorieAnalysisPrompt
	if description != "" {
		prompt = fmt.Sprintf("%s\n\nThe user says about the meal: %q", calorieAnalysisPrompt, description)
	}
	analysis, err := d.gen.DescribeImage(ctx, prompt, imageURL)
	if err != nil {
		slog.Error("Dispatcher.analyzeFoodImage analysis failed", "error", err, "subscriberID", user.SubscriberID)
		return foodAnalysisFallbackReply
	}

	macros, ok := ExtractMacros(analysis)
	if !ok {
		slog.Warn("Dispatcher.analyzeFoodImage no macros parseable from analysis", "subscriberID", user.SubscriberID)
		return analysis
	}

	today := time.Now().Format("2006-01-02")
	user.Calorie.ResetIfStale(today)
	user.Calorie.AddMeal(description, macros.Calories, macros.Protein, macros.Carbs, macros.Fats)
	if err := d.store.SaveUser(*user); err != nil {
		slog.Error("Dispatcher.analyzeFoodImage failed to persist calorie log", "error", err, "subscriberID", user.SubscriberID)
	}
	d.tracker.Increment(user.SubscriberID, models.CounterCaloriesTracked)
	slog.Info("Dispatcher.analyzeFoodImage logged meal", "subscriberID", user.SubscriberID, "calories", macros.Calories)

	return analysis + "\n\n" + remainingSummary(user)
}

func remainingSummary(user *models.UserRecord) string {
	c := user.Calorie
	if c.TargetCalories <= 0 {
		return fmt.Sprintf("Logged it! You're at %.0f calories for today (%.0fg protein, %.0fg carbs, %.0fg fats).",
			c.ConsumedCalories, c.Protein.Consumed, c.Carbs.Consumed, c.Fats.Consumed)
	}
	return fmt.Sprintf("Logged it! You've got %.0f calories left for today (%.0f of %.0f used, %.0fg protein so far).",
		c.RemainingCalories(), c.ConsumedCalories, c.TargetCalories, c.Protein.Consumed)
}
