package flow

import (
	"fmt"
	"strings"

	"github.com/coachflow/coachflow/internal/checkin"
	"github.com/coachflow/coachflow/internal/models"
)

// Closing keywords that end a check-in conversation and return the
// user to general chat.
var closingKeywords = []string{"thanks", "ok", "okay", "got it", "cool", "sweet", "perfect"}

// onboardingTriggerPhrase is the legacy textual side-channel: older
// prompts had the model embed this phrase in its reply to signal that
// onboarding should start. The structured onboarding intent replaces
// it, but replies are still scanned for the phrase so prompt drift
// cannot silently break the trigger.
const onboardingTriggerPhrase = "let's get your coaching set up"

const onboardingQuestion = "Awesome, let's get you set up properly! First up: what's the main goal you want to hit in the next 12 weeks, and how many days a week can you realistically train?"

const genericApologyReply = "Sorry, I'm having a moment here, can you send that again in a bit?"

const generalSystemPrompt = `You are Shania, an Instagram fitness coach chatting with a client in DMs.
Tone: casual, warm, a little playful. Short messages, like real texting. Use the client's name sparingly.
You help with training, nutrition and motivation. Never invent results or promise medical outcomes.
If the client clearly wants full coaching onboarding and is not set up yet, say "` + onboardingTriggerPhrase + `" naturally in your reply.`

const onboardingSystemPrompt = `You are Shania, an Instagram fitness coach onboarding a new client over DMs.
You are collecting, conversationally and one or two at a time: goals, training frequency, dietary notes, and anything relevant from their background.
Acknowledge what they share, then ask the next most useful question. Keep it light, no forms or lists.`

const checkinMondaySystemPrompt = `You are Shania, an Instagram fitness coach running a Monday check-in over DMs.
Focus: how the past week went, weight trend, wins to celebrate, and setting the focus for this week.
Use the check-in data below when it is available, referencing concrete numbers naturally.`

const checkinWednesdaySystemPrompt = `You are Shania, an Instagram fitness coach running a Wednesday mid-week check-in over DMs.
Focus: energy, adherence since Monday, and one small adjustment to finish the week strong.
Use the check-in data below when it is available, referencing concrete numbers naturally.`

// containsClosingKeyword reports whether the message contains any
// check-in closing keyword as a whole word.
func containsClosingKeyword(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range closingKeywords {
		if containsWord(lowered, kw) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i == -1 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// systemPromptFor selects the template for the user's current stage.
// Check-in stages append the check-in data block when one is loaded.
func systemPromptFor(stage models.FlowStage, data *checkin.Data) string {
	switch stage {
	case models.StageOnboarding:
		return onboardingSystemPrompt
	case models.StageCheckinMonday:
		if data == nil {
			return generalSystemPrompt
		}
		return checkinMondaySystemPrompt + "\n\n" + checkinDataBlock(data)
	case models.StageCheckinWednesday:
		if data == nil {
			return generalSystemPrompt
		}
		return checkinWednesdaySystemPrompt + "\n\n" + checkinDataBlock(data)
	default:
		return generalSystemPrompt
	}
}

func checkinDataBlock(data *checkin.Data) string {
	var b strings.Builder
	b.WriteString("Check-in data:\n")
	if data.CurrentWeight > 0 {
		fmt.Fprintf(&b, "- current weight: %.1f\n", data.CurrentWeight)
	}
	if data.WorkoutsThisWeek > 0 {
		fmt.Fprintf(&b, "- workouts this week: %d\n", data.WorkoutsThisWeek)
	}
	if data.TotalSets > 0 || data.TotalReps > 0 {
		fmt.Fprintf(&b, "- volume: %d sets, %d reps\n", data.TotalSets, data.TotalReps)
	}
	if data.TotalWeightLifted > 0 {
		fmt.Fprintf(&b, "- total weight lifted: %.0f\n", data.TotalWeightLifted)
	}
	for _, ex := range data.TopExercises {
		fmt.Fprintf(&b, "- top exercise: %s (%.0f%% improvement)\n", ex.Name, ex.ImprovementPC)
	}
	if data.WeeklySummary != "" {
		fmt.Fprintf(&b, "- summary: %s\n", data.WeeklySummary)
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildUserPrompt assembles the profile, history and current message
// into the user-side prompt.
func buildUserPrompt(user *models.UserRecord, message string) string {
	var b strings.Builder
	if summary := profileSummary(user.Profile); summary != "" {
		b.WriteString("Client profile: ")
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	if len(user.ConversationHistory) > 0 {
		b.WriteString("Conversation so far:\n")
		b.WriteString(formatHistory(user.ConversationHistory))
		b.WriteString("\n\n")
	}
	b.WriteString("New message from ")
	b.WriteString(user.BestName())
	b.WriteString(":\n")
	b.WriteString(message)
	return b.String()
}

// formatHistory renders history entries as timestamped lines.
func formatHistory(entries []models.ConversationEntry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Role, e.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func profileSummary(p models.Profile) string {
	var parts []string
	if p.Goals != "" {
		parts = append(parts, "goals: "+p.Goals)
	}
	if p.TrainingFrequency != "" {
		parts = append(parts, "trains "+p.TrainingFrequency)
	}
	if p.DietaryNotes != "" {
		parts = append(parts, "diet: "+p.DietaryNotes)
	}
	if p.Bio != "" {
		parts = append(parts, p.Bio)
	}
	if p.Interests != "" {
		parts = append(parts, "interests: "+p.Interests)
	}
	return strings.Join(parts, "; ")
}
