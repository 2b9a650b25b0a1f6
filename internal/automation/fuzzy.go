package automation

import "strings"

// WorkoutDays is the fixed set of day labels used in training programs.
var WorkoutDays = []string{
	"Leg Day",
	"Back Day",
	"Chest Day",
	"Core Day",
	"Shoulder Day",
	"Cardio Day",
	"Arm Day",
}

// dayKeywords maps loose phrasing onto a canonical day label.
var dayKeywords = map[string]string{
	"leg":          "Leg Day",
	"legs":         "Leg Day",
	"quad":         "Leg Day",
	"quads":        "Leg Day",
	"glute":        "Leg Day",
	"glutes":       "Leg Day",
	"back":         "Back Day",
	"pull":         "Back Day",
	"lat":          "Back Day",
	"lats":         "Back Day",
	"chest":        "Chest Day",
	"push":         "Chest Day",
	"pec":          "Chest Day",
	"pecs":         "Chest Day",
	"core":         "Core Day",
	"abs":          "Core Day",
	"ab":           "Core Day",
	"shoulder":     "Shoulder Day",
	"shoulders":    "Shoulder Day",
	"delt":         "Shoulder Day",
	"delts":        "Shoulder Day",
	"cardio":       "Cardio Day",
	"conditioning": "Cardio Day",
	"arm":          "Arm Day",
	"arms":         "Arm Day",
	"bicep":        "Arm Day",
	"biceps":       "Arm Day",
	"tricep":       "Arm Day",
	"triceps":      "Arm Day",
}

// MatchWorkoutDay resolves free-text like "legs", "leg day" or "my
// Tuesday leg session" to a canonical workout day label.
func MatchWorkoutDay(input string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	// Exact label match first.
	for _, day := range WorkoutDays {
		if normalized == strings.ToLower(day) {
			return day, true
		}
	}

	// Then keyword scan over the words of the input.
	for _, word := range strings.Fields(normalized) {
		word = strings.Trim(word, ".,!?'\"")
		if day, ok := dayKeywords[word]; ok {
			return day, true
		}
	}
	return "", false
}
