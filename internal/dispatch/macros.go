package dispatch

import (
	"regexp"
	"strconv"
)

// Macros is the numeric tuple extracted from a calorie analysis.
type Macros struct {
	Calories float64
	Protein  float64
	Fats     float64
	Carbs    float64
}

// Structured block the analysis prompt asks the model to append.
var (
	caloriesKeyPattern = regexp.MustCompile(`(?i)CALORIES_DAILY\s*[:=]\s*(\d+(?:\.\d+)?)`)
	proteinKeyPattern  = regexp.MustCompile(`(?i)PROTEIN_DAILY\s*[:=]\s*(\d+(?:\.\d+)?)\s*g?`)
	fatsKeyPattern     = regexp.MustCompile(`(?i)FATS_DAILY\s*[:=]\s*(\d+(?:\.\d+)?)\s*g?`)
	carbsKeyPattern    = regexp.MustCompile(`(?i)CARBS_DAILY\s*[:=]\s*(\d+(?:\.\d+)?)\s*g?`)
)

// Loose contextual fallbacks for when the model ignored the block
// format and only mentioned the numbers in prose.
var (
	caloriesLoosePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:kcal|calories|cals)`)
	proteinLoosePattern  = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*g(?:rams)?\s*(?:of\s+)?protein`)
	fatsLoosePattern     = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*g(?:rams)?\s*(?:of\s+)?fats?`)
	carbsLoosePattern    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*g(?:rams)?\s*(?:of\s+)?carb(?:ohydrate)?s?`)
)

// ExtractMacros pulls calories/protein/fats/carbs from analysis text.
// The structured KEY: value block wins; prose-embedded numbers are the
// fallback. The second return value is false when not even a calorie
// figure could be found.
func ExtractMacros(text string) (Macros, bool) {
	var m Macros
	calOK := false

	if v, ok := firstNumber(caloriesKeyPattern, text); ok {
		m.Calories, calOK = v, true
	} else if v, ok := firstNumber(caloriesLoosePattern, text); ok {
		m.Calories, calOK = v, true
	}
	if !calOK {
		return Macros{}, false
	}

	if v, ok := firstNumber(proteinKeyPattern, text); ok {
		m.Protein = v
	} else if v, ok := firstNumber(proteinLoosePattern, text); ok {
		m.Protein = v
	}
	if v, ok := firstNumber(fatsKeyPattern, text); ok {
		m.Fats = v
	} else if v, ok := firstNumber(fatsLoosePattern, text); ok {
		m.Fats = v
	}
	if v, ok := firstNumber(carbsKeyPattern, text); ok {
		m.Carbs = v
	} else if v, ok := firstNumber(carbsLoosePattern, text); ok {
		m.Carbs = v
	}
	return m, true
}

func firstNumber(re *regexp.Regexp, text string) (float64, bool) {
	match := re.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
