// Package tone maintains per-user texting-style preferences learned
// from conversation: a fixed whitelist of tone tags, EMA-smoothed
// scores with hysteresis, and a prompt snippet that steers the coach
// persona toward how each client likes to be talked to.
package tone

import (
	"math"
	"strings"
	"time"
)

// AllTags is the hard-coded set of safe tone tags. The classifier may
// only propose tags from this list; anything else is dropped.
var AllTags = map[string]bool{
	// Style
	"concise":   true,
	"detailed":  true,
	"formal":    true,
	"casual":    true,
	"no_emojis": true,
	"emojis_ok": true,
	// Stance
	"warm_supportive": true,
	"direct_coach":    true,
	"gentle_coach":    true,
	// Interaction
	"one_question_at_a_time": true,
	"likes_numbers":          true,
	"short_replies":          true,
}

// mutuallyExclusivePairs defines tags where at most one may be active.
var mutuallyExclusivePairs = [][2]string{
	{"concise", "detailed"},
	{"formal", "casual"},
	{"direct_coach", "gentle_coach"},
}

// UpdateSource enumerates how a tone update was triggered.
type UpdateSource string

const (
	// SourceExplicit means the user asked for the style directly.
	SourceExplicit UpdateSource = "explicit"
	// SourceImplicit means the style was inferred from how they write.
	SourceImplicit UpdateSource = "implicit"
)

// Proposal is the tone observation attached to a classification result.
type Proposal struct {
	Tags   []string     `json:"tone_tags,omitempty"`
	Source UpdateSource `json:"tone_update_source,omitempty"`
}

// State stores the persistent tone fields inside a user profile.
type State struct {
	Tags          []string           `json:"tags,omitempty"`
	Scores        map[string]float32 `json:"scores,omitempty"`
	LastUpdatedAt time.Time          `json:"last_updated_at,omitempty"`
}

// Smoothing and hysteresis constants. A tag activates when its score
// crosses activateThreshold and deactivates below deactivateThreshold;
// between the two the current state holds.
const (
	alpha               = float32(0.15)
	activateThreshold   = float32(0.7)
	deactivateThreshold = float32(0.4)
	// Minimum interval between implicit updates, so one chatty burst
	// cannot whiplash the learned style.
	minImplicitInterval = 3 * time.Minute
)

// ValidateProposal strips unknown tags and normalizes the source.
// Anything that is not an explicit request counts as implicit.
func ValidateProposal(p Proposal) Proposal {
	cleaned := Proposal{Source: SourceImplicit}
	if UpdateSource(strings.TrimSpace(strings.ToLower(string(p.Source)))) == SourceExplicit {
		cleaned.Source = SourceExplicit
	}
	seen := map[string]bool{}
	for _, t := range p.Tags {
		t = strings.TrimSpace(strings.ToLower(t))
		if AllTags[t] && !seen[t] {
			cleaned.Tags = append(cleaned.Tags, t)
			seen[t] = true
		}
	}
	return cleaned
}

// Apply folds a validated proposal into the state. Explicit requests
// take effect immediately; implicit observations are EMA-smoothed and
// rate limited. Reports whether the state changed.
func Apply(st *State, proposal Proposal, now time.Time) bool {
	if len(proposal.Tags) == 0 {
		return false
	}
	if proposal.Source == SourceImplicit &&
		!st.LastUpdatedAt.IsZero() && now.Sub(st.LastUpdatedAt) < minImplicitInterval {
		return false
	}
	if st.Scores == nil {
		st.Scores = make(map[string]float32)
	}

	observed := make(map[string]bool, len(proposal.Tags))
	for _, t := range proposal.Tags {
		observed[t] = true
	}

	changed := false
	if proposal.Source == SourceExplicit {
		for tag := range observed {
			if st.Scores[tag] != 1 {
				st.Scores[tag] = 1
				changed = true
			}
			// An explicit request overrides its opposite outright.
			for _, pair := range mutuallyExclusivePairs {
				if pair[0] == tag && st.Scores[pair[1]] > 0 {
					st.Scores[pair[1]] = 0
					changed = true
				}
				if pair[1] == tag && st.Scores[pair[0]] > 0 {
					st.Scores[pair[0]] = 0
					changed = true
				}
			}
		}
	} else {
		for tag := range observed {
			prev := st.Scores[tag]
			next := clamp((1-alpha)*prev + alpha)
			if next != prev {
				st.Scores[tag] = next
				changed = true
			}
		}
		// Decay unobserved tags toward zero so old styles fade out.
		for tag, prev := range st.Scores {
			if observed[tag] || prev <= 0 {
				continue
			}
			decayed := clamp((1 - alpha) * prev)
			if decayed != prev {
				st.Scores[tag] = decayed
				changed = true
			}
		}
	}
	if !changed {
		return false
	}

	if st.Scores["no_emojis"] >= activateThreshold {
		st.Scores["emojis_ok"] = 0
	}
	for _, pair := range mutuallyExclusivePairs {
		a, b := pair[0], pair[1]
		if st.Scores[a] >= activateThreshold && st.Scores[b] >= activateThreshold {
			if st.Scores[a] >= st.Scores[b] {
				st.Scores[b] = deactivateThreshold - 0.01
			} else {
				st.Scores[a] = deactivateThreshold - 0.01
			}
		}
	}

	// Rebuild active tags with hysteresis.
	activeSet := make(map[string]bool)
	for _, t := range st.Tags {
		activeSet[t] = true
	}
	for tag, score := range st.Scores {
		if score >= activateThreshold {
			activeSet[tag] = true
		} else if score <= deactivateThreshold {
			delete(activeSet, tag)
		}
	}
	if activeSet["no_emojis"] {
		delete(activeSet, "emojis_ok")
	}

	newTags := make([]string, 0, len(activeSet))
	for t := range activeSet {
		newTags = append(newTags, t)
	}
	st.Tags = newTags
	st.LastUpdatedAt = now
	return true
}

// Guide produces a compact instruction snippet for injection into the
// persona system prompt. Returns an empty string with no active tags.
func Guide(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}

	var b strings.Builder
	b.WriteString("\nThis client's texting preferences:\n")
	if set["concise"] || set["short_replies"] {
		b.WriteString("- Keep messages short, no filler.\n")
	}
	if set["detailed"] {
		b.WriteString("- They like a bit more explanation than usual.\n")
	}
	if set["formal"] {
		b.WriteString("- Keep the register professional, skip slang.\n")
	}
	if set["casual"] {
		b.WriteString("- Relaxed, friendly language is welcome.\n")
	}
	if set["no_emojis"] {
		b.WriteString("- No emojis.\n")
	} else if set["emojis_ok"] {
		b.WriteString("- Emojis are fine where natural.\n")
	}
	if set["one_question_at_a_time"] {
		b.WriteString("- Ask one question at a time.\n")
	}
	if set["likes_numbers"] {
		b.WriteString("- Back advice with concrete numbers when you have them.\n")
	}
	if set["warm_supportive"] {
		b.WriteString("- Lead with encouragement before corrections.\n")
	}
	if set["direct_coach"] {
		b.WriteString("- Be direct: clear instructions over cheerleading.\n")
	}
	if set["gentle_coach"] {
		b.WriteString("- Be gentle: patient, low-pressure guidance.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func clamp(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	// Round to 4 decimal places to avoid floating point drift.
	return float32(math.Round(float64(v)*10000) / 10000)
}
