package tone

import (
	"strings"
	"testing"
	"time"
)

func toSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return set
}

func TestValidateProposalStripsUnknownTags(t *testing.T) {
	p := ValidateProposal(Proposal{
		Tags: []string{"concise", "UNKNOWN", "formal", "  casual  ", "injected_tag"},
	})
	for _, tag := range p.Tags {
		if !AllTags[tag] {
			t.Errorf("unexpected tag in cleaned proposal: %q", tag)
		}
	}
	if len(p.Tags) != 3 { // concise, formal, casual
		t.Errorf("expected 3 tags, got %d: %v", len(p.Tags), p.Tags)
	}
}

func TestValidateProposalDefaultsToImplicit(t *testing.T) {
	p := ValidateProposal(Proposal{Tags: []string{"concise"}})
	if p.Source != SourceImplicit {
		t.Errorf("expected implicit source, got %q", p.Source)
	}
}

func TestValidateProposalNormalizesSource(t *testing.T) {
	p := ValidateProposal(Proposal{Tags: []string{"concise"}, Source: " EXPLICIT "})
	if p.Source != SourceExplicit {
		t.Errorf("expected explicit source normalized, got %q", p.Source)
	}
	p = ValidateProposal(Proposal{Tags: []string{"concise"}, Source: "guessed"})
	if p.Source != SourceImplicit {
		t.Errorf("unrecognized sources must fall back to implicit, got %q", p.Source)
	}
}

func TestApplyExplicitActivatesImmediately(t *testing.T) {
	st := &State{}
	now := time.Now()
	if !Apply(st, Proposal{Tags: []string{"concise", "no_emojis"}, Source: SourceExplicit}, now) {
		t.Fatal("expected state to change on explicit update")
	}
	tags := toSet(st.Tags)
	if !tags["concise"] || !tags["no_emojis"] {
		t.Errorf("expected explicit tags active, got %v", st.Tags)
	}
}

func TestApplyImplicitNeedsRepeatedObservations(t *testing.T) {
	st := &State{}
	now := time.Now()

	Apply(st, Proposal{Tags: []string{"concise"}, Source: SourceImplicit}, now)
	if toSet(st.Tags)["concise"] {
		t.Fatal("single implicit observation must not activate a tag")
	}

	// Repeated observations push the EMA over the activation threshold.
	for i := 0; i < 20; i++ {
		now = now.Add(5 * time.Minute)
		Apply(st, Proposal{Tags: []string{"concise"}, Source: SourceImplicit}, now)
	}
	if !toSet(st.Tags)["concise"] {
		t.Errorf("sustained observations should activate the tag, scores=%v", st.Scores)
	}
}

func TestApplyImplicitRateLimited(t *testing.T) {
	st := &State{}
	now := time.Now()

	Apply(st, Proposal{Tags: []string{"concise"}, Source: SourceImplicit}, now)
	first := st.Scores["concise"]

	// A second observation seconds later is ignored.
	if Apply(st, Proposal{Tags: []string{"concise"}, Source: SourceImplicit}, now.Add(10*time.Second)) {
		t.Error("implicit update inside the rate-limit window must be dropped")
	}
	if st.Scores["concise"] != first {
		t.Errorf("score must not move inside the rate-limit window")
	}
}

func TestApplyMutualExclusion(t *testing.T) {
	st := &State{}
	now := time.Now()
	Apply(st, Proposal{Tags: []string{"direct_coach"}, Source: SourceExplicit}, now)
	Apply(st, Proposal{Tags: []string{"gentle_coach"}, Source: SourceExplicit}, now.Add(time.Minute))

	tags := toSet(st.Tags)
	if tags["direct_coach"] && tags["gentle_coach"] {
		t.Errorf("mutually exclusive tags both active: %v", st.Tags)
	}
	if !tags["gentle_coach"] {
		t.Errorf("most recent explicit stance should win, got %v", st.Tags)
	}
}

func TestApplyNoEmojisOverridesEmojisOK(t *testing.T) {
	st := &State{}
	now := time.Now()
	Apply(st, Proposal{Tags: []string{"emojis_ok"}, Source: SourceExplicit}, now)
	Apply(st, Proposal{Tags: []string{"no_emojis"}, Source: SourceExplicit}, now.Add(time.Minute))

	tags := toSet(st.Tags)
	if tags["emojis_ok"] {
		t.Errorf("no_emojis must disable emojis_ok, got %v", st.Tags)
	}
	if !tags["no_emojis"] {
		t.Errorf("expected no_emojis active, got %v", st.Tags)
	}
}

func TestApplyUnobservedTagsDecay(t *testing.T) {
	st := &State{}
	now := time.Now()
	Apply(st, Proposal{Tags: []string{"casual"}, Source: SourceExplicit}, now)

	// Keep observing a different tag; casual should eventually drop out.
	for i := 0; i < 30; i++ {
		now = now.Add(5 * time.Minute)
		Apply(st, Proposal{Tags: []string{"likes_numbers"}, Source: SourceImplicit}, now)
	}
	if toSet(st.Tags)["casual"] {
		t.Errorf("unobserved tag should decay out, scores=%v", st.Scores)
	}
}

func TestGuide(t *testing.T) {
	if Guide(nil) != "" {
		t.Error("no tags must produce no guide")
	}

	guide := Guide([]string{"concise", "no_emojis", "direct_coach"})
	for _, want := range []string{"short", "No emojis", "direct"} {
		if !strings.Contains(guide, want) {
			t.Errorf("expected guide to mention %q, got:\n%s", want, guide)
		}
	}
}
