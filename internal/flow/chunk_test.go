package flow

import (
	"strings"
	"testing"
)

func TestChunkReplyShortSingleChunk(t *testing.T) {
	reply := "Nice work today! Keep the protein up."
	chunks := ChunkReply(reply)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != reply {
		t.Errorf("expected chunk to equal input, got %q", chunks[0])
	}
}

func TestChunkReplyEmpty(t *testing.T) {
	if chunks := ChunkReply("   "); chunks != nil {
		t.Errorf("expected nil for blank reply, got %v", chunks)
	}
}

func TestChunkReplyLongReplySplitsOnSentences(t *testing.T) {
	sentences := []string{
		"That session sounded brutal but you got through it and that is what counts.",
		"Your squat volume this week is already ahead of last week's total.",
		"Keep the rest days honest though, recovery is where the actual growth happens.",
		"For tomorrow I want you to go a touch lighter on the top set.",
		"Focus on bar speed instead of grinding out slow reps.",
		"Message me after and tell me how the knee felt!",
	}
	reply := strings.Join(sentences, " ")
	if len(reply) <= unsplitThreshold {
		t.Fatalf("test reply too short to exercise splitting: %d chars", len(reply))
	}

	chunks := ChunkReply(reply)
	if len(chunks) < 2 || len(chunks) > maxReplyChunks {
		t.Fatalf("expected 2..%d chunks, got %d: %v", maxReplyChunks, len(chunks), chunks)
	}

	// No content lost or reordered: concatenation ignoring whitespace
	// reproduces the original text.
	squash := func(s string) string {
		return strings.Join(strings.Fields(s), "")
	}
	if squash(strings.Join(chunks, " ")) != squash(reply) {
		t.Errorf("chunk concatenation does not reproduce input\nchunks: %v", chunks)
	}

	// Every chunk ends on a sentence boundary.
	for i, c := range chunks {
		last := c[len(c)-1]
		if last != '.' && last != '!' && last != '?' {
			t.Errorf("chunk %d does not end on sentence boundary: %q", i, c)
		}
	}
}

func TestChunkReplyNeverSplitsInsideSentence(t *testing.T) {
	// A single long sentence cannot be split at all.
	reply := strings.Repeat("really ", 40) + "long single sentence with no terminal punctuation until the end."
	chunks := ChunkReply(reply)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for single sentence, got %d", len(chunks))
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "plain sentences",
			in:   "First one. Second one! Third one?",
			want: []string{"First one.", "Second one!", "Third one?"},
		},
		{
			name: "punctuation runs stay attached",
			in:   "Seriously?! Okay... fine.",
			want: []string{"Seriously?!", "Okay...", "fine."},
		},
		{
			name: "decimal number not a boundary",
			in:   "Bump it to 62.5 kg next week. Then hold.",
			want: []string{"Bump it to 62.5 kg next week.", "Then hold."},
		},
		{
			name: "trailing text without punctuation",
			in:   "Good session. see you tomorrow",
			want: []string{"Good session.", "see you tomorrow"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := splitSentences(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d sentences, got %d: %v", len(tc.want), len(got), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("sentence %d: expected %q, got %q", i, tc.want[i], got[i])
				}
			}
		})
	}
}
