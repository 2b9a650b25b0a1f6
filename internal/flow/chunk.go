package flow

import "strings"

// maxReplyChunks caps how many message bubbles one reply is split into.
const maxReplyChunks = 3

// unsplitThreshold is the length under which a reply is sent as a
// single bubble.
const unsplitThreshold = 160

// ChunkReply splits a reply into at most three roughly equal chunks on
// sentence boundaries, to emulate human multi-message texting. Short
// replies are returned as a single chunk.
func ChunkReply(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len(trimmed) <= unsplitThreshold {
		return []string{trimmed}
	}
	sentences := splitSentences(trimmed)
	if len(sentences) <= 1 {
		return []string{trimmed}
	}
	numChunks := maxReplyChunks
	if len(sentences) < numChunks {
		numChunks = len(sentences)
	}
	return packSentences(sentences, numChunks)
}

// splitSentences breaks text after terminal punctuation followed by
// whitespace or end of text. Trailing punctuation runs ("?!", "...")
// stay with their sentence.
func splitSentences(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		for j < len(s) && (s[j] == '.' || s[j] == '!' || s[j] == '?') {
			j++
		}
		if j >= len(s) || s[j] == ' ' || s[j] == '\n' || s[j] == '\t' {
			if sentence := strings.TrimSpace(s[start:j]); sentence != "" {
				out = append(out, sentence)
			}
			start = j
			i = j - 1
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// packSentences distributes sentences over numChunks chunks of roughly
// equal length, never splitting inside a sentence.
func packSentences(sentences []string, numChunks int) []string {
	total := 0
	for _, s := range sentences {
		total += len(s)
	}
	target := total / numChunks

	var chunks []string
	var cur strings.Builder
	for _, s := range sentences {
		if cur.Len() > 0 && cur.Len()+len(s) > target && len(chunks) < numChunks-1 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(s)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
