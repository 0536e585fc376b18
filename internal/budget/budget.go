// Package budget provides token budget estimation and history trimming for
// the chat pipeline. Because the pipeline supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/54b3r/newschat-go/internal/session"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// perMessageOverhead is the approximate fixed token cost most chat APIs
	// charge per message on top of its content.
	perMessageOverhead = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving room
	// for the generated answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// session messages, summing role + content for each.
func EstimateMessages(msgs []session.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// TrimHistory removes the oldest messages from history until fixedTokens plus
// the history estimate fits within maxTokens. fixedTokens is the estimated
// cost of everything that cannot be trimmed (system prompt, passages, the
// user's message).
//
// Returns the trimmed history slice. If even an empty history exceeds the
// budget, the empty slice is returned — fixed content is never dropped here.
func TrimHistory(history []session.Message, fixedTokens, maxTokens int) []session.Message {
	// History is typically a handful of turns; a linear scan dropping the
	// oldest message at a time is clear and fast enough.
	for len(history) > 0 {
		if fixedTokens+EstimateMessages(history) <= maxTokens {
			break
		}
		history = history[1:]
	}
	return history
}
