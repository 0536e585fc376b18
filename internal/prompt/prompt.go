// Package prompt assembles the bounded generation prompt from retrieved
// passages, trimmed conversation history, and the user's message. Assembly is
// pure and deterministic: identical inputs always produce a byte-identical
// prompt, which is what makes the generation step testable.
package prompt

import (
	"fmt"
	"strings"

	"github.com/54b3r/newschat-go/internal/rag"
	"github.com/54b3r/newschat-go/internal/session"
)

// NoMatchFallback is the user-facing answer when retrieval produced zero
// passages. It is a normal response state, not an error.
const NoMatchFallback = "I couldn't find any matching news articles for that. " +
	"Try rephrasing your question or asking about a different topic."

// Limits bounds the assembled prompt size.
type Limits struct {
	// MaxPassages caps how many retrieved passages are rendered. Default 5.
	MaxPassages int

	// MaxExcerptLen caps the rendered body length per passage, in bytes.
	// Default 500.
	MaxExcerptLen int

	// MaxHistoryTurns caps how many trailing history messages are kept;
	// older turns are dropped oldest-first, never sampled. Default 6.
	MaxHistoryTurns int

	// MaxHistoryMsgLen caps each rendered history message, in bytes.
	// Default 300.
	MaxHistoryMsgLen int
}

// withDefaults fills zero fields with the default limits.
func (l Limits) withDefaults() Limits {
	if l.MaxPassages <= 0 {
		l.MaxPassages = 5
	}
	if l.MaxExcerptLen <= 0 {
		l.MaxExcerptLen = 500
	}
	if l.MaxHistoryTurns <= 0 {
		l.MaxHistoryTurns = 6
	}
	if l.MaxHistoryMsgLen <= 0 {
		l.MaxHistoryMsgLen = 300
	}
	return l
}

// Source is the attribution record returned to the client alongside the
// generated answer, parallel to the rendered passages.
type Source struct {
	// Title is the article headline.
	Title string `json:"title"`
	// URL is the canonical article URL.
	URL string `json:"url"`
	// Source is the publisher name.
	Source string `json:"source"`
	// Category is the topical label, empty when the chunk had none.
	Category string `json:"category,omitempty"`
	// Score is the raw similarity score from retrieval.
	Score float32 `json:"score"`
}

// Build renders the generation prompt and the parallel sources list.
//
// Passages are rendered in their incoming rank order — score order from
// retrieval is preserved, never re-sorted. History must arrive in
// chronological (oldest-first) order; only the last MaxHistoryTurns messages
// are kept and each is truncated to MaxHistoryMsgLen.
//
// With zero passages the prompt contains the NoMatchFallback narrative
// instead of an article block, and the sources list is empty.
func Build(passages []rag.Result, history []session.Message, userMessage string, limits Limits) (string, []Source) {
	limits = limits.withDefaults()

	var b strings.Builder
	sources := []Source{}

	if len(passages) == 0 {
		b.WriteString("No relevant news articles were found for this question.\n")
		b.WriteString("Reply with exactly this message and nothing else:\n")
		b.WriteString(NoMatchFallback)
		b.WriteString("\n")
	} else {
		if len(passages) > limits.MaxPassages {
			passages = passages[:limits.MaxPassages]
		}

		b.WriteString("Use the following news articles to answer the user's question.\n")
		b.WriteString("Cite the article title when you draw on it. If the articles do not\n")
		b.WriteString("answer the question, say so instead of speculating.\n\n")

		for i, p := range passages {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, p.Title)
			fmt.Fprintf(&b, "    source: %s | category: %s | published: %s\n",
				orUnknown(p.SourceName), orUnknown(string(p.Category)), publishedDate(p))
			fmt.Fprintf(&b, "    %s\n\n", truncate(p.Body, limits.MaxExcerptLen))

			sources = append(sources, Source{
				Title:    p.Title,
				URL:      p.SourceURL,
				Source:   p.SourceName,
				Category: string(p.Category),
				Score:    p.Score,
			})
		}
	}

	if trimmed := TrimHistory(history, limits.MaxHistoryTurns); len(trimmed) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range trimmed {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, truncate(m.Content, limits.MaxHistoryMsgLen))
		}
		b.WriteString("\n")
	}

	b.WriteString("User question: ")
	b.WriteString(userMessage)

	return b.String(), sources
}

// TrimHistory keeps the last maxTurns messages, dropping older ones.
func TrimHistory(history []session.Message, maxTurns int) []session.Message {
	if maxTurns <= 0 || len(history) <= maxTurns {
		return history
	}
	return history[len(history)-maxTurns:]
}

// truncate cuts s to at most n bytes, appending an ellipsis when it cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// publishedDate renders the publication date, or "unknown" when unset.
func publishedDate(p rag.Result) string {
	if p.PublishedAt.IsZero() {
		return "unknown"
	}
	return p.PublishedAt.UTC().Format("2006-01-02")
}

// orUnknown substitutes "unknown" for an empty attribution field.
func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
