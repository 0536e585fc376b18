package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/54b3r/newschat-go/internal/rag"
	"github.com/54b3r/newschat-go/internal/session"
)

func samplePassages() []rag.Result {
	return []rag.Result{
		{
			ID:          "a",
			Score:       0.91,
			Title:       "Lakers clinch the finals",
			Body:        "A long recap of the deciding game with plenty of detail.",
			SourceURL:   "https://news.example/lakers",
			SourceName:  "Example Sports",
			Category:    rag.CategorySports,
			PublishedAt: time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC),
		},
		{
			ID:         "b",
			Score:      0.84,
			Title:      "Draft night surprises",
			Body:       "Short body.",
			SourceURL:  "https://news.example/draft",
			SourceName: "Example Sports",
			Category:   rag.CategorySports,
		},
	}
}

func sampleHistory() []session.Message {
	return []session.Message{
		{Role: session.RoleUser, Content: "any basketball news?"},
		{Role: session.RoleBot, Content: "The finals start tonight."},
	}
}

// TestBuild_Deterministic verifies the core purity contract: identical
// inputs yield a byte-identical prompt and identical sources.
func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	passages := samplePassages()
	history := sampleHistory()

	first, firstSources := Build(passages, history, "who won?", Limits{})
	for range 20 {
		prompt, sources := Build(passages, history, "who won?", Limits{})
		if prompt != first {
			t.Fatal("prompt text differs between identical Build calls")
		}
		if len(sources) != len(firstSources) {
			t.Fatal("sources differ between identical Build calls")
		}
	}
}

// TestBuild_RankOrderPreserved verifies passages render in incoming order
// with a parallel sources list.
func TestBuild_RankOrderPreserved(t *testing.T) {
	t.Parallel()

	prompt, sources := Build(samplePassages(), nil, "who won?", Limits{})

	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if sources[0].Title != "Lakers clinch the finals" || sources[1].Title != "Draft night surprises" {
		t.Errorf("sources out of rank order: %+v", sources)
	}
	if sources[0].Score != 0.91 {
		t.Errorf("score not carried through: %v", sources[0].Score)
	}
	first := strings.Index(prompt, "Lakers clinch")
	second := strings.Index(prompt, "Draft night")
	if first == -1 || second == -1 || first > second {
		t.Error("passages not rendered in rank order")
	}
	if !strings.Contains(prompt, "published: 2025-06-12") {
		t.Error("publication date missing from rendered passage")
	}
	if !strings.Contains(prompt, "category: sports") {
		t.Error("category missing from rendered passage")
	}
}

// TestBuild_EmptyPassages_Fallback verifies the zero-retrieval state renders
// the fixed fallback narrative with no sources.
func TestBuild_EmptyPassages_Fallback(t *testing.T) {
	t.Parallel()

	prompt, sources := Build(nil, sampleHistory(), "anything new?", Limits{})

	if !strings.Contains(prompt, NoMatchFallback) {
		t.Error("fallback narrative missing from prompt")
	}
	if len(sources) != 0 {
		t.Errorf("got %d sources for empty retrieval, want 0", len(sources))
	}
}

// TestBuild_PassageCapAndExcerptTruncation verifies the size limits.
func TestBuild_PassageCapAndExcerptTruncation(t *testing.T) {
	t.Parallel()

	passages := make([]rag.Result, 8)
	for i := range passages {
		passages[i] = rag.Result{
			ID:    string(rune('a' + i)),
			Title: "title",
			Body:  strings.Repeat("b", 1000),
		}
	}

	prompt, sources := Build(passages, nil, "q", Limits{MaxPassages: 3, MaxExcerptLen: 50})

	if len(sources) != 3 {
		t.Errorf("got %d sources, want 3 after cap", len(sources))
	}
	if strings.Contains(prompt, strings.Repeat("b", 51)) {
		t.Error("body excerpt longer than MaxExcerptLen")
	}
	if !strings.Contains(prompt, strings.Repeat("b", 50)+"…") {
		t.Error("truncated excerpt missing ellipsis")
	}
}

// TestBuild_HistoryTrimming verifies oldest-first truncation and per-message
// length caps.
func TestBuild_HistoryTrimming(t *testing.T) {
	t.Parallel()

	history := make([]session.Message, 10)
	for i := range history {
		history[i] = session.Message{
			Role:    session.RoleUser,
			Content: "turn-" + string(rune('0'+i)) + " " + strings.Repeat("h", 400),
		}
	}

	prompt, _ := Build(samplePassages(), history, "q", Limits{MaxHistoryTurns: 2, MaxHistoryMsgLen: 30})

	if strings.Contains(prompt, "turn-0") || strings.Contains(prompt, "turn-7") {
		t.Error("old turns not dropped")
	}
	if !strings.Contains(prompt, "turn-8") || !strings.Contains(prompt, "turn-9") {
		t.Error("newest turns missing")
	}
	if strings.Contains(prompt, strings.Repeat("h", 31)) {
		t.Error("history message longer than MaxHistoryMsgLen")
	}
}

// TestBuild_NoHistorySection verifies an empty history renders no
// conversation block.
func TestBuild_NoHistorySection(t *testing.T) {
	t.Parallel()

	prompt, _ := Build(samplePassages(), nil, "q", Limits{})
	if strings.Contains(prompt, "Conversation so far") {
		t.Error("conversation block rendered for empty history")
	}
	if !strings.HasSuffix(prompt, "User question: q") {
		t.Errorf("prompt does not end with the user question: %q", prompt[len(prompt)-40:])
	}
}
