package budget

import (
	"strings"
	"testing"

	"github.com/54b3r/newschat-go/internal/session"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		if got := Estimate(tc.in); got != tc.want {
			t.Errorf("Estimate(%d chars) = %d, want %d", len(tc.in), got, tc.want)
		}
	}
}

func mkHistory(n, msgLen int) []session.Message {
	msgs := make([]session.Message, n)
	for i := range msgs {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleBot
		}
		msgs[i] = session.Message{Role: role, Content: strings.Repeat("m", msgLen)}
	}
	return msgs
}

func TestTrimHistory_FitsUntrimmed(t *testing.T) {
	t.Parallel()

	history := mkHistory(4, 40)
	got := TrimHistory(history, 100, DefaultMaxContextTokens)
	if len(got) != 4 {
		t.Errorf("history trimmed despite fitting: %d of 4 kept", len(got))
	}
}

func TestTrimHistory_DropsOldestFirst(t *testing.T) {
	t.Parallel()

	history := mkHistory(10, 400)
	history[0].Content = "OLDEST"
	history[9].Content = strings.Repeat("n", 400)

	perMsg := EstimateMessages(history[9:])
	budget := perMsg*3 + 10

	got := TrimHistory(history, 0, budget)
	if len(got) == 0 || len(got) >= 10 {
		t.Fatalf("expected partial trim, kept %d of 10", len(got))
	}
	for _, m := range got {
		if m.Content == "OLDEST" {
			t.Error("oldest message survived a trim that dropped newer ones")
		}
	}
	// Newest message is always last to go.
	if got[len(got)-1].Content != strings.Repeat("n", 400) {
		t.Error("newest message missing from trimmed history")
	}
}

func TestTrimHistory_FixedExceedsBudget(t *testing.T) {
	t.Parallel()

	history := mkHistory(3, 100)
	got := TrimHistory(history, 10_000, 6000)
	if len(got) != 0 {
		t.Errorf("expected empty history when fixed content exceeds budget, kept %d", len(got))
	}
}
