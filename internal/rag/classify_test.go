package rag

import "testing"

// TestClassify_KeywordMatch verifies that representative queries resolve to
// the expected category.
func TestClassify_KeywordMatch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query string
		want  Category
	}{
		{"Tell me about the NBA finals", CategorySports},
		{"what happened with bitcoin today", CategoryCrypto},
		{"latest on the presidential election", CategoryPolitics},
		{"new semiconductor export rules", CategoryTechnology},
		{"did the federal reserve cut rates", CategoryBusiness},
		{"NASA mission update", CategoryScience},
		{"united nations security council vote", CategoryWorld},
		{"what's the weather like", ""},
		{"", ""},
	}

	for _, tc := range cases {
		if got := Classify(tc.query); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

// TestClassify_CaseInsensitive verifies that matching ignores case.
func TestClassify_CaseInsensitive(t *testing.T) {
	t.Parallel()

	if got := Classify("BITCOIN Crashed Again"); got != CategoryCrypto {
		t.Errorf("expected crypto, got %q", got)
	}
	if got := Classify("PREMIER LEAGUE results"); got != CategorySports {
		t.Errorf("expected sports, got %q", got)
	}
}

// TestClassify_FirstMatchWins verifies that a query matching keywords from
// two categories always resolves to the one listed first in the table.
func TestClassify_FirstMatchWins(t *testing.T) {
	t.Parallel()

	// "bitcoin" (crypto) appears before "market" (business) in table order.
	query := "bitcoin market turmoil"
	want := CategoryCrypto

	for range 100 {
		if got := Classify(query); got != want {
			t.Fatalf("Classify(%q) = %q, want %q", query, got, want)
		}
	}
}

// TestClassify_Deterministic verifies that repeated classification of the
// same query never changes its answer.
func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()

	queries := []string{
		"Tell me about the NBA finals",
		"ethereum staking yields",
		"nothing topical at all",
	}
	for _, q := range queries {
		first := Classify(q)
		for range 50 {
			if got := Classify(q); got != first {
				t.Fatalf("Classify(%q) changed from %q to %q", q, first, got)
			}
		}
	}
}

// TestValidCategory verifies the category label validator.
func TestValidCategory(t *testing.T) {
	t.Parallel()

	for _, c := range Categories() {
		if !ValidCategory(string(c)) {
			t.Errorf("ValidCategory(%q) = false, want true", c)
		}
	}
	for _, s := range []string{"", "news", "finance", "WORLD"} {
		if ValidCategory(s) {
			t.Errorf("ValidCategory(%q) = true, want false", s)
		}
	}
}
