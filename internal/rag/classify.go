package rag

import "strings"

// Category is a fixed topical label assigned to chunks at ingestion and used
// for filtered retrieval.
type Category string

// The fixed category set. Chunks are only ever stored under one of these.
const (
	CategoryWorld      Category = "world"
	CategoryPolitics   Category = "politics"
	CategoryTechnology Category = "technology"
	CategoryBusiness   Category = "business"
	CategorySports     Category = "sports"
	CategoryCrypto     Category = "crypto"
	CategoryScience    Category = "science"
)

// Categories returns the full category set in its canonical order.
func Categories() []Category {
	return []Category{
		CategoryWorld,
		CategoryPolitics,
		CategoryTechnology,
		CategoryBusiness,
		CategorySports,
		CategoryCrypto,
		CategoryScience,
	}
}

// ValidCategory reports whether s is one of the fixed category labels.
func ValidCategory(s string) bool {
	for _, c := range Categories() {
		if Category(s) == c {
			return true
		}
	}
	return false
}

// categoryKeywords maps each category to the query keywords that select it.
// The table is an ordered slice, not a map: classification scans entries in
// this exact order and the first category with a matching keyword wins, so
// the same query always resolves to the same category.
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryCrypto, []string{
		"crypto", "bitcoin", "btc", "ethereum", "eth", "blockchain",
		"defi", "stablecoin", "nft", "binance", "coinbase",
	}},
	{CategorySports, []string{
		"sport", "football", "soccer", "basketball", "nba", "nfl",
		"tennis", "olympic", "premier league", "world cup", "f1",
		"formula 1", "cricket", "baseball",
	}},
	{CategoryTechnology, []string{
		"tech", "software", "startup", "smartphone", "apple", "google",
		"microsoft", "openai", "artificial intelligence", " ai ",
		"chip", "semiconductor", "cyber",
	}},
	{CategoryBusiness, []string{
		"business", "economy", "market", "stock", "inflation",
		"earnings", "merger", "ipo", "federal reserve", "interest rate",
	}},
	{CategoryPolitics, []string{
		"politic", "election", "senate", "congress", "parliament",
		"president", "government", "legislation", "campaign",
	}},
	{CategoryScience, []string{
		"science", "research", "nasa", "space", "climate", "physics",
		"biology", "vaccine", "study finds",
	}},
	{CategoryWorld, []string{
		"world", "international", "united nations", "war", "conflict",
		"diplomacy", "treaty", "border",
	}},
}

// Classify maps a query string to at most one target category using
// case-insensitive substring matching against the fixed keyword table.
// It returns the empty category when no keyword matches.
//
// Classification is deterministic: the table order is fixed and the first
// matching category wins.
func Classify(query string) Category {
	// Pad with spaces so word-boundary keywords like " ai " can match at
	// the edges of the query.
	q := " " + strings.ToLower(query) + " "
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(q, kw) {
				return entry.category
			}
		}
	}
	return ""
}
