package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Article is one item of a NewsAPI-style headline feed.
type Article struct {
	// Source carries the publisher block; only the name is used.
	Source struct {
		Name string `json:"name"`
	} `json:"source"`

	// Title is the article headline.
	Title string `json:"title"`

	// Description is the short summary; used as the body when Content is absent.
	Description string `json:"description"`

	// Content is the (usually truncated) article text.
	Content string `json:"content"`

	// URL is the canonical article URL.
	URL string `json:"url"`

	// PublishedAt is the publication timestamp.
	PublishedAt time.Time `json:"publishedAt"`
}

// feedResponse is the JSON envelope returned by the feed endpoint.
type feedResponse struct {
	Status   string    `json:"status"`
	Message  string    `json:"message,omitempty"`
	Articles []Article `json:"articles"`
}

// fetchFeed retrieves and decodes one feed endpoint.
func (p *Pipeline) fetchFeed(ctx context.Context, url string) ([]Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding feed: %w", err)
	}
	if feed.Status != "" && feed.Status != "ok" {
		msg := feed.Message
		if msg == "" {
			msg = feed.Status
		}
		return nil, fmt.Errorf("feed error: %s", msg)
	}

	return feed.Articles, nil
}
