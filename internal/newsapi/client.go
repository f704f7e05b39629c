// Package newsapi provides the external news search integration used
// by the data-fetch stage.
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client queries the hosted web-search API for recent news coverage.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	stubMode   bool
}

// NewClient creates a new search client with the given configuration.
func NewClient(baseURL, apiKey string, stubMode bool) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		stubMode:   stubMode,
	}
}

// searchResponse mirrors the relevant slice of the API's JSON shape.
type searchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs a free-text query restricted to the freshness window
// (e.g. "pw" for past week) and returns at most count results, each
// stripped to title/url/description with the description truncated to
// bound downstream payload size.
func (c *Client) Search(ctx context.Context, query, freshness string, count int) ([]Article, error) {
	if c.stubMode {
		return stubArticles(count), nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("freshness", freshness)
	params.Set("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	articles := make([]Article, 0, count)
	for _, r := range parsed.Web.Results {
		if len(articles) == count {
			break
		}
		articles = append(articles, Article{
			Title:       r.Title,
			URL:         r.URL,
			Description: truncate(r.Description, maxDescriptionRunes),
		})
	}

	return articles, nil
}

const maxDescriptionRunes = 200

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func stubArticles(count int) []Article {
	all := []Article{
		{
			Title:       "State Lawmakers Advance Hospital Funding Package",
			URL:         "https://example.com/hospital-funding",
			Description: "A bipartisan package expanding rural hospital grants cleared committee this week.",
		},
		{
			Title:       "School Districts Brace for Budget Votes",
			URL:         "https://example.com/school-budgets",
			Description: "Several districts face contested budget referendums next month.",
		},
	}
	if count < len(all) {
		return all[:count]
	}
	return all
}
