package mockserver

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Intent is the mock search verdict
type Intent struct {
	NeedsSearch bool   `json:"needs_search"`
	SearchQuery string `json:"search_query"`
	Reason      string `json:"reason"`
}

// SearchResult is one web hit as sent in search_results frames
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchFunc runs a web search at the given depth
type SearchFunc func(ctx context.Context, query, depth string) ([]SearchResult, error)

var (
	explicitSearch = regexp.MustCompile(`(?i)(?:search for|look up)\s+(.*)`)

	greetings = []string{"hi", "hello", "test"}

	streamTriggers = []string{"price", "news", "latest", "today", "current", "weather", "who is", "what is"}

	completionTriggers = []string{"price", "news", "latest", "current", "search", "today", "weather", "who is", "what is"}
)

// classifyStream decides whether a streamed prompt searches first
func classifyStream(prompt string, webSearch bool) Intent {
	lower := strings.ToLower(prompt)

	switch {
	case len(strings.Fields(prompt)) < 2 && containsExact(greetings, lower):
		return Intent{Reason: "Greeting"}
	case strings.Contains(lower, "search for") || strings.Contains(lower, "look up"):
		query := prompt
		if m := explicitSearch.FindStringSubmatch(prompt); m != nil {
			query = strings.TrimSpace(m[1])
		}
		return Intent{NeedsSearch: true, SearchQuery: query, Reason: "Explicit search"}
	case !webSearch:
		return Intent{Reason: "Web search disabled"}
	case containsAny(lower, streamTriggers):
		return Intent{NeedsSearch: true, SearchQuery: prompt, Reason: "Heuristic match"}
	default:
		return Intent{Reason: "No triggers found"}
	}
}

// classifyCompletion is the verdict returned by the OpenAI compatible route
func classifyCompletion(query string) Intent {
	if containsAny(strings.ToLower(query), completionTriggers) {
		return Intent{NeedsSearch: true, SearchQuery: query, Reason: "Mock heuristic match"}
	}
	return Intent{Reason: "No triggers found"}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsExact(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func resultCount(depth string) int {
	switch depth {
	case "deeper":
		return 8
	case "deep":
		return 5
	default:
		return 3
	}
}

func cannedSearch(_ context.Context, query, depth string) ([]SearchResult, error) {
	n := resultCount(depth)
	results := make([]SearchResult, 0, n)
	for i := 1; i <= n; i++ {
		results = append(results, SearchResult{
			Title:   fmt.Sprintf("Result %d for %s", i, query),
			URL:     fmt.Sprintf("https://example.com/search?q=%s&n=%d", url.QueryEscape(query), i),
			Snippet: fmt.Sprintf("Simulated snippet %d about %s.", i, query),
		})
	}
	return results, nil
}

func searchMarkdown(query string, results []SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### 🔍 Search Results for '%s'\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "**%d. [%s](%s)**\n> %s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return b.String()
}
