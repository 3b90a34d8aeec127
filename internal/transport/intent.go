package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
)

const intentSystemPrompt = `You decide whether the user's latest message needs a web search.
Reply with a single JSON object and nothing else:
{"needs_search": true|false, "search_query": "<query or empty>", "reason": "<short reason>"}`

// intentHistoryTurns is how many prior turns go along for context
const intentHistoryTurns = 4

// Intent is the server's verdict on whether a prompt needs a web search
type Intent struct {
	NeedsSearch bool   `json:"needs_search"`
	SearchQuery string `json:"search_query"`
	Reason      string `json:"reason"`
}

// authTransport adds the shared secret to requests made by the OpenAI client
type authTransport struct {
	base     http.RoundTripper
	password string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	// the compat endpoint authenticates with x-password only
	req.Header.Del("Authorization")
	setAuth(req.Header, t.password)
	return t.base.RoundTrip(req)
}

func (c *Client) openAIClient() (*openai.Client, error) {
	cfg := c.config.Load()
	if cfg.Server.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	oc := openai.DefaultConfig("")
	oc.BaseURL = cfg.Server.BaseURL + "/v1"
	oc.HTTPClient = &http.Client{
		Transport: &authTransport{base: c.httpClient.Transport, password: cfg.Server.Password},
	}
	return openai.NewClientWithConfig(oc), nil
}

// ClassifyIntent asks the server's OpenAI-compatible endpoint whether query
// should trigger a web search. Up to the last few history turns are sent
// for context.
func (c *Client) ClassifyIntent(ctx context.Context, query string, history []types.ChatMessage) (*Intent, error) {
	client, err := c.openAIClient()
	if err != nil {
		return nil, err
	}

	if len(history) > intentHistoryTurns {
		history = history[len(history)-intentHistoryTurns:]
	}
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: intentSystemPrompt})
	for _, turn := range types.ToTurns(history) {
		messages = append(messages, openai.ChatCompletionMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: query})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       "default",
		Messages:    messages,
		MaxTokens:   128,
		Temperature: 0,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, parseError(errors.New("intent response has no choices"))
	}
	return parseIntent(resp.Choices[0].Message.Content, query)
}

// parseIntent reads the JSON verdict, tolerating a fenced code block or
// text around the object. A search verdict without a query searches for
// the prompt itself.
func parseIntent(content, prompt string) (*Intent, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, parseError(fmt.Errorf("intent reply has no JSON object: %.200s", content))
	}
	raw := content[start : end+1]
	if !gjson.Valid(raw) {
		return nil, parseError(fmt.Errorf("intent reply is not valid JSON: %.200s", raw))
	}

	res := gjson.Parse(raw)
	intent := &Intent{
		NeedsSearch: res.Get("needs_search").Bool(),
		SearchQuery: res.Get("search_query").String(),
		Reason:      res.Get("reason").String(),
	}
	if intent.NeedsSearch && intent.SearchQuery == "" {
		intent.SearchQuery = prompt
	}
	return intent, nil
}
