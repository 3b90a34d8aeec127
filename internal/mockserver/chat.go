package mockserver

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/parallax-connect/internal/pkg/logger"
	"github.com/lk2023060901/parallax-connect/internal/pkg/response"
	"github.com/lk2023060901/parallax-connect/internal/pkg/sse"
	"github.com/lk2023060901/parallax-connect/internal/pkg/validator"
	"go.uber.org/zap"
)

type turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Prompt           string   `json:"prompt"`
	SystemPrompt     string   `json:"system_prompt"`
	Model            string   `json:"model"`
	Messages         []turn   `json:"messages"`
	MaxTokens        int      `json:"max_tokens"`
	Temperature      *float64 `json:"temperature"`
	TopP             *float64 `json:"top_p"`
	TopK             *int     `json:"top_k"`
	WebSearchEnabled bool     `json:"web_search_enabled"`
	WebSearchDepth   string   `json:"web_search_depth"`
}

type visionRequest struct {
	Image        string `json:"image" binding:"required"`
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt"`
}

var sentenceSearch = regexp.MustCompile(`(?i)search for (.*)`)

// bindChat decodes and validates a chat body, writing the error response
// itself when it fails.
func bindChat(c *gin.Context) (*chatRequest, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid JSON body")
		return nil, false
	}
	if req.Prompt == "" && len(req.Messages) == 0 {
		response.Error(c, http.StatusUnprocessableEntity, "Either prompt or messages must be provided")
		return nil, false
	}
	if len(req.Prompt) > maxPromptLength {
		response.BadRequest(c, fmt.Sprintf("Prompt too long. Maximum %d characters allowed.", maxPromptLength))
		return nil, false
	}
	if len(req.SystemPrompt) > maxSystemPromptLength {
		response.BadRequest(c, fmt.Sprintf("System prompt too long. Maximum %d characters allowed.", maxSystemPromptLength))
		return nil, false
	}
	if len(req.Messages) > maxMessageHistory {
		response.BadRequest(c, fmt.Sprintf("Too many messages. Maximum %d messages allowed.", maxMessageHistory))
		return nil, false
	}
	for i, m := range req.Messages {
		if len(m.Content) > maxPromptLength {
			response.BadRequest(c, fmt.Sprintf("Message #%d too long. Maximum %d characters per message.", i, maxPromptLength))
			return nil, false
		}
	}
	if req.Prompt == "" {
		req.Prompt = lastUserContent(req.Messages)
	}
	return &req, true
}

func lastUserContent(messages []turn) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

func jsonString(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Server) chat(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}
	log := s.logger.WithContext(c.Request.Context())
	start := time.Now()

	text := ""
	if strings.Contains(strings.ToLower(req.Prompt), "search for") {
		if m := sentenceSearch.FindStringSubmatch(req.Prompt); m != nil {
			query := strings.TrimSpace(m[1])
			log.Info("mock search", zap.String("query", query))
			results, err := s.search(c.Request.Context(), query, req.WebSearchDepth)
			switch {
			case err != nil:
				text = fmt.Sprintf("Search error: %v", err)
			case len(results) == 0:
				text = fmt.Sprintf("I searched for '%s' but found no results.", query)
			default:
				text = searchMarkdown(query, results)
			}
		}
	}
	if text == "" {
		text = fmt.Sprintf("[MOCK] Server received: '%s'. \n\n(Tip: Try 'search for python' to test web search)", req.Prompt)
	}

	elapsed := time.Since(start)
	words := len(strings.Fields(text))
	log.Info("mock response generated",
		zap.Duration("duration", elapsed),
		zap.Int("response_length", len(text)),
	)

	response.OK(c, gin.H{
		"response": text,
		"metadata": gin.H{
			"usage": gin.H{
				"prompt_tokens":     10,
				"completion_tokens": words,
				"total_tokens":      10 + words,
			},
			"timing": gin.H{
				"duration_ms":      elapsed.Milliseconds(),
				"duration_seconds": round2(elapsed.Seconds()),
			},
			"model": ModelID,
		},
	})
}

type frame struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Metadata any    `json:"metadata,omitempty"`
}

func (s *Server) chatStream(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}
	log := s.logger.WithContext(c.Request.Context())
	log.Info("starting mock stream",
		zap.Bool("web_search", req.WebSearchEnabled),
		zap.String("depth", req.WebSearchDepth),
	)

	stream := sse.NewStream(c)
	text, ok := s.streamPreamble(c, stream, req)
	if !ok {
		return
	}

	var total strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for _, word := range strings.Split(line, " ") {
			chunk := word + " "
			total.WriteString(chunk)
			if stream.Send(frame{Type: "content", Content: chunk}) != nil {
				return
			}
			if !s.sleep(c, s.config.WordDelay) {
				return
			}
		}
		total.WriteString("\n")
		if stream.Send(frame{Type: "content", Content: "\n"}) != nil {
			return
		}
	}

	completion := len(strings.Fields(total.String()))
	log.Info("mock stream completed",
		zap.Duration("duration", stream.Elapsed()),
		zap.Int("completion_tokens", completion),
		zap.Int64("frames", stream.Frames()),
	)
	if stream.Send(frame{Type: "done", Metadata: gin.H{
		"prompt_tokens":     10,
		"completion_tokens": completion,
		"model":             ModelID,
		"duration_seconds":  round2(stream.Elapsed().Seconds()),
	}}) != nil {
		return
	}
	_ = stream.Done()
}

// streamPreamble emits the thinking steps and any search results, and
// returns the answer text to stream as content.
func (s *Server) streamPreamble(c *gin.Context, stream *sse.Stream, req *chatRequest) (string, bool) {
	think := func(msg string, pause time.Duration) bool {
		return stream.Send(frame{Type: "thinking", Content: msg}) == nil && s.sleep(c, pause)
	}
	step := s.config.StepDelay

	if !think("Analyzing search intent...", step) {
		return "", false
	}

	intent := classifyStream(req.Prompt, req.WebSearchEnabled)
	s.logger.WithContext(c.Request.Context()).Debug("mock intent", zap.Bool("needs_search", intent.NeedsSearch), zap.String("reason", intent.Reason))

	if !intent.NeedsSearch || intent.SearchQuery == "" {
		if !think("No search needed.", step/2) {
			return "", false
		}
		for _, line := range []string{"Considering the context...", "Formulating response..."} {
			if !think(line, step/2) {
				return "", false
			}
		}
		return fmt.Sprintf("[MOCK] Server received: '%s'.\n\n"+
			"**Tip:** To test Web Search UI, try:\n"+
			"- `What is the latest AI news?`\n"+
			"- `search for python tutorials`", req.Prompt), true
	}

	query := intent.SearchQuery
	if !think("Searching web for: "+query, 0) {
		return "", false
	}
	results, err := s.search(c.Request.Context(), query, req.WebSearchDepth)
	if err != nil {
		if !think(fmt.Sprintf("Search failed: %v", err), 0) {
			return "", false
		}
		return fmt.Sprintf("An error occurred while searching: %v", err), true
	}
	if len(results) == 0 {
		if !think("No relevant results found.", 0) {
			return "", false
		}
		return fmt.Sprintf("I searched for '%s' but found no results.", query), true
	}

	if stream.Send(frame{Type: "search_results", Metadata: gin.H{"results": results, "query": query}}) != nil {
		return "", false
	}
	if !think(fmt.Sprintf("Found %d results. Reading content...", len(results)), step) {
		return "", false
	}
	if !think("Synthesizing information from search results...", step) {
		return "", false
	}
	return searchMarkdown(query, results) + "\n*(Generated by Parallax Mock Server)*", true
}

func (s *Server) vision(c *gin.Context) {
	var req visionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid JSON body")
		return
	}
	image := validator.StripDataURL(req.Image)
	if validator.Base64DecodedSize(image) > maxImageBytes {
		response.TooLarge(c, "Image too large (max 8MB).")
		return
	}
	s.logger.WithContext(c.Request.Context()).Info("vision request",
		zap.String("prompt", validator.Truncate(req.Prompt, 50)),
		zap.Int("image_bytes", validator.Base64DecodedSize(image)),
	)
	response.OK(c, gin.H{
		"response": "[MOCK] Vision Analysis: I see a simulated image. Prompt: " + req.Prompt,
	})
}

func (s *Server) chatCompletions(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}
	intent := classifyCompletion(req.Prompt)
	content, err := jsonString(intent)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	message := gin.H{"role": "assistant", "content": content}
	response.OK(c, gin.H{
		"id":     "chatcmpl-mock-" + logger.GetRequestID(c.Request.Context()),
		"object": "chat.completion",
		"model":  ModelID,
		"choices": []gin.H{{
			"index":   0,
			"message": message,
			// Parallax answers under the plural key; both are sent
			"messages":      message,
			"finish_reason": "stop",
		}},
		"usage": gin.H{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	})
}
