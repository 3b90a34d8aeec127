package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ChatOptions are optional sampling parameters. Zero values are omitted
// and the server falls back to its defaults.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	TopP        *float64
	TopK        *int
}

// ChatRequest is a prompt with optional system prompt and prior turns
type ChatRequest struct {
	Prompt       string
	SystemPrompt string
	History      []types.ChatMessage
	Options      ChatOptions
}

type chatBody struct {
	Prompt       string       `json:"prompt"`
	SystemPrompt string       `json:"system_prompt,omitempty"`
	Messages     []types.Turn `json:"messages,omitempty"`
	Model        string       `json:"model,omitempty"`
	MaxTokens    int          `json:"max_tokens,omitempty"`
	Temperature  *float64     `json:"temperature,omitempty"`
	TopP         *float64     `json:"top_p,omitempty"`
	TopK         *int         `json:"top_k,omitempty"`
}

func (r ChatRequest) body() chatBody {
	return chatBody{
		Prompt:       r.Prompt,
		SystemPrompt: r.SystemPrompt,
		Messages:     buildMessages(r.Prompt, r.History),
		Model:        r.Options.Model,
		MaxTokens:    r.Options.MaxTokens,
		Temperature:  r.Options.Temperature,
		TopP:         r.Options.TopP,
		TopK:         r.Options.TopK,
	}
}

// buildMessages reconstructs the full conversation: prior turns followed by
// the current prompt as the last user turn. Empty history sends no
// messages at all.
func buildMessages(prompt string, history []types.ChatMessage) []types.Turn {
	if len(history) == 0 {
		return nil
	}
	turns := types.ToTurns(history)
	return append(turns, types.Turn{Role: types.RoleUser, Content: prompt})
}

// TestConnection reports whether the server answers GET / with status
// "online". It never returns an error and does not retry.
func (c *Client) TestConnection(ctx context.Context) bool {
	cfg := c.config.Load()
	if cfg.Server.BaseURL == "" {
		return false
	}

	resp, err := c.doOnce(ctx, cfg, request{method: http.MethodGet, path: "/"})
	if err != nil {
		c.logger.Debug("connection test failed", zap.Error(err))
		return false
	}
	return resp.status == http.StatusOK && gjson.GetBytes(resp.body, "status").String() == "online"
}

// GenerateText sends a single-shot chat request and returns the reply text
func (c *Client) GenerateText(ctx context.Context, r ChatRequest) (string, error) {
	req, err := newRequest(http.MethodPost, "/chat", r.body())
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	return responseField(resp.body)
}

type visionBody struct {
	Prompt string `json:"prompt"`
	Image  string `json:"image"`
}

// AnalyzeImage asks the server about a base64 encoded image
func (c *Client) AnalyzeImage(ctx context.Context, prompt, imageBase64 string) (string, error) {
	req, err := newRequest(http.MethodPost, "/vision", visionBody{Prompt: prompt, Image: imageBase64})
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	return responseField(resp.body)
}

func responseField(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", parseError(fmt.Errorf("response is not JSON: %.200s", body))
	}
	field := gjson.GetBytes(body, "response")
	if field.Type != gjson.String {
		return "", parseError(errors.New(`response has no "response" string`))
	}
	return field.String(), nil
}

// Capabilities describes what the connected server can do
type Capabilities struct {
	VRAMGB              float64 `json:"vram_gb"`
	VisionSupported     bool    `json:"vision_supported"`
	DocumentProcessing  bool    `json:"document_processing"`
	MaxContextWindow    int     `json:"max_context_window"`
	MultimodalSupported bool    `json:"multimodal_supported"`
}

// ServerInfo is the /info payload
type ServerInfo struct {
	ServerVersion string       `json:"server_version"`
	Mode          string       `json:"mode"`
	Capabilities  Capabilities `json:"capabilities"`
	Timestamp     string       `json:"timestamp"`
}

// GetInfo fetches server capabilities
func (c *Client) GetInfo(ctx context.Context) (*ServerInfo, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/info"})
	if err != nil {
		return nil, err
	}
	var info ServerInfo
	if err := json.Unmarshal(resp.body, &info); err != nil {
		return nil, parseError(fmt.Errorf("decode server info: %w", err))
	}
	return &info, nil
}

// Model is one entry of the /models listing
type Model struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	ContextLength int     `json:"context_length"`
	VRAMGB        float64 `json:"vram_gb"`
}

// ModelList is the /models payload
type ModelList struct {
	Models  []Model `json:"models"`
	Active  string  `json:"active"`
	Default string  `json:"default"`
}

// ListModels fetches the models the server can route to
func (c *Client) ListModels(ctx context.Context) (*ModelList, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/models"})
	if err != nil {
		return nil, err
	}
	var list ModelList
	if err := json.Unmarshal(resp.body, &list); err != nil {
		return nil, parseError(fmt.Errorf("decode model list: %w", err))
	}
	return &list, nil
}

type logUploadBody struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name,omitempty"`
	Logs       string `json:"logs"`
}

// UploadLogs sends device logs and returns the file name the server stored
// them under.
func (c *Client) UploadLogs(ctx context.Context, deviceID, deviceName, logs string) (string, error) {
	req, err := newRequest(http.MethodPost, "/logs/upload", logUploadBody{
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Logs:       logs,
	})
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	if !gjson.ValidBytes(resp.body) {
		return "", parseError(errors.New("log upload response is not JSON"))
	}
	return gjson.GetBytes(resp.body, "filename").String(), nil
}
