// Package claude provides a chat provider backed by the Anthropic Messages
// API.
package claude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/butler/pkg/provider/chat"
)

// DefaultBaseURL is the Anthropic API base URL.
const DefaultBaseURL = "https://api.anthropic.com"

// apiVersion is the anthropic-version header value the Messages API requires.
const apiVersion = "2023-06-01"

// maxTokens caps the model output per call.
const maxTokens = 1024

var _ chat.Provider = (*Provider)(nil)

// Provider implements chat.Provider against the Anthropic Messages API.
//
// The Messages API differs from the OpenAI dialect in three ways handled
// here: system turns move to a top-level field, assistant and tool turns are
// lists of typed content blocks, and tool results travel as user-role
// tool_result blocks keyed by tool_use_id.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient = &http.Client{Timeout: d}
	}
}

// New constructs a Claude Provider. apiKey and model must be non-empty.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("claude: apiKey must not be empty")
	}
	if model == "" {
		return nil, errors.New("claude: model must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// contentBlock is one typed block of an Anthropic message. Which fields are
// set depends on Type: "text" uses Text, "tool_use" uses ID/Name/Input, and
// "tool_result" uses ToolUseID/Content.
type contentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type wireMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema chat.Parameters `json:"input_schema"`
}

type wireRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []wireMessage `json:"messages"`
	Tools     []wireTool    `json:"tools,omitempty"`
}

type wireResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// Generate implements chat.Provider.
func (p *Provider) Generate(ctx context.Context, req chat.GenerateRequest) (*chat.GenerateResponse, error) {
	system, messages := toWireMessages(req.Messages)
	body := wireRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
		Tools:     toWireTools(req.Tools),
	}

	raw, err := chat.PostJSON(ctx, p.httpClient, chat.PostRequest{
		Vendor: "claude",
		URL:    p.baseURL + "/v1/messages",
		Header: http.Header{
			"X-Api-Key":         []string{p.apiKey},
			"Anthropic-Version": []string{apiVersion},
		},
		Body: body,
	})
	if err != nil {
		return nil, err
	}

	var resp wireResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("claude: decode response: %w", err)
	}

	var calls []chat.ToolCall
	var texts []string
	for _, block := range resp.Content {
		switch block.Type {
		case "tool_use":
			if block.Name == "" {
				continue
			}
			args := block.Input
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, chat.ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		case "text":
			texts = append(texts, block.Text)
		}
	}

	if len(calls) > 0 || resp.StopReason == "tool_use" {
		return &chat.GenerateResponse{ToolCalls: calls}, nil
	}

	content := strings.TrimSpace(strings.Join(texts, "\n"))
	if content == "" {
		content = chat.FallbackText
	}
	return &chat.GenerateResponse{Content: content}, nil
}

// toWireMessages splits the neutral history into the top-level system string
// (all system turns joined with newlines) and the user/assistant message list.
func toWireMessages(messages []chat.Message) (string, []wireMessage) {
	var systems []string
	out := make([]wireMessage, 0, len(messages))
	for i, m := range messages {
		switch {
		case m.Role == chat.RoleSystem:
			systems = append(systems, m.Content)

		case m.Role == chat.RoleTool:
			id := m.ToolCallID
			if id == "" {
				// The API rejects tool_result blocks without an id; synthesise
				// a positional one for id-less results.
				id = fmt.Sprintf("tool_%d", i)
			}
			out = append(out, wireMessage{
				Role: "user",
				Content: []contentBlock{{
					Type:      "tool_result",
					ToolUseID: id,
					Content:   encodeResult(m.Result),
				}},
			})

		case m.ToolCall != nil:
			out = append(out, wireMessage{
				Role: "assistant",
				Content: []contentBlock{{
					Type:  "tool_use",
					ID:    m.ToolCall.ID,
					Name:  m.ToolCall.Name,
					Input: m.ToolCall.Arguments,
				}},
			})

		default:
			out = append(out, wireMessage{
				Role:    string(m.Role),
				Content: []contentBlock{{Type: "text", Text: m.Content}},
			})
		}
	}
	return strings.Join(systems, "\n"), out
}

func toWireTools(tools []chat.ToolDefinition) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, wireTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}
	return out
}

func encodeResult(result map[string]any) string {
	b, err := json.Marshal(result)
	if err != nil {
		return "{}"
	}
	return string(b)
}
