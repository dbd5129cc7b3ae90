// Package workersai provides a chat provider backed by the Cloudflare
// Workers AI OpenAI-compatible endpoint.
package workersai

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

// DefaultBaseURL is the Cloudflare API base URL. The account id is spliced
// into the request path.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

var _ chat.Provider = (*Provider)(nil)

// Provider implements chat.Provider against Workers AI. The endpoint speaks
// the OpenAI chat-completions dialect with one deviation: assistant tool-call
// turns carry an empty string content instead of null.
type Provider struct {
	apiKey     string
	accountID  string
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

// New constructs a Workers AI Provider. apiKey, accountID and model must all
// be non-empty.
func New(apiKey, accountID, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("workersai: apiKey must not be empty")
	}
	if accountID == "" {
		return nil, errors.New("workersai: accountID must not be empty")
	}
	if model == "" {
		return nil, errors.New("workersai: model must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		accountID:  accountID,
		model:      model,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type wireTool struct {
	Type     string              `json:"type"`
	Function chat.ToolDefinition `json:"function"`
}

type wireRequest struct {
	Model      string        `json:"model"`
	Messages   []wireMessage `json:"messages"`
	Tools      []wireTool    `json:"tools,omitempty"`
	ToolChoice string        `json:"tool_choice,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content   *string        `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate implements chat.Provider.
func (p *Provider) Generate(ctx context.Context, req chat.GenerateRequest) (*chat.GenerateResponse, error) {
	body := wireRequest{
		Model:    p.model,
		Messages: toWireMessages(req.Messages),
		Tools:    toWireTools(req.Tools),
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = "auto"
	}

	url := fmt.Sprintf("%s/accounts/%s/ai/v1/chat/completions", p.baseURL, p.accountID)
	raw, err := chat.PostJSON(ctx, p.httpClient, chat.PostRequest{
		Vendor: "workersai",
		URL:    url,
		Header: http.Header{"Authorization": []string{"Bearer " + p.apiKey}},
		Body:   body,
	})
	if err != nil {
		return nil, err
	}

	var resp wireResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("workersai: decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &chat.GenerateResponse{Content: chat.FallbackText}, nil
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		var calls []chat.ToolCall
		for _, tc := range msg.ToolCalls {
			if tc.Function.Name == "" {
				continue
			}
			calls = append(calls, chat.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: chat.DecodeArguments(tc.Function.Arguments),
			})
		}
		if len(calls) > 0 {
			return &chat.GenerateResponse{ToolCalls: calls}, nil
		}
	}

	content := ""
	if msg.Content != nil {
		content = strings.TrimSpace(*msg.Content)
	}
	if content == "" {
		content = chat.FallbackText
	}
	return &chat.GenerateResponse{Content: content}, nil
}

func toWireMessages(messages []chat.Message) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for i, m := range messages {
		switch {
		case m.Role == chat.RoleTool:
			callID := m.ToolCallID
			if callID == "" {
				callID = fmt.Sprintf("tool_%d", i)
			}
			out = append(out, wireMessage{
				Role:       "tool",
				Content:    encodeResult(m.Result),
				ToolCallID: callID,
				Name:       m.ToolName,
			})

		case m.ToolCall != nil:
			callID := m.ToolCall.ID
			if callID == "" {
				callID = fmt.Sprintf("call_%d", i)
			}
			args, _ := json.Marshal(m.ToolCall.Arguments)
			out = append(out, wireMessage{
				Role: "assistant",
				ToolCalls: []wireToolCall{{
					ID:   callID,
					Type: "function",
					Function: wireFunction{
						Name:      m.ToolCall.Name,
						Arguments: string(args),
					},
				}},
			})

		default:
			out = append(out, wireMessage{Role: string(m.Role), Content: m.Content})
		}
	}
	return out
}

func toWireTools(tools []chat.ToolDefinition) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, wireTool{Type: "function", Function: t})
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
