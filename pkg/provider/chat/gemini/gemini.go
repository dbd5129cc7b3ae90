// Package gemini provides a chat provider backed by the Google Gemini
// generateContent API.
package gemini

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

// DefaultBaseURL is the Generative Language API base URL.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// DefaultModel is used when the configuration leaves the model unset.
const DefaultModel = "gemini-2.5-flash"

var _ chat.Provider = (*Provider)(nil)

// Provider implements chat.Provider against the Gemini API.
//
// Gemini has no system or assistant role: system turns are sent as user
// content, assistant turns as "model" content. Tool calls travel as
// functionCall parts without correlation ids; results are matched back by
// tool name in a functionResponse part.
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

// New constructs a Gemini Provider. apiKey must be non-empty; an empty model
// falls back to [DefaultModel].
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
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

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// wirePart is one part of a Gemini content entry; exactly one field is set.
type wirePart struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role"`
	Parts []wirePart `json:"parts"`
}

type wireTool struct {
	FunctionDeclarations []chat.ToolDefinition `json:"functionDeclarations"`
}

type wireRequest struct {
	Contents []wireContent `json:"contents"`
	Tools    []wireTool    `json:"tools,omitempty"`
}

type wireResponse struct {
	Candidates []struct {
		Content struct {
			Parts []wirePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate implements chat.Provider.
func (p *Provider) Generate(ctx context.Context, req chat.GenerateRequest) (*chat.GenerateResponse, error) {
	body := wireRequest{Contents: toWireContents(req.Messages)}
	if len(req.Tools) > 0 {
		body.Tools = []wireTool{{FunctionDeclarations: req.Tools}}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	raw, err := chat.PostJSON(ctx, p.httpClient, chat.PostRequest{
		Vendor:    "gemini",
		URL:       url,
		Body:      body,
		Retryable: chat.RetryableGemini,
	})
	if err != nil {
		return nil, err
	}

	var resp wireResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}

	var parts []wirePart
	if len(resp.Candidates) > 0 {
		parts = resp.Candidates[0].Content.Parts
	}

	var calls []chat.ToolCall
	var texts []string
	for _, part := range parts {
		switch {
		case part.FunctionCall != nil:
			if part.FunctionCall.Name == "" {
				continue
			}
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			calls = append(calls, chat.ToolCall{Name: part.FunctionCall.Name, Arguments: args})
		case part.Text != "":
			texts = append(texts, part.Text)
		}
	}
	if len(calls) > 0 {
		return &chat.GenerateResponse{ToolCalls: calls}, nil
	}

	content := strings.TrimSpace(strings.Join(texts, "\n"))
	if content == "" {
		content = chat.FallbackText
	}
	return &chat.GenerateResponse{Content: content}, nil
}

func toWireContents(messages []chat.Message) []wireContent {
	out := make([]wireContent, 0, len(messages))
	for _, m := range messages {
		switch {
		case m.Role == chat.RoleTool:
			out = append(out, wireContent{
				Role: "tool",
				Parts: []wirePart{{FunctionResponse: &functionResponse{
					Name:     m.ToolName,
					Response: m.Result,
				}}},
			})

		case m.ToolCall != nil:
			out = append(out, wireContent{
				Role: "model",
				Parts: []wirePart{{FunctionCall: &functionCall{
					Name: m.ToolCall.Name,
					Args: m.ToolCall.Arguments,
				}}},
			})

		default:
			role := "user"
			if m.Role == chat.RoleAssistant {
				role = "model"
			}
			out = append(out, wireContent{Role: role, Parts: []wirePart{{Text: m.Content}}})
		}
	}
	return out
}
