package workersai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/butler/pkg/provider/chat"
)

func mustNew(t *testing.T, opts ...Option) *Provider {
	t.Helper()
	p, err := New("cf-token", "acct-123", "@cf/meta/llama-3.1-8b-instruct", opts...)
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	return p
}

// ---- Provider creation ----

func TestNew(t *testing.T) {
	t.Run("empty api key", func(t *testing.T) {
		if _, err := New("", "acct", "model"); err == nil {
			t.Fatal("expected error for empty api key")
		}
	})
	t.Run("empty account id", func(t *testing.T) {
		if _, err := New("key", "", "model"); err == nil {
			t.Fatal("expected error for empty account id")
		}
	})
	t.Run("empty model", func(t *testing.T) {
		if _, err := New("key", "acct", ""); err == nil {
			t.Fatal("expected error for empty model")
		}
	})
}

// ---- Generate ----

func TestGenerate_AccountScopedPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if got := r.Header.Get("Authorization"); got != "Bearer cf-token" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := mustNew(t, WithBaseURL(srv.URL))
	if _, err := p.Generate(context.Background(), chat.GenerateRequest{
		Messages: []chat.Message{chat.UserMessage("hi")},
	}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := "/accounts/acct-123/ai/v1/chat/completions"
	if gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
}

// Workers AI deviates from the OpenAI dialect in exactly one place: assistant
// tool-call turns carry content "" rather than null.
func TestGenerate_AssistantToolCallContentIsEmptyString(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := mustNew(t, WithBaseURL(srv.URL))
	history := []chat.Message{
		chat.UserMessage("save memo"),
		chat.ToolCallMessage(chat.ToolCall{ID: "id-1", Name: "memo-set", Arguments: map[string]any{"key": "k"}}),
		chat.ToolResultMessage("memo-set", "id-1", map[string]any{"result": "saved"}),
	}
	if _, err := p.Generate(context.Background(), chat.GenerateRequest{Messages: history}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	msgs := body["messages"].([]any)
	assistant := msgs[1].(map[string]any)
	if assistant["content"] != "" {
		t.Errorf("assistant tool-call content = %v, want empty string", assistant["content"])
	}
	calls := assistant["tool_calls"].([]any)
	if id := calls[0].(map[string]any)["id"]; id != "id-1" {
		t.Errorf("tool call id = %v", id)
	}
	toolMsg := msgs[2].(map[string]any)
	if toolMsg["role"] != "tool" || toolMsg["tool_call_id"] != "id-1" {
		t.Errorf("tool message = %v", toolMsg)
	}
}

func TestGenerate_ToolCallResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"","tool_calls":[
			{"id":"c1","type":"function","function":{"name":"wiki-summary","arguments":"{\"title\":\"Go\"}"}}
		]}}]}`))
	}))
	defer srv.Close()

	p := mustNew(t, WithBaseURL(srv.URL))
	resp, err := p.Generate(context.Background(), chat.GenerateRequest{
		Messages: []chat.Message{chat.UserMessage("wiki")},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Name != "wiki-summary" || resp.ToolCalls[0].Arguments["title"] != "Go" {
		t.Errorf("call = %+v", resp.ToolCalls[0])
	}
}

func TestGenerate_EmptyContentYieldsFallbackText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
	}))
	defer srv.Close()

	p := mustNew(t, WithBaseURL(srv.URL))
	resp, err := p.Generate(context.Background(), chat.GenerateRequest{
		Messages: []chat.Message{chat.UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != chat.FallbackText {
		t.Errorf("Content = %q, want fallback text", resp.Content)
	}
}
