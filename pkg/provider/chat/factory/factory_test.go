package factory

import (
	"testing"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"openai ok", Config{Provider: "openai", APIKey: "k", Model: "gpt-4o-mini"}, false},
		{"openai missing model", Config{Provider: "openai", APIKey: "k"}, true},
		{"workersai ok", Config{Provider: "workersai", APIKey: "k", Model: "m", AccountID: "acct"}, false},
		{"workersai missing account", Config{Provider: "workersai", APIKey: "k", Model: "m"}, true},
		{"workersai missing model", Config{Provider: "workersai", APIKey: "k", AccountID: "acct"}, true},
		{"claude ok", Config{Provider: "claude", APIKey: "k", Model: "m"}, false},
		{"claude missing model", Config{Provider: "claude", APIKey: "k"}, true},
		{"gemini ok", Config{Provider: "gemini", APIKey: "k", Model: "m"}, false},
		{"gemini model optional", Config{Provider: "gemini", APIKey: "k"}, false},
		{"missing api key", Config{Provider: "openai", Model: "m"}, true},
		{"unknown provider", Config{Provider: "llama-at-home", APIKey: "k", Model: "m"}, true},
		{"empty provider", Config{APIKey: "k", Model: "m"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if p == nil {
				t.Fatal("New returned nil provider")
			}
		})
	}
}
