package config

import (
	"strings"
	"testing"
)

const validYAML = `
server:
  log_level: debug
  metrics_addr: ":9090"
discord:
  token: discord-token
  guild_id: "123"
  notify_channel_id: "456"
ai:
  provider: openai
  api_key: sk-test
  model: gpt-4o-mini
  prompt_append: 丁寧語で話すこと。
storage:
  path: /tmp/butler.sqlite
features:
  sticker:
    detect_rate: 0.3
  pomodoro:
    voice_channel_id: "789"
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Discord.Token != "discord-token" || cfg.Discord.GuildID != "123" {
		t.Errorf("discord = %+v", cfg.Discord)
	}
	if cfg.AI.Provider != "openai" || cfg.AI.Model != "gpt-4o-mini" {
		t.Errorf("ai = %+v", cfg.AI)
	}
	if cfg.AI.PromptAppend != "丁寧語で話すこと。" {
		t.Errorf("PromptAppend = %q", cfg.AI.PromptAppend)
	}
	if cfg.Features.Sticker.DetectRate != 0.3 {
		t.Errorf("DetectRate = %v", cfg.Features.Sticker.DetectRate)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`
discord:
  token: t
ai:
  provider: gemini
  api_key: k
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("default LogLevel = %q", cfg.Server.LogLevel)
	}
	if cfg.Storage.Path != "data/butler.sqlite" {
		t.Errorf("default storage path = %q", cfg.Storage.Path)
	}
}

func TestLoadFromReader_ExpandsEnv(t *testing.T) {
	t.Setenv("BUTLER_TEST_TOKEN", "from-env")
	cfg, err := LoadFromReader(strings.NewReader(`
discord:
  token: ${BUTLER_TEST_TOKEN}
ai:
  provider: gemini
  api_key: k
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Discord.Token != "from-env" {
		t.Errorf("Token = %q, want env value", cfg.Discord.Token)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`
discord:
  token: t
  bogus: true
ai:
  provider: gemini
  api_key: k
`))
	if err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing token", "ai:\n  provider: gemini\n  api_key: k\n", "discord.token is required"},
		{"missing provider", "discord:\n  token: t\n", "ai.provider is required"},
		{"unknown provider", "discord:\n  token: t\nai:\n  provider: hal9000\n  api_key: k\n", "ai.provider \"hal9000\" is invalid"},
		{"missing api key", "discord:\n  token: t\nai:\n  provider: openai\n  model: m\n", "ai.api_key is required"},
		{"missing model", "discord:\n  token: t\nai:\n  provider: claude\n  api_key: k\n", "ai.model is required"},
		{"missing account id", "discord:\n  token: t\nai:\n  provider: workersai\n  api_key: k\n  model: m\n", "ai.account_id is required"},
		{"detect rate out of range", "discord:\n  token: t\nai:\n  provider: gemini\n  api_key: k\nfeatures:\n  sticker:\n    detect_rate: 1.5\n", "detect_rate"},
		{"bad log level", "server:\n  log_level: loud\ndiscord:\n  token: t\nai:\n  provider: gemini\n  api_key: k\n", "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("config accepted")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestValidate_GeminiModelOptional(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader("discord:\n  token: t\nai:\n  provider: gemini\n  api_key: k\n")); err != nil {
		t.Fatalf("gemini without model rejected: %v", err)
	}
}
