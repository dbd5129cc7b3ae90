package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/butler/pkg/provider/chat/factory"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} environment
// references, applies defaults and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/butler.sqlite"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Discord
	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}
	if cfg.Discord.NotifyChannelID == "" {
		slog.Warn("discord.notify_channel_id is empty; event reminders, pomodoro notifications and error reports will not be delivered")
	}

	// AI provider
	switch cfg.AI.Provider {
	case "":
		errs = append(errs, errors.New("ai.provider is required"))
	case factory.ProviderOpenAI, factory.ProviderClaude, factory.ProviderGemini, factory.ProviderWorkersAI:
		if cfg.AI.APIKey == "" {
			errs = append(errs, errors.New("ai.api_key is required"))
		}
		if cfg.AI.Model == "" && cfg.AI.Provider != factory.ProviderGemini {
			errs = append(errs, fmt.Errorf("ai.model is required for provider %q", cfg.AI.Provider))
		}
		if cfg.AI.Provider == factory.ProviderWorkersAI && cfg.AI.AccountID == "" {
			errs = append(errs, errors.New("ai.account_id is required for provider \"workersai\""))
		}
	default:
		errs = append(errs, fmt.Errorf("ai.provider %q is invalid; valid values: openai, claude, gemini, workersai", cfg.AI.Provider))
	}

	// Features
	if rate := cfg.Features.Sticker.DetectRate; rate < 0 || rate > 1 {
		errs = append(errs, fmt.Errorf("features.sticker.detect_rate %.2f is out of range [0, 1]", rate))
	}
	if cfg.Features.Pomodoro.VoiceChannelID == "" {
		slog.Warn("features.pomodoro.voice_channel_id is empty; pomodoro notifications will not mention channel members")
	}

	return errors.Join(errs...)
}
