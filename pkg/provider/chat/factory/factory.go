// Package factory constructs chat providers from configuration.
//
// It lives outside package chat because the vendor subpackages import chat;
// putting construction here keeps the dependency graph acyclic.
package factory

import (
	"errors"
	"fmt"

	"github.com/MrWong99/butler/pkg/provider/chat"
	"github.com/MrWong99/butler/pkg/provider/chat/claude"
	"github.com/MrWong99/butler/pkg/provider/chat/gemini"
	"github.com/MrWong99/butler/pkg/provider/chat/openai"
	"github.com/MrWong99/butler/pkg/provider/chat/workersai"
)

// Known provider names accepted in [Config.Provider].
const (
	ProviderOpenAI    = "openai"
	ProviderWorkersAI = "workersai"
	ProviderClaude    = "claude"
	ProviderGemini    = "gemini"
)

// Config selects and parameterizes one chat backend.
type Config struct {
	// Provider is one of the Provider* constants.
	Provider string `yaml:"provider"`

	// APIKey authenticates against the vendor. Always required.
	APIKey string `yaml:"api_key"`

	// Model names the vendor model. Required for every provider except
	// gemini, which defaults to gemini-2.5-flash.
	Model string `yaml:"model"`

	// AccountID is the Cloudflare account id. Required for workersai only.
	AccountID string `yaml:"account_id"`
}

// New validates cfg and constructs the matching provider. Validation is
// fail-fast so a misconfigured bot dies at startup, not on the first message.
func New(cfg Config) (chat.Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("factory: api_key must not be empty")
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.Model == "" {
			return nil, errors.New("factory: model is required for openai")
		}
		return openai.New(cfg.APIKey, cfg.Model)

	case ProviderWorkersAI:
		if cfg.Model == "" {
			return nil, errors.New("factory: model is required for workersai")
		}
		if cfg.AccountID == "" {
			return nil, errors.New("factory: account_id is required for workersai")
		}
		return workersai.New(cfg.APIKey, cfg.AccountID, cfg.Model)

	case ProviderClaude:
		if cfg.Model == "" {
			return nil, errors.New("factory: model is required for claude")
		}
		return claude.New(cfg.APIKey, cfg.Model)

	case ProviderGemini:
		return gemini.New(cfg.APIKey, cfg.Model)

	default:
		return nil, fmt.Errorf("factory: unknown provider %q", cfg.Provider)
	}
}
