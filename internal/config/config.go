// Package config provides the configuration schema, loader, and file watcher
// for the butler Discord bot.
package config

import (
	"github.com/MrWong99/butler/pkg/provider/chat/factory"
)

// LogLevel controls log verbosity for the bot.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for butler.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Discord  DiscordConfig  `yaml:"discord"`
	AI       AIConfig       `yaml:"ai"`
	Storage  StorageConfig  `yaml:"storage"`
	Features FeaturesConfig `yaml:"features"`
}

// ServerConfig holds logging and observability settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the Prometheus /metrics endpoint listens
	// on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DiscordConfig holds the gateway credentials and well-known channel ids.
type DiscordConfig struct {
	// Token is the bot token used to authenticate with the Discord gateway.
	Token string `yaml:"token"`

	// GuildID scopes slash-command registration to one guild. Empty registers
	// the commands globally (slower to propagate).
	GuildID string `yaml:"guild_id"`

	// NotifyChannelID is the text channel that receives event reminders,
	// pomodoro notifications and error reports.
	NotifyChannelID string `yaml:"notify_channel_id"`
}

// AIConfig selects and configures the chat provider backing the agent.
type AIConfig struct {
	factory.Config `yaml:",inline"`

	// PromptAppend holds operator-supplied lines appended to the agent's
	// system prompt.
	PromptAppend string `yaml:"prompt_append"`
}

// StorageConfig locates the SQLite database file.
type StorageConfig struct {
	// Path is the SQLite file path. Parent directories are created on open.
	Path string `yaml:"path"`
}

// FeaturesConfig holds per-feature tuning knobs.
type FeaturesConfig struct {
	Sticker  StickerConfig  `yaml:"sticker"`
	Pomodoro PomodoroConfig `yaml:"pomodoro"`
}

// StickerConfig tunes the chat-watching sticker feature.
type StickerConfig struct {
	// DetectRate is the probability in [0, 1] that a matching message
	// actually triggers a sticker. 0 disables detection.
	DetectRate float64 `yaml:"detect_rate"`
}

// PomodoroConfig holds the pomodoro timer's voice channel binding.
type PomodoroConfig struct {
	// VoiceChannelID is the voice channel whose members are mentioned in
	// work/break notifications. Empty disables the mentions.
	VoiceChannelID string `yaml:"voice_channel_id"`
}
