package config

// Diff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; credential or
// provider changes require a restart.
type DiffResult struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	StickerRateChanged bool
	NewStickerRate     float64

	PromptAppendChanged bool
	NewPromptAppend     string
}

// Changed reports whether any hot-reloadable field differs.
func (d DiffResult) Changed() bool {
	return d.LogLevelChanged || d.StickerRateChanged || d.PromptAppendChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) DiffResult {
	d := DiffResult{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Features.Sticker.DetectRate != new.Features.Sticker.DetectRate {
		d.StickerRateChanged = true
		d.NewStickerRate = new.Features.Sticker.DetectRate
	}
	if old.AI.PromptAppend != new.AI.PromptAppend {
		d.PromptAppendChanged = true
		d.NewPromptAppend = new.AI.PromptAppend
	}

	return d
}
