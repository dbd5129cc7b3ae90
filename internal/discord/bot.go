// Package discord is the bot layer. It owns the discordgo.Session lifecycle,
// feeds chat messages into the AI conversation pipeline, routes prefix and
// slash commands to the shared tool registry and exposes the narrow Discord
// operations (notifications, presence, scheduled events) the feature services
// consume.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/butler/internal/feature/reminder"
)

// watchingStatus is the idle presence shown while no pomodoro runs.
const watchingStatus = "みんなの発言"

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string

	// GuildID scopes slash command registration to one guild; empty
	// registers them globally.
	GuildID string

	// NotifyChannelID receives timer, reminder and error notifications.
	NotifyChannelID string
}

// Bot owns the Discord gateway connection.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	router    *Router
	cfg       Config
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
	log       *slog.Logger
}

// New creates a Bot, connects to Discord and registers the event handlers.
// interactive may be nil when the AI pipeline is disabled (tests).
func New(_ context.Context, cfg Config, router *Router, interactive *Interactive) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentMessageContent |
		discordgo.IntentGuildScheduledEvents

	b := &Bot{
		session: session,
		router:  router,
		cfg:     cfg,
		log:     slog.Default(),
	}

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.log.Info("discord ready", "user", r.User.Username, "id", r.User.ID)
		if err := s.UpdateWatchStatus(0, watchingStatus); err != nil {
			b.log.Warn("discord: set presence", "error", err)
		}
	})
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		ctx := context.Background()
		if router != nil && router.HandleMessage(ctx, s, m) {
			return
		}
		if interactive != nil {
			interactive.HandleMessage(ctx, s, m)
		}
	})
	if router != nil {
		session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			router.HandleInteraction(context.Background(), s, i)
		})
	}

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return b, nil
}

// Session returns the underlying discordgo session.
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Run registers slash commands with the Discord API and blocks until ctx is
// cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b.router != nil {
		appID := b.session.State.User.ID
		cmds := b.router.ApplicationCommands()
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.cfg.GuildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		b.log.Info("discord commands registered", "count", len(registered), "guild", b.cfg.GuildID)
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord and unregisters the slash commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.cfg.GuildID, cmd.ID); err != nil {
					b.log.Warn("discord: delete command", "name", cmd.Name, "error", err)
				}
			}
		}
		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}
		b.log.Info("discord bot closed")
	})
	return closeErr
}

// Notify posts text to the configured notification channel.
func (b *Bot) Notify(_ context.Context, text string) error {
	if b.cfg.NotifyChannelID == "" {
		return nil
	}
	if _, err := b.Session().ChannelMessageSend(b.cfg.NotifyChannelID, text); err != nil {
		return fmt.Errorf("discord: notify: %w", err)
	}
	return nil
}

// NotifyError reports an unexpected error to the notification channel.
func (b *Bot) NotifyError(ctx context.Context, name string) {
	if err := b.Notify(ctx, fmt.Sprintf(":skull_crossbones: `(%s)`", name)); err != nil {
		b.log.Warn("discord: error notification failed", "error", err)
	}
}

// SetPlaying shows a "playing" presence.
func (b *Bot) SetPlaying(name string) error {
	return b.Session().UpdateGameStatus(0, name)
}

// SetWatching shows a "watching" presence.
func (b *Bot) SetWatching(name string) error {
	return b.Session().UpdateWatchStatus(0, name)
}

// ScheduledEvents lists the not-yet-started scheduled events of the
// configured guild.
func (b *Bot) ScheduledEvents(_ context.Context) ([]reminder.Event, error) {
	if b.cfg.GuildID == "" {
		return nil, nil
	}
	events, err := b.Session().GuildScheduledEvents(b.cfg.GuildID, false)
	if err != nil {
		return nil, fmt.Errorf("discord: list scheduled events: %w", err)
	}
	out := make([]reminder.Event, 0, len(events))
	for _, ev := range events {
		if ev.Status != discordgo.GuildScheduledEventStatusScheduled {
			continue
		}
		out = append(out, reminder.Event{
			ID:          ev.ID,
			GuildID:     ev.GuildID,
			Name:        ev.Name,
			Description: ev.Description,
			StartAt:     ev.ScheduledStartTime,
		})
	}
	return out, nil
}

// UpdateEventDescription rewrites one scheduled event's description.
func (b *Bot) UpdateEventDescription(_ context.Context, guildID, eventID, description string) error {
	_, err := b.Session().GuildScheduledEventEdit(guildID, eventID, &discordgo.GuildScheduledEventParams{
		Description: description,
	})
	if err != nil {
		return fmt.Errorf("discord: edit scheduled event: %w", err)
	}
	return nil
}

// CreateEvent creates an external scheduled event.
func (b *Bot) CreateEvent(_ context.Context, guildID string, ev reminder.NewEvent) (reminder.Event, error) {
	start := ev.StartAt
	end := ev.EndAt
	created, err := b.Session().GuildScheduledEventCreate(guildID, &discordgo.GuildScheduledEventParams{
		Name:               ev.Name,
		Description:        ev.Description,
		ScheduledStartTime: &start,
		ScheduledEndTime:   &end,
		PrivacyLevel:       discordgo.GuildScheduledEventPrivacyLevelGuildOnly,
		EntityType:         discordgo.GuildScheduledEventEntityTypeExternal,
		EntityMetadata:     &discordgo.GuildScheduledEventEntityMetadata{Location: "Discord"},
	})
	if err != nil {
		return reminder.Event{}, fmt.Errorf("discord: create scheduled event: %w", err)
	}
	return reminder.Event{
		ID:          created.ID,
		GuildID:     created.GuildID,
		Name:        created.Name,
		Description: created.Description,
		StartAt:     created.ScheduledStartTime,
	}, nil
}

var (
	_ reminder.EventGateway = (*Bot)(nil)
	_ reminder.Notifier     = (*Bot)(nil)
)
