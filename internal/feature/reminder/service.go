package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/butler/internal/observe"
)

// sweepInterval is how often scheduled events are checked for due reminders.
const sweepInterval = 5 * time.Minute

// tokyo is the timezone used for calendar-day checks and rendered dates.
var tokyo = loadTokyo()

func loadTokyo() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// Event is the slice of a guild scheduled event the reminder sweep needs.
type Event struct {
	ID          string
	GuildID     string
	Name        string
	Description string
	StartAt     time.Time
}

// NewEvent describes an event to create.
type NewEvent struct {
	Name        string
	Description string
	StartAt     time.Time
	EndAt       time.Time
}

// EventGateway abstracts the Discord scheduled-event API.
type EventGateway interface {
	// ScheduledEvents lists upcoming (not started, not cancelled) events
	// across the guilds the bot can see.
	ScheduledEvents(ctx context.Context) ([]Event, error)

	// UpdateEventDescription rewrites one event's description.
	UpdateEventDescription(ctx context.Context, guildID, eventID, description string) error

	// CreateEvent creates a scheduled event and returns it.
	CreateEvent(ctx context.Context, guildID string, ev NewEvent) (Event, error)
}

// Notifier posts reminder messages to the configured text channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Service sweeps scheduled events and sends staged reminders.
type Service struct {
	gateway  EventGateway
	notifier Notifier
	log      *slog.Logger
	metrics  *observe.Metrics

	// test hooks
	now      func() time.Time
	interval time.Duration
}

// Option configures a [Service].
type Option func(*Service)

// WithLogger sets the logger; defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics overrides the metrics sink; defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New returns a reminder service over gateway, announcing through notifier.
func New(gateway EventGateway, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		gateway:  gateway,
		notifier: notifier,
		log:      slog.Default(),
		metrics:  observe.DefaultMetrics(),
		now:      time.Now,
		interval: sweepInterval,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run sweeps immediately and then every five minutes until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.check(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

// check processes every visible scheduled event once.
func (s *Service) check(ctx context.Context) {
	events, err := s.gateway.ScheduledEvents(ctx)
	if err != nil {
		s.log.Error("reminder: list scheduled events", "error", err)
		return
	}
	for _, ev := range events {
		if err := s.processEvent(ctx, ev); err != nil {
			s.log.Error("reminder: process event", "event", ev.Name, "error", err)
		}
	}
}

// processEvent sends any due reminders for ev and persists the notified
// flags back into the event description.
func (s *Service) processEvent(ctx context.Context, ev Event) error {
	meta, ok := ParseMeta(ev.Description)
	if !ok {
		return nil
	}

	triggered := triggeredTimings(ev.StartAt, s.now(), meta.Notified)
	if len(triggered) == 0 {
		return nil
	}

	for _, timing := range triggered {
		if err := s.notifier.Notify(ctx, reminderMessage(ev, timing, meta)); err != nil {
			return fmt.Errorf("send reminder %s: %w", timing, err)
		}
		meta.Notified[timing] = true
		s.metrics.RecordReminderSent(ctx)
		s.log.Info("reminder: sent", "event", ev.Name, "timing", string(timing))
	}

	updated := UpdateDescription(StripMeta(ev.Description), meta)
	if err := s.gateway.UpdateEventDescription(ctx, ev.GuildID, ev.ID, updated); err != nil {
		return fmt.Errorf("update event meta: %w", err)
	}
	return nil
}

// reminderMessage renders one reminder notification.
func reminderMessage(ev Event, timing Timing, meta Meta) string {
	lines := []string{
		fmt.Sprintf(":bell: **イベントリマインド (%s)**", timing.Label()),
		fmt.Sprintf("**%s**", ev.Name),
		"開始: " + formatDateTime(ev.StartAt),
	}
	if desc := StripMeta(ev.Description); desc != "" {
		lines = append(lines, "\n"+desc)
	}
	if mentions := mentionList(meta.Participants); mentions != "" {
		lines = append(lines, mentions)
	}
	return strings.Join(lines, "\n")
}

func mentionList(participants []string) string {
	mentions := make([]string, 0, len(participants))
	for _, id := range participants {
		mentions = append(mentions, fmt.Sprintf("<@%s>", id))
	}
	return strings.Join(mentions, " ")
}

func formatDateTime(t time.Time) string {
	t = t.In(tokyo)
	return fmt.Sprintf("%d年%d月%d日 %02d:%02d", t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute())
}
