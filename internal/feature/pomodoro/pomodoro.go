// Package pomodoro implements a shared pomodoro timer: 25 minutes of work
// followed by 5 minutes of rest on a repeating 30-minute cycle, driven by a
// minute ticker and persisted so a restart can resume a running timer.
package pomodoro

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/butler/internal/pretty"
	"github.com/MrWong99/butler/internal/storage"
	"github.com/MrWong99/butler/internal/tool"
)

const (
	// cycleDuration is the full length of one pomodoro in minutes.
	cycleDuration = 30

	// workDuration is the working part of the cycle in minutes.
	workDuration = 25
)

var helpText = pretty.HelpList(
	"`!pomodoro` コマンド - 音声チャンネルを利用した**ポモドーロタイマー**機能\n(**ポモドーロタイマー用音声チャンネルに参加した状態**で、以下のコマンドを利用)",
	pretty.Item{Name: "!pomodoro.start", Value: "ポモドーロタイマーを開始(リセット)します"},
	pretty.Item{Name: "!pomodoro.stop", Value: "ポモドーロタイマーを終了します"},
	pretty.Item{Name: "!pomodoro.status", Value: "現在のポモドーロステータスを表示します"},
	pretty.Item{Name: "!pomodoro.help", Value: "`!pomodoro` コマンドのヘルプを表示します(エイリアス: `!pomodoro`)"},
)

// tokyo is the timezone used in status timestamps.
var tokyo = loadTokyo()

func loadTokyo() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// Notifier posts timer notifications to the configured text channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Presence switches the bot's displayed activity while a timer runs.
// Implementations may be nil-safe no-ops in tests.
type Presence interface {
	SetPlaying(name string) error
	SetWatching(name string) error
}

// Service owns the timer state machine. All exported methods are safe for
// concurrent use.
type Service struct {
	store          *storage.PomodoroStore
	notifier       Notifier
	presence       Presence
	voiceChannelID string
	log            *slog.Logger

	mu     sync.Mutex
	status storage.PomodoroStatus
	cancel context.CancelFunc

	// test hooks
	now      func() time.Time
	interval time.Duration
}

// Option configures a [Service].
type Option func(*Service)

// WithPresence sets the presence switcher.
func WithPresence(p Presence) Option {
	return func(s *Service) { s.presence = p }
}

// WithVoiceChannel sets the voice channel mentioned in start notifications.
func WithVoiceChannel(id string) Option {
	return func(s *Service) { s.voiceChannelID = id }
}

// WithLogger sets the logger; defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New returns a pomodoro service persisting through store and announcing
// through notifier.
func New(store *storage.PomodoroStore, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		log:      slog.Default(),
		now:      time.Now,
		interval: time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Resume restores a timer that was running before a restart. When the stored
// status carries a start time, the ticker is relaunched and a warning is
// posted so users know the timer survived an interruption.
func (s *Service) Resume(ctx context.Context) error {
	status, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	if status.StartAt == nil {
		return nil
	}

	s.startTicker()
	s.setPlaying("🍅ポモドーロ")
	state := "作業"
	if status.Rest {
		state = "休憩"
	}
	return s.notify(ctx, fmt.Sprintf(
		":warning: なにか問題があり停止してしまったため、ポモドーロを再開しました。\n現在、_** %d 回目 %d 分経過、%s中**_です。",
		status.Wave, status.Spent, state))
}

// Start resets and launches the timer, returning the user-facing reply.
func (s *Service) Start(ctx context.Context) (string, error) {
	startAt := s.now().Truncate(time.Minute)

	s.mu.Lock()
	s.status = storage.PomodoroStatus{StartAt: &startAt, Wave: 1, Spent: 0, Rest: false}
	status := s.status
	s.mu.Unlock()

	if err := s.store.Save(ctx, status); err != nil {
		return "", err
	}

	s.startTicker()
	s.setPlaying("ポモドーロ")

	if s.voiceChannelID != "" {
		return fmt.Sprintf("ポモドーロを開始します:timer: **:loudspeaker:**<#%s> に参加して、作業を始めてください:fire:", s.voiceChannelID), nil
	}
	return "ポモドーロを開始します:timer: 作業を始めてください:fire:", nil
}

// Stop halts the timer and resets the persisted state.
func (s *Service) Stop(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.status = storage.PomodoroStatus{Rest: true}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	if err := s.store.Reset(ctx); err != nil {
		return "", err
	}
	s.setWatching("みんなの発言")
	return "ポモドーロを終了します:timer: お疲れ様でした:island:", nil
}

// Status renders the current timer state.
func (s *Service) Status(ctx context.Context) (string, error) {
	s.mu.Lock()
	status := s.status
	s.mu.Unlock()

	started := "停止中:sleeping:"
	state := "停止中:sleeping:"
	if status.StartAt != nil {
		started = status.StartAt.In(tokyo).Format("2006/01/02 15:04:05") + " :timer:"
		if status.Rest {
			state = "休憩中:island:"
		} else {
			state = "作業中:fire:"
		}
	}
	return strings.Join([]string{
		fmt.Sprintf("**タイマー開始日時: **_%s_", started),
		fmt.Sprintf("**ポモドーロタイマー: **_%d 回目 %d 分経過_", status.Wave, status.Spent%cycleDuration),
		fmt.Sprintf("**ポモドーロの状態: **_%s_", state),
	}, "\n"), nil
}

// Help returns the command help text.
func (s *Service) Help() string {
	return helpText
}

// Register adds the pomodoro tools to reg.
func (s *Service) Register(reg *tool.Registry) {
	reg.Register(tool.Tool{
		Name:        "butler.pomodoro.start",
		Description: "ポモドーロを開始する。",
		Handler: func(ctx context.Context, _ tool.Args, _ tool.Context) (string, error) {
			return s.Start(ctx)
		},
	})
	reg.Register(tool.Tool{
		Name:        "butler.pomodoro.stop",
		Description: "ポモドーロを停止する。",
		Handler: func(ctx context.Context, _ tool.Args, _ tool.Context) (string, error) {
			return s.Stop(ctx)
		},
	})
	reg.Register(tool.Tool{
		Name:        "butler.pomodoro.status",
		Description: "現在のポモドーロの状態を表示する。",
		Handler: func(ctx context.Context, _ tool.Args, _ tool.Context) (string, error) {
			return s.Status(ctx)
		},
	})
	reg.Register(tool.Tool{
		Name:        "butler.pomodoro.help",
		Description: "ポモドーロ機能のヘルプを表示する。",
		Handler: func(ctx context.Context, _ tool.Args, _ tool.Context) (string, error) {
			return s.Help(), nil
		},
	})
}

// startTicker launches the minute loop, replacing any previous one.
func (s *Service) startTicker() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// tick advances the timer by one minute and fires phase transitions.
func (s *Service) tick(ctx context.Context) {
	s.mu.Lock()
	if s.status.StartAt == nil {
		s.mu.Unlock()
		return
	}
	s.status.Spent++
	var (
		transition func(context.Context)
		status     = s.status
	)
	switch s.status.Spent {
	case workDuration:
		s.status.Rest = true
		status = s.status
		transition = s.announceRest
	case cycleDuration:
		s.status.Wave++
		s.status.Spent = 0
		s.status.Rest = false
		status = s.status
		transition = s.announceWork
	}
	s.mu.Unlock()

	if err := s.store.Save(ctx, status); err != nil {
		s.log.Error("pomodoro: persist status", "error", err)
	}
	if transition != nil {
		transition(ctx)
	}
}

func (s *Service) announceRest(ctx context.Context) {
	s.notify(ctx, "ここまでのポモドーロが完了しました:timer: 休憩してください:island:")
}

func (s *Service) announceWork(ctx context.Context) {
	s.mu.Lock()
	wave := s.status.Wave
	s.mu.Unlock()
	s.notify(ctx, fmt.Sprintf("%d 回目のポモドーロを開始します:timer: 作業を始めてください:fire:", wave))
}

func (s *Service) notify(ctx context.Context, text string) error {
	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.log.Error("pomodoro: notify", "error", err)
		return err
	}
	return nil
}

func (s *Service) setPlaying(name string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.SetPlaying(name); err != nil {
		s.log.Warn("pomodoro: set presence", "error", err)
	}
}

func (s *Service) setWatching(name string) {
	if s.presence == nil {
		return
	}
	if err := s.presence.SetWatching(name); err != nil {
		s.log.Warn("pomodoro: set presence", "error", err)
	}
}
