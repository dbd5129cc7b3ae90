// Package agent implements the tool-calling conversation loop between the
// Discord layer and an AI chat provider.
//
// The agent prepends a system prompt to the caller's conversation history,
// asks the provider to generate, executes any tool calls the model requested,
// feeds the results back, and repeats until the model produces a text answer
// or the iteration budget runs out.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/butler/internal/observe"
	"github.com/MrWong99/butler/internal/pretty"
	"github.com/MrWong99/butler/internal/tool"
	"github.com/MrWong99/butler/pkg/provider/chat"
)

const (
	// maxIterations bounds the generate → tool → generate loop. A model that
	// keeps requesting tools beyond this produces the fallback reply.
	maxIterations = 3

	// defaultToolTimeout caps a single tool execution.
	defaultToolTimeout = 60 * time.Second

	aiErrorCode = "AI_ERROR"
)

// tokyo is the timezone stamped into the system prompt.
var tokyo = loadTokyo()

func loadTokyo() *time.Location {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		return time.FixedZone("JST", 9*60*60)
	}
	return loc
}

// ToolExecutor provides the tool catalog and runs model-requested calls.
// *tool.Registry satisfies it.
type ToolExecutor interface {
	Definitions() []chat.ToolDefinition
	Execute(ctx context.Context, call chat.ToolCall, tc tool.Context) (string, error)
}

var _ ToolExecutor = (*tool.Registry)(nil)

// Agent drives tool-calling conversations against one chat provider.
// It is safe for concurrent use.
type Agent struct {
	provider     chat.Provider
	providerName string
	tools        ToolExecutor
	toolTimeout  time.Duration
	log          *slog.Logger
	metrics      *observe.Metrics

	// mu guards promptAppend, which config hot-reloads may swap while
	// replies are in flight.
	mu           sync.RWMutex
	promptAppend string

	// test hooks
	now   func() time.Time
	newID func() string
}

// Option configures an [Agent] during construction.
type Option func(*Agent)

// WithPromptAppend appends extra operator-supplied lines to the system prompt.
func WithPromptAppend(s string) Option {
	return func(a *Agent) { a.promptAppend = s }
}

// WithToolTimeout overrides the per-call tool execution timeout.
func WithToolTimeout(d time.Duration) Option {
	return func(a *Agent) { a.toolTimeout = d }
}

// WithLogger sets the logger; defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) { a.log = log }
}

// WithProviderName sets the provider label stamped on request metrics.
func WithProviderName(name string) Option {
	return func(a *Agent) { a.providerName = name }
}

// WithMetrics overrides the metrics sink; defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// New returns an agent speaking through provider and executing via tools.
func New(provider chat.Provider, tools ToolExecutor, opts ...Option) *Agent {
	a := &Agent{
		provider:     provider,
		providerName: "unknown",
		tools:        tools,
		toolTimeout:  defaultToolTimeout,
		log:          slog.Default(),
		metrics:      observe.DefaultMetrics(),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// SetPromptAppend replaces the operator-supplied system prompt suffix.
func (a *Agent) SetPromptAppend(s string) {
	a.mu.Lock()
	a.promptAppend = s
	a.mu.Unlock()
}

// Reply generates the bot's answer to the given conversation history. It
// never returns an error: provider and tool failures are rendered as a
// user-visible error code block, and an exhausted iteration budget yields the
// provider-neutral fallback text.
func (a *Agent) Reply(ctx context.Context, history []chat.Message, tc tool.Context) string {
	ctx, span := observe.StartSpan(ctx, "agent.reply")
	defer span.End()

	out, err := a.replyWithTools(ctx, history, tc)
	if err != nil {
		a.metrics.RecordAgentReply(ctx, "error")
		a.log.Error("agent reply failed", "error", err)
		return pretty.Code(fmt.Sprintf("%s\n%s", aiErrorCode, err.Error()), "text")
	}
	if out == chat.FallbackText {
		a.metrics.RecordAgentReply(ctx, "fallback")
	} else {
		a.metrics.RecordAgentReply(ctx, "text")
	}
	return out
}

func (a *Agent) replyWithTools(ctx context.Context, history []chat.Message, tc tool.Context) (string, error) {
	msgs := make([]chat.Message, 0, len(history)+1)
	msgs = append(msgs, a.systemMessage())
	msgs = append(msgs, history...)
	defs := a.tools.Definitions()

	for iteration := 0; iteration < maxIterations; iteration++ {
		start := time.Now()
		resp, err := a.provider.Generate(ctx, chat.GenerateRequest{Messages: msgs, Tools: defs})
		a.metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds())
		if err != nil {
			a.metrics.RecordProviderRequest(ctx, a.providerName, "error")
			return "", err
		}
		a.metrics.RecordProviderRequest(ctx, a.providerName, "ok")
		a.log.Debug("agent round",
			"iteration", iteration,
			"tool_calls", len(resp.ToolCalls),
			"duration", time.Since(start),
		)

		if len(resp.ToolCalls) > 0 {
			turns, err := a.executeTools(ctx, resp.ToolCalls, tc)
			if err != nil {
				return "", err
			}
			msgs = append(msgs, turns...)
			continue
		}

		if resp.Content != "" {
			return resp.Content, nil
		}
	}

	return chat.FallbackText, nil
}

// executeTools runs all requested calls in parallel and returns the
// assistant/tool message pairs to feed back, in the order the model issued
// the calls. Calls without an id get a generated one before dispatch so that
// id-correlating vendors can match results to requests.
func (a *Agent) executeTools(ctx context.Context, calls []chat.ToolCall, tc tool.Context) ([]chat.Message, error) {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = a.newID()
		}
	}

	results := make([]string, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, a.toolTimeout)
			defer cancel()
			a.log.Info("executing tool", "tool", call.Name, "call_id", call.ID)
			start := time.Now()
			out, err := a.tools.Execute(cctx, call, tc)
			a.metrics.ToolExecutionDuration.Record(cctx, time.Since(start).Seconds())
			if err != nil {
				a.metrics.RecordToolCall(cctx, call.Name, "error")
				return fmt.Errorf("tool %s: %w", call.Name, err)
			}
			a.metrics.RecordToolCall(cctx, call.Name, "ok")
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	turns := make([]chat.Message, 0, len(calls)*2)
	for i, call := range calls {
		turns = append(turns,
			chat.ToolCallMessage(call),
			chat.ToolResultMessage(call.Name, call.ID, map[string]any{"result": results[i]}),
		)
	}
	return turns, nil
}

// systemMessage builds the per-request system prompt, including the current
// Asia/Tokyo timestamp so the model can resolve relative dates.
func (a *Agent) systemMessage() chat.Message {
	lines := []string{
		"あなたはDiscord Botのbutlerです。",
		"利用できる機能はスラッシュコマンドのツールのみです。",
		"ツールは必要な場合のみ呼び出してください。",
		"通常の質問や雑談にはツールを使わず自然に返答してください。",
		"現在日時(Asia/Tokyo): " + a.now().In(tokyo).Format("2006-01-02 15:04:05"),
		"ツール説明とAI方針(説明文中の「AI方針: ...」)を優先して実行してください。",
		"確認質問は必要最小限にし、実行可能なら一度で実行してください。",
		"補完した内容は実行結果で簡潔に報告してください。",
		"ツール未実行で結果を前提にしてはいけません。",
	}
	a.mu.RLock()
	promptAppend := a.promptAppend
	a.mu.RUnlock()
	if p := strings.TrimSpace(promptAppend); p != "" {
		lines = append(lines, p)
	}
	return chat.SystemMessage(strings.Join(lines, "\n"))
}
