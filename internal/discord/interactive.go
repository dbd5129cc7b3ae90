package discord

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/butler/internal/conversation"
	"github.com/MrWong99/butler/internal/observe"
	"github.com/MrWong99/butler/internal/tool"
	"github.com/MrWong99/butler/pkg/provider/chat"
)

// processingEmoji marks a message while the AI works on it.
const processingEmoji = "👀"

// rehydrateLimit caps how far a reply chain is walked to rebuild a
// conversation that fell out of memory.
const rehydrateLimit = 20

// Replier produces the AI answer for a conversation history.
type Replier interface {
	Reply(ctx context.Context, history []chat.Message, tc tool.Context) string
}

// Detector decides whether a chat message should trigger a sticker.
type Detector interface {
	Detect(ctx context.Context, content string, mentioned bool) (reply string, ok bool, err error)
}

// messenger is the slice of the discordgo session the message pipeline uses.
type messenger interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error
}

// Interactive drives the conversational side of the bot: mentions and
// replies go through the AI agent, everything else may trigger a sticker.
type Interactive struct {
	store    *conversation.Store
	agent    Replier
	detector Detector
	metrics  *observe.Metrics
	log      *slog.Logger
}

// InteractiveOption configures an [Interactive].
type InteractiveOption func(*Interactive)

// WithDetector enables sticker detection on non-conversation messages.
func WithDetector(d Detector) InteractiveOption {
	return func(h *Interactive) { h.detector = d }
}

// WithInteractiveLogger sets the logger; defaults to [slog.Default].
func WithInteractiveLogger(log *slog.Logger) InteractiveOption {
	return func(h *Interactive) { h.log = log }
}

// NewInteractive returns the message handler over store and agent.
func NewInteractive(store *conversation.Store, agent Replier, opts ...InteractiveOption) *Interactive {
	h := &Interactive{
		store:   store,
		agent:   agent,
		metrics: observe.DefaultMetrics(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// HandleMessage dispatches one gateway message event.
func (h *Interactive) HandleMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	var botID string
	if s.State != nil && s.State.User != nil {
		botID = s.State.User.ID
	}
	h.handle(ctx, s, botID, m.Message)
}

func (h *Interactive) handle(ctx context.Context, s messenger, botID string, m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if strings.Contains(m.Content, "@everyone") || strings.Contains(m.Content, "@here") {
		return
	}

	refID := referencedMessageID(m)
	if refID != "" {
		if sessionID, ok := h.store.SessionIDFromReply(refID); ok {
			h.reply(ctx, s, botID, m, sessionID, false, "reply")
			return
		}
	}

	if mentionsUser(m.Mentions, botID) {
		sessionID := h.store.CreateSession(m.ID)
		h.reply(ctx, s, botID, m, sessionID, true, "mention")
		return
	}

	if refID != "" {
		h.rehydrate(ctx, s, botID, m)
		return
	}

	h.detect(ctx, s, m)
}

// reply runs one conversation turn: record the user message, ask the agent
// and post the answer as a Discord reply linked back into the session.
func (h *Interactive) reply(ctx context.Context, s messenger, botID string, m *discordgo.Message, sessionID string, stripMention bool, kind string) {
	content := strings.TrimSpace(m.Content)
	if stripMention {
		content = stripUserMention(m.Content, botID)
	}
	if content == "" {
		return
	}

	reacted := h.addReaction(s, m)
	defer func() {
		if reacted {
			h.removeReaction(s, m)
		}
	}()

	h.store.AddUserMessage(sessionID, content)
	text := h.agent.Reply(ctx, h.store.Messages(sessionID), tool.Context{
		GuildID: m.GuildID,
		UserID:  m.Author.ID,
	})

	send := messageSend(text)
	send.Reference = m.Reference()
	sent, err := s.ChannelMessageSendComplex(m.ChannelID, send)
	if err != nil {
		h.log.Error("discord: send reply", "error", err)
		return
	}
	h.store.AddAssistantMessage(sessionID, text, sent.ID)
	h.metrics.RecordMessageHandled(ctx, kind)
}

// rehydrate rebuilds a conversation from the reply chain of a message whose
// session fell out of memory, then answers it.
func (h *Interactive) rehydrate(ctx context.Context, s messenger, botID string, m *discordgo.Message) {
	var chain []*discordgo.Message
	currentID := referencedMessageID(m)
	for currentID != "" && len(chain) < rehydrateLimit {
		fetched, err := s.ChannelMessage(m.ChannelID, currentID)
		if err != nil {
			break
		}
		chain = append(chain, fetched)
		currentID = referencedMessageID(fetched)
	}
	if len(chain) == 0 {
		return
	}

	// The chain was walked newest to oldest; the oldest message keys the
	// session so a second rehydration of the same thread reuses it.
	var (
		messages    []chat.Message
		externalIDs []string
	)
	for i := len(chain) - 1; i >= 0; i-- {
		item := chain[i]
		externalIDs = append(externalIDs, item.ID)
		if item.Author == nil {
			continue
		}
		if item.Author.Bot {
			if content := strings.TrimSpace(item.Content); content != "" {
				messages = append(messages, chat.AssistantMessage(content))
			}
			continue
		}
		if content := stripUserMention(item.Content, botID); content != "" {
			messages = append(messages, chat.UserMessage(content))
		}
	}

	sessionID := chain[len(chain)-1].ID
	h.store.EnsureSession(sessionID, messages, externalIDs)
	h.reply(ctx, s, botID, m, sessionID, false, "rehydrated")
}

// detect runs sticker detection on messages that did not enter a
// conversation.
func (h *Interactive) detect(ctx context.Context, s messenger, m *discordgo.Message) {
	if h.detector == nil {
		return
	}
	reply, ok, err := h.detector.Detect(ctx, m.Content, len(m.Mentions) > 0)
	if err != nil {
		h.log.Error("discord: sticker detection", "error", err)
		return
	}
	if !ok {
		return
	}
	send := &discordgo.MessageSend{Content: reply, Reference: m.Reference()}
	if _, err := s.ChannelMessageSendComplex(m.ChannelID, send); err != nil {
		h.log.Error("discord: send sticker", "error", err)
		return
	}
	h.metrics.RecordMessageHandled(ctx, "sticker")
}

// addReaction adds the processing marker; failures (missing permission) are
// swallowed.
func (h *Interactive) addReaction(s messenger, m *discordgo.Message) bool {
	if err := s.MessageReactionAdd(m.ChannelID, m.ID, processingEmoji); err != nil {
		h.log.Debug("discord: add reaction", "error", err)
		return false
	}
	return true
}

func (h *Interactive) removeReaction(s messenger, m *discordgo.Message) {
	if err := s.MessageReactionRemove(m.ChannelID, m.ID, processingEmoji, "@me"); err != nil {
		h.log.Debug("discord: remove reaction", "error", err)
	}
}

func referencedMessageID(m *discordgo.Message) string {
	if m.MessageReference == nil {
		return ""
	}
	return m.MessageReference.MessageID
}

func mentionsUser(mentions []*discordgo.User, userID string) bool {
	if userID == "" {
		return false
	}
	for _, u := range mentions {
		if u != nil && u.ID == userID {
			return true
		}
	}
	return false
}

// stripUserMention removes the bot's mention tokens and trims the remainder.
func stripUserMention(content, userID string) string {
	if userID == "" {
		return strings.TrimSpace(content)
	}
	content = strings.ReplaceAll(content, "<@"+userID+">", "")
	content = strings.ReplaceAll(content, "<@!"+userID+">", "")
	return strings.TrimSpace(content)
}
