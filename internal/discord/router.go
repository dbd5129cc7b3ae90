package discord

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/butler/internal/feature/wiki"
	"github.com/MrWong99/butler/internal/tool"
	"github.com/MrWong99/butler/pkg/provider/chat"
)

// butlerCommand is the umbrella slash command carrying the dotted tools as
// subcommand groups ("butler.memo.get" becomes "/butler memo get").
const butlerCommand = "butler"

// commandFailedText answers a prefix or slash command whose handler failed.
const commandFailedText = "コマンドの実行に失敗しました。"

// prefixRe matches "!memo.get", "!wiki" style chat commands and captures the
// command name and the raw argument tail.
var prefixRe = regexp.MustCompile(`^!([a-z]+(?:\.[a-z]+)?)(?:\s+(.+))?$`)

// Router translates prefix commands and slash interactions into tool
// registry calls.
type Router struct {
	registry *tool.Registry

	// aliases maps a top-level slash command name to a tool name, for tools
	// whose registry name does not fit the slash UI ("event-reminder" is
	// exposed as "/add-event").
	aliases map[string]string

	log *slog.Logger
}

// RouterOption configures a [Router].
type RouterOption func(*Router)

// WithSlashAlias exposes toolName as its own top-level slash command.
func WithSlashAlias(commandName, toolName string) RouterOption {
	return func(r *Router) { r.aliases[commandName] = toolName }
}

// WithRouterLogger sets the logger; defaults to [slog.Default].
func WithRouterLogger(log *slog.Logger) RouterOption {
	return func(r *Router) { r.log = log }
}

// NewRouter returns a router over registry.
func NewRouter(registry *tool.Registry, opts ...RouterOption) *Router {
	r := &Router{
		registry: registry,
		aliases:  make(map[string]string),
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ApplicationCommands builds the slash command set to register: one /butler
// command grouping every dotted tool, plus one top-level command per alias.
func (r *Router) ApplicationCommands() []*discordgo.ApplicationCommand {
	groups := make(map[string]*discordgo.ApplicationCommandOption)
	var groupOrder []string

	for _, t := range r.registry.Tools() {
		parts := strings.Split(t.Name, ".")
		if len(parts) != 3 || parts[0] != butlerCommand {
			continue
		}
		group, ok := groups[parts[1]]
		if !ok {
			group = &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
				Name:        parts[1],
				Description: parts[1] + " 機能",
			}
			groups[parts[1]] = group
			groupOrder = append(groupOrder, parts[1])
		}
		group.Options = append(group.Options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        parts[2],
			Description: t.Description,
			Options:     argumentOptions(t.Arguments),
		})
	}

	butler := &discordgo.ApplicationCommand{
		Name:        butlerCommand,
		Description: "butlerを呼び出す",
	}
	for _, name := range groupOrder {
		butler.Options = append(butler.Options, groups[name])
	}
	commands := []*discordgo.ApplicationCommand{butler}

	for _, t := range r.registry.Tools() {
		for alias, toolName := range r.aliases {
			if t.Name != toolName {
				continue
			}
			commands = append(commands, &discordgo.ApplicationCommand{
				Name:        alias,
				Description: t.Description,
				Options:     argumentOptions(t.Arguments),
			})
		}
	}
	return commands
}

func argumentOptions(args []tool.Argument) []*discordgo.ApplicationCommandOption {
	opts := make([]*discordgo.ApplicationCommandOption, 0, len(args))
	for _, arg := range args {
		opts = append(opts, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        arg.Name,
			Description: arg.Description,
			Required:    arg.Required,
		})
	}
	return opts
}

// HandleInteraction executes the tool behind a slash command interaction.
func (r *Router) HandleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	toolName, args := r.resolveInteraction(data)
	if toolName == "" {
		return
	}

	out, err := r.registry.Execute(ctx, chat.ToolCall{Name: toolName, Arguments: args}, tool.Context{
		GuildID: i.GuildID,
		UserID:  interactionUserID(i),
	})
	if err != nil {
		r.log.Error("discord: slash command", "tool", toolName, "error", err)
		out = commandFailedText
	}
	if err := s.InteractionRespond(i.Interaction, interactionResponse(out)); err != nil {
		r.log.Error("discord: interaction respond", "tool", toolName, "error", err)
	}
}

// resolveInteraction maps interaction data onto a tool name and arguments.
func (r *Router) resolveInteraction(data discordgo.ApplicationCommandInteractionData) (string, map[string]any) {
	if toolName, ok := r.aliases[data.Name]; ok {
		return toolName, optionArgs(data.Options)
	}
	if data.Name != butlerCommand || len(data.Options) == 0 {
		return "", nil
	}

	group := data.Options[0]
	if group.Type != discordgo.ApplicationCommandOptionSubCommandGroup || len(group.Options) == 0 {
		return "", nil
	}
	sub := group.Options[0]
	return strings.Join([]string{butlerCommand, group.Name, sub.Name}, "."), optionArgs(sub.Options)
}

func optionArgs(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]any {
	args := make(map[string]any, len(opts))
	for _, opt := range opts {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			args[opt.Name] = opt.StringValue()
		}
	}
	return args
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// HandleMessage executes "!"-prefixed chat commands. It reports whether the
// message was consumed so the caller can skip the conversation pipeline.
func (r *Router) HandleMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if m.Author == nil || m.Author.Bot {
		return false
	}
	return r.handleMessage(ctx, s, m.Message)
}

func (r *Router) handleMessage(ctx context.Context, s messenger, m *discordgo.Message) bool {
	match := prefixRe.FindStringSubmatch(strings.TrimSpace(m.Content))
	if match == nil {
		return false
	}

	toolName := r.resolvePrefix(match[1], match[2])
	t, ok := r.lookup(toolName)
	if !ok {
		return false
	}

	out, err := r.registry.Execute(ctx, chat.ToolCall{
		Name:      toolName,
		Arguments: positionalArgs(t.Arguments, match[2]),
	}, tool.Context{GuildID: m.GuildID, UserID: m.Author.ID})
	if err != nil {
		r.log.Error("discord: prefix command", "tool", toolName, "error", err)
		out = commandFailedText
		if strings.HasPrefix(toolName, "butler.wiki.") {
			out = wiki.ErrorText
		}
	}

	send := messageSend(out)
	send.Reference = m.Reference()
	if _, err := s.ChannelMessageSendComplex(m.ChannelID, send); err != nil {
		r.log.Error("discord: send command result", "tool", toolName, "error", err)
	}
	return true
}

// resolvePrefix maps a bare "!name" onto a dotted tool name. Bare feature
// names alias to their help tool, except "!wiki <word>" which looks the word
// up directly.
func (r *Router) resolvePrefix(name, rest string) string {
	if strings.Contains(name, ".") {
		return butlerCommand + "." + name
	}
	if name == "wiki" && strings.TrimSpace(rest) != "" {
		return "butler.wiki.summary"
	}
	return butlerCommand + "." + name + ".help"
}

func (r *Router) lookup(name string) (tool.Tool, bool) {
	for _, t := range r.registry.Tools() {
		if t.Name == name {
			return t, true
		}
	}
	return tool.Tool{}, false
}

// positionalArgs assigns whitespace-separated words to the declared
// arguments in order; the final argument swallows the remaining text so
// values may contain spaces.
func positionalArgs(decl []tool.Argument, rest string) map[string]any {
	args := make(map[string]any, len(decl))
	fields := strings.Fields(rest)
	for i, arg := range decl {
		if i >= len(fields) {
			break
		}
		if i == len(decl)-1 {
			args[arg.Name] = strings.Join(fields[i:], " ")
			break
		}
		args[arg.Name] = fields[i]
	}
	return args
}
