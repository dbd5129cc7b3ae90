// Package tool is the shared tool registry behind both the /butler slash
// command and the AI agent.
//
// Features register their tools here at wiring time; the command router, the
// slash-command registrar and the agent loop all consume the same registry so
// every execution path sees an identical feature set.
package tool

import (
	"context"
	"fmt"

	"github.com/MrWong99/butler/pkg/provider/chat"
)

// Argument declares one string-typed tool parameter.
type Argument struct {
	Name        string
	Description string
	Required    bool
}

// Context carries the execution origin of a tool call. Fields may be empty
// when the call originates outside a guild (DMs, tests).
type Context struct {
	GuildID string
	UserID  string
}

// Handler executes one tool invocation. User-facing outcomes, including
// domain failures ("not found" and the like), are returned as the string;
// the error is reserved for infrastructure failures the agent should surface
// as an AI error.
type Handler func(ctx context.Context, args Args, tc Context) (string, error)

// Tool is one named capability exposed to Discord users and the AI.
type Tool struct {
	// Name identifies the tool; it doubles as the /butler subcommand name.
	Name string

	// Description is shown to users and sent to the model.
	Description string

	// AIHint optionally extends Description for the model only, guiding when
	// and how the AI should invoke the tool.
	AIHint string

	// Arguments declares the accepted parameters. All parameters are strings;
	// handlers parse richer semantics themselves.
	Arguments []Argument

	Handler Handler
}

// Registry maps tool names to their definitions and handlers. It is built
// once during application wiring and passed by reference wherever tools are
// consumed; it is not safe for concurrent mutation after startup.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t to the registry, replacing any tool with the same name
// while keeping its original position.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Tools returns all registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Definitions translates the registry into the provider-neutral tool catalog
// sent to the model. AI hints are appended to the description so they only
// influence the model, never the slash-command UI.
func (r *Registry) Definitions() []chat.ToolDefinition {
	defs := make([]chat.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		desc := t.Description
		if t.AIHint != "" {
			desc = fmt.Sprintf("%s(AI方針: %s)", desc, t.AIHint)
		}
		props := make(map[string]chat.Property, len(t.Arguments))
		var required []string
		for _, arg := range t.Arguments {
			props[arg.Name] = chat.Property{Type: "string", Description: arg.Description}
			if arg.Required {
				required = append(required, arg.Name)
			}
		}
		defs = append(defs, chat.ToolDefinition{
			Name:        t.Name,
			Description: desc,
			Parameters: chat.Parameters{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		})
	}
	return defs
}

// Execute runs the tool named by call. An unknown tool name yields a
// user-facing Japanese string, not an error, so a hallucinated tool call
// degrades into a normal reply.
func (r *Registry) Execute(ctx context.Context, call chat.ToolCall, tc Context) (string, error) {
	t, ok := r.tools[call.Name]
	if !ok || t.Handler == nil {
		return fmt.Sprintf("未対応のコマンドです: %s", call.Name), nil
	}
	return t.Handler(ctx, Args(call.Arguments), tc)
}
