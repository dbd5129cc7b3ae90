// Package chat defines the provider-neutral conversation model shared by all
// AI chat backends.
//
// A chat provider wraps one vendor's HTTP chat-completion API (OpenAI, Claude,
// Gemini, or Cloudflare Workers AI) and exposes a uniform [Provider] interface
// so that the agent loop can send conversation history plus a tool catalog and
// receive either a final text answer or a list of requested tool calls, without
// coupling to any vendor's wire format.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package chat

import "context"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// FallbackText is returned whenever a vendor response contains neither usable
// tool calls nor extractable text, so callers never have to special-case an
// empty reply. The wording is part of the bot's user-visible behaviour.
const FallbackText = "AIの応答が取得できませんでした。"

// ToolCall is a model-issued request to invoke a named tool.
type ToolCall struct {
	// ID correlates the call with its result message. Some vendors omit it;
	// the agent assigns a generated id before dispatching such calls.
	ID string

	// Name is the tool name as declared in the catalog.
	Name string

	// Arguments is the open string-keyed argument map. Tool schemas are
	// registered by plugins at wiring time, so no fixed struct can model it.
	Arguments map[string]any
}

// Property describes one tool parameter. All declared parameters are strings;
// numeric or boolean semantics are encoded as strings and parsed by the tool
// handler. This keeps the schema translatable across every vendor dialect.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Parameters is the JSON-Schema object describing a tool's inputs.
type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition is the vendor-neutral schema of one tool offered to the model.
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

// Message is one turn in a conversation. It is a discriminated union:
//
//   - a plain text turn has Role system/user/assistant and Content set;
//   - an assistant tool-call turn has Role assistant and ToolCall set
//     (Content empty);
//   - a tool-result turn has Role tool, ToolName, optionally ToolCallID, and
//     Result set.
//
// Order is significant: vendors require an assistant tool-call turn to
// immediately precede its matching tool-result turn.
type Message struct {
	Role    Role
	Content string

	// ToolCall is set on assistant turns that request a tool invocation.
	ToolCall *ToolCall

	// ToolName, ToolCallID and Result are set on tool-result turns.
	// ToolCallID must match the requesting call's id on vendors that
	// correlate by id (OpenAI-style); Gemini correlates by name only.
	ToolName   string
	ToolCallID string
	Result     map[string]any
}

// SystemMessage returns a system-role text turn.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user-role text turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns an assistant-role text turn.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolCallMessage returns an assistant turn carrying a tool invocation request.
func ToolCallMessage(call ToolCall) Message {
	return Message{Role: RoleAssistant, ToolCall: &call}
}

// ToolResultMessage returns a tool-result turn keyed back to the requesting call.
func ToolResultMessage(toolName, toolCallID string, result map[string]any) Message {
	return Message{Role: RoleTool, ToolName: toolName, ToolCallID: toolCallID, Result: result}
}

// GenerateRequest carries the conversation history and the tool catalog for
// one provider call.
type GenerateRequest struct {
	Messages []Message
	Tools    []ToolDefinition
}

// GenerateResponse is the provider-neutral result of one generation. Exactly
// one of Content and ToolCalls is meaningful: when the model decided to invoke
// tools, ToolCalls is non-empty and Content is empty; otherwise Content holds
// the final text answer (or [FallbackText]).
type GenerateResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// Provider is the abstraction over one vendor's chat-completion API.
//
// Implementations hide all wire-format differences and perform their own
// bounded retry for transient failures. They must be safe for concurrent use.
type Provider interface {
	// Generate sends the conversation and tool catalog to the model and
	// returns its reply. Malformed vendor responses are handled defensively
	// (empty argument maps, discarded nameless calls) rather than surfaced
	// as errors; errors are reserved for transport and vendor failures.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}
