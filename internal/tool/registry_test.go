package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/butler/pkg/provider/chat"
)

func TestRegistry_Definitions(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{
		Name:        "butler.memo.set",
		Description: "メモを登録/更新する。",
		Arguments: []Argument{
			{Name: "key", Description: "メモのキー", Required: true},
			{Name: "value", Description: "メモの本文", Required: true},
		},
	})
	r.Register(Tool{
		Name:        "butler.memo.list",
		Description: "メモを一覧する。",
	})

	defs := r.Definitions()
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}

	set := defs[0]
	if set.Name != "butler.memo.set" {
		t.Errorf("Name = %q", set.Name)
	}
	if set.Parameters.Type != "object" {
		t.Errorf("Parameters.Type = %q", set.Parameters.Type)
	}
	if prop, ok := set.Parameters.Properties["key"]; !ok || prop.Type != "string" || prop.Description != "メモのキー" {
		t.Errorf("key property = %+v", prop)
	}
	if len(set.Parameters.Required) != 2 {
		t.Errorf("Required = %v", set.Parameters.Required)
	}

	list := defs[1]
	if len(list.Parameters.Properties) != 0 {
		t.Errorf("argless tool properties = %v", list.Parameters.Properties)
	}
	if len(list.Parameters.Required) != 0 {
		t.Errorf("argless tool required = %v", list.Parameters.Required)
	}
}

func TestRegistry_DefinitionsAppendAIHint(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{
		Name:        "event-reminder",
		Description: "イベントとリマインドを登録する",
		AIHint:      "不足情報は推測で補う",
	})
	defs := r.Definitions()
	want := "イベントとリマインドを登録する(AI方針: 不足情報は推測で補う)"
	if defs[0].Description != want {
		t.Errorf("Description = %q, want %q", defs[0].Description, want)
	}
}

func TestRegistry_RegisterReplacesByName(t *testing.T) {
	r := NewRegistry()
	r.Register(Tool{Name: "a", Description: "first"})
	r.Register(Tool{Name: "b", Description: "second"})
	r.Register(Tool{Name: "a", Description: "replaced"})

	tools := r.Tools()
	if len(tools) != 2 {
		t.Fatalf("got %d tools, want 2", len(tools))
	}
	if tools[0].Name != "a" || tools[0].Description != "replaced" {
		t.Errorf("tools[0] = %+v, want replaced in place", tools[0])
	}
	if tools[1].Name != "b" {
		t.Errorf("tools[1] = %+v", tools[1])
	}
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	var gotArgs Args
	var gotTC Context
	r.Register(Tool{
		Name: "butler.memo.get",
		Handler: func(ctx context.Context, args Args, tc Context) (string, error) {
			gotArgs = args
			gotTC = tc
			return "**hoge**\nfoo", nil
		},
	})

	out, err := r.Execute(context.Background(),
		chat.ToolCall{Name: "butler.memo.get", Arguments: map[string]any{"key": "hoge"}},
		Context{GuildID: "g1", UserID: "u1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "**hoge**\nfoo" {
		t.Errorf("out = %q", out)
	}
	if gotArgs.String("key") != "hoge" {
		t.Errorf("args = %v", gotArgs)
	}
	if gotTC.GuildID != "g1" || gotTC.UserID != "u1" {
		t.Errorf("context = %+v", gotTC)
	}
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	out, err := r.Execute(context.Background(), chat.ToolCall{Name: "nope"}, Context{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "未対応のコマンドです: nope" {
		t.Errorf("out = %q", out)
	}
}

func TestRegistry_ExecutePropagatesHandlerError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("db is gone")
	r.Register(Tool{
		Name: "broken",
		Handler: func(ctx context.Context, args Args, tc Context) (string, error) {
			return "", boom
		},
	})
	_, err := r.Execute(context.Background(), chat.ToolCall{Name: "broken"}, Context{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want handler error", err)
	}
}

func TestArgs_String(t *testing.T) {
	args := Args{
		"text":   "  hello  ",
		"number": float64(42),
		"flag":   true,
		"null":   nil,
	}
	if got := args.String("text"); got != "hello" {
		t.Errorf("text = %q", got)
	}
	if got := args.String("number"); got != "42" {
		t.Errorf("number = %q", got)
	}
	if got := args.String("flag"); got != "true" {
		t.Errorf("flag = %q", got)
	}
	if got := args.String("null"); got != "" {
		t.Errorf("null = %q", got)
	}
	if got := args.String("missing"); got != "" {
		t.Errorf("missing = %q", got)
	}
}
