package discord

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/butler/internal/tool"
)

func testRegistry() *tool.Registry {
	reg := tool.NewRegistry()
	echo := func(name string) tool.Handler {
		return func(_ context.Context, args tool.Args, tc tool.Context) (string, error) {
			return fmt.Sprintf("%s key=%s value=%s guild=%s", name, args.String("key"), args.String("value"), tc.GuildID), nil
		}
	}
	reg.Register(tool.Tool{
		Name:        "butler.memo.get",
		Description: "メモを取得する。",
		Arguments:   []tool.Argument{{Name: "key", Description: "メモのキー", Required: true}},
		Handler:     echo("get"),
	})
	reg.Register(tool.Tool{
		Name:        "butler.memo.set",
		Description: "メモを設定する。",
		Arguments: []tool.Argument{
			{Name: "key", Description: "メモのキー", Required: true},
			{Name: "value", Description: "メモの値", Required: true},
		},
		Handler: echo("set"),
	})
	reg.Register(tool.Tool{
		Name:        "butler.memo.help",
		Description: "メモ機能のヘルプを表示する。",
		Handler:     echo("help"),
	})
	reg.Register(tool.Tool{
		Name:        "butler.wiki.summary",
		Description: "Wikipediaの概要を取得する。",
		Arguments:   []tool.Argument{{Name: "word", Description: "検索する単語", Required: true}},
		Handler: func(_ context.Context, args tool.Args, _ tool.Context) (string, error) {
			return "summary:" + args.String("word"), nil
		},
	})
	reg.Register(tool.Tool{
		Name:        "event-reminder",
		Description: "イベントとリマインドを登録する(不足項目は可能な範囲で自動補完する)",
		Arguments:   []tool.Argument{{Name: "name", Description: "イベント名", Required: true}},
		Handler:     echo("event"),
	})
	return reg
}

// ---- slash command registration ----

func TestApplicationCommands(t *testing.T) {
	r := NewRouter(testRegistry(), WithSlashAlias("add-event", "event-reminder"))

	commands := r.ApplicationCommands()
	if len(commands) != 2 {
		t.Fatalf("commands = %d, want 2", len(commands))
	}

	butler := commands[0]
	if butler.Name != "butler" {
		t.Fatalf("first command = %q", butler.Name)
	}
	if len(butler.Options) != 2 {
		t.Fatalf("groups = %d, want memo and wiki", len(butler.Options))
	}
	memo := butler.Options[0]
	if memo.Name != "memo" || memo.Type != discordgo.ApplicationCommandOptionSubCommandGroup {
		t.Errorf("group = %+v", memo)
	}
	if len(memo.Options) != 3 {
		t.Errorf("memo subcommands = %d", len(memo.Options))
	}
	set := memo.Options[1]
	if set.Name != "set" || len(set.Options) != 2 || set.Options[0].Name != "key" {
		t.Errorf("set subcommand = %+v", set)
	}

	alias := commands[1]
	if alias.Name != "add-event" || len(alias.Options) != 1 {
		t.Errorf("alias command = %+v", alias)
	}
}

// ---- interaction resolution ----

func TestResolveInteraction(t *testing.T) {
	r := NewRouter(testRegistry(), WithSlashAlias("add-event", "event-reminder"))

	data := discordgo.ApplicationCommandInteractionData{
		Name: "butler",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{{
			Name: "memo",
			Type: discordgo.ApplicationCommandOptionSubCommandGroup,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name: "set",
				Type: discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "key", Type: discordgo.ApplicationCommandOptionString, Value: "買い物"},
					{Name: "value", Type: discordgo.ApplicationCommandOptionString, Value: "牛乳"},
				},
			}},
		}},
	}

	name, args := r.resolveInteraction(data)
	if name != "butler.memo.set" {
		t.Errorf("tool = %q", name)
	}
	if args["key"] != "買い物" || args["value"] != "牛乳" {
		t.Errorf("args = %+v", args)
	}
}

func TestResolveInteractionAlias(t *testing.T) {
	r := NewRouter(testRegistry(), WithSlashAlias("add-event", "event-reminder"))

	data := discordgo.ApplicationCommandInteractionData{
		Name: "add-event",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "name", Type: discordgo.ApplicationCommandOptionString, Value: "飲み会"},
		},
	}

	name, args := r.resolveInteraction(data)
	if name != "event-reminder" {
		t.Errorf("tool = %q", name)
	}
	if args["name"] != "飲み会" {
		t.Errorf("args = %+v", args)
	}
}

func TestResolveInteractionUnknown(t *testing.T) {
	r := NewRouter(testRegistry())
	if name, _ := r.resolveInteraction(discordgo.ApplicationCommandInteractionData{Name: "other"}); name != "" {
		t.Errorf("resolved unknown command to %q", name)
	}
}

// ---- prefix commands ----

func prefixMessage(content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "m1",
		ChannelID: "ch1",
		GuildID:   "g1",
		Content:   content,
		Author:    &discordgo.User{ID: "user1"},
	}
}

func TestPrefixCommand(t *testing.T) {
	r := NewRouter(testRegistry())
	msgr := newFakeMessenger()

	handled := r.handleMessage(context.Background(), msgr, prefixMessage("!memo.set 買い物 牛乳 と 卵"))
	if !handled {
		t.Fatal("command not handled")
	}
	if len(msgr.sent) != 1 {
		t.Fatalf("sent = %d messages", len(msgr.sent))
	}
	if msgr.sent[0].Content != "set key=買い物 value=牛乳 と 卵 guild=g1" {
		t.Errorf("result = %q", msgr.sent[0].Content)
	}
}

func TestPrefixBareNameAliasesToHelp(t *testing.T) {
	r := NewRouter(testRegistry())
	msgr := newFakeMessenger()

	if !r.handleMessage(context.Background(), msgr, prefixMessage("!memo")) {
		t.Fatal("command not handled")
	}
	if msgr.sent[0].Content != "help key= value= guild=g1" {
		t.Errorf("result = %q", msgr.sent[0].Content)
	}
}

func TestPrefixWikiWordLooksUpSummary(t *testing.T) {
	r := NewRouter(testRegistry())
	msgr := newFakeMessenger()

	if !r.handleMessage(context.Background(), msgr, prefixMessage("!wiki Go 言語")) {
		t.Fatal("command not handled")
	}
	if msgr.sent[0].Content != "summary:Go 言語" {
		t.Errorf("result = %q", msgr.sent[0].Content)
	}
}

func TestPrefixUnknownCommandIgnored(t *testing.T) {
	r := NewRouter(testRegistry())
	msgr := newFakeMessenger()

	if r.handleMessage(context.Background(), msgr, prefixMessage("!unknown.cmd")) {
		t.Error("unknown command handled")
	}
	if r.handleMessage(context.Background(), msgr, prefixMessage("普通の発言")) {
		t.Error("plain message handled")
	}
	if len(msgr.sent) != 0 {
		t.Errorf("sent = %+v", msgr.sent)
	}
}

// ---- long output ----

func TestMessageSendAttachesLongContent(t *testing.T) {
	short := messageSend("短い")
	if short.Content != "短い" || len(short.Files) != 0 {
		t.Errorf("short = %+v", short)
	}

	long := make([]rune, maxMessageLength+1)
	for i := range long {
		long[i] = 'あ'
	}
	send := messageSend(string(long))
	if send.Content != attachmentNotice {
		t.Errorf("content = %q", send.Content)
	}
	if len(send.Files) != 1 || send.Files[0].Name != "result.md" {
		t.Errorf("files = %+v", send.Files)
	}
}
