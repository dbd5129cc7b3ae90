// Package memo implements the key/value memo feature: short titled notes
// stored in SQLite, exposed as tools and chat commands.
package memo

import (
	"context"
	"fmt"

	"github.com/MrWong99/butler/internal/pretty"
	"github.com/MrWong99/butler/internal/storage"
	"github.com/MrWong99/butler/internal/tool"
)

var helpText = pretty.HelpList(
	"`!memo` コマンド - タイトルと本文のセットからなるメモを 登録/読取り/更新/削除 する機能",
	pretty.Item{Name: "!memo.get hoge", Value: "`\"hoge\"`の値を取得します"},
	pretty.Item{Name: "!memo.set hoge foo", Value: "`\"hoge\"` に値として `\"foo\"` を設定します(値はマークダウンや改行が可能)"},
	pretty.Item{Name: "!memo.remove hoge", Value: "設定済の `\"hoge\"` の値を削除します"},
	pretty.Item{Name: "!memo.list", Value: "メモされた値をすべて表示します"},
	pretty.Item{Name: "!memo.help", Value: "`!memo` コマンドのヘルプを表示します(エイリアス: `!memo`)"},
)

// Service exposes memo operations with user-facing Japanese result strings.
type Service struct {
	store *storage.MemoStore
}

// New returns a memo service over store.
func New(store *storage.MemoStore) *Service {
	return &Service{store: store}
}

// Get returns the memo under key rendered for the user.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	value, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("**%s** は設定されていません:cry:", key), nil
	}
	if value == "" {
		return fmt.Sprintf("**%s**\n値は空です:ghost:", key), nil
	}
	return fmt.Sprintf("**%s**\n%s", key, pretty.Code(value, "")), nil
}

// Set stores value under key, overwriting any previous value.
func (s *Service) Set(ctx context.Context, key, value string) (string, error) {
	if err := s.store.Set(ctx, key, value); err != nil {
		return "", err
	}
	if value == "" {
		return fmt.Sprintf("**%s** とメモしました:cat:", key), nil
	}
	return fmt.Sprintf("**%s** に次の内容をメモしました:wink:\n%s", key, pretty.Code(value, "")), nil
}

// Remove deletes the memo under key.
func (s *Service) Remove(ctx context.Context, key string) (string, error) {
	value, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("**%s** は設定されていません:cry:", key), nil
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return "", err
	}
	out := fmt.Sprintf("**%s** を削除しました:wave:", key)
	if value != "" {
		out += "\n" + pretty.Code(value, "")
	}
	return out, nil
}

// List renders every memo as a markdown list.
func (s *Service) List(ctx context.Context) (string, error) {
	memos, err := s.store.All(ctx)
	if err != nil {
		return "", err
	}
	items := make([]pretty.Item, 0, len(memos))
	for _, m := range memos {
		items = append(items, pretty.Item{Name: m.Key, Value: m.Value})
	}
	if out := pretty.MarkdownList("", items...); out != "" {
		return out, nil
	}
	return "Memoは一つもありません:snail:", nil
}

// Help returns the command help text.
func (s *Service) Help() string {
	return helpText
}

// Register adds the memo tools to reg.
func (s *Service) Register(reg *tool.Registry) {
	keyArg := tool.Argument{Name: "key", Description: "メモのキー", Required: true}

	reg.Register(tool.Tool{
		Name:        "butler.memo.get",
		Description: "メモを取得する。",
		Arguments:   []tool.Argument{keyArg},
		Handler: func(ctx context.Context, args tool.Args, _ tool.Context) (string, error) {
			return s.Get(ctx, args.String("key"))
		},
	})
	reg.Register(tool.Tool{
		Name:        "butler.memo.set",
		Description: "メモを登録/更新する。",
		Arguments: []tool.Argument{
			keyArg,
			{Name: "value", Description: "メモの本文", Required: true},
		},
		Handler: func(ctx context.Context, args tool.Args, _ tool.Context) (string, error) {
			return s.Set(ctx, args.String("key"), args.String("value"))
		},
	})
	reg.Register(tool.Tool{
		Name:        "butler.memo.remove",
		Description: "メモを削除する。",
		Arguments:   []tool.Argument{keyArg},
		Handler: func(ctx context.Context, args tool.Args, _ tool.Context) (string, error) {
			return s.Remove(ctx, args.String("key"))
		},
	})
	reg.Register(tool.Tool{
		Name:        "butler.memo.list",
		Description: "メモを一覧する。",
		Handler: func(ctx context.Context, _ tool.Args, _ tool.Context) (string, error) {
			return s.List(ctx)
		},
	})
	reg.Register(tool.Tool{
		Name:        "butler.memo.help",
		Description: "メモ機能のヘルプを表示する。",
		Handler: func(ctx context.Context, _ tool.Args, _ tool.Context) (string, error) {
			return s.Help(), nil
		},
	})
}
