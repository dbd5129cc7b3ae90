// Package sticker implements the chat-watching sticker feature: image URLs
// registered against regular expressions, posted when a chat message matches.
package sticker

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/MrWong99/butler/internal/pretty"
	"github.com/MrWong99/butler/internal/storage"
	"github.com/MrWong99/butler/internal/tool"
)

const (
	maxRegexpLength = 120

	// maxTargetLength caps how much of a chat message is matched against the
	// registered patterns.
	maxTargetLength = 500
)

var helpText = pretty.HelpList(
	"`/butler sticker` コマンド - チャットを監視して、正規表現にマッチしたスタンプ画像を表示する機能",
	pretty.Item{
		Name:  "/butler sticker set url:http://example.com/hoge.jpg regexp:/abc/",
		Value: "`http://example.com/hoge.jpg` に正規表現 `/abc/` を設定(新規追加/上書き)します",
	},
	pretty.Item{
		Name:  "/butler sticker remove url:http://example.com/hoge.jpg",
		Value: "`http://example.com/hoge.jpg` が設定されていれば削除します",
	},
	pretty.Item{Name: "/butler sticker list", Value: "登録されている値を一覧します"},
	pretty.Item{Name: "/butler sticker help", Value: "`/butler sticker` コマンドのヘルプを表示します"},
)

// validateRegexp normalises and checks a user-supplied pattern. It returns
// the normalised pattern, or a user-facing Japanese error string when the
// input is unusable.
func validateRegexp(input string) (value, errText string) {
	normalized := strings.TrimSpace(input)
	normalized = strings.TrimPrefix(normalized, "/")
	normalized = strings.TrimSuffix(normalized, "/")
	if normalized == "" {
		return "", "正規表現が空です。"
	}
	if len([]rune(normalized)) > maxRegexpLength {
		return "", fmt.Sprintf("正規表現が長すぎます(最大%d文字)。", maxRegexpLength)
	}
	if _, err := regexp.Compile(normalized); err != nil {
		return "", "正規表現の形式が不正です。"
	}
	return normalized, ""
}

// Service exposes sticker CRUD and passive chat detection. Safe for
// concurrent use; the detection rate can be swapped at runtime.
type Service struct {
	store *storage.StickerStore

	// rateBits holds the detection probability as float64 bits so config
	// hot-reloads can update it without a lock.
	rateBits atomic.Uint64

	// randFn is a test hook for the detection gate and the match picker.
	randFn func() float64
}

// New returns a sticker service over store with the given detection rate.
func New(store *storage.StickerStore, detectRate float64) *Service {
	s := &Service{store: store, randFn: rand.Float64}
	s.SetDetectRate(detectRate)
	return s
}

// SetDetectRate updates the probability in [0, 1] that a matching message
// triggers a sticker.
func (s *Service) SetDetectRate(rate float64) {
	s.rateBits.Store(math.Float64bits(rate))
}

func (s *Service) detectRate() float64 {
	return math.Float64frombits(s.rateBits.Load())
}

// Set registers regexpInput (after validation) against url.
func (s *Service) Set(ctx context.Context, url, regexpInput string) (string, error) {
	value, errText := validateRegexp(regexpInput)
	if errText != "" {
		return errText, nil
	}
	if err := s.store.Set(ctx, url, value); err != nil {
		return "", err
	}
	return fmt.Sprintf("**`%s`** に **`/%s/`** を設定しました:pleading_face:", url, value), nil
}

// Remove deletes the sticker registered under url.
func (s *Service) Remove(ctx context.Context, url string) (string, error) {
	st, ok, err := s.store.Get(ctx, url)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("**%s** は設定されていません:cry:", url), nil
	}
	if err := s.store.Delete(ctx, url); err != nil {
		return "", err
	}
	out := fmt.Sprintf("**%s** を削除しました:wave:", url)
	if st.Regexp != "" {
		out += "\n" + pretty.Code(st.Regexp, "")
	}
	return out, nil
}

// List renders every registered sticker.
func (s *Service) List(ctx context.Context) (string, error) {
	stickers, err := s.store.All(ctx)
	if err != nil {
		return "", err
	}
	items := make([]pretty.Item, 0, len(stickers))
	for _, st := range stickers {
		items = append(items, pretty.Item{Name: st.URL, Value: st.Regexp})
	}
	if out := pretty.MarkdownList("", items...); out != "" {
		return out, nil
	}
	return "Stickerは一つもありません:drum:", nil
}

// Help returns the command help text.
func (s *Service) Help() string {
	return helpText
}

// Detect decides whether content should trigger a sticker and returns the
// reply to post. Messages that mention the bot or carry a URL never trigger;
// the remainder pass a random gate before matching. ok is false when nothing
// should be sent.
func (s *Service) Detect(ctx context.Context, content string, mentioned bool) (reply string, ok bool, err error) {
	if mentioned || strings.Contains(content, "http") {
		return "", false, nil
	}
	if s.randFn() >= s.detectRate() {
		return "", false, nil
	}

	stickers, err := s.store.All(ctx)
	if err != nil {
		return "", false, err
	}

	target := content
	if runes := []rune(target); len(runes) > maxTargetLength {
		target = string(runes[:maxTargetLength])
	}

	var matches []storage.Sticker
	for _, st := range stickers {
		re, err := regexp.Compile(st.Regexp)
		if err != nil {
			continue
		}
		if re.MatchString(target) {
			matches = append(matches, st)
		}
	}
	if len(matches) == 0 {
		return "", false, nil
	}

	picked := matches[int(s.randFn()*float64(len(matches)))%len(matches)]
	return fmt.Sprintf("%s ||/%s/||", picked.URL, picked.Regexp), true, nil
}

// Register adds the sticker tools to reg.
func (s *Service) Register(reg *tool.Registry) {
	urlArg := tool.Argument{Name: "url", Description: "スタンプのURL", Required: true}

	reg.Register(tool.Tool{
		Name:        "butler.sticker.set",
		Description: "スタンプを登録/更新する。",
		Arguments: []tool.Argument{
			urlArg,
			{Name: "regexp", Description: "マッチする正規表現", Required: true},
		},
		Handler: func(ctx context.Context, args tool.Args, _ tool.Context) (string, error) {
			return s.Set(ctx, args.String("url"), args.String("regexp"))
		},
	})
	reg.Register(tool.Tool{
		Name:        "butler.sticker.remove",
		Description: "スタンプを削除する。",
		Arguments:   []tool.Argument{urlArg},
		Handler: func(ctx context.Context, args tool.Args, _ tool.Context) (string, error) {
			return s.Remove(ctx, args.String("url"))
		},
	})
	reg.Register(tool.Tool{
		Name:        "butler.sticker.list",
		Description: "スタンプを一覧する。",
		Handler: func(ctx context.Context, _ tool.Args, _ tool.Context) (string, error) {
			return s.List(ctx)
		},
	})
	reg.Register(tool.Tool{
		Name:        "butler.sticker.help",
		Description: "スタンプ機能のヘルプを表示する。",
		Handler: func(ctx context.Context, _ tool.Args, _ tool.Context) (string, error) {
			return s.Help(), nil
		},
	})
}
