// Package wiki looks up article summaries on the Japanese Wikipedia through
// the MediaWiki API and renders them for chat.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/MrWong99/butler/internal/pretty"
	"github.com/MrWong99/butler/internal/tool"
)

const (
	// DefaultHost is the Wikipedia instance queried for summaries.
	DefaultHost = "https://ja.wikipedia.org/"

	query = "w/api.php?format=json&action=query&prop=extracts&exintro&explaintext&redirects=1&titles="
)

// FailText renders a lookup that reached Wikipedia but found no article.
const FailText = "`%s` はWikipediaで検索できませんでした:smiling_face_with_tear:"

// ErrorText is shown when the Wikipedia request itself failed.
const ErrorText = "検索に失敗しました:smiling_face_with_tear: Wikipediaのサーバーに何かあったかもしれません:pleading_face:"

var helpText = pretty.HelpList(
	"`!wiki` コマンド - 指定した言葉の概要を、Wikipediaから引用して表示する機能",
	pretty.Item{Name: "!wiki hoge", Value: "Wikipediaから`\"hoge\"`のサマリーを取得し、引用します"},
	pretty.Item{Name: "!wiki.help", Value: "`!wiki` コマンドのヘルプを表示します(エイリアス: `!wiki`)"},
)

type apiResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID  int    `json:"pageid"`
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Client queries one Wikipedia instance. Safe for concurrent use.
type Client struct {
	host       string
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithHost overrides the Wikipedia base URL, mainly for tests.
func WithHost(host string) Option {
	return func(c *Client) { c.host = host }
}

// WithTimeout overrides the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New returns a client for [DefaultHost].
func New(opts ...Option) *Client {
	c := &Client{
		host:       DefaultHost,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Summary fetches the intro extract for word and renders it as a quoted
// markdown list linking back to the article. A word with no article yields
// the user-facing failure string, not an error; errors are reserved for
// transport failures.
func (c *Client) Summary(ctx context.Context, word string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+query+url.QueryEscape(word), nil)
	if err != nil {
		return "", fmt.Errorf("wiki: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("wiki: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wiki: unexpected status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("wiki: decode response: %w", err)
	}

	// Map iteration order is random; sort for a stable rendering.
	keys := make([]string, 0, len(body.Query.Pages))
	for k := range body.Query.Pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		pageID int
		items  []pretty.Item
	)
	for _, k := range keys {
		page := body.Query.Pages[k]
		if pageID == 0 {
			pageID = page.PageID
		}
		if page.Extract != "" {
			items = append(items, pretty.Item{Name: page.Title, Value: page.Extract})
		}
	}
	if len(items) == 0 {
		return fmt.Sprintf(FailText, word), nil
	}
	title := fmt.Sprintf("<%s?curid=%d> `[%s]`", c.host, pageID, word)
	return pretty.MarkdownList(title, items...), nil
}

// Help returns the command help text.
func (c *Client) Help() string {
	return helpText
}

// Register adds the wiki tools to reg.
func (c *Client) Register(reg *tool.Registry) {
	reg.Register(tool.Tool{
		Name:        "butler.wiki.summary",
		Description: "Wikipediaの概要を取得する。",
		Arguments: []tool.Argument{
			{Name: "word", Description: "検索する単語", Required: true},
		},
		Handler: func(ctx context.Context, args tool.Args, _ tool.Context) (string, error) {
			return c.Summary(ctx, args.String("word"))
		},
	})
	reg.Register(tool.Tool{
		Name:        "butler.wiki.help",
		Description: "Wikipedia機能のヘルプを表示する。",
		Handler: func(ctx context.Context, _ tool.Args, _ tool.Context) (string, error) {
			return c.Help(), nil
		},
	})
}
