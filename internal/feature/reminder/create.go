package reminder

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/butler/internal/tool"
)

// maxParticipants caps how many users one event can remind.
const maxParticipants = 10

var (
	dateTimeRe  = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2}) (\d{1,2}):(\d{2})$`)
	mentionRe   = regexp.MustCompile(`<@!?(\d+)>`)
	nameNoiseRe = regexp.MustCompile(`(の)?イベント(登録)?$`)
	nameTailRe  = regexp.MustCompile(`[。！!?？]+$`)
)

// CreateInput is the raw user input for a new event. Start and End accept
// "YYYY-MM-DD HH:mm" with "-" or "/" separators; Participants is a mention
// string like "<@123> <@456>".
type CreateInput struct {
	Name         string
	Start        string
	End          string
	Description  string
	Participants string
	CreatedBy    string
}

// normalizeDateTime maps full-width digits, colons and spaces to their ASCII
// forms and collapses whitespace, so model-supplied dates parse too.
func normalizeDateTime(input string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(input) {
		switch {
		case r == '：':
			b.WriteRune(':')
		case r == '　':
			b.WriteRune(' ')
		case r >= '０' && r <= '９':
			b.WriteRune(r - 0xfee0)
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// normalizeEventName strips trailing punctuation and the "〜のイベント登録"
// phrasing the model tends to echo from user requests.
func normalizeEventName(input string) string {
	trimmed := nameTailRe.ReplaceAllString(strings.TrimSpace(input), "")
	stripped := strings.TrimSpace(nameNoiseRe.ReplaceAllString(trimmed, ""))
	if stripped == "" {
		return trimmed
	}
	return stripped
}

// parseDateTime parses "YYYY-MM-DD HH:mm" (or "/" separated) in Asia/Tokyo.
func parseDateTime(input string) (time.Time, bool) {
	normalized := strings.ReplaceAll(normalizeDateTime(input), "/", "-")
	match := dateTimeRe.FindStringSubmatch(normalized)
	if match == nil {
		return time.Time{}, false
	}
	nums := make([]int, 5)
	for i := range nums {
		n, err := strconv.Atoi(match[i+1])
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}
	t := time.Date(nums[0], time.Month(nums[1]), nums[2], nums[3], nums[4], 0, 0, tokyo)
	// time.Date normalizes out-of-range components; reject those inputs.
	if t.Day() != nums[2] || t.Hour() != nums[3] || t.Minute() != nums[4] {
		return time.Time{}, false
	}
	return t, true
}

// parseParticipants extracts the mentioned user ids, deduplicated in order.
func parseParticipants(input string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, match := range mentionRe.FindAllStringSubmatch(input, -1) {
		if !seen[match[1]] {
			seen[match[1]] = true
			ids = append(ids, match[1])
		}
	}
	return ids
}

// CreateEvent validates in, creates the scheduled event with embedded
// reminder bookkeeping and returns the user-facing result message.
// Validation failures come back as the message, not an error.
func (s *Service) CreateEvent(ctx context.Context, guildID string, in CreateInput) (string, error) {
	name := normalizeEventName(in.Name)
	if name == "" {
		return "イベント名が指定されていません。", nil
	}
	if strings.TrimSpace(in.Start) == "" {
		return "開始日時が指定されていません。", nil
	}
	startAt, ok := parseDateTime(in.Start)
	if !ok {
		return "日時の形式が正しくありません。例: `2024-12-25 19:00`", nil
	}
	if !startAt.After(s.now()) {
		return "開始日時は未来の日時を指定してください。", nil
	}

	var endAt time.Time
	if strings.TrimSpace(in.End) != "" {
		endAt, ok = parseDateTime(in.End)
		if !ok {
			return "終了日時の形式が正しくありません。例: `2024-12-25 21:00`", nil
		}
		if !endAt.After(startAt) {
			return "終了日時は開始日時より後を指定してください。", nil
		}
	} else {
		endAt = startAt.Add(2 * time.Hour)
	}

	participants := parseParticipants(in.Participants)
	if len(participants) > maxParticipants {
		return "リマインド対象は最大10人までです。", nil
	}

	meta := NewMeta(in.CreatedBy, participants)
	ev, err := s.gateway.CreateEvent(ctx, guildID, NewEvent{
		Name:        name,
		Description: UpdateDescription(strings.TrimSpace(in.Description), meta),
		StartAt:     startAt,
		EndAt:       endAt,
	})
	if err != nil {
		s.log.Error("reminder: create event", "name", name, "error", err)
		return "イベントの作成に失敗しました。", nil
	}

	mentions := mentionList(participants)
	if mentions == "" {
		mentions = "(未設定)"
	}
	return strings.Join([]string{
		":calendar: **イベントを作成しました**",
		"",
		"**" + ev.Name + "**",
		"開始: " + formatDateTime(startAt),
		"対象: " + mentions,
	}, "\n"), nil
}

// eventReminderHint steers the model toward creating events in one shot
// instead of interrogating the user.
var eventReminderHint = strings.Join([]string{
	"event-reminderは不足情報を確認しすぎず、作成可能なら一度で作成する",
	"ユーザー発話に「Xのイベント」がある場合、nameはXとして扱う(例: 「パーティのイベント登録」→ name=「パーティ」)",
	"「明日19時」のような自然言語の日時はAIが具体日時へ変換してからstart/endへ渡す",
	"startの年が省略されている場合は今年として扱う",
	"endが未指定ならstartの2時間後を使う",
	"participantsが未指定なら対象なしとして扱う",
	"不確定な点は推測で補い、作成後に補完内容を結果メッセージで共有する",
}, "。")

// Register adds the event creation tool to reg.
func (s *Service) Register(reg *tool.Registry) {
	reg.Register(tool.Tool{
		Name:        "event-reminder",
		Description: "イベントとリマインドを登録する(不足項目は可能な範囲で自動補完する)",
		AIHint:      eventReminderHint,
		Arguments: []tool.Argument{
			{Name: "name", Description: "イベント名", Required: true},
			{Name: "start", Description: "開始日時 (例: 2026-12-25 19:00 / 12/25 19:00, 年省略時は今年として扱う)", Required: true},
			{Name: "end", Description: "終了日時 (例: 2026-12-25 21:00 / 12/25 21:00, 未指定時は開始の2時間後)"},
			{Name: "description", Description: "イベントの説明"},
			{Name: "participants", Description: "リマインド対象のメンション文字列 (未指定なら対象なしで登録)"},
		},
		Handler: func(ctx context.Context, args tool.Args, tc tool.Context) (string, error) {
			if tc.GuildID == "" {
				return "この機能はサーバー内でのみ利用できます。", nil
			}
			createdBy := tc.UserID
			if createdBy == "" {
				createdBy = "unknown"
			}
			return s.CreateEvent(ctx, tc.GuildID, CreateInput{
				Name:         args.String("name"),
				Start:        args.String("start"),
				End:          args.String("end"),
				Description:  args.String("description"),
				Participants: args.String("participants"),
				CreatedBy:    createdBy,
			})
		},
	})
}
