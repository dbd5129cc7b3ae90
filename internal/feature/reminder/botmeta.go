// Package reminder manages guild scheduled events with staged reminder
// notifications. The bot's bookkeeping travels inside the event description
// as a marked JSON block, so no extra storage is needed and the state
// survives bot restarts.
package reminder

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const (
	metaStart = "<!-- BOT_META_START -->"
	metaEnd   = "<!-- BOT_META_END -->"

	// botIdentifier marks events this bot manages; foreign events are
	// ignored even when they carry a meta block.
	botIdentifier = "butler"

	metaVersion = 1
)

var metaBlockRe = regexp.MustCompile(`(?s)<!-- BOT_META_START -->(.*?)<!-- BOT_META_END -->`)

// Timing is one reminder stage relative to the event start.
type Timing string

const (
	TimingWeek    Timing = "7d"
	TimingThree   Timing = "3d"
	TimingPrevDay Timing = "1d"
	TimingSameDay Timing = "0d"
)

var allTimings = []Timing{TimingWeek, TimingThree, TimingPrevDay, TimingSameDay}

func validTiming(t Timing) bool {
	for _, v := range allTimings {
		if t == v {
			return true
		}
	}
	return false
}

// Meta is the reminder bookkeeping embedded in an event description.
type Meta struct {
	Version       int             `json:"version"`
	ManagedBy     string          `json:"managedBy"`
	CreatedBy     string          `json:"createdBy"`
	Participants  []string        `json:"participants"`
	RemindTimings []Timing        `json:"remindTimings"`
	Notified      map[Timing]bool `json:"notified"`
}

// NewMeta returns the bookkeeping for a freshly created event with every
// reminder stage armed.
func NewMeta(createdBy string, participants []string) Meta {
	notified := make(map[Timing]bool, len(allTimings))
	for _, t := range allTimings {
		notified[t] = false
	}
	if participants == nil {
		participants = []string{}
	}
	return Meta{
		Version:       metaVersion,
		ManagedBy:     botIdentifier,
		CreatedBy:     createdBy,
		Participants:  participants,
		RemindTimings: append([]Timing(nil), allTimings...),
		Notified:      notified,
	}
}

// ParseMeta extracts the meta block from an event description. ok is false
// when the description carries no block, the JSON is malformed, or the event
// is managed by someone else.
func ParseMeta(description string) (Meta, bool) {
	match := metaBlockRe.FindStringSubmatch(description)
	if match == nil {
		return Meta{}, false
	}

	var meta Meta
	if err := json.Unmarshal([]byte(strings.TrimSpace(match[1])), &meta); err != nil {
		return Meta{}, false
	}
	if meta.Version == 0 || meta.ManagedBy != botIdentifier || meta.Notified == nil {
		return Meta{}, false
	}
	for _, t := range meta.RemindTimings {
		if !validTiming(t) {
			return Meta{}, false
		}
	}
	return meta, true
}

func (m Meta) serialize() string {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		// Meta contains only marshallable types.
		panic(fmt.Sprintf("reminder: serialize meta: %v", err))
	}
	return metaStart + "\n" + string(raw) + "\n" + metaEnd
}

// UpdateDescription replaces the meta block in description with meta,
// appending a new block when none exists.
func UpdateDescription(description string, meta Meta) string {
	serialized := meta.serialize()
	if description == "" {
		return serialized
	}
	if metaBlockRe.MatchString(description) {
		// Literal replacement: the serialized JSON must never be treated as
		// an expansion template.
		return metaBlockRe.ReplaceAllLiteralString(description, serialized)
	}
	return description + "\n\n" + serialized
}

// StripMeta returns the human-readable part of an event description.
func StripMeta(description string) string {
	return strings.TrimSpace(metaBlockRe.ReplaceAllString(description, ""))
}
