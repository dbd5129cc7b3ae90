package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// maxMessageLength is Discord's content limit per message.
const maxMessageLength = 2000

// attachmentNotice replaces over-long content in the message body.
const attachmentNotice = "結果が長いためファイルで添付します:page_facing_up:"

// messageSend converts content into a sendable message, moving it into a
// markdown attachment when it exceeds Discord's length limit.
func messageSend(content string) *discordgo.MessageSend {
	if len([]rune(content)) <= maxMessageLength {
		return &discordgo.MessageSend{Content: content}
	}
	return &discordgo.MessageSend{
		Content: attachmentNotice,
		Files: []*discordgo.File{{
			Name:        "result.md",
			ContentType: "text/markdown",
			Reader:      strings.NewReader(content),
		}},
	}
}

// interactionResponse converts content into an interaction response, with the
// same attachment fallback as messageSend.
func interactionResponse(content string) *discordgo.InteractionResponse {
	data := &discordgo.InteractionResponseData{Content: content}
	if len([]rune(content)) > maxMessageLength {
		data.Content = attachmentNotice
		data.Files = []*discordgo.File{{
			Name:        "result.md",
			ContentType: "text/markdown",
			Reader:      strings.NewReader(content),
		}}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}
