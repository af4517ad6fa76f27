package domain

import (
	"strings"
	"time"
)

// DefaultChatTitle is used when a chat is created without a title.
const DefaultChatTitle = "Untitled"

const maxChatTitleLen = 255

// ChatUsage is the model identifier plus generation parameters stored with a
// chat. It is persisted as a jsonb blob and round-trips unchanged.
type ChatUsage struct {
	Model            string   `json:"model"`
	Temperature      *float64 `json:"temperature,omitempty"`
	FrequencyPenalty *float64 `json:"frequencyPenalty,omitempty"`
	PresencePenalty  *float64 `json:"presencePenalty,omitempty"`
	MaxTokens        *int     `json:"maxTokens,omitempty"`
}

// Chat is a conversation owned by exactly one user. Messages is populated on
// detail reads only.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Usage     ChatUsage `json:"usage"`
	UserID    string    `json:"userId"`
	Shared    bool      `json:"shared"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages,omitempty"`
}

// ChatUpdates is the optional field set applied alongside an append. Nil
// pointers leave the stored value untouched.
type ChatUpdates struct {
	Title  *string
	Shared *bool
	Usage  *ChatUsage
}

// NormalizeChatTitle trims the title and substitutes the default for an empty
// one. Titles over 255 characters are rejected.
func NormalizeChatTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultChatTitle, nil
	}
	if len(title) > maxChatTitleLen {
		return "", Invalidf("title must be at most %d characters", maxChatTitleLen)
	}
	return title, nil
}
