package domain

import (
	"encoding/json"
	"time"
)

// MessageRole enumerates the author kinds a message can carry.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ValidRole reports whether r is one of the supported roles.
func ValidRole(r MessageRole) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Content part discriminators.
const (
	PartText       = "text"
	PartImage      = "image"
	PartToolResult = "tool-result"
)

// ContentPart is one element of a multimodal message body.
type ContentPart struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Image  string          `json:"image,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// MessageContent is the tagged union stored in the message content column:
// either a plain text string or an ordered list of parts. The JSON form is a
// bare string for text-only content and an array otherwise, matching what
// clients send.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// TextContent wraps a plain string as message content.
func TextContent(s string) MessageContent {
	return MessageContent{Text: s}
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts == nil {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Parts)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = MessageContent{Text: s}
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return Invalidf("message content must be a string or an array of parts")
	}
	*c = MessageContent{Parts: parts}
	return nil
}

// Validate checks that every part carries a known type and the payload that
// type requires.
func (c MessageContent) Validate() error {
	for i, p := range c.Parts {
		switch p.Type {
		case PartText:
			if p.Text == "" {
				return Invalidf("content part %d: text part requires text", i)
			}
		case PartImage:
			if p.Image == "" {
				return Invalidf("content part %d: image part requires an image reference", i)
			}
		case PartToolResult:
			if len(p.Result) == 0 {
				return Invalidf("content part %d: tool-result part requires a result", i)
			}
		default:
			return Invalidf("content part %d: unknown part type %q", i, p.Type)
		}
	}
	return nil
}

// PlainText flattens the content to text, joining text parts. Non-text parts
// contribute nothing.
func (c MessageContent) PlainText() string {
	if c.Parts == nil {
		return c.Text
	}
	var out string
	for _, p := range c.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// Message is one entry in a chat's append-only history. Ordering within a
// chat is by CreatedAt ascending; the store's clock is the sole ordering
// authority.
type Message struct {
	ID        string         `json:"id"`
	Role      MessageRole    `json:"role"`
	Content   MessageContent `json:"content"`
	UserID    string         `json:"userId,omitempty"`
	ChatID    string         `json:"chatId,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Validate checks the message envelope: known role and well-formed content.
func (m Message) Validate() error {
	if !ValidRole(m.Role) {
		return Invalidf("unknown message role %q", m.Role)
	}
	return m.Content.Validate()
}
