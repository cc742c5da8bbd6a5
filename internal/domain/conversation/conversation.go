package conversation

import (
	"fmt"

	"github.com/google/uuid"
)

// ===============================================
// Message Types
// ===============================================

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContentType identifies how a message's content is carried.
type ContentType string

const (
	// ContentTypeText carries plain text in Content.
	ContentTypeText ContentType = "text"
	// ContentTypeImageBytes carries raw image bytes in Binary; Content may
	// hold the original reference (path or URL) the bytes were loaded from.
	ContentTypeImageBytes ContentType = "image_binary"
	// ContentTypeImageURL carries an image URL in Content, passed through to
	// the remote service untouched.
	ContentTypeImageURL ContentType = "image_url"
)

// Message is a single role-tagged turn in a conversation.
type Message struct {
	Role    Role        `json:"role"`
	Type    ContentType `json:"type"`
	Content string      `json:"content,omitempty"`
	Binary  []byte      `json:"binary,omitempty"`
}

// IsText reports whether the message carries plain text content.
func (m Message) IsText() bool {
	return m.Type == ContentTypeText
}

// IsImage reports whether the message carries image content of either kind.
func (m Message) IsImage() bool {
	return m.Type == ContentTypeImageBytes || m.Type == ContentTypeImageURL
}

// ===============================================
// Conversation Structure
// ===============================================

// Conversation is the unit of inference work: an ordered list of messages
// plus opaque metadata. Inputs are never mutated; appending a response
// produces a new value.
type Conversation struct {
	ID       string            `json:"conversation_id,omitempty"`
	Messages []Message         `json:"messages"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// New builds a conversation with a generated ID.
func New(messages ...Message) Conversation {
	return Conversation{
		ID:       uuid.NewString(),
		Messages: messages,
	}
}

// WithReply returns a copy of the conversation with reply appended as a new
// assistant-side message. Metadata and ID carry over; the original messages
// slice is not shared.
func (c Conversation) WithReply(role Role, content string) Conversation {
	messages := make([]Message, 0, len(c.Messages)+1)
	messages = append(messages, c.Messages...)
	messages = append(messages, Message{
		Role:    role,
		Type:    ContentTypeText,
		Content: content,
	})
	return Conversation{
		ID:       c.ID,
		Messages: messages,
		Metadata: c.Metadata,
	}
}

// Validate checks structural invariants before a conversation is encoded.
func (c Conversation) Validate() error {
	for i, msg := range c.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}
		switch msg.Type {
		case ContentTypeText, ContentTypeImageBytes, ContentTypeImageURL:
		default:
			return fmt.Errorf("message %d: unknown content type %q", i, msg.Type)
		}
		if msg.IsImage() && msg.Content == "" && len(msg.Binary) == 0 {
			return fmt.Errorf("message %d: image message has no reference and no bytes", i)
		}
	}
	return nil
}
