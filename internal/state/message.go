package state

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Role tags the author of a message.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockType identifies a structured content block.
type BlockType string

// Block types.
const (
	BlockText    BlockType = "text"
	BlockToolUse BlockType = "tool_use"
)

// Block is one piece of structured assistant content.
type Block struct {
	Type BlockType `json:"type"`
	Text string    `json:"text,omitempty"`
	// Name is the tool name for tool_use blocks.
	Name string `json:"name,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is a role-tagged unit of conversation.
//
// Content holds plain text. Blocks, when present, hold the structured form
// returned by backends that produce content blocks; Content then mirrors the
// text blocks.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Blocks     []Block    `json:"blocks,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// NewMessage returns a message with a fresh ID.
func NewMessage(role Role, content string) Message {
	return Message{ID: uuid.NewString(), Role: role, Content: content}
}

// System returns a system message.
func System(content string) Message { return NewMessage(RoleSystem, content) }

// Human returns a human message.
func Human(content string) Message { return NewMessage(RoleHuman, content) }

// Assistant returns an assistant message.
func Assistant(content string) Message { return NewMessage(RoleAssistant, content) }

// Text flattens the message to plain text. Text blocks contribute their
// text and tool_use blocks contribute "[tool_use <name>]".
func (m Message) Text() string {
	if len(m.Blocks) == 0 {
		return m.Content
	}
	parts := make([]string, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		switch b.Type {
		case BlockText:
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case BlockToolUse:
			parts = append(parts, "[tool_use "+b.Name+"]")
		}
	}
	return strings.Join(parts, " ")
}

// Last returns up to n trailing messages. The result aliases msgs.
func Last(msgs []Message, n int) []Message {
	if n <= 0 {
		return nil
	}
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n < 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
