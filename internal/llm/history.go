package llm

import (
	"strings"

	"github.com/fyrsmithlabs/agentgraph/internal/state"
)

// pairToolCalls prepares history for replay. An assistant message keeps its
// structured tool calls only when every call is answered by the tool
// messages directly after it; otherwise it is replayed as text. Tool results
// whose call is not in the history are dropped.
func pairToolCalls(messages []state.Message) []state.Message {
	out := make([]state.Message, 0, len(messages))
	for i := 0; i < len(messages); i++ {
		m := messages[i]
		switch {
		case m.Role == state.RoleTool:
			continue
		case m.Role == state.RoleAssistant && len(m.ToolCalls) > 0:
			j := i + 1
			answered := map[string]bool{}
			for ; j < len(messages) && messages[j].Role == state.RoleTool; j++ {
				answered[messages[j].ToolCallID] = true
			}
			if !allAnswered(m.ToolCalls, answered) {
				out = append(out, flattenToolCalls(m))
				i = j - 1
				continue
			}
			out = append(out, m)
			calls := make(map[string]bool, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls[tc.ID] = true
			}
			for _, r := range messages[i+1 : j] {
				if calls[r.ToolCallID] {
					out = append(out, r)
				}
			}
			i = j - 1
		default:
			out = append(out, m)
		}
	}
	return out
}

func allAnswered(calls []state.ToolCall, answered map[string]bool) bool {
	for _, tc := range calls {
		if !answered[tc.ID] {
			return false
		}
	}
	return true
}

// flattenToolCalls renders a tool-calling reply as plain text.
func flattenToolCalls(m state.Message) state.Message {
	text := m.Text()
	if len(m.Blocks) == 0 {
		parts := make([]string, 0, len(m.ToolCalls)+1)
		if m.Content != "" {
			parts = append(parts, m.Content)
		}
		for _, tc := range m.ToolCalls {
			parts = append(parts, "[tool_use "+tc.Name+"]")
		}
		text = strings.Join(parts, " ")
	}
	m.Content = text
	m.Blocks = nil
	m.ToolCalls = nil
	return m
}
