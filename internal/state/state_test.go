package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentgraph/internal/project"
)

func TestParseAgent(t *testing.T) {
	tests := []struct {
		in     string
		want   Agent
		wantOK bool
	}{
		{"architect", Architect, true},
		{"developer", Developer, true},
		{"reviewer", Reviewer, true},
		{"tester", Tester, true},
		{"end", End, true},
		{"", Unset, true},
		{"bogus", Unset, false},
		{"Architect", Unset, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAgent(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestAgent_IsWorker(t *testing.T) {
	for _, a := range Workers {
		assert.True(t, a.IsWorker(), a.String())
	}
	assert.False(t, Unset.IsWorker())
	assert.False(t, End.IsWorker())
	assert.False(t, Agent(42).IsWorker())
	assert.Equal(t, "agent(42)", Agent(42).String())
}

func TestMessage_Text(t *testing.T) {
	plain := Assistant("hello")
	assert.Equal(t, "hello", plain.Text())

	structured := Message{
		Role: RoleAssistant,
		Blocks: []Block{
			{Type: BlockText, Text: "Let me look."},
			{Type: BlockToolUse, Name: "search_code"},
		},
	}
	assert.Equal(t, "Let me look. [tool_use search_code]", structured.Text())
}

func TestLastAndTruncate(t *testing.T) {
	msgs := []Message{Human("1"), Human("2"), Human("3")}
	assert.Len(t, Last(msgs, 5), 3)
	assert.Equal(t, "3", Last(msgs, 1)[0].Content)
	assert.Nil(t, Last(msgs, 0))

	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "abc", Truncate("abc", 10))
}

func TestApply_MergeSemantics(t *testing.T) {
	initial := &RunState{
		Messages:  []Message{Human("task")},
		NextAgent: Architect,
		Task:      "task",
	}

	next := initial.Apply(Reply(Assistant("done")))

	require.Len(t, next.Messages, 2)
	assert.Equal(t, "done", next.Messages[1].Content)
	assert.Equal(t, Unset, next.NextAgent)
	assert.Equal(t, "task", next.Task)

	// The source state is untouched.
	assert.Len(t, initial.Messages, 1)
	assert.Equal(t, Architect, initial.NextAgent)

	routed := next.Apply(Route(Tester))
	assert.Equal(t, Tester, routed.NextAgent)
	assert.Len(t, routed.Messages, 2)
}

func TestSeed_OverExistingThread(t *testing.T) {
	info := &project.Info{Name: "p", Type: "go"}
	prior := &RunState{
		Messages:  []Message{Human("old"), Assistant("old answer")},
		Task:      "old",
		NextAgent: End,
	}

	in := Input{
		Task:           "new",
		CurrentProject: "p",
		Projects:       map[string]*project.Info{"p": info},
		ProjectContext: &project.Context{Info: info, Examples: project.Examples{}},
		Messages:       []Message{Human("new")},
	}
	got := prior.Apply(in.Seed())

	assert.Len(t, got.Messages, 3)
	assert.Equal(t, "new", got.Task)
	assert.Equal(t, Unset, got.NextAgent)
	require.NotNil(t, got.Context())
	assert.Same(t, info, got.Context().Info)

	empty := (&RunState{}).Apply(Input{Task: "t"}.Seed())
	assert.Nil(t, empty.Context())
	assert.NotNil(t, empty.Projects)
}

func TestRunState_JSON(t *testing.T) {
	info := &project.Info{Name: "p", Type: "go", CoverageTarget: 80}
	s := &RunState{
		Messages:       []Message{Human("hi")},
		CurrentProject: "p",
		Projects:       map[string]*project.Info{"p": info},
		ProjectContext: Some(&project.Context{Info: info, Examples: project.Examples{}}),
		NextAgent:      Developer,
		Task:           "hi",
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"next_agent":"developer"`)

	var decoded RunState
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Developer, decoded.NextAgent)
	require.NotNil(t, decoded.Context())
	assert.Equal(t, "p", decoded.Context().Info.Name)

	var none RunState
	require.NoError(t, json.Unmarshal([]byte(`{"project_context":null,"next_agent":""}`), &none))
	assert.Nil(t, none.Context())
	assert.Equal(t, Unset, none.NextAgent)
}
