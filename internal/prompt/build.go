package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fyrsmithlabs/agentgraph/internal/project"
	"github.com/fyrsmithlabs/agentgraph/internal/state"
)

// System renders the system prompt of role for the given project.
func System(role Role, pc *project.Context) string {
	info := pc.Info
	var b strings.Builder
	fmt.Fprintf(&b, role.intro, info.Name)
	b.WriteString("\n")
	role.body(&b, info)
	writeTools(&b, role)
	writeExamples(&b, role, pc.Examples.ForRole(role.Name()))
	return b.String()
}

// Build returns the message sequence for one invocation: the system prompt,
// the trailing history window and the labelled task.
func Build(role Role, pc *project.Context, task string, history []state.Message) []state.Message {
	recent := state.Last(history, role.HistoryWindow)
	out := make([]state.Message, 0, len(recent)+2)
	out = append(out, state.System(System(role, pc)))
	out = append(out, recent...)
	out = append(out, state.Human(role.TaskLabel+" "+task))
	return out
}

func writeTools(b *strings.Builder, role Role) {
	blurbs, ok := toolBlurbs[role.Agent]
	if !ok {
		return
	}
	lines := make([]string, 0, len(role.Tools))
	for _, name := range role.Tools {
		if blurb, ok := blurbs[name]; ok {
			lines = append(lines, name+": "+blurb)
		}
	}
	writeList(b, "Available tools:", lines)
}

// writeExamples renders the first example of every task type. The block is
// skipped when no task type carries an example.
func writeExamples(b *strings.Builder, role Role, tasks []project.TaskExamples) {
	var hasAny bool
	for _, t := range tasks {
		if len(t.Examples) > 0 {
			hasAny = true
			break
		}
	}
	if !hasAny {
		return
	}

	b.WriteString("\n\n")
	b.WriteString(role.ExamplesHeading)
	b.WriteString("\n")
	for _, t := range tasks {
		if len(t.Examples) == 0 {
			continue
		}
		first := t.Examples[0]
		fmt.Fprintf(b, "\n%s:\n", TaskTitle(t.TaskType))
		fmt.Fprintf(b, "Input: %s\n", first.Input)
		out := state.Truncate(first.Output, role.ExampleBudget)
		if role.InlineOutput {
			fmt.Fprintf(b, "Output: %s...\n", out)
		} else {
			fmt.Fprintf(b, "Output:\n%s...\n", out)
		}
	}
}

// TaskTitle turns a snake_case task type into a title, e.g. "new_command"
// becomes "New Command".
func TaskTitle(taskType string) string {
	// Casers are stateful and not safe for concurrent use.
	return cases.Title(language.Und).String(strings.ReplaceAll(taskType, "_", " "))
}
