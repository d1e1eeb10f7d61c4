// Package prompt renders the message sequence sent to the model backend for
// one worker-agent invocation.
//
// Rendering is a pure function of the role descriptor, the project context,
// the task and the recent history.
package prompt

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/agentgraph/internal/project"
	"github.com/fyrsmithlabs/agentgraph/internal/state"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

// Role describes one worker agent.
type Role struct {
	Agent state.Agent
	// HistoryWindow is how many trailing messages are replayed.
	HistoryWindow int
	// ExampleBudget is the rune budget for each example output.
	ExampleBudget int
	// TaskLabel prefixes the task in the final human message.
	TaskLabel string
	// ExamplesHeading introduces the few-shot block.
	ExamplesHeading string
	// InlineOutput renders "Output: ..." on one line instead of a block.
	InlineOutput bool
	// Tools lists the tool names offered to the role.
	Tools []string

	intro string
	body  func(b *strings.Builder, info *project.Info)
}

// Name returns the routing label of the role.
func (r Role) Name() string {
	return r.Agent.String()
}

// Worker roles.
var (
	Architect = Role{
		Agent:           state.Architect,
		HistoryWindow:   3,
		ExampleBudget:   200,
		TaskLabel:       "Task:",
		ExamplesHeading: "Example approaches:",
		InlineOutput:    true,
		Tools:           []string{tools.ReadFile, tools.SearchCode, tools.GitStatus},
		intro:           "You are a software architect working on the %s project.",
		body:            architectBody,
	}
	Developer = Role{
		Agent:           state.Developer,
		HistoryWindow:   5,
		ExampleBudget:   300,
		TaskLabel:       "Task:",
		ExamplesHeading: "Example implementations:",
		Tools:           []string{tools.ReadFile, tools.WriteFile, tools.SearchCode, tools.GitStatus, tools.GitCommit},
		intro:           "You are a software developer working on the %s project.",
		body:            developerBody,
	}
	Reviewer = Role{
		Agent:           state.Reviewer,
		HistoryWindow:   5,
		ExampleBudget:   300,
		TaskLabel:       "Review request:",
		ExamplesHeading: "Example reviews:",
		Tools:           []string{tools.ReadFile, tools.SearchCode, tools.GitStatus},
		intro:           "You are a code reviewer for the %s project.",
		body:            reviewerBody,
	}
	Tester = Role{
		Agent:           state.Tester,
		HistoryWindow:   5,
		ExampleBudget:   300,
		TaskLabel:       "Testing task:",
		ExamplesHeading: "Example test designs:",
		Tools:           []string{tools.ReadFile, tools.WriteFile, tools.SearchCode},
		intro:           "You are a test engineer for the %s project.",
		body:            testerBody,
	}
)

// Roles lists the worker roles in roster order.
var Roles = []Role{Architect, Developer, Reviewer, Tester}

// ForAgent returns the role for a worker label.
func ForAgent(a state.Agent) (Role, bool) {
	for _, r := range Roles {
		if r.Agent == a {
			return r, true
		}
	}
	return Role{}, false
}

// toolBlurbs holds the "Available tools" lines. The architect has none and
// relies on the bound tool schemas alone.
var toolBlurbs = map[state.Agent]map[string]string{
	state.Developer: {
		tools.ReadFile:   "Read existing code files",
		tools.WriteFile:  "Create or modify code files",
		tools.SearchCode: "Search for patterns in codebase",
		tools.GitStatus:  "Check repository status",
		tools.GitCommit:  "Commit changes",
	},
	state.Reviewer: {
		tools.ReadFile:   "Read code files to review",
		tools.SearchCode: "Find patterns or issues",
		tools.GitStatus:  "Check what changed",
	},
	state.Tester: {
		tools.ReadFile:   "Read existing code to understand what to test",
		tools.WriteFile:  "Create test files",
		tools.SearchCode: "Find untested code",
	},
}

func writeList(b *strings.Builder, heading string, lines []string) {
	b.WriteString("\n")
	b.WriteString(heading)
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteString("\n")
	}
	if len(lines) == 0 {
		b.WriteString("\n")
	}
}

func conventions(info *project.Info) []string {
	return info.Conventions
}

func standards(info *project.Info) []string {
	entries := info.SortedStandards()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key + ": " + e.Value
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func architectBody(b *strings.Builder, info *project.Info) {
	entries := info.TechStack.Entries()
	stack := make([]string, len(entries))
	for i, e := range entries {
		stack[i] = e.Key + ": " + e.Value
	}
	writeList(b, "Project Context:", []string{
		"Type: " + info.Type,
		"Description: " + info.Description,
		"Tech Stack: " + strings.Join(stack, ", "),
	})
	writeList(b, "Your responsibilities:", []string{
		"Design system architecture",
		"Make technology decisions",
		"Define module boundaries",
		"Create technical specifications",
		"Consider scalability and maintainability",
	})
	writeList(b, "Conventions to follow:", conventions(info))
	writeList(b, "Coding Standards:", standards(info))
}

func developerBody(b *strings.Builder, info *project.Info) {
	ts := info.TechStack
	writeList(b, "Project Context:", []string{
		"Type: " + info.Type,
		"Description: " + info.Description,
		"Language: " + orDefault(ts.Language, "unknown"),
		"Framework: " + orDefault(ts.Framework, "N/A"),
		"Build Tool: " + orDefault(ts.BuildTool, "N/A"),
		"Project Path: " + info.Path,
	})
	writeList(b, "Your responsibilities:", []string{
		"Implement features according to specifications",
		"Fix bugs and issues",
		"Refactor code for better quality",
		"Write clean, maintainable code",
		"Follow project conventions strictly",
	})
	writeList(b, "Conventions to follow:", conventions(info))
	writeList(b, "Coding Standards:", standards(info))
}

func reviewerBody(b *strings.Builder, info *project.Info) {
	writeList(b, "Project Context:", []string{
		"Type: " + info.Type,
		"Description: " + info.Description,
		"Language: " + orDefault(info.TechStack.Language, "unknown"),
		"Project Path: " + info.Path,
	})
	writeList(b, "Your responsibilities:", []string{
		"Review code for quality and correctness",
		"Check adherence to best practices",
		"Identify potential bugs and issues",
		"Suggest improvements",
		"Verify test coverage requirements",
		"Ensure security considerations",
	})
	writeList(b, "Review Criteria:", []string{
		"Code quality and readability",
		"Best practices adherence",
		"Performance considerations",
		"Security concerns",
		"Error handling",
		fmt.Sprintf("Test coverage (target: %d%%)", info.CoverageTarget),
	})
	writeList(b, "Coding Standards to verify:", standards(info))
	writeList(b, "Conventions to check:", conventions(info))
}

func testerBody(b *strings.Builder, info *project.Info) {
	writeList(b, "Project Context:", []string{
		"Type: " + info.Type,
		"Description: " + info.Description,
		"Language: " + orDefault(info.TechStack.Language, "unknown"),
		"Test Framework: " + orDefault(info.TestFramework, "N/A"),
		fmt.Sprintf("Coverage Target: %d%%", info.CoverageTarget),
		"Project Path: " + info.Path,
	})
	writeList(b, "Your responsibilities:", []string{
		"Design comprehensive test strategies",
		"Implement unit tests for all public APIs",
		"Create integration tests for critical paths",
		"Ensure test coverage meets target",
		"Write clear, maintainable test code",
		"Document test scenarios",
	})
	writeList(b, "Testing Strategy:", []string{
		"Unit tests for all public APIs",
		"Integration tests for critical paths",
		"Edge cases and error conditions",
		"Performance tests where applicable",
		fmt.Sprintf("Test coverage target: %d%%", info.CoverageTarget),
	})
	writeList(b, "Test Tools:", []string{
		"Build: " + info.Tool("build", "N/A"),
		"Test: " + info.Tool("test", "N/A"),
	})
}
