package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fyrsmithlabs/agentgraph/internal/project"
	"github.com/fyrsmithlabs/agentgraph/internal/runner"
)

// repl is the interactive session. Each task runs on the current
// project's session thread, so a conversation accumulates across tasks.
type repl struct {
	in       *bufio.Scanner
	ui       *styles
	runner   *runner.Runner
	projects *project.Registry
	current  string

	// interrupt scopes one task to Ctrl-C.
	interrupt func(context.Context) (context.Context, context.CancelFunc)
}

func newREPL(in io.Reader, ui *styles, r *runner.Runner, projects *project.Registry, requested string) *repl {
	current := ""
	if name, _, err := r.SelectProject(requested); err == nil {
		current = name
	}
	return &repl{
		in:       bufio.NewScanner(in),
		ui:       ui,
		runner:   r,
		projects: projects,
		current:  current,
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
}

// loop reads commands until quit or end of input.
func (r *repl) loop(ctx context.Context) error {
	r.ui.printf("\nAvailable commands:\n")
	r.ui.printf("  - Type your task to execute\n")
	r.ui.printf("  - 'projects' to list available projects\n")
	r.ui.printf("  - 'use <name>' to switch project\n")
	r.ui.printf("  - 'quit' or 'exit' to exit\n\n")
	if r.current != "" {
		r.ui.printf("📁 Active project: %s\n\n", r.current)
	}

	for {
		r.ui.printf("💬 You: ")
		if !r.in.Scan() {
			r.ui.printf("\n👋 Goodbye!\n")
			return r.in.Err()
		}
		if done := r.handle(ctx, strings.TrimSpace(r.in.Text())); done {
			return nil
		}
	}
}

// handle executes one input line and reports whether the session ends.
func (r *repl) handle(ctx context.Context, input string) bool {
	if input == "" {
		return false
	}
	lower := strings.ToLower(input)

	switch {
	case lower == "quit" || lower == "exit" || lower == "q":
		r.ui.printf("\n👋 Goodbye!\n")
		return true

	case lower == "projects":
		r.ui.printf("\n")
		r.ui.projects(r.projects)
		r.ui.printf("\n")
		return false

	case strings.HasPrefix(lower, "use "):
		name := strings.TrimSpace(input[len("use "):])
		if _, err := r.projects.Get(name); err != nil {
			r.ui.printf("\n%s\n", r.ui.failure.Render("❌ Project not found: "+name))
			r.ui.printf("Available: %s\n\n", strings.Join(r.projects.Names(), ", "))
			return false
		}
		r.current = name
		r.ui.printf("\n%s\n\n", r.ui.success.Render("✓ Switched to project: "+name))
		return false
	}

	if r.current == "" {
		r.ui.printf("%s\n", r.ui.failure.Render("❌ No project selected. Use 'use <project_name>' to select a project."))
		return false
	}

	taskCtx, stop := r.interrupt(ctx)
	defer stop()
	err := executeTask(taskCtx, r.ui, r.runner, runner.Request{Task: input, Project: r.current})
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) && ctx.Err() == nil:
		r.ui.printf("\n\n⚠️  Interrupted. Type 'quit' to exit.\n\n")
	default:
		r.ui.errorLine(err)
	}
	return false
}
