package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/agentgraph/internal/graph"
	"github.com/fyrsmithlabs/agentgraph/internal/project"
	"github.com/fyrsmithlabs/agentgraph/internal/runner"
	"github.com/fyrsmithlabs/agentgraph/internal/state"
)

const ruleWidth = 60

// styles renders CLI output. Colors are dropped when out is not a terminal.
type styles struct {
	out     io.Writer
	title   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
	node    lipgloss.Style
}

func newStyles(out io.Writer) *styles {
	r := lipgloss.NewRenderer(out)
	return &styles{
		out:     out,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("51")),
		success: r.NewStyle().Foreground(lipgloss.Color("42")),
		failure: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("245")),
		node:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
	}
}

func (s *styles) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *styles) banner() {
	s.printf("%s\n", s.title.Render("🤖 agentgraph - Multi-Agent Development System"))
	s.printf("%s\n", strings.Repeat("=", ruleWidth))
}

func (s *styles) projects(reg *project.Registry) {
	s.printf("📂 Available projects:\n")
	for _, info := range reg.List() {
		s.printf("  - %s (%s): %s\n", info.Name, info.Type, info.Description)
	}
}

func (s *styles) processing(projectName string) {
	s.printf("\n🔄 Processing task with %s...\n\n", projectName)
}

func (s *styles) completed() {
	s.printf("%s\n\n", s.success.Render("✅ Task completed!"))
}

func (s *styles) errorLine(err error) {
	s.printf("\n%s\n", s.failure.Render("❌ Error: "+err.Error()))
	if hints := connectionHints(err); len(hints) > 0 {
		s.printf("\n💡 Make sure:\n")
		for i, h := range hints {
			s.printf("  %d. %s\n", i+1, h)
		}
	}
	s.printf("\n")
}

// fatal reports err and returns it so the process exits 1.
func (s *styles) fatal(err error) error {
	s.errorLine(err)
	return err
}

// executeTask runs one task and reports its progress.
func executeTask(ctx context.Context, ui *styles, r *runner.Runner, req runner.Request) error {
	name, _, err := r.SelectProject(req.Project)
	if err != nil {
		return err
	}
	ui.processing(name)
	if _, err := r.Run(ctx, req); err != nil {
		return err
	}
	ui.completed()
	return nil
}

// eventPrinter writes one block per executed graph node.
type eventPrinter struct {
	ui *styles
}

func newEventPrinter(out io.Writer) *eventPrinter {
	return &eventPrinter{ui: newStyles(out)}
}

func (p *eventPrinter) handle(ev graph.Event) {
	p.ui.printf("%s\n", p.ui.node.Render("📍 "+strings.ToUpper(ev.Node)))
	if n := len(ev.Messages); n > 0 {
		p.ui.printf("💬 %s\n\n", ev.Messages[n-1].Text())
	}
	if ev.Node == graph.SupervisorNode && ev.Next != state.Unset {
		p.ui.printf("➡️  Routing to: %s\n\n", ev.Next)
	}
}
