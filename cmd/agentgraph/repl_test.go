package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/agentgraph/internal/llm"
)

func TestREPL_Session(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alpha")
	f.register(t, "beta")
	fake := llm.NewFake("tester", "Table-driven tests.")
	withBackend(t, fake)

	input := strings.Join([]string{
		"",
		"projects",
		"use gamma",
		"use beta",
		"Write unit tests",
		"QUIT",
		"never reached",
	}, "\n")
	out, err := execute(t, input, "--config", f.configPath)
	require.NoError(t, err)

	assert.Contains(t, out, "📁 Active project: alpha")
	assert.Contains(t, out, "  - beta (go): Go project")
	assert.Contains(t, out, "❌ Project not found: gamma")
	assert.Contains(t, out, "Available: alpha, beta")
	assert.Contains(t, out, "✓ Switched to project: beta")
	assert.Contains(t, out, "🔄 Processing task with beta...")
	assert.Contains(t, out, "💬 Table-driven tests.")
	assert.Contains(t, out, "👋 Goodbye!")
	assert.Equal(t, 2, fake.CallCount())
}

func TestREPL_EndOfInput(t *testing.T) {
	f := newFixture(t)
	f.register(t, "demo")
	withBackend(t, llm.NewFake())

	out, err := execute(t, "projects\n", "--config", f.configPath, "-p", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "👋 Goodbye!")
}

func TestREPL_TaskErrorKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.register(t, "demo")
	withBackend(t, llm.NewFake("developer").Fail(assert.AnError).Reply("reviewer").Reply("LGTM"))

	out, err := execute(t, "Implement it\nReview it\nexit\n", "--config", f.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "❌ Error:")
	assert.Contains(t, out, "💬 LGTM")
}

func TestREPL_InterruptedTask(t *testing.T) {
	f := newFixture(t)
	f.register(t, "demo")
	withBackend(t, llm.NewFake("architect", "never used"))

	a, err := newApp(context.Background(), appOptions{configPath: f.configPath})
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	r := newREPL(strings.NewReader(""), newStyles(&out), a.runner, a.projects, "")
	r.interrupt = func(ctx context.Context) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		return ctx, cancel
	}

	assert.False(t, r.handle(context.Background(), "Design it"))
	assert.Contains(t, out.String(), "⚠️  Interrupted. Type 'quit' to exit.")
}
