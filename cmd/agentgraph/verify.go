package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agentgraph/internal/agent"
	"github.com/fyrsmithlabs/agentgraph/internal/checkpoint"
	"github.com/fyrsmithlabs/agentgraph/internal/config"
	"github.com/fyrsmithlabs/agentgraph/internal/project"
	"github.com/fyrsmithlabs/agentgraph/internal/prompt"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

// errChecksFailed is returned when any setup check fails.
var errChecksFailed = errors.New("setup verification failed")

func newVerifyCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check configuration, projects, tools and graph wiring",
		Long: `Run the setup checks without contacting the model backend.

Exits 1 if any check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.OutOrStdout(), root.configPath)
		},
	}
}

// check is one verification step. It returns detail lines on success.
type check struct {
	name string
	hint string
	run  func() ([]string, error)
}

func runVerify(out io.Writer, configPath string) error {
	ui := newStyles(out)
	ui.printf("%s\n", ui.title.Render("🔍 agentgraph Setup Verification"))
	ui.printf("%s\n", strings.Repeat("=", ruleWidth))

	cfg, err := config.Load(configPath)
	if err != nil {
		ui.printf("\n%s\n   Error: %v\n", ui.failure.Render("❌ Configuration"), err)
		return errChecksFailed
	}

	var toolReg *tools.Registry
	checks := []check{
		{
			name: "Project Registry",
			run: func() ([]string, error) {
				registry, err := project.Discover(cfg.Projects.Dir)
				if err != nil {
					return nil, err
				}
				lines := []string{fmt.Sprintf("Found %d projects: %s", registry.Len(), strings.Join(registry.Names(), ", "))}
				for _, info := range registry.List() {
					if _, err := os.Stat(info.Path); err != nil {
						lines = append(lines, fmt.Sprintf("✗ %s: %s", info.Name, info.Path), "   WARNING: Path does not exist!")
						continue
					}
					lines = append(lines, fmt.Sprintf("✓ %s: %s", info.Name, info.Path))
				}
				return lines, nil
			},
		},
		{
			name: "LLM Client",
			hint: "Ensure vscode-lm-proxy is running on port 4000",
			run: func() ([]string, error) {
				if _, err := newBackend(llmConfig(cfg.LLM), zap.NewNop()); err != nil {
					return nil, err
				}
				return []string{fmt.Sprintf("Configured: %s via %s (%s)", cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.Provider)}, nil
			},
		},
		{
			name: "Tools",
			run: func() ([]string, error) {
				toolReg = tools.Default(tools.GitOptions{AuthorName: cfg.Tools.AuthorName, AuthorEmail: cfg.Tools.AuthorEmail})
				names := toolReg.Names()
				lines := []string{fmt.Sprintf("Loaded %d tools:", len(names))}
				for _, n := range names {
					lines = append(lines, "- "+n)
				}
				return lines, nil
			},
		},
		{
			name: "Agents",
			run: func() ([]string, error) {
				names := []string{agent.SupervisorName}
				for _, r := range prompt.Roles {
					names = append(names, r.Name())
				}
				return []string{"Available agents: " + strings.Join(names, ", ")}, nil
			},
		},
		{
			name: "Graph",
			run: func() ([]string, error) {
				backend, err := newBackend(llmConfig(cfg.LLM), zap.NewNop())
				if err != nil {
					return nil, err
				}
				if toolReg == nil {
					toolReg = tools.Default(tools.GitOptions{})
				}
				store, err := checkpoint.Open(cfg.Checkpoint, zap.NewNop())
				if err != nil {
					return nil, err
				}
				defer store.Close()
				g, err := buildGraph(cfg.Routing, backend, toolReg, store, nil, nil)
				if err != nil {
					return nil, err
				}
				return []string{fmt.Sprintf("Graph compiled successfully (%s routing, nodes: %s)",
					g.Topology(), strings.Join(g.Nodes(), ", "))}, nil
			},
		},
	}

	passed := 0
	for i, c := range checks {
		label := fmt.Sprintf("Check %d/%d: %s", i+1, len(checks), c.name)
		lines, err := c.run()
		if err != nil {
			ui.printf("\n%s\n   Error: %v\n", ui.failure.Render("❌ "+label), err)
			if c.hint != "" {
				ui.printf("   Hint: %s\n", c.hint)
			}
			continue
		}
		passed++
		ui.printf("\n%s\n", ui.success.Render("✅ "+label))
		for _, l := range lines {
			ui.printf("   %s\n", l)
		}
	}

	ui.printf("\n%s\n", strings.Repeat("=", ruleWidth))
	ui.printf("📊 Results: %d/%d checks passed\n", passed, len(checks))
	if passed != len(checks) {
		ui.printf("⚠️  Some checks failed. Please fix the issues above.\n")
		return errChecksFailed
	}
	ui.printf("🎉 All checks passed! System is ready.\n")
	return nil
}
