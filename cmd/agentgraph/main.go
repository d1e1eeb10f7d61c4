// Package main implements the agentgraph CLI.
//
// Without arguments it starts an interactive session; with a task argument
// it runs that task once and exits. The serve, verify and register
// subcommands expose the HTTP API, the setup checks and project scaffolding.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/agentgraph/internal/llm"
	"github.com/fyrsmithlabs/agentgraph/internal/runner"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath   string
	project      string
	listProjects bool
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "agentgraph [task]",
		Short: "Multi-agent development assistant",
		Long: `agentgraph routes development tasks to architect, developer, reviewer and
tester agents through a supervisor, using the registered project's context.

Examples:
  # Interactive session
  agentgraph

  # Run one task against a project
  agentgraph -p mycli "Add error handling to the config loader"

  # List registered projects
  agentgraph --list-projects`,
		Version:       fmt.Sprintf("%s (%s)", version, gitCommit),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts, args, in, out)
		},
	}
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(out)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default agentgraph.yaml if present)")
	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "project to use (default: first available project)")
	cmd.Flags().BoolVarP(&opts.listProjects, "list-projects", "l", false, "list available projects and exit")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newVerifyCmd(opts))
	cmd.AddCommand(newRegisterCmd(opts))
	return cmd
}

func runRoot(cmd *cobra.Command, opts *rootOptions, args []string, in io.Reader, out io.Writer) error {
	ui := newStyles(out)
	ui.banner()

	interactive := len(args) == 0 && !opts.listProjects
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if !interactive {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	printer := newEventPrinter(out)
	a, err := newApp(ctx, appOptions{configPath: opts.configPath, onEvent: printer.handle})
	if err != nil {
		return ui.fatal(err)
	}
	defer a.Close()

	if opts.listProjects {
		ui.projects(a.projects)
		return nil
	}

	if len(args) == 1 {
		if err := executeTask(ctx, ui, a.runner, runner.Request{Task: args[0], Project: opts.project}); err != nil {
			return ui.fatal(err)
		}
		return nil
	}

	return newREPL(in, ui, a.runner, a.projects, opts.project).loop(ctx)
}

// connectionHints returns remediation hints for backend failures.
func connectionHints(err error) []string {
	var connErr *llm.ConnectionError
	if errors.As(err, &connErr) {
		return connErr.Hints
	}
	return nil
}
