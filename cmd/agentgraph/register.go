package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/agentgraph/internal/config"
	"github.com/fyrsmithlabs/agentgraph/internal/project"
)

func newRegisterCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "register <name> <path>",
		Short: "Register a project directory",
		Long: `Detect the project type at path and write a basic config.yaml for it
under the projects directory. Edit the generated file to add tools,
conventions and coding standards.

Examples:
  agentgraph register mycli ~/code/mycli`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd.OutOrStdout(), root.configPath, args[0], args[1])
		},
	}
}

func runRegister(out io.Writer, configPath, name, path string) error {
	ui := newStyles(out)
	cfg, err := config.Load(configPath)
	if err != nil {
		return ui.fatal(err)
	}

	reg := project.NewRegistry(cfg.Projects.Dir)
	info, err := reg.Register(name, path)
	if err != nil {
		return ui.fatal(err)
	}
	cfgPath, err := reg.Save(info)
	if err != nil {
		return ui.fatal(err)
	}

	ui.printf("%s\n", ui.success.Render(fmt.Sprintf("✓ Registered %s (%s): %s", info.Name, info.Type, info.Path)))
	ui.printf("  Config written to %s\n", cfgPath)
	return nil
}
