// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/digital-drip/ddrip-deploy/core/task"
	"github.com/digital-drip/ddrip-deploy/internal/i18n"
)

func newTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"T"},
		Short:   i18n.T("cli.tasks.short"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rc, err := c.Recipe()
			if err != nil {
				return err
			}
			reg, err := task.DefaultRegistry(rc)
			if err != nil {
				return err
			}
			printTasks(cmd, reg.List())
			return nil
		},
	}
}

func printTasks(cmd *cobra.Command, tasks []task.Task) {
	out := cmd.OutOrStdout()
	st := newStyles(out)
	width := 0
	for _, t := range tasks {
		if n := len(t.FullName()); n > width {
			width = n
		}
	}
	for _, t := range tasks {
		line := st.name.Width(width+2).Render(t.FullName()) + t.Description
		if scope := t.ScopeString(); scope != "" {
			line += " " + st.subtle.Render("["+scope+"]")
		}
		fmt.Fprintln(out, line)
	}
}
