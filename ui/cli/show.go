// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/digital-drip/ddrip-deploy/core/recipe"
	"github.com/digital-drip/ddrip-deploy/core/task"
	"github.com/digital-drip/ddrip-deploy/internal/i18n"
)

type stageView struct {
	Stage     string            `yaml:"stage"`
	Banner    string            `yaml:"banner,omitempty"`
	Variables map[string]string `yaml:"variables"`
	Roles     []roleView        `yaml:"roles"`
	Restart   string            `yaml:"restart_command"`
}

type roleView struct {
	Name    string       `yaml:"name"`
	Servers []serverView `yaml:"servers"`
}

type serverView struct {
	Host    string         `yaml:"host"`
	Options map[string]any `yaml:"options,omitempty"`
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <stage>",
		Short: i18n.T("cli.show.short"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			rc, err := c.Recipe()
			if err != nil {
				return err
			}
			view, err := resolveStage(rc, args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(view); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func resolveStage(rc *recipe.Recipe, name string) (stageView, error) {
	st, err := rc.ApplyStage(name)
	if err != nil {
		return stageView{}, err
	}
	view := stageView{Stage: st.Name, Banner: st.Banner, Variables: rc.Variables()}
	for _, role := range rc.Roles() {
		rv := roleView{Name: role.Name}
		for _, srv := range role.Servers {
			rv.Servers = append(rv.Servers, serverView{Host: srv.Host, Options: srv.Options})
		}
		view.Roles = append(view.Roles, rv)
	}
	if cmd, err := task.RestartCommand(rc); err == nil {
		view.Restart = cmd
	}
	return view, nil
}
