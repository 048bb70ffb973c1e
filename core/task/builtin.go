// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package task

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/digital-drip/ddrip-deploy/core/model"
	"github.com/digital-drip/ddrip-deploy/core/recipe"
)

// DeployNamespace holds the lifecycle tasks.
const DeployNamespace = "deploy"

// RestartCommand builds the command that signals the application server to
// restart: touch <current_path>/tmp/restart.txt, behind try_sudo.
func RestartCommand(rc *recipe.Recipe) (string, error) {
	current, err := rc.Fetch(recipe.VarCurrentPath)
	if err != nil {
		return "", err
	}
	sudo, err := rc.TrySudo()
	if err != nil {
		return "", err
	}
	target := path.Join(current, "tmp", "restart.txt")
	return strings.TrimSpace(sudo + " touch " + target), nil
}

// DefineStages registers one task per stage of rc. Each selects its stage
// and prints the stage banner.
func DefineStages(reg *Registry, rc *recipe.Recipe) error {
	for _, s := range rc.Stages() {
		name := s.Name
		err := reg.Define(Task{
			Name:        name,
			Description: fmt.Sprintf("Select the %s stage.", name),
			Body: func(_ context.Context, c *Context) error {
				st, err := c.Recipe().ApplyStage(name)
				if err != nil {
					return err
				}
				if st.Banner != "" {
					c.Printf("%s\n", st.Banner)
				}
				return nil
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// DefineDeployTasks registers deploy:start, deploy:stop and deploy:restart.
// start and stop do nothing: restarting through restart.txt is all the
// application server needs.
func DefineDeployTasks(reg *Registry) error {
	tasks := []Task{
		{
			Namespace:   DeployNamespace,
			Name:        "start",
			Description: "No-op; the application server starts on demand.",
		},
		{
			Namespace:   DeployNamespace,
			Name:        "stop",
			Description: "No-op; the application server is never stopped.",
		},
		{
			Namespace:   DeployNamespace,
			Name:        "restart",
			Description: "Touch tmp/restart.txt under the current release.",
			Roles:       []string{model.RoleApp},
			Except:      map[string]any{model.OptionNoRelease: true},
			Body: func(ctx context.Context, c *Context) error {
				if _, err := c.RequireStage(); err != nil {
					return err
				}
				cmd, err := RestartCommand(c.Recipe())
				if err != nil {
					return err
				}
				return c.Run(ctx, cmd)
			},
		},
	}
	for _, t := range tasks {
		if err := reg.Define(t); err != nil {
			return err
		}
	}
	return nil
}

// DefaultRegistry returns a registry with the stage tasks of rc and the
// deploy lifecycle tasks.
func DefaultRegistry(rc *recipe.Recipe) (*Registry, error) {
	reg := NewRegistry()
	if err := DefineStages(reg, rc); err != nil {
		return nil, err
	}
	if err := DefineDeployTasks(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
