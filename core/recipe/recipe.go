// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package recipe

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/digital-drip/ddrip-deploy/core/model"
)

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Recipe is the mutable deployment configuration evaluated by tasks.
// It is safe for concurrent use.
type Recipe struct {
	mu         sync.RWMutex
	vars       map[string]string
	roles      map[string][]model.Server
	roleOrder  []string
	stages     map[string]model.Stage
	stageOrder []string
	current    string
}

// New returns an empty recipe.
func New() *Recipe {
	return &Recipe{
		vars:   map[string]string{},
		roles:  map[string][]model.Server{},
		stages: map[string]model.Stage{},
	}
}

// ApplySettings sets the recipe-wide variables from s. Empty fields are
// left untouched.
func (r *Recipe) ApplySettings(s model.Settings) {
	set := func(name, v string) {
		if v != "" {
			r.Set(name, v)
		}
	}
	set(VarRepository, s.Repository)
	set(VarApplication, s.Application)
	set(VarSCM, s.SCM)
	set(VarUser, s.User)
	set(VarBranch, s.Branch)
	set(VarSudoPrompt, s.SudoPrompt)
	r.Set(VarUseSudo, fmt.Sprint(s.UseSudo))
}

// Settings reads the recipe-wide variables back.
func (r *Recipe) Settings() model.Settings {
	return model.Settings{
		Repository:  r.FetchOr(VarRepository, ""),
		Application: r.FetchOr(VarApplication, ""),
		SCM:         r.FetchOr(VarSCM, ""),
		User:        r.FetchOr(VarUser, ""),
		Branch:      r.FetchOr(VarBranch, ""),
		UseSudo:     r.FetchBool(VarUseSudo, false),
		SudoPrompt:  r.FetchOr(VarSudoPrompt, DefaultSudoPrompt),
	}
}

// Role declares host under role name. Declaring a host already present in
// the role merges the options, later values winning.
func (r *Recipe) Role(name, host string, opts map[string]any) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: role name %q", ErrInvalidRole, name)
	}
	srv := model.NewServer(host, opts)
	if srv.Host == "" {
		return fmt.Errorf("%w: role %s has an empty host", ErrInvalidRole, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list, exists := r.roles[name]
	if !exists {
		r.roleOrder = append(r.roleOrder, name)
	}
	for i := range list {
		if list[i].Host == srv.Host {
			list[i] = list[i].Merge(srv)
			return nil
		}
	}
	r.roles[name] = append(list, srv)
	return nil
}

// ClearRoles drops every role declaration.
func (r *Recipe) ClearRoles() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles = map[string][]model.Server{}
	r.roleOrder = nil
}

// Roles returns the declared roles in declaration order.
func (r *Recipe) Roles() []model.Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Role, 0, len(r.roleOrder))
	for _, name := range r.roleOrder {
		out = append(out, model.Role{Name: name, Servers: cloneServers(r.roles[name])})
	}
	return out
}

// RoleFilter selects servers for a task.
type RoleFilter struct {
	// Roles to draw servers from; empty means every declared role.
	Roles []string
	// Except drops servers whose options match.
	Except map[string]any
	// Only keeps servers whose options match, when non-empty.
	Only map[string]any
	// Hosts restricts the result to these hostnames, when non-empty.
	Hosts []string
}

// Servers resolves filter to a list of servers in declaration order, each
// host appearing once. A server is dropped when any Except option matches
// and kept only when every Only option matches. Both are evaluated against
// the options of each role declaration before de-duplication, so a host
// excluded in one role may still be picked up from another role in scope.
func (r *Recipe) Servers(filter RoleFilter) []model.Server {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roles := filter.Roles
	if len(roles) == 0 {
		roles = r.roleOrder
	}
	var hosts map[string]bool
	if len(filter.Hosts) > 0 {
		hosts = make(map[string]bool, len(filter.Hosts))
		for _, h := range filter.Hosts {
			hosts[h] = true
		}
	}

	seen := map[string]bool{}
	var out []model.Server
	for _, role := range roles {
		for _, srv := range r.roles[role] {
			if seen[srv.Host] {
				continue
			}
			if srv.MatchesAny(filter.Except) {
				continue
			}
			if len(filter.Only) > 0 && !srv.Matches(filter.Only) {
				continue
			}
			if hosts != nil && !hosts[srv.Host] && !hosts[srv.Hostname()] {
				continue
			}
			seen[srv.Host] = true
			out = append(out, model.NewServer(srv.Host, srv.Options))
		}
	}
	return out
}

// DefineStage registers or replaces a stage.
func (r *Recipe) DefineStage(s model.Stage) error {
	if !identRe.MatchString(s.Name) {
		return fmt.Errorf("invalid stage name %q", s.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stages[s.Name]; !ok {
		r.stageOrder = append(r.stageOrder, s.Name)
	}
	r.stages[s.Name] = s
	return nil
}

// Stage looks up a stage by name.
func (r *Recipe) Stage(name string) (model.Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	return s, ok
}

// Stages returns the defined stages in definition order.
func (r *Recipe) Stages() []model.Stage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Stage, 0, len(r.stageOrder))
	for _, name := range r.stageOrder {
		out = append(out, r.stages[name])
	}
	return out
}

// ApplyStage makes name the current stage: it sets deploy_to and the stage
// variables and replaces the role declarations with the stage's.
func (r *Recipe) ApplyStage(name string) (model.Stage, error) {
	s, ok := r.Stage(name)
	if !ok {
		return model.Stage{}, fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	r.Set(VarStage, s.Name)
	if s.DeployTo != "" {
		r.Set(VarDeployTo, s.DeployTo)
	}
	keys := make([]string, 0, len(s.Vars))
	for k := range s.Vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.Set(k, s.Vars[k])
	}

	r.ClearRoles()
	for _, role := range s.OrderedRoles() {
		for _, srv := range s.Roles[role] {
			if err := r.Role(role, srv.Host, srv.Options); err != nil {
				return model.Stage{}, fmt.Errorf("stage %s: %w", name, err)
			}
		}
	}

	r.mu.Lock()
	r.current = s.Name
	r.mu.Unlock()
	return s, nil
}

// CurrentStage returns the name of the applied stage, or "" if none.
func (r *Recipe) CurrentStage() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func cloneServers(in []model.Server) []model.Server {
	out := make([]model.Server, len(in))
	for i, s := range in {
		out[i] = model.NewServer(s.Host, s.Options)
	}
	return out
}
