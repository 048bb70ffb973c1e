// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "sort"

// Conventional role names.
const (
	RoleWeb = "web"
	RoleApp = "app"
	RoleDB  = "db"
)

// Role binds a symbolic name to the servers declared for it.
type Role struct {
	Name    string
	Servers []Server
}

// Stage is a named deployment environment. Applying a stage sets deploy_to,
// the stage variables and the role declarations.
type Stage struct {
	Name     string              `json:"name" yaml:"name"`
	Banner   string              `json:"banner,omitempty" yaml:"banner,omitempty"`
	DeployTo string              `json:"deploy_to" yaml:"deploy_to"`
	Vars     map[string]string   `json:"vars,omitempty" yaml:"vars,omitempty"`
	Roles    map[string][]Server `json:"roles" yaml:"roles"`
	// RoleOrder keeps role declaration order; Roles is a map.
	RoleOrder []string `json:"-" yaml:"-"`
}

// OrderedRoles returns the stage roles in declaration order, falling back to
// web, app, db and then any remaining roles sorted by name.
func (s Stage) OrderedRoles() []string {
	if len(s.RoleOrder) > 0 {
		return append([]string(nil), s.RoleOrder...)
	}
	seen := map[string]bool{}
	var out []string
	for _, name := range []string{RoleWeb, RoleApp, RoleDB} {
		if _, ok := s.Roles[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	var rest []string
	for name := range s.Roles {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Settings are the recipe-wide variables that do not change per stage.
type Settings struct {
	Repository  string `json:"repository" yaml:"repository" mapstructure:"repository"`
	Application string `json:"application" yaml:"application" mapstructure:"application"`
	SCM         string `json:"scm" yaml:"scm" mapstructure:"scm"`
	User        string `json:"user" yaml:"user" mapstructure:"user"`
	Branch      string `json:"branch" yaml:"branch" mapstructure:"branch"`
	UseSudo     bool   `json:"use_sudo" yaml:"use_sudo" mapstructure:"use_sudo"`
	SudoPrompt  string `json:"sudo_prompt,omitempty" yaml:"sudo_prompt,omitempty" mapstructure:"sudo_prompt"`
}
