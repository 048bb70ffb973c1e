// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package recipe

import "github.com/digital-drip/ddrip-deploy/core/model"

// DefaultSettings are the ddrip application settings.
func DefaultSettings() model.Settings {
	return model.Settings{
		Repository:  "jon@horder.digital-drip.com:/home/jon/git/ddrip.git",
		Application: "ddrip",
		SCM:         "git",
		User:        "jon",
		Branch:      "ddrip",
		SudoPrompt:  DefaultSudoPrompt,
	}
}

// DefaultStages returns the production and staging stages. Every role
// points at the single stage host; db is the primary.
func DefaultStages() []model.Stage {
	return []model.Stage{
		singleHostStage("production", "PRODUCTION DEPLOY", "/srv/${application}", "digital-drip.com"),
		singleHostStage("staging", "STAGING DEPLOY", "/srv/rails/${application}", "staging.digital-drip.com"),
	}
}

func singleHostStage(name, banner, deployTo, host string) model.Stage {
	return model.Stage{
		Name:     name,
		Banner:   banner,
		DeployTo: deployTo,
		Roles: map[string][]model.Server{
			model.RoleWeb: {model.NewServer(host, nil)},
			model.RoleApp: {model.NewServer(host, nil)},
			model.RoleDB:  {model.NewServer(host, map[string]any{model.OptionPrimary: true})},
		},
		RoleOrder: []string{model.RoleWeb, model.RoleApp, model.RoleDB},
	}
}

// Default returns the built-in ddrip recipe with no stage applied.
func Default() *Recipe {
	r := New()
	r.ApplySettings(DefaultSettings())
	for _, s := range DefaultStages() {
		// Names are constants and always valid.
		_ = r.DefineStage(s)
	}
	return r
}
