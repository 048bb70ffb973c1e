// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads ddrip-deploy.yaml through viper: defaults, then the
// config file, then DDRIP_* environment variables, then command-line flags.
// A loaded Config is turned into a recipe with Recipe.
package config
