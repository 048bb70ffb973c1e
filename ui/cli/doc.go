// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the ddrip-deploy command line with Cobra. Commands
// load the configuration, build the recipe and delegate to core packages.
package cli
