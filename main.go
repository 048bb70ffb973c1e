// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

// Command ddrip-deploy runs the ddrip deploy recipe.
//
// Usage:
//
//	ddrip-deploy production deploy:restart
//	ddrip-deploy tasks
//
// See --help for all commands and flags.
package main

import (
	"os"

	"github.com/digital-drip/ddrip-deploy/internal/logging"
	"github.com/digital-drip/ddrip-deploy/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.Errorf("%v", err)
		os.Exit(1)
	}
}
