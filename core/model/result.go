// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package model

// CommandResult is the captured outcome of a remote command.
type CommandResult struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}
