// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

// Package deploy executes task commands on remote hosts. SSHExecutor dials
// each host once per invocation, authenticating with an identity file or
// the local SSH agent and verifying host keys against known_hosts.
// DryRunExecutor prints commands instead.
package deploy
