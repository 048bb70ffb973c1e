// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"context"
	"fmt"
	"io"

	"github.com/digital-drip/ddrip-deploy/core/model"
)

// DryRunExecutor prints commands instead of running them.
type DryRunExecutor struct {
	Out io.Writer
}

// Run writes "[host] command" and reports success.
func (d DryRunExecutor) Run(ctx context.Context, srv model.Server, command string) (model.CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return model.CommandResult{}, err
	}
	if d.Out != nil {
		fmt.Fprintf(d.Out, "[%s] %s\n", srv.Host, command)
	}
	return model.CommandResult{}, nil
}

// DryRun marks the executor for history.
func (DryRunExecutor) DryRun() bool { return true }

// Close is a no-op.
func (DryRunExecutor) Close() error { return nil }
