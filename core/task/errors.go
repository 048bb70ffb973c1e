// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package task

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTask       = errors.New("unknown task")
	ErrInvalidTaskName   = errors.New("invalid task name")
	ErrNoStage           = errors.New("no stage selected")
	ErrNoMatchingServers = errors.New("no servers matched")
)

// HostError ties a command failure to the host it happened on.
type HostError struct {
	Host string
	Err  error
}

func (e *HostError) Error() string { return fmt.Sprintf("%s: %v", e.Host, e.Err) }

func (e *HostError) Unwrap() error { return e.Err }
