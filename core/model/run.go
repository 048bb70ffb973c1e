// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "time"

// RunStatus is the outcome of one task command on one host.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunOK      RunStatus = "ok"
	RunFailed  RunStatus = "failed"
	RunSkipped RunStatus = "skipped"
	RunDryRun  RunStatus = "dry-run"
)

// TaskRun is a history record of a command dispatched to a host.
type TaskRun struct {
	ID         int64      `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Stage      string     `json:"stage"`
	Task       string     `json:"task"`
	Host       string     `json:"host"`
	Command    string     `json:"command"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	Operator   string     `json:"operator"`
}
