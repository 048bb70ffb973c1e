// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

// Package task defines named, namespaced tasks and the runner that invokes
// them. A task is scoped to the servers of its roles; Context.Run dispatches
// a command to every server in scope concurrently through an Executor and
// records each attempt with a Recorder.
package task
