// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package task

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Policy decides what happens when a task has no servers in scope.
type Policy int

const (
	// Fail returns ErrNoMatchingServers.
	Fail Policy = iota
	// Continue logs and skips the command.
	Continue
)

// Body is the work of a task.
type Body func(ctx context.Context, c *Context) error

// Task is a named unit of work, optionally scoped to roles.
type Task struct {
	Namespace   string
	Name        string
	Description string
	// Roles limits the task to servers of these roles; empty means all.
	Roles []string
	// Except drops servers whose options match, e.g. no_release: true.
	Except map[string]any
	// Only keeps servers whose options match.
	Only                map[string]any
	OnNoMatchingServers Policy
	Body                Body
}

// FullName is namespace:name, or name for top level tasks.
func (t Task) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + ":" + t.Name
}

// ScopeString describes the task scope for listings and error messages.
func (t Task) ScopeString() string {
	var parts []string
	if len(t.Roles) > 0 {
		parts = append(parts, "roles="+strings.Join(t.Roles, ","))
	}
	if len(t.Except) > 0 {
		parts = append(parts, "except="+formatOptions(t.Except))
	}
	if len(t.Only) > 0 {
		parts = append(parts, "only="+formatOptions(t.Only))
	}
	return strings.Join(parts, " ")
}

func formatOptions(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s:%v", k, m[k])
	}
	return "{" + strings.Join(out, ",") + "}"
}

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Registry holds task definitions by full name.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: map[string]Task{}}
}

// Define adds t, replacing any task with the same full name.
func (r *Registry) Define(t Task) error {
	if !nameRe.MatchString(t.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidTaskName, t.Name)
	}
	if t.Namespace != "" && !nameRe.MatchString(t.Namespace) {
		return fmt.Errorf("%w: namespace %q", ErrInvalidTaskName, t.Namespace)
	}
	if t.Body == nil {
		t.Body = func(context.Context, *Context) error { return nil }
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.FullName()] = t
	return nil
}

// Find looks up a task by full name.
func (r *Registry) Find(name string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[name]
	return t, ok
}

// List returns every task sorted by full name.
func (r *Registry) List() []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out
}
