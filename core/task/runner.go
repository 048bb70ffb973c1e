// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package task

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/digital-drip/ddrip-deploy/core/model"
	"github.com/digital-drip/ddrip-deploy/core/recipe"
	"github.com/digital-drip/ddrip-deploy/internal/logging"
)

// Executor runs a shell command on a server.
type Executor interface {
	Run(ctx context.Context, server model.Server, command string) (model.CommandResult, error)
}

// Recorder keeps a history of dispatched commands.
type Recorder interface {
	Start(ctx context.Context, run model.TaskRun) (int64, error)
	Finish(ctx context.Context, id int64, status model.RunStatus, runErr error) error
}

// NopRecorder discards history.
type NopRecorder struct{}

func (NopRecorder) Start(context.Context, model.TaskRun) (int64, error) { return 0, nil }

func (NopRecorder) Finish(context.Context, int64, model.RunStatus, error) error { return nil }

// dryRunner is implemented by executors that only print commands.
type dryRunner interface {
	DryRun() bool
}

// now is swapped in tests.
var now = time.Now

// Runner invokes tasks against a recipe.
type Runner struct {
	recipe   *recipe.Recipe
	registry *Registry
	exec     Executor
	recorder Recorder
	out      io.Writer
	maxHosts int
	hosts    []string
	operator string
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder sets the history recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithOutput sets where stage banners are printed.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		if w != nil {
			r.out = w
		}
	}
}

// WithMaxHosts bounds how many hosts a command runs on at once; 0 is
// unbounded.
func WithMaxHosts(n int) Option {
	return func(r *Runner) { r.maxHosts = n }
}

// WithHosts restricts every task to the given hosts.
func WithHosts(hosts ...string) Option {
	return func(r *Runner) { r.hosts = append([]string(nil), hosts...) }
}

// WithOperator names the local user recorded in history.
func WithOperator(name string) Option {
	return func(r *Runner) { r.operator = name }
}

// NewRunner returns a Runner. exec must not be nil.
func NewRunner(rc *recipe.Recipe, reg *Registry, exec Executor, opts ...Option) *Runner {
	r := &Runner{
		recipe:   rc,
		registry: reg,
		exec:     exec,
		recorder: NopRecorder{},
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recipe returns the recipe the runner evaluates.
func (r *Runner) Recipe() *recipe.Recipe { return r.recipe }

// Invoke runs the named tasks in order, stopping at the first error.
func (r *Runner) Invoke(ctx context.Context, names ...string) error {
	for _, name := range names {
		if err := r.invoke(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) invoke(ctx context.Context, name string) error {
	t, ok := r.registry.Find(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	logging.Infof("executing %q", t.FullName())
	start := now()
	c := &Context{runner: r, task: t}
	if err := t.Body(ctx, c); err != nil {
		return fmt.Errorf("task %s: %w", t.FullName(), err)
	}
	logging.Debugf("%q finished in %s", t.FullName(), now().Sub(start).Round(time.Millisecond))
	return nil
}

// Context is handed to a task body while it runs.
type Context struct {
	runner *Runner
	task   Task
}

// Recipe returns the recipe being evaluated.
func (c *Context) Recipe() *recipe.Recipe { return c.runner.recipe }

// Printf writes to the runner output.
func (c *Context) Printf(format string, v ...any) {
	fmt.Fprintf(c.runner.out, format, v...)
}

// RequireStage returns the applied stage, or ErrNoStage when no stage task
// has run yet.
func (c *Context) RequireStage() (string, error) {
	stage := c.runner.recipe.CurrentStage()
	if stage == "" {
		return "", fmt.Errorf("%w: run a stage task such as production first", ErrNoStage)
	}
	return stage, nil
}

// Servers resolves the servers in scope for the running task.
func (c *Context) Servers() []model.Server {
	return c.runner.recipe.Servers(recipe.RoleFilter{
		Roles:  c.task.Roles,
		Except: c.task.Except,
		Only:   c.task.Only,
		Hosts:  c.runner.hosts,
	})
}

// Run executes command on every server in scope. Hosts run concurrently;
// the first failure cancels the rest and is returned as a *HostError.
func (c *Context) Run(ctx context.Context, command string) error {
	r := c.runner
	stage, err := c.RequireStage()
	if err != nil {
		return err
	}
	servers := c.Servers()
	if len(servers) == 0 {
		if c.task.OnNoMatchingServers == Continue {
			logging.Warnf("%q: no servers matched (%s), skipping", c.task.FullName(), c.task.ScopeString())
			return nil
		}
		return fmt.Errorf("%w: %q is only run for servers matching %s", ErrNoMatchingServers, c.task.FullName(), c.task.ScopeString())
	}

	logging.Infof("executing %q on %d server(s)", command, len(servers))
	g, gctx := errgroup.WithContext(ctx)
	if r.maxHosts > 0 {
		g.SetLimit(r.maxHosts)
	}
	for _, srv := range servers {
		g.Go(func() error {
			return c.runOne(gctx, stage, srv, command)
		})
	}
	return g.Wait()
}

func (c *Context) runOne(ctx context.Context, stage string, srv model.Server, command string) error {
	r := c.runner
	log := logging.Host(srv.Host)
	run := model.TaskRun{
		StartedAt: now(),
		Stage:     stage,
		Task:      c.task.FullName(),
		Host:      srv.Host,
		Command:   command,
		Status:    model.RunRunning,
		Operator:  r.operator,
	}
	// Use a detached context for history so a cancelled run is still recorded.
	histCtx := context.WithoutCancel(ctx)

	if err := ctx.Err(); err != nil {
		run.Status = model.RunSkipped
		if _, recErr := r.recorder.Start(histCtx, run); recErr != nil {
			log.Warn("recording skipped run failed", "err", recErr)
		}
		return err
	}

	id, recErr := r.recorder.Start(histCtx, run)
	if recErr != nil {
		log.Warn("recording run failed", "err", recErr)
	}

	res, err := r.exec.Run(ctx, srv, command)
	logOutput(log.Info, res.Stdout)
	logOutput(log.Warn, res.Stderr)

	status := model.RunOK
	if dr, ok := r.exec.(dryRunner); ok && dr.DryRun() {
		status = model.RunDryRun
	}
	if err != nil {
		status = model.RunFailed
		if errors.Is(err, context.Canceled) {
			status = model.RunSkipped
		}
	}
	if recErr == nil {
		if finErr := r.recorder.Finish(histCtx, id, status, err); finErr != nil {
			log.Warn("recording run result failed", "err", finErr)
		}
	}
	if err != nil {
		log.Error("command failed", "err", err)
		return &HostError{Host: srv.Host, Err: err}
	}
	return nil
}

func logOutput(fn func(msg any, keyvals ...any), s string) {
	if strings.TrimSpace(s) == "" {
		return
	}
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		fn(sc.Text())
	}
}
