// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package task

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/digital-drip/ddrip-deploy/core/model"
	"github.com/digital-drip/ddrip-deploy/core/recipe"
)

type call struct {
	host, command string
}

// fakeExecutor records every command and fails for hosts listed in fail.
type fakeExecutor struct {
	mu      sync.Mutex
	calls   []call
	fail    map[string]error
	dry     bool
	delay   time.Duration
	active  int32
	maxSeen int32
}

func (f *fakeExecutor) Run(ctx context.Context, srv model.Server, command string) (model.CommandResult, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return model.CommandResult{}, ctx.Err()
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, call{srv.Host, command})
	f.mu.Unlock()
	if err := f.fail[srv.Host]; err != nil {
		return model.CommandResult{ExitStatus: 1, Stderr: "boom"}, err
	}
	return model.CommandResult{Stdout: "ok"}, nil
}

func (f *fakeExecutor) DryRun() bool { return f.dry }

func (f *fakeExecutor) sortedCalls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]call(nil), f.calls...)
	sort.Slice(out, func(i, j int) bool { return out[i].host < out[j].host })
	return out
}

type fakeRecorder struct {
	mu     sync.Mutex
	runs   []model.TaskRun
	status map[int64]model.RunStatus
}

func (f *fakeRecorder) Start(_ context.Context, run model.TaskRun) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return int64(len(f.runs)), nil
}

func (f *fakeRecorder) Finish(_ context.Context, id int64, status model.RunStatus, _ error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		f.status = map[int64]model.RunStatus{}
	}
	f.status[id] = status
	return nil
}

func newTestRunner(t *testing.T, rc *recipe.Recipe, exec Executor, opts ...Option) (*Runner, *bytes.Buffer) {
	t.Helper()
	reg, err := DefaultRegistry(rc)
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	var out bytes.Buffer
	opts = append([]Option{WithOutput(&out)}, opts...)
	return NewRunner(rc, reg, exec, opts...), &out
}

func TestInvoke_ProductionRestart(t *testing.T) {
	exec := &fakeExecutor{}
	rec := &fakeRecorder{}
	r, out := newTestRunner(t, recipe.Default(), exec, WithRecorder(rec), WithOperator("tester"))

	if err := r.Invoke(context.Background(), "production", "deploy:restart"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out.String(), "PRODUCTION DEPLOY") {
		t.Fatalf("missing banner, got %q", out.String())
	}
	calls := exec.sortedCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %+v", calls)
	}
	if calls[0].host != "digital-drip.com" || calls[0].command != "touch /srv/ddrip/current/tmp/restart.txt" {
		t.Fatalf("unexpected call %+v", calls[0])
	}
	if len(rec.runs) != 1 || rec.runs[0].Task != "deploy:restart" || rec.runs[0].Stage != "production" || rec.runs[0].Operator != "tester" {
		t.Fatalf("unexpected history %+v", rec.runs)
	}
	if rec.status[1] != model.RunOK {
		t.Fatalf("status = %q", rec.status[1])
	}
}

func TestInvoke_StagingRestartWithSudo(t *testing.T) {
	rc := recipe.Default()
	rc.Set(recipe.VarUseSudo, "true")
	exec := &fakeExecutor{}
	r, out := newTestRunner(t, rc, exec)

	if err := r.Invoke(context.Background(), "staging", "deploy:restart"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(out.String(), "STAGING DEPLOY") {
		t.Fatalf("missing banner, got %q", out.String())
	}
	calls := exec.sortedCalls()
	want := "sudo -p 'sudo password: ' touch /srv/rails/ddrip/current/tmp/restart.txt"
	if len(calls) != 1 || calls[0].host != "staging.digital-drip.com" || calls[0].command != want {
		t.Fatalf("unexpected calls %+v", calls)
	}
}

func TestRestart_SkipsNoReleaseAndNonAppHosts(t *testing.T) {
	rc := recipe.Default()
	err := rc.DefineStage(model.Stage{
		Name:     "cluster",
		DeployTo: "/srv/${application}",
		Roles: map[string][]model.Server{
			model.RoleWeb: {model.NewServer("web1", nil)},
			model.RoleApp: {
				model.NewServer("app1", nil),
				model.NewServer("app2", map[string]any{model.OptionNoRelease: true}),
				model.NewServer("app3", nil),
			},
			model.RoleDB: {model.NewServer("db1", map[string]any{model.OptionPrimary: true})},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	exec := &fakeExecutor{}
	r, _ := newTestRunner(t, rc, exec)
	if err := r.Invoke(context.Background(), "cluster", "deploy:restart"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	calls := exec.sortedCalls()
	if len(calls) != 2 || calls[0].host != "app1" || calls[1].host != "app3" {
		t.Fatalf("expected app1 and app3 only, got %+v", calls)
	}
}

func TestStartStop_AreNoOps(t *testing.T) {
	exec := &fakeExecutor{}
	rec := &fakeRecorder{}
	r, _ := newTestRunner(t, recipe.Default(), exec, WithRecorder(rec))
	if err := r.Invoke(context.Background(), "production", "deploy:start", "deploy:stop"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(exec.sortedCalls()) != 0 || len(rec.runs) != 0 {
		t.Fatalf("start/stop must not dispatch anything: calls=%v runs=%v", exec.calls, rec.runs)
	}
}

func TestRestart_RequiresStage(t *testing.T) {
	exec := &fakeExecutor{}
	rec := &fakeRecorder{}
	r, _ := newTestRunner(t, recipe.Default(), exec, WithRecorder(rec))
	err := r.Invoke(context.Background(), "deploy:restart")
	if !errors.Is(err, ErrNoStage) {
		t.Fatalf("expected ErrNoStage, got %v", err)
	}
	if errors.Is(err, recipe.ErrUnknownVariable) {
		t.Fatalf("missing stage must be reported before variables are expanded: %v", err)
	}
	if len(exec.sortedCalls()) != 0 || len(rec.runs) != 0 {
		t.Fatalf("nothing should be dispatched without a stage")
	}
}

func TestInvoke_UnknownTask(t *testing.T) {
	exec := &fakeExecutor{}
	r, _ := newTestRunner(t, recipe.Default(), exec)
	err := r.Invoke(context.Background(), "production", "deploy:migrate", "deploy:restart")
	if !errors.Is(err, ErrUnknownTask) {
		t.Fatalf("expected ErrUnknownTask, got %v", err)
	}
	if len(exec.sortedCalls()) != 0 {
		t.Fatalf("tasks after an unknown task must not run")
	}
}

func TestRun_NoMatchingServers(t *testing.T) {
	rc := recipe.Default()
	_ = rc.DefineStage(model.Stage{
		Name:     "dbonly",
		DeployTo: "/srv/x",
		Roles:    map[string][]model.Server{model.RoleDB: {model.NewServer("db1", nil)}},
	})
	r, _ := newTestRunner(t, rc, &fakeExecutor{})
	if err := r.Invoke(context.Background(), "dbonly", "deploy:restart"); !errors.Is(err, ErrNoMatchingServers) {
		t.Fatalf("expected ErrNoMatchingServers, got %v", err)
	}

	reg, _ := DefaultRegistry(rc)
	_ = reg.Define(Task{
		Namespace:           "deploy",
		Name:                "restart",
		Roles:               []string{model.RoleApp},
		OnNoMatchingServers: Continue,
		Body: func(ctx context.Context, c *Context) error {
			return c.Run(ctx, "true")
		},
	})
	r = NewRunner(rc, reg, &fakeExecutor{}, WithOutput(&bytes.Buffer{}))
	if err := r.Invoke(context.Background(), "dbonly", "deploy:restart"); err != nil {
		t.Fatalf("Continue policy should skip, got %v", err)
	}
}

func TestRun_FailureIsHostError(t *testing.T) {
	boom := errors.New("permission denied")
	exec := &fakeExecutor{fail: map[string]error{"digital-drip.com": boom}}
	rec := &fakeRecorder{}
	r, _ := newTestRunner(t, recipe.Default(), exec, WithRecorder(rec))
	err := r.Invoke(context.Background(), "production", "deploy:restart")
	var he *HostError
	if !errors.As(err, &he) || he.Host != "digital-drip.com" || !errors.Is(err, boom) {
		t.Fatalf("expected HostError wrapping boom, got %v", err)
	}
	if rec.status[1] != model.RunFailed {
		t.Fatalf("status = %q", rec.status[1])
	}
}

func TestRun_MaxHostsBoundsConcurrency(t *testing.T) {
	rc := recipe.Default()
	var app []model.Server
	for _, h := range []string{"a1", "a2", "a3", "a4"} {
		app = append(app, model.NewServer(h, nil))
	}
	_ = rc.DefineStage(model.Stage{Name: "wide", DeployTo: "/srv/x", Roles: map[string][]model.Server{model.RoleApp: app}})

	exec := &fakeExecutor{delay: 20 * time.Millisecond}
	r, _ := newTestRunner(t, rc, exec, WithMaxHosts(1))
	if err := r.Invoke(context.Background(), "wide", "deploy:restart"); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&exec.maxSeen); got != 1 {
		t.Fatalf("max concurrency = %d, want 1", got)
	}
	if len(exec.sortedCalls()) != 4 {
		t.Fatalf("expected 4 calls")
	}
}

func TestRun_FirstFailureSkipsRemainingHosts(t *testing.T) {
	rc := recipe.Default()
	_ = rc.DefineStage(model.Stage{Name: "trio", DeployTo: "/srv/x", Roles: map[string][]model.Server{
		model.RoleApp: {model.NewServer("a1", nil), model.NewServer("a2", nil), model.NewServer("a3", nil)},
	}})
	boom := errors.New("boom")
	exec := &fakeExecutor{fail: map[string]error{"a1": boom}}
	rec := &fakeRecorder{}
	r, _ := newTestRunner(t, rc, exec, WithMaxHosts(1), WithRecorder(rec))

	err := r.Invoke(context.Background(), "trio", "deploy:restart")
	var he *HostError
	if !errors.As(err, &he) || he.Host != "a1" || !errors.Is(err, boom) {
		t.Fatalf("expected HostError for a1, got %v", err)
	}
	if calls := exec.sortedCalls(); len(calls) != 1 || calls[0].host != "a1" {
		t.Fatalf("only a1 should have run, got %+v", calls)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.runs) != 3 {
		t.Fatalf("expected 3 history rows, got %d", len(rec.runs))
	}
	for i, run := range rec.runs {
		id := int64(i + 1)
		switch run.Host {
		case "a1":
			if rec.status[id] != model.RunFailed {
				t.Fatalf("a1 status = %q, want failed", rec.status[id])
			}
		default:
			if run.Status != model.RunSkipped {
				t.Fatalf("%s status = %q, want skipped", run.Host, run.Status)
			}
		}
	}
}

func TestRun_HostsFilter(t *testing.T) {
	rc := recipe.Default()
	_ = rc.DefineStage(model.Stage{Name: "pair", DeployTo: "/srv/x", Roles: map[string][]model.Server{
		model.RoleApp: {model.NewServer("a1", nil), model.NewServer("a2", nil)},
	}})
	exec := &fakeExecutor{}
	r, _ := newTestRunner(t, rc, exec, WithHosts("a2"))
	if err := r.Invoke(context.Background(), "pair", "deploy:restart"); err != nil {
		t.Fatal(err)
	}
	calls := exec.sortedCalls()
	if len(calls) != 1 || calls[0].host != "a2" {
		t.Fatalf("unexpected calls %+v", calls)
	}
}

func TestRun_DryRunStatus(t *testing.T) {
	rec := &fakeRecorder{}
	r, _ := newTestRunner(t, recipe.Default(), &fakeExecutor{dry: true}, WithRecorder(rec))
	if err := r.Invoke(context.Background(), "staging", "deploy:restart"); err != nil {
		t.Fatal(err)
	}
	if rec.status[1] != model.RunDryRun {
		t.Fatalf("status = %q, want dry-run", rec.status[1])
	}
}

func TestRegistry_DefineAndList(t *testing.T) {
	reg, err := DefaultRegistry(recipe.Default())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tk := range reg.List() {
		names = append(names, tk.FullName())
	}
	want := []string{"deploy:restart", "deploy:start", "deploy:stop", "production", "staging"}
	if strings.Join(names, " ") != strings.Join(want, " ") {
		t.Fatalf("List = %v, want %v", names, want)
	}
	restart, _ := reg.Find("deploy:restart")
	if restart.ScopeString() != "roles=app except={no_release:true}" {
		t.Fatalf("ScopeString = %q", restart.ScopeString())
	}
	if err := reg.Define(Task{Name: "Bad:Name"}); !errors.Is(err, ErrInvalidTaskName) {
		t.Fatalf("expected ErrInvalidTaskName, got %v", err)
	}
}

func TestRestartCommand(t *testing.T) {
	rc := recipe.Default()
	if _, err := RestartCommand(rc); !errors.Is(err, recipe.ErrUnknownVariable) {
		t.Fatalf("expected unknown deploy_to before a stage, got %v", err)
	}
	if _, err := rc.ApplyStage("production"); err != nil {
		t.Fatal(err)
	}
	cmd, err := RestartCommand(rc)
	if err != nil || cmd != "touch /srv/ddrip/current/tmp/restart.txt" {
		t.Fatalf("RestartCommand = %q, %v", cmd, err)
	}
}
