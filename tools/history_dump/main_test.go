// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/digital-drip/ddrip-deploy/core/db"
	"github.com/digital-drip/ddrip-deploy/core/model"
)

func TestRun_PrintsExport(t *testing.T) {
	ctx := context.Background()
	store, err := db.Open(ctx, db.TypeSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	id, err := store.Start(ctx, model.TaskRun{
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Stage:     "production",
		Task:      "deploy:restart",
		Host:      "digital-drip.com",
		Command:   "touch /srv/ddrip/current/tmp/restart.txt",
		Status:    model.RunRunning,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := store.Finish(ctx, id, model.RunOK, nil); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	path := filepath.Join(t.TempDir(), "history.zst")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Export(ctx, f); err != nil {
		t.Fatalf("Export: %v", err)
	}
	_ = f.Close()

	var out bytes.Buffer
	if err := run([]string{path}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "1 runs") {
		t.Fatalf("missing header: %s", got)
	}
	if !strings.Contains(got, "production\tdeploy:restart\tdigital-drip.com\tok\ttouch /srv/ddrip/current/tmp/restart.txt") {
		t.Fatalf("missing run line: %s", got)
	}
}

func TestRun_Usage(t *testing.T) {
	if err := run(nil, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected usage error")
	}
}
