// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package buildvars

import "testing"

func TestVersionOrDefault(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = ""
	if got := VersionOrDefault("dev"); got != "dev" {
		t.Fatalf("expected default, got %q", got)
	}
	Version = "v0.3.0"
	if got := VersionOrDefault("dev"); got != "v0.3.0" {
		t.Fatalf("expected linked version, got %q", got)
	}
}
