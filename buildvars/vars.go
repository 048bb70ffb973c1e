// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

// Package buildvars contains variables injected at build time.
package buildvars

// Version is set at link time via
// -ldflags "-X github.com/digital-drip/ddrip-deploy/buildvars.Version=...".
// It is empty for local builds.
var Version string

// VersionOrDefault returns Version if set, otherwise def.
func VersionOrDefault(def string) string {
	if len(Version) > 0 {
		return Version
	}
	return def
}
