// Copyright (c) 2026 Digital Drip Team
// ddrip-deploy - stage and role aware remote task runner
// This source code is licensed under the MIT license found in the LICENSE file.

package recipe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Variable names with meaning to the runner.
const (
	VarRepository   = "repository"
	VarApplication  = "application"
	VarSCM          = "scm"
	VarUser         = "user"
	VarBranch       = "branch"
	VarDeployTo     = "deploy_to"
	VarCurrentPath  = "current_path"
	VarReleasesPath = "releases_path"
	VarSharedPath   = "shared_path"
	VarUseSudo      = "use_sudo"
	VarSudoPrompt   = "sudo_prompt"
	VarStage        = "stage"
)

// DefaultSudoPrompt is passed to sudo -p when use_sudo is enabled.
const DefaultSudoPrompt = "sudo password: "

// derived variables are computed from others unless set explicitly.
var derived = map[string]string{
	VarCurrentPath:  "${deploy_to}/current",
	VarReleasesPath: "${deploy_to}/releases",
	VarSharedPath:   "${deploy_to}/shared",
	VarUseSudo:      "false",
	VarSudoPrompt:   DefaultSudoPrompt,
}

// refRe matches ${name} references. A bare $ is literal.
var refRe = regexp.MustCompile(`\$\{([^{}]*)\}`)

// Set stores the raw value of a variable. References to other variables are
// kept unexpanded until the value is fetched.
func (r *Recipe) Set(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vars[name] = value
}

// Fetch returns the expanded value of a variable.
func (r *Recipe) Fetch(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.expand(name, map[string]bool{})
}

// FetchOr is Fetch with a default for unknown variables. Other errors, such
// as cycles, also yield def; use Fetch where they matter.
func (r *Recipe) FetchOr(name, def string) string {
	v, err := r.Fetch(name)
	if err != nil {
		return def
	}
	return v
}

// FetchBool parses a variable as a boolean; unknown or malformed values
// yield def.
func (r *Recipe) FetchBool(name string, def bool) bool {
	v, err := r.fetchBool(name)
	if err != nil {
		return def
	}
	return v
}

func (r *Recipe) fetchBool(name string) (bool, error) {
	v, err := r.Fetch(name)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", name, v)
	}
	return b, nil
}

// Variables returns every known variable expanded, including derived ones.
// Values that fail to expand are reported with their error text.
func (r *Recipe) Variables() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make(map[string]struct{}, len(r.vars)+len(derived))
	for k := range r.vars {
		names[k] = struct{}{}
	}
	if _, ok := r.vars[VarDeployTo]; ok {
		for k := range derived {
			names[k] = struct{}{}
		}
	}
	out := make(map[string]string, len(names))
	for k := range names {
		v, err := r.expand(k, map[string]bool{})
		if err != nil {
			v = "<" + err.Error() + ">"
		}
		out[k] = v
	}
	return out
}

func (r *Recipe) raw(name string) (string, bool) {
	if v, ok := r.vars[name]; ok {
		return v, true
	}
	v, ok := derived[name]
	return v, ok
}

// expand resolves name and every ${ref} inside it. visiting tracks the
// names on the current resolution path.
func (r *Recipe) expand(name string, visiting map[string]bool) (string, error) {
	if visiting[name] {
		return "", fmt.Errorf("%w: %s", ErrVariableCycle, name)
	}
	value, ok := r.raw(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownVariable, name)
	}
	if !strings.Contains(value, "${") {
		return value, nil
	}
	visiting[name] = true
	defer delete(visiting, name)

	var expandErr error
	out := refRe.ReplaceAllStringFunc(value, func(m string) string {
		if expandErr != nil {
			return ""
		}
		v, err := r.expand(refRe.FindStringSubmatch(m)[1], visiting)
		if err != nil {
			expandErr = err
			return ""
		}
		return v
	})
	if expandErr != nil {
		return "", fmt.Errorf("expanding %s: %w", name, expandErr)
	}
	return out, nil
}

// TrySudo returns the sudo wrapper when use_sudo is enabled, followed by any
// args. Without sudo it returns the args joined, which is the empty string
// when there are none. A malformed use_sudo or sudo_prompt is an error.
func (r *Recipe) TrySudo(args ...string) (string, error) {
	parts := make([]string, 0, len(args)+1)
	useSudo, err := r.fetchBool(VarUseSudo)
	if err != nil {
		return "", err
	}
	if useSudo {
		prompt, err := r.Fetch(VarSudoPrompt)
		if err != nil {
			return "", err
		}
		parts = append(parts, "sudo -p "+shellQuote(prompt))
	}
	for _, a := range args {
		if a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " "), nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
