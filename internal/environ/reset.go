// SPDX-License-Identifier: MPL-2.0

package environ

import (
	"maps"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/nativeship/nativeship/pkg/platform"
)

var (
	venvVars  = []string{"VIRTUAL_ENV", "VIRTUAL_ENV_PROMPT"}
	condaVars = []string{"CONDA_PREFIX", "CONDA_DEFAULT_ENV", "CONDA_PROMPT_MODIFIER"}

	// CONDA_PREFIX_1, CONDA_PREFIX_2, ... hold the stacked activations.
	condaStackedPrefix = regexp.MustCompile(`^CONDA_PREFIX_[0-9]+$`)
)

// ResetReport describes what Reset deactivated.
type ResetReport struct {
	// Deactivated lists the environment roots that were active.
	Deactivated []string
	// RemovedPath lists PATH entries that were dropped.
	RemovedPath []string
	// Unset lists variables that were removed.
	Unset []string
}

// Active reports whether anything was deactivated.
func (r ResetReport) Active() bool {
	return len(r.Deactivated) > 0
}

// Reset returns a copy of base with every virtualenv and conda activation
// removed. When nothing is active the copy equals base and the report is
// empty. Reset never fails.
func Reset(base Env, naming platform.Naming) (Env, ResetReport) {
	env := base.Clone()
	var report ResetReport

	var binDirs []string
	if venv := env.Get("VIRTUAL_ENV"); venv != "" {
		report.Deactivated = append(report.Deactivated, venv)
		binDirs = append(binDirs, filepath.Join(venv, naming.BinDir))
	}
	condaActive := false
	for _, name := range condaPrefixVars(env) {
		prefix := env.Get(name)
		if prefix == "" {
			continue
		}
		condaActive = true
		if !slices.Contains(report.Deactivated, prefix) {
			report.Deactivated = append(report.Deactivated, prefix)
		}
		binDirs = append(binDirs, filepath.Join(prefix, naming.BinDir))
	}

	if len(binDirs) > 0 {
		var kept []string
		for _, entry := range env.Path() {
			if slices.Contains(binDirs, filepath.Clean(entry)) {
				report.RemovedPath = append(report.RemovedPath, entry)
				continue
			}
			kept = append(kept, entry)
		}
		if len(report.RemovedPath) > 0 {
			env.SetPath(kept)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(env)) {
		if slices.Contains(venvVars, name) || slices.Contains(condaVars, name) || condaStackedPrefix.MatchString(name) {
			env.Unset(name)
			report.Unset = append(report.Unset, name)
		}
	}
	if _, ok := env.Lookup("CONDA_SHLVL"); ok && condaActive {
		env.Set("CONDA_SHLVL", "0")
	}

	return env, report
}

// condaPrefixVars returns CONDA_PREFIX and its stacked variants, sorted.
func condaPrefixVars(env Env) []string {
	var names []string
	for name := range env {
		if name == "CONDA_PREFIX" || condaStackedPrefix.MatchString(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
