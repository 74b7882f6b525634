// SPDX-License-Identifier: MPL-2.0

package environ

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/nativeship/nativeship/pkg/platform"
)

// ErrNotFound is returned by LookPath when no PATH entry holds the executable.
var ErrNotFound = errors.New("executable not found in PATH")

// Env is an environment as a name to value map.
type Env map[string]string

// FromOS snapshots the orchestrator's inherited environment.
func FromOS() Env {
	return FromList(os.Environ())
}

// FromList parses KEY=VALUE pairs. Later duplicates win; entries without '='
// and entries with an empty name are skipped.
func FromList(pairs []string) Env {
	env := make(Env, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			continue
		}
		env[name] = value
	}
	return env
}

// Clone returns an independent copy.
func (e Env) Clone() Env {
	if e == nil {
		return Env{}
	}
	return maps.Clone(e)
}

// Get returns the value of name or "".
func (e Env) Get(name string) string { return e[name] }

// Lookup returns the value of name and whether it is set.
func (e Env) Lookup(name string) (string, bool) {
	v, ok := e[name]
	return v, ok
}

// Set assigns value to name.
func (e Env) Set(name, value string) { e[name] = value }

// Unset removes name.
func (e Env) Unset(name string) { delete(e, name) }

// List returns the environment as sorted KEY=VALUE pairs, the form expected
// by exec.Cmd.Env.
func (e Env) List() []string {
	names := slices.Sorted(maps.Keys(e))
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+e[name])
	}
	return pairs
}

// Path returns the PATH entries in order.
func (e Env) Path() []string {
	return filepath.SplitList(e["PATH"])
}

// SetPath joins entries into PATH.
func (e Env) SetPath(entries []string) {
	e["PATH"] = strings.Join(entries, string(os.PathListSeparator))
}

// LookPath resolves name against this Env's PATH. Names containing a path
// separator are checked as given.
func (e Env) LookPath(name string) (string, error) {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		if isExecutable(name) {
			return name, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	for _, dir := range e.Path() {
		if dir == "" {
			continue
		}
		for _, candidate := range executableNames(name) {
			path := filepath.Join(dir, candidate)
			if isExecutable(path) {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func executableNames(name string) []string {
	if runtime.GOOS != platform.Windows || filepath.Ext(name) != "" {
		return []string{name}
	}
	return []string{name, name + ".exe", name + ".bat", name + ".cmd"}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == platform.Windows {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
