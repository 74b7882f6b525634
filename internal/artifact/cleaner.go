// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nativeship/nativeship/internal/environ"
	"github.com/nativeship/nativeship/internal/proc"
)

// strayExts are the extensions under which a file named after the module
// could be imported instead of the deployed module, on any platform.
var strayExts = []string{".so", ".pyd", ".dylib", ".dll", ".py", ".pyc"}

type (
	// Cleaner removes stale build state under the project root.
	Cleaner struct {
		// Root is the project root that is searched.
		Root string
		// CacheDirName names the bytecode cache directories to remove.
		CacheDirName string
		// ModuleName is the deployed module name.
		ModuleName string
		// Tool and ManifestPath drive "<tool> clean --manifest-path <manifest>".
		Tool         string
		ManifestPath string

		Runner proc.Runner
		Logger *log.Logger
		Stdout io.Writer
		Stderr io.Writer
	}

	// CleanReport lists what the Cleaner removed and every error it tolerated.
	CleanReport struct {
		RemovedCacheDirs []string
		RemovedFiles     []string
		ToolCleaned      bool
		Errors           []error
	}
)

// Err joins the tolerated errors, or returns nil.
func (r CleanReport) Err() error {
	return errors.Join(r.Errors...)
}

// Clean runs the cache sweep, the build tool's clean and the stray module
// sweep, in that order. It never returns early and never fails; inspect the
// report for tolerated errors. Only context cancellation stops it.
func (c *Cleaner) Clean(ctx context.Context, env environ.Env) CleanReport {
	logger := c.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var report CleanReport

	if c.CacheDirName != "" {
		c.walk(&report, func(path string, d fs.DirEntry) (bool, error) {
			if !d.IsDir() || d.Name() != c.CacheDirName {
				return false, nil
			}
			if err := os.RemoveAll(path); err != nil {
				return true, err
			}
			report.RemovedCacheDirs = append(report.RemovedCacheDirs, path)
			return true, nil
		})
		logger.Debug("removed bytecode caches", "count", len(report.RemovedCacheDirs))
	}

	if ctx.Err() != nil {
		report.Errors = append(report.Errors, ctx.Err())
		return report
	}

	if c.Tool != "" && c.Runner != nil {
		res := c.Runner.Run(ctx, proc.Command{
			Name:   c.Tool,
			Args:   []string{"clean", "--manifest-path", c.ManifestPath},
			Dir:    c.Root,
			Env:    env,
			Stdout: c.Stdout,
			Stderr: c.Stderr,
		})
		if res.Failed() {
			report.Errors = append(report.Errors, fmt.Errorf("%s clean: %w", c.Tool, res.Err()))
		} else {
			report.ToolCleaned = true
		}
	}

	if ctx.Err() != nil {
		report.Errors = append(report.Errors, ctx.Err())
		return report
	}

	if c.ModuleName != "" {
		c.walk(&report, func(path string, d fs.DirEntry) (bool, error) {
			// Directories named after the module are source, never strays.
			if d.IsDir() || !c.isStray(path, d) {
				return false, nil
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return false, err
			}
			report.RemovedFiles = append(report.RemovedFiles, path)
			return false, nil
		})
		logger.Debug("removed stray module files", "count", len(report.RemovedFiles))
	}

	for _, err := range report.Errors {
		logger.Warn("cleanup step failed", "error", err)
	}
	return report
}

// isStray reports whether a non-directory entry could shadow the module.
// Symlinks count only when they do not resolve to a directory.
func (c *Cleaner) isStray(path string, d fs.DirEntry) bool {
	switch {
	case d.Type().IsRegular():
	case d.Type()&fs.ModeSymlink != 0:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return false
		}
	default:
		return false
	}
	name := d.Name()
	if name == c.ModuleName {
		return true
	}
	ext := filepath.Ext(name)
	if !slices.Contains(strayExts, ext) {
		return false
	}
	stem := strings.TrimSuffix(name, ext)
	// Interpreter-tagged builds such as <module>.cpython-311-x86_64-linux-gnu.so.
	return stem == c.ModuleName || strings.HasPrefix(stem, c.ModuleName+".")
}

// walk visits every entry under Root. visit returns skip=true to prune a
// directory it handled. Errors are recorded and the walk continues.
func (c *Cleaner) walk(report *CleanReport, visit func(path string, d fs.DirEntry) (skip bool, err error)) {
	err := filepath.WalkDir(c.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			report.Errors = append(report.Errors, err)
			if d != nil && d.IsDir() && path != c.Root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == c.Root {
			return nil
		}
		skip, visitErr := visit(path, d)
		if visitErr != nil {
			report.Errors = append(report.Errors, visitErr)
		}
		if skip && d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		report.Errors = append(report.Errors, err)
	}
}
