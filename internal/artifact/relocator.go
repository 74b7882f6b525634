// SPDX-License-Identifier: MPL-2.0

package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nativeship/nativeship/pkg/platform"
)

// ErrArtifactMissing is returned when the build tool reported success but the
// expected library is not there.
var ErrArtifactMissing = errors.New("built artifact missing")

type (
	// VerificationError reports a deployment that does not satisfy the
	// relocation postcondition.
	VerificationError struct {
		Dir    string
		Reason string
		// Entries are the directory entries that matched the module name.
		Entries []string
	}

	// Relocator deploys a built artifact into the module search directory.
	Relocator struct {
		Naming platform.Naming
		Logger *log.Logger
	}

	// Deployment describes a verified relocation.
	Deployment struct {
		Path   string
		SHA256 string
		Size   int64
		// Replaced lists stale files removed before the copy.
		Replaced []string
		// Kept lists stale entries that could not be removed.
		Kept []string
	}
)

// Error implements the error interface.
func (e *VerificationError) Error() string {
	msg := fmt.Sprintf("deployment verification failed in %s: %s", e.Dir, e.Reason)
	if len(e.Entries) > 0 {
		msg += " (" + strings.Join(e.Entries, ", ") + ")"
	}
	return msg
}

// NewRelocator creates a Relocator for the given platform conventions.
func NewRelocator(naming platform.Naming, logger *log.Logger) *Relocator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Relocator{Naming: naming, Logger: logger}
}

// Relocate pre-cleans the destination, copies BuiltPath to DeployedPath and
// verifies the result. Only the filename changes; the bytes are copied as is.
func (r *Relocator) Relocate(a Artifact) (*Deployment, error) {
	info, err := os.Stat(a.BuiltPath)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, a.BuiltPath)
	}

	siteDir := filepath.Dir(a.DeployedPath)
	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return nil, fmt.Errorf("create module search directory: %w", err)
	}

	dep := &Deployment{Path: a.DeployedPath}
	for _, name := range r.staleNames(a.ModuleName) {
		path := filepath.Join(siteDir, name)
		err := os.Remove(path)
		switch {
		case err == nil:
			dep.Replaced = append(dep.Replaced, path)
		case errors.Is(err, fs.ErrNotExist):
		default:
			r.Logger.Warn("could not remove stale deployment", "path", path, "error", err)
			dep.Kept = append(dep.Kept, path)
		}
	}
	if len(dep.Replaced) > 0 {
		r.Logger.Debug("removed stale deployments", "paths", dep.Replaced)
	}

	builtSum, size, err := copyFile(a.BuiltPath, a.DeployedPath, info.Mode().Perm())
	if err != nil {
		return nil, err
	}
	dep.SHA256 = builtSum
	dep.Size = size

	if err := r.verify(a, builtSum); err != nil {
		return nil, err
	}
	return dep, nil
}

// staleNames are the filenames a previous deployment may have left, under
// both the build tool's naming and the module loader's naming.
func (r *Relocator) staleNames(module string) []string {
	names := []string{
		module + r.Naming.NativeExt,
		r.Naming.NativeFileName(module),
		r.Naming.ModuleFileName(module),
	}
	uniq := names[:0]
	for _, n := range names {
		if !slices.Contains(uniq, n) {
			uniq = append(uniq, n)
		}
	}
	return uniq
}

func (r *Relocator) verify(a Artifact, builtSum string) error {
	siteDir := filepath.Dir(a.DeployedPath)
	entries, err := os.ReadDir(siteDir)
	if err != nil {
		return &VerificationError{Dir: siteDir, Reason: err.Error()}
	}

	var matches []string
	for _, e := range entries {
		if r.Naming.ModuleStem(e.Name()) != a.ModuleName {
			continue
		}
		// A package directory of the same name is legitimate (editable
		// installs leave one); only files compete with the deployed module.
		if isDir(siteDir, e) {
			r.Logger.Debug("package directory shares the module name", "path", filepath.Join(siteDir, e.Name()))
			continue
		}
		matches = append(matches, e.Name())
	}
	want := filepath.Base(a.DeployedPath)
	if len(matches) != 1 || matches[0] != want {
		return &VerificationError{
			Dir:     siteDir,
			Reason:  fmt.Sprintf("expected exactly one entry named %s", want),
			Entries: matches,
		}
	}

	deployedSum, _, err := hashFile(a.DeployedPath)
	if err != nil {
		return &VerificationError{Dir: siteDir, Reason: err.Error()}
	}
	if deployedSum != builtSum {
		return &VerificationError{
			Dir:    siteDir,
			Reason: fmt.Sprintf("content digest %s does not match built artifact %s", deployedSum, builtSum),
		}
	}
	return nil
}

// isDir reports whether e is a directory or a symlink to one.
func isDir(dir string, e fs.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, e.Name()))
	return err == nil && info.IsDir()
}

// copyFile copies src to dst through a temporary file in dst's directory and
// returns the SHA-256 of the copied bytes.
func copyFile(src, dst string, perm fs.FileMode) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, fmt.Errorf("open built artifact: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp*")
	if err != nil {
		return "", 0, fmt.Errorf("create deployment file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), in)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, fmt.Errorf("copy artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return "", 0, fmt.Errorf("copy artifact: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", 0, fmt.Errorf("copy artifact: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
