// SPDX-License-Identifier: MPL-2.0

// Package artifact cleans stale build outputs and relocates the freshly
// built native library into the interpreter's module search directory.
//
// The Cleaner is best-effort: every failure is collected in its report and
// nothing it does stops the pipeline. The Relocator copies the artifact under
// the module loader's filename and verifies the result by re-listing the
// destination and comparing SHA-256 digests.
package artifact
