// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Besides the Must* helpers it can lay out a fake project (NewFakeProject,
// or LayoutFakeProject outside a *testing.T):
// a virtual environment with an activation script, a shell-script python
// interpreter answering the introspection queries, a shell-script cargo that
// writes a deterministic artifact, and a dashboard entry point. The fakes are
// POSIX shell scripts, so tests using them skip on Windows.
package testutil
