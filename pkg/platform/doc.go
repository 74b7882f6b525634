// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform naming conventions.
//
// The native build tool and the Python module loader disagree on shared-library
// filenames: cargo names a cdylib after the host's linker conventions
// (librust_data_collector.dylib on macOS, rust_data_collector.dll on Windows),
// while CPython only imports extension modules ending in .so (POSIX) or .pyd
// (Windows). Naming captures both sides for a given GOOS.
package platform
