// SPDX-License-Identifier: MPL-2.0

// Package environ models process environments as explicit values.
//
// An Env is threaded through the pipeline stages and applied to each
// subprocess at the call site; nothing in this package touches the
// orchestrator's own process environment. Reset strips any active
// virtual environment or conda activation, and Activator sources an
// activation script in an embedded POSIX shell to produce the activated Env.
package environ
