// SPDX-License-Identifier: MPL-2.0

// Package proc runs blocking subprocesses with an explicit environment.
//
// Commands never inherit the orchestrator's process environment: the
// executable is resolved against Command.Env's PATH and exactly that Env is
// handed to the child. Interrupting the context forwards an interrupt to the
// child and kills it after the command's wait delay.
package proc
