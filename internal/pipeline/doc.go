// SPDX-License-Identifier: MPL-2.0

// Package pipeline drives the build-and-deploy stages in order.
//
// Each stage returns a tagged Outcome (Continue or Abort with an exit code)
// and an error. What an error means depends on the stage's Policy: a Fatal
// stage stops the run, a BestEffort stage only logs a warning. Abort stops
// the run immediately with the given code whatever the policy; only the
// native build stage uses it. State is created fresh for every run and is
// the only thing stages share.
package pipeline
