// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. Issue holds longer Markdown guides for the failures a
// developer hits most often (missing virtual environment, broken interpreter,
// failed native build), rendered for the terminal with glamour.
package issue
