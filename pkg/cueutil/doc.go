// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE validation utilities.
//
// Validate compiles an embedded schema, unifies user data with one of its
// definitions and reports failures with JSON-path prefixes:
//
//	//go:embed config_schema.cue
//	var schema string
//
//	value, err := cueutil.Validate(schema, "#Config", data, "nativeship.cue")
//	if err != nil {
//	    return err // nativeship.cue: launch.command: incomplete value ...
//	}
package cueutil
