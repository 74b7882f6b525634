// SPDX-License-Identifier: MPL-2.0

// Package config handles project configuration using Viper with CUE as the file format.
//
// Configuration lives in nativeship.cue at the project root (optional; every
// field has a default). The file is validated against the embedded schema
// (config_schema.cue) before being merged into Viper over the defaults, and any
// key can be overridden with a NATIVESHIP_<SECTION>_<KEY> environment variable.
package config
