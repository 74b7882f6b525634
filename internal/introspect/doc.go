// SPDX-License-Identifier: MPL-2.0

// Package introspect queries the activated interpreter for the facts the
// native build and the relocation depend on.
//
// Every query is its own blocking subprocess run with the activated
// environment. A failing query is fatal and reported as a *QueryError naming
// the query, so the user can tell which interpreter fact could not be derived.
package introspect
