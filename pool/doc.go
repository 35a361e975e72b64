// Package pool implements the run-scoped string pool and the ilk-tagged
// hash table that interns every name the engine sees.
//
// This package contains:
//   - Pool: append-only byte storage addressed by StrNum
//   - Table: fixed-capacity open-addressing hash keyed by (bytes, ilk)
//   - Ilk: the namespace tag that keeps cite keys, function names,
//     macros and plain text apart
package pool
