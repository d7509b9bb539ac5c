// Package model defines stable boundary types for API layers.
//
// Guard semantics live in the guard package; these structs are the JSON
// projections returned by the RPC service and printed by the CLI.
package model
