package store

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID returns a short prefixed entity id, e.g. "wgt_x1y2z3a4b5c6".
// Prefixes keep result_refs self-describing in logs and events.
func NewID(prefix string) string {
	id, err := gonanoid.Generate(idAlphabet, 12)
	if err != nil {
		// gonanoid only fails when the platform RNG is broken
		panic(err)
	}
	return prefix + "_" + id
}

// Entity id prefixes
const (
	PrefixWidget    = "wgt"
	PrefixStep      = "stp"
	PrefixMessage   = "msg"
	PrefixDashboard = "dsh"
	PrefixAction    = "act"
	PrefixRun       = "run"
)
