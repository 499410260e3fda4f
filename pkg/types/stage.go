// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package types

// Stage identifies where in the per-turn pipeline a request currently is.
// A turn advances strictly forward through the stages below; StageFailed is
// a terminal state reachable from any of them.
type Stage string

const (
	StageReceived  Stage = "received"
	StageEmbedded  Stage = "embedded"
	StageStored    Stage = "stored"
	StageRetrieved Stage = "retrieved"
	StageRanked    Stage = "ranked"
	StageComposed  Stage = "composed"
	StageResponded Stage = "responded"
	StageFailed    Stage = "failed"
)

// Valid reports whether the stage is a known pipeline stage.
func (s Stage) Valid() bool {
	switch s {
	case StageReceived, StageEmbedded, StageStored, StageRetrieved,
		StageRanked, StageComposed, StageResponded, StageFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the pipeline stops at this stage.
func (s Stage) Terminal() bool {
	return s == StageResponded || s == StageFailed
}
