// Package model holds the domain entities shared across the frame
// synchronization core: records, camera state, groups, and the tagged
// rate-control decision returned by a synchronizer's Sampling call.
package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// FrameRecord is one camera's frame as buffered by a synchronizer.
// Immutable after Collect except for Grouped, which a grouping pass sets;
// destroyed on eviction or group dispatch.
type FrameRecord struct {
	CameraID       string
	FrameNumber    int
	FrameTimestamp float64
	FPS            int
	Payload        json.RawMessage
	EntryTime      float64
	Grouped        bool
}

// CameraState tracks per-camera bookkeeping. Created on first observation
// of a camera_id, never destroyed for the lifetime of a synchronizer.
type CameraState struct {
	CameraID           string
	StartTime          float64
	InitialDelay       float64
	LastFrameNumber    int
	LastFrameTimestamp float64
}

// Group is a completed cross-camera match: exactly one record per
// distinct camera_id observed so far, keyed by a shared grouping key.
type Group struct {
	ID          uuid.UUID
	Records     []FrameRecord
	GroupingKey float64
	GroupedAt   float64
}

// CameraIDs returns the member camera ids in record order, used by
// property tests asserting pairwise distinctness (P2).
func (g Group) CameraIDs() []string {
	ids := make([]string, len(g.Records))
	for i, r := range g.Records {
		ids[i] = r.CameraID
	}
	return ids
}

// SamplingKind distinguishes the two cases of a rate-control decision.
type SamplingKind int

const (
	Skip SamplingKind = iota
	Wait
)

// SamplingAction is the tagged variant replacing the source's overloaded
// (number, bool) return shape (see spec.md §9 redesign flags): a
// synchronizer's Sampling call returns either a frame count to skip or a
// duration to sleep, never an ambiguous pair.
type SamplingAction struct {
	Kind  SamplingKind
	Count int           // valid when Kind == Skip
	Wait  float64       // seconds, valid when Kind == Wait
}

func SkipAction(count int) SamplingAction {
	if count < 0 {
		count = 0
	}
	return SamplingAction{Kind: Skip, Count: count}
}

func WaitAction(seconds float64) SamplingAction {
	if seconds < 0 {
		seconds = 0
	}
	return SamplingAction{Kind: Wait, Wait: seconds}
}
