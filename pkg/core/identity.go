// pkg/core/identity.go
package core

import (
	"fmt"

	"github.com/google/uuid"
)

// IdentityKind classifies what the playback surface should show.
type IdentityKind string

const (
	KindAerial     IdentityKind = "aerial"
	KindTransition IdentityKind = "transition"
	KindSequence   IdentityKind = "sequence"
)

// SequenceStage is one step of a hotspot's scripted video sequence.
type SequenceStage string

const (
	StageDiveIn     SequenceStage = "diveIn"
	StageFloorLevel SequenceStage = "floorLevel"
	StageZoomOut    SequenceStage = "zoomOut"
)

// Next returns the stage that follows s, and false when s is the last one.
func (s SequenceStage) Next() (SequenceStage, bool) {
	switch s {
	case StageDiveIn:
		return StageFloorLevel, true
	case StageFloorLevel:
		return StageZoomOut, true
	}
	return "", false
}

// VideoIdentity is the engine's representation of "what should currently
// be playing". It is a tagged value: Stage and HotspotID are only
// meaningful when Kind is KindSequence.
type VideoIdentity struct {
	Kind      IdentityKind
	Stage     SequenceStage
	HotspotID uuid.UUID
}

// AerialIdentity returns the looping aerial identity.
func AerialIdentity() VideoIdentity {
	return VideoIdentity{Kind: KindAerial}
}

// TransitionIdentity returns the location-change transition identity.
func TransitionIdentity() VideoIdentity {
	return VideoIdentity{Kind: KindTransition}
}

// SequenceIdentity returns the identity for one stage of a hotspot's sequence.
func SequenceIdentity(stage SequenceStage, hotspotID uuid.UUID) VideoIdentity {
	return VideoIdentity{Kind: KindSequence, Stage: stage, HotspotID: hotspotID}
}

// IsSequence reports whether the identity is part of a hotspot sequence.
func (v VideoIdentity) IsSequence() bool {
	return v.Kind == KindSequence
}

// Key returns a stable string form used as a cache key.
func (v VideoIdentity) Key() string {
	if v.Kind == KindSequence {
		return fmt.Sprintf("%s_%s", v.Stage, v.HotspotID)
	}
	return string(v.Kind)
}

// String implements fmt.Stringer.
func (v VideoIdentity) String() string {
	return v.Key()
}
