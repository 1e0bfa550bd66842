package sequencer

import (
	"time"

	"github.com/google/uuid"
	"github.com/skyloop/engine/pkg/core"
)

// EventKind identifies what happened to the playback surface or the UI.
type EventKind string

const (
	// EventActivate is a hotspot activation from the overlay.
	EventActivate EventKind = "activate"
	// EventEnded is the surface reporting end-of-playback.
	EventEnded EventKind = "ended"
	// EventError is the surface reporting a load or decode failure.
	EventError EventKind = "error"
	// EventLoaded is the surface reporting a successful load and start
	// of playback. It disarms the load watchdog.
	EventLoaded EventKind = "loaded"
	// EventLoadTimeout is the internal load watchdog firing.
	EventLoadTimeout EventKind = "loadTimeout"
	// EventLocationChange is an explicit request to move to another location.
	EventLocationChange EventKind = "locationChange"
	// EventAutoplayBlocked is the surface reporting a rejected play() call.
	EventAutoplayBlocked EventKind = "autoplayBlocked"
	// EventUserInteraction is the first user gesture, which unlocks
	// autoplay retries.
	EventUserInteraction EventKind = "userInteraction"
)

// Event is the single input type of the state machine. Identity scopes
// ended/error/timeout events to the video they refer to, which makes
// advancing idempotent against duplicate or stale firings.
type Event struct {
	Kind       EventKind
	Hotspot    *core.Hotspot  // EventActivate
	Playlist   *core.Playlist // EventActivate, PRIMARY hotspots
	LocationID uuid.UUID      // EventLocationChange
	Identity   core.VideoIdentity
	Timestamp  time.Time
}

// Cause labels why a transition happened, for telemetry.
type Cause string

const (
	CauseEnded    Cause = "ended"
	CauseError    Cause = "error"
	CauseTimeout  Cause = "timeout"
	CauseActivate Cause = "activate"
	CauseLocation Cause = "location"
)

func causeOf(k EventKind) Cause {
	switch k {
	case EventError:
		return CauseError
	case EventLoadTimeout:
		return CauseTimeout
	case EventActivate:
		return CauseActivate
	case EventLocationChange:
		return CauseLocation
	}
	return CauseEnded
}
