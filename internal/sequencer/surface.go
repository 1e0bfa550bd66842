package sequencer

import "github.com/skyloop/engine/pkg/core"

// Source is everything the playback surface needs to show one video.
type Source struct {
	Identity core.VideoIdentity
	URL      string
	Loop     bool
	Muted    bool
	Autoplay bool
}

// Surface is the single video playback element. It is exclusively owned by
// the state machine: overlays and drawing engines read its geometry but
// never touch playback state.
type Surface interface {
	// SetSource swaps the playing video. The surface reports lifecycle
	// outcomes back to the machine via Advance events.
	SetSource(src Source)
}

// Resolver maps a video identity to a playable URL within the active
// location. It returns ErrNoSource when the identity has no asset wired.
type Resolver interface {
	Resolve(identity core.VideoIdentity) (string, error)
}

// Logger is the pluggable logging interface, matching the dispatcher's.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Recorder receives playback telemetry. Implementations must not block.
type Recorder interface {
	RecordTransition(from, to core.VideoIdentity, cause Cause, dwellMillis int64)
}

// nopLogger is used when no logger is supplied.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
