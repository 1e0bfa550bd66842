package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/skyloop/engine/pkg/core"
)

// Default timing policy. Values are tuned for perceived smoothness, not
// correctness: the machine works with any positive durations.
const (
	defaultDebounce    = 800 * time.Millisecond
	defaultGraceWindow = 3 * time.Second
	defaultLoadTimeout = 10 * time.Second
)

// ErrNoSource is returned by resolvers when an identity has no asset.
var ErrNoSource = errors.New("no source for video identity")

// Machine is the video sequencing state machine. All playback decisions
// flow through Advance; the surface only reports what happened.
//
// States are video identities: aerial, transition, and the three sequence
// stages scoped to a hotspot. The aerial loop is the rest state; a PRIMARY
// hotspot activation walks diveIn → floorLevel → zoomOut and returns to
// aerial. Sequence load/playback failures advance exactly like ended
// events, so a broken video never strands the experience.
type Machine struct {
	mu sync.Mutex

	surface  Surface
	resolver Resolver
	logger   Logger
	recorder Recorder

	current   core.VideoIdentity
	enteredAt time.Time
	started   bool
	closed    bool

	// gen is the liveness token. Location changes and shutdown bump it;
	// timers capture it when scheduled and no-op when it has moved on.
	gen int

	muted           bool
	awaitingGesture bool
	lastSrc         Source
	haveSrc         bool

	transitioning bool
	graceTimer    *time.Timer

	loadTimer *time.Timer

	sourceTimer   *time.Timer
	firstLoadDone bool

	pendingLocation uuid.UUID
	hasPendingLoc   bool

	debounce    time.Duration
	grace       time.Duration
	loadTimeout time.Duration
	now         func() time.Time

	onInfoPanel      func(core.Hotspot)
	onAerialError    func(error)
	onLocationChange func(uuid.UUID)

	transitions metric.Int64Counter
	errorSkips  metric.Int64Counter
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the machine's logger.
func WithLogger(l Logger) Option { return func(m *Machine) { m.logger = l } }

// WithRecorder sets the telemetry recorder.
func WithRecorder(r Recorder) Option { return func(m *Machine) { m.recorder = r } }

// WithMuted starts the experience muted.
func WithMuted() Option { return func(m *Machine) { m.muted = true } }

// WithDebounce overrides the source-change debounce window.
func WithDebounce(d time.Duration) Option { return func(m *Machine) { m.debounce = d } }

// WithGraceWindow overrides the transitioning grace window.
func WithGraceWindow(d time.Duration) Option { return func(m *Machine) { m.grace = d } }

// WithLoadTimeout overrides the load watchdog duration.
func WithLoadTimeout(d time.Duration) Option { return func(m *Machine) { m.loadTimeout = d } }

// WithInfoPanelFunc sets the SECONDARY hotspot side effect.
func WithInfoPanelFunc(f func(core.Hotspot)) Option { return func(m *Machine) { m.onInfoPanel = f } }

// WithAerialErrorFunc sets the retryable-error surface for aerial failures.
func WithAerialErrorFunc(f func(error)) Option { return func(m *Machine) { m.onAerialError = f } }

// WithLocationChangeFunc sets the navigation callback fired when a
// transition video completes.
func WithLocationChangeFunc(f func(uuid.UUID)) Option {
	return func(m *Machine) { m.onLocationChange = f }
}

// New creates a Machine over the given surface and resolver.
// Metrics use the global OTel meter (no-op when not configured).
func New(surface Surface, resolver Resolver, opts ...Option) (*Machine, error) {
	m := &Machine{
		surface:     surface,
		resolver:    resolver,
		logger:      nopLogger{},
		current:     core.AerialIdentity(),
		debounce:    defaultDebounce,
		grace:       defaultGraceWindow,
		loadTimeout: defaultLoadTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	mt := meter()
	var err error
	m.transitions, err = mt.Int64Counter(
		"sequencer.transitions",
		metric.WithDescription("Total state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}
	m.errorSkips, err = mt.Int64Counter(
		"sequencer.error_skips",
		metric.WithDescription("Sequence videos skipped due to load or playback failure"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error skip counter: %w", err)
	}
	return m, nil
}

// Start enters the aerial state and applies its source immediately (the
// first load is never debounced).
func (m *Machine) Start() {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.current = core.AerialIdentity()
	m.enteredAt = m.now()
	after := m.applySourceLocked(m.current)
	m.mu.Unlock()
	runAll(after)
}

// Current returns the identity that should currently be playing.
func (m *Machine) Current() core.VideoIdentity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transitioning reports the UI-suppression hint: true for a grace window
// around every sequence boundary so loading spinners do not flicker.
func (m *Machine) Transitioning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitioning
}

// AwaitingGesture reports whether playback is parked until the first user
// interaction because even the muted autoplay retry was rejected.
func (m *Machine) AwaitingGesture() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.awaitingGesture
}

// Retry re-applies the current source. Wired to the user-facing reload
// action shown when the aerial video fails.
func (m *Machine) Retry() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	after := m.applySourceLocked(m.current)
	m.mu.Unlock()
	runAll(after)
}

// Close invalidates all pending timers and ignores further events.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.gen++
	m.stopTimersLocked()
}

// Advance is the single entry point for all events. It is safe to call
// from any goroutine; duplicate or stale events are ignored.
func (m *Machine) Advance(ev Event) {
	m.mu.Lock()
	if m.closed || !m.started {
		m.mu.Unlock()
		return
	}

	var after []func()
	switch ev.Kind {
	case EventActivate:
		after = m.handleActivateLocked(ev)
	case EventEnded, EventError, EventLoadTimeout:
		after = m.handleOutcomeLocked(ev)
	case EventLoaded:
		m.handleLoadedLocked(ev)
	case EventLocationChange:
		after = m.handleLocationChangeLocked(ev)
	case EventAutoplayBlocked:
		after = m.handleAutoplayBlockedLocked(ev)
	case EventUserInteraction:
		after = m.handleUserInteractionLocked()
	default:
		m.logger.Debug("ignoring unknown event", "kind", ev.Kind)
	}
	m.mu.Unlock()
	runAll(after)
}

func (m *Machine) handleActivateLocked(ev Event) []func() {
	if ev.Hotspot == nil {
		return nil
	}
	h := *ev.Hotspot

	if h.Type == core.HotspotSecondary {
		// Info panel opens over the looping aerial; no video state change.
		if cb := m.onInfoPanel; cb != nil {
			return []func(){func() { cb(h) }}
		}
		return nil
	}

	if m.current.Kind != core.KindAerial {
		m.logger.Debug("activation ignored outside aerial", "state", m.current.Key())
		return nil
	}
	if !ev.Playlist.IsComplete() {
		m.logger.Info("activation ignored: playlist incomplete", "hotspot", h.ID)
		return nil
	}

	return m.transitionLocked(core.SequenceIdentity(core.StageDiveIn, h.ID), causeOf(ev.Kind))
}

// handleLoadedLocked disarms the load watchdog once the surface reports
// the video is actually playing. The watchdog guards loading, not
// playback: a video longer than loadTimeout must not be cut short.
func (m *Machine) handleLoadedLocked(ev Event) {
	if ev.Identity != m.current {
		m.logger.Debug("stale loaded ignored",
			"for", ev.Identity.Key(), "current", m.current.Key())
		return
	}
	m.stopLoadTimerLocked()
}

// handleOutcomeLocked processes ended, error and load-timeout events.
// All three advance the sequence identically: a broken sequence video is
// indistinguishable from one that finished.
func (m *Machine) handleOutcomeLocked(ev Event) []func() {
	if ev.Identity != m.current {
		m.logger.Debug("stale outcome ignored",
			"event", ev.Kind, "for", ev.Identity.Key(), "current", m.current.Key())
		return nil
	}
	m.stopLoadTimerLocked()

	switch m.current.Kind {
	case core.KindSequence:
		if ev.Kind != EventEnded {
			m.errorSkips.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("stage", string(m.current.Stage))))
			m.logger.Info("sequence video failed, advancing",
				"identity", m.current.Key(), "cause", ev.Kind)
		}
		if next, ok := m.current.Stage.Next(); ok {
			return m.transitionLocked(core.SequenceIdentity(next, m.current.HotspotID), causeOf(ev.Kind))
		}
		return m.transitionLocked(core.AerialIdentity(), causeOf(ev.Kind))

	case core.KindTransition:
		var after []func()
		if m.hasPendingLoc {
			loc := m.pendingLocation
			m.hasPendingLoc = false
			if cb := m.onLocationChange; cb != nil {
				after = append(after, func() { cb(loc) })
			}
		}
		return append(after, m.transitionLocked(core.AerialIdentity(), causeOf(ev.Kind))...)

	case core.KindAerial:
		if ev.Kind == EventEnded {
			// The aerial loops; an ended here is surface noise.
			return nil
		}
		m.logger.Error("aerial video failed", "cause", ev.Kind)
		if cb := m.onAerialError; cb != nil {
			err := fmt.Errorf("aerial playback failed: %s", ev.Kind)
			return []func(){func() { cb(err) }}
		}
	}
	return nil
}

func (m *Machine) handleLocationChangeLocked(ev Event) []func() {
	// Invalidate everything tied to the old location before transitioning.
	m.gen++
	m.stopTimersLocked()
	m.pendingLocation = ev.LocationID
	m.hasPendingLoc = true
	return m.transitionLocked(core.TransitionIdentity(), CauseLocation)
}

func (m *Machine) handleAutoplayBlockedLocked(ev Event) []func() {
	if ev.Identity != m.current {
		return nil
	}
	if !m.lastSrc.Muted && m.haveSrc {
		// Autoplay policy: a rejected play() is retried muted, immediately.
		m.logger.Info("autoplay blocked, retrying muted", "identity", m.current.Key())
		src := m.lastSrc
		src.Muted = true
		m.lastSrc = src
		surface := m.surface
		return []func(){func() { surface.SetSource(src) }}
	}
	// Muted retry also failed. A transition never parks on a gesture:
	// advance as if it ended so navigation completes.
	if m.current.Kind == core.KindTransition {
		m.logger.Info("muted transition blocked, advancing", "identity", m.current.Key())
		return m.handleOutcomeLocked(Event{Kind: EventEnded, Identity: m.current})
	}
	m.awaitingGesture = true
	return nil
}

func (m *Machine) handleUserInteractionLocked() []func() {
	if !m.awaitingGesture {
		return nil
	}
	m.awaitingGesture = false
	m.logger.Info("user gesture received, resuming playback", "identity", m.current.Key())
	return m.applySourceLocked(m.current)
}

// transitionLocked moves to the next identity, emits telemetry, arms the
// grace window, and schedules the (debounced) source change.
func (m *Machine) transitionLocked(next core.VideoIdentity, cause Cause) []func() {
	from := m.current
	dwell := m.now().Sub(m.enteredAt)
	m.current = next
	m.enteredAt = m.now()

	m.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", string(from.Kind)),
		attribute.String("to", string(next.Kind)),
		attribute.String("cause", string(cause)),
	))

	var after []func()
	if rec := m.recorder; rec != nil {
		after = append(after, func() {
			rec.RecordTransition(from, next, cause, dwell.Milliseconds())
		})
	}

	m.armGraceLocked()
	return append(after, m.scheduleSourceLocked(next)...)
}

// armGraceLocked raises the transitioning flag and schedules its clear.
func (m *Machine) armGraceLocked() {
	m.transitioning = true
	if m.graceTimer != nil {
		m.graceTimer.Stop()
	}
	gen := m.gen
	m.graceTimer = time.AfterFunc(m.grace, func() {
		m.mu.Lock()
		if m.gen == gen && !m.closed {
			m.transitioning = false
		}
		m.mu.Unlock()
	})
}

// scheduleSourceLocked applies the source for id, debounced against rapid
// back-to-back identity changes. The very first load applies immediately.
func (m *Machine) scheduleSourceLocked(id core.VideoIdentity) []func() {
	if m.sourceTimer != nil {
		m.sourceTimer.Stop()
		m.sourceTimer = nil
	}

	if !m.firstLoadDone {
		return m.applySourceLocked(id)
	}

	gen := m.gen
	m.sourceTimer = time.AfterFunc(m.debounce, func() {
		m.mu.Lock()
		if m.gen != gen || m.closed || m.current != id {
			m.mu.Unlock()
			return
		}
		after := m.applySourceLocked(id)
		m.mu.Unlock()
		runAll(after)
	})
	return nil
}

// applySourceLocked resolves the identity's URL and pushes it to the
// surface. Resolution failures follow the same error policy as playback:
// sequence identities advance, the aerial surfaces a retryable error.
func (m *Machine) applySourceLocked(id core.VideoIdentity) []func() {
	url, err := m.resolver.Resolve(id)
	if err != nil {
		m.logger.Error("source resolution failed", "identity", id.Key(), "error", err)
		switch id.Kind {
		case core.KindSequence:
			m.errorSkips.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("stage", string(id.Stage))))
			if next, ok := id.Stage.Next(); ok {
				return m.transitionLocked(core.SequenceIdentity(next, id.HotspotID), CauseError)
			}
			return m.transitionLocked(core.AerialIdentity(), CauseError)
		case core.KindTransition:
			// Never block navigation on a missing transition video.
			return m.handleOutcomeLocked(Event{Kind: EventEnded, Identity: id})
		default:
			if cb := m.onAerialError; cb != nil {
				resolveErr := err
				return []func(){func() { cb(resolveErr) }}
			}
			return nil
		}
	}

	src := Source{
		Identity: id,
		URL:      url,
		Loop:     id.Kind == core.KindAerial,
		Muted:    m.muted || id.Kind == core.KindTransition,
		Autoplay: true,
	}
	m.lastSrc = src
	m.haveSrc = true
	m.firstLoadDone = true

	m.armLoadTimerLocked(id)

	surface := m.surface
	return []func(){func() { surface.SetSource(src) }}
}

// armLoadTimerLocked starts the load watchdog for non-looping videos.
// Firing synthesizes a timeout outcome for the identity it was armed for.
func (m *Machine) armLoadTimerLocked(id core.VideoIdentity) {
	m.stopLoadTimerLocked()
	if id.Kind == core.KindAerial {
		return
	}
	gen := m.gen
	m.loadTimer = time.AfterFunc(m.loadTimeout, func() {
		m.mu.Lock()
		if m.gen != gen || m.closed || m.current != id {
			m.mu.Unlock()
			return
		}
		after := m.handleOutcomeLocked(Event{Kind: EventLoadTimeout, Identity: id})
		m.mu.Unlock()
		runAll(after)
	})
}

func (m *Machine) stopLoadTimerLocked() {
	if m.loadTimer != nil {
		m.loadTimer.Stop()
		m.loadTimer = nil
	}
}

func (m *Machine) stopTimersLocked() {
	m.stopLoadTimerLocked()
	if m.sourceTimer != nil {
		m.sourceTimer.Stop()
		m.sourceTimer = nil
	}
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
}

// runAll executes deferred callbacks outside the machine lock.
func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
