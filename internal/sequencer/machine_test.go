package sequencer

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyloop/engine/pkg/core"
)

// mockSurface records every source it is told to show.
type mockSurface struct {
	mu      sync.Mutex
	sources []Source
}

func (s *mockSurface) SetSource(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, src)
}

func (s *mockSurface) all() []Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Source, len(s.sources))
	copy(out, s.sources)
	return out
}

func (s *mockSurface) last() (Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sources) == 0 {
		return Source{}, false
	}
	return s.sources[len(s.sources)-1], true
}

var _ Surface = (*mockSurface)(nil)

// mapResolver resolves identities from a fixed table.
type mapResolver struct {
	mu   sync.Mutex
	urls map[string]string
}

func newMapResolver() *mapResolver {
	return &mapResolver{urls: map[string]string{
		"aerial":     "http://assets/aerial.mp4",
		"transition": "http://assets/transition.mp4",
	}}
}

func (r *mapResolver) set(id core.VideoIdentity, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls[id.Key()] = url
}

func (r *mapResolver) Resolve(id core.VideoIdentity) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.urls[id.Key()]; ok {
		return u, nil
	}
	return "", ErrNoSource
}

var _ Resolver = (*mapResolver)(nil)

// recorderSpy captures transitions for assertion.
type recorderSpy struct {
	mu          sync.Mutex
	transitions []string
}

func (r *recorderSpy) RecordTransition(from, to core.VideoIdentity, cause Cause, dwellMillis int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from.Key()+">"+to.Key()+":"+string(cause))
}

func (r *recorderSpy) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.transitions))
	copy(out, r.transitions)
	return out
}

func completePlaylist(hotspotID uuid.UUID) *core.Playlist {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	return &core.Playlist{HotspotID: hotspotID, DiveInID: &a, FloorLevelID: &b, ZoomOutID: &c}
}

func sequenceURLs(r *mapResolver, hotspotID uuid.UUID) {
	r.set(core.SequenceIdentity(core.StageDiveIn, hotspotID), "http://assets/dive.mp4")
	r.set(core.SequenceIdentity(core.StageFloorLevel, hotspotID), "http://assets/floor.mp4")
	r.set(core.SequenceIdentity(core.StageZoomOut, hotspotID), "http://assets/zoom.mp4")
}

// newTestMachine builds a machine with near-zero debounce so source
// changes apply without waiting through the production windows.
func newTestMachine(t *testing.T, surface *mockSurface, resolver *mapResolver, opts ...Option) *Machine {
	t.Helper()
	opts = append([]Option{
		WithDebounce(time.Millisecond),
		WithGraceWindow(20 * time.Millisecond),
		WithLoadTimeout(50 * time.Millisecond),
	}, opts...)
	m, err := New(surface, resolver, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func activate(m *Machine, h core.Hotspot, p *core.Playlist) {
	m.Advance(Event{Kind: EventActivate, Hotspot: &h, Playlist: p})
}

func outcome(m *Machine, kind EventKind, id core.VideoIdentity) {
	m.Advance(Event{Kind: kind, Identity: id})
}

// settle waits out the tiny test debounce window.
func settle() { time.Sleep(10 * time.Millisecond) }

func TestMachine_StartsAerialLooping(t *testing.T) {
	surface := &mockSurface{}
	m := newTestMachine(t, surface, newMapResolver())

	m.Start()

	assert.Equal(t, core.KindAerial, m.Current().Kind)
	src, ok := surface.last()
	require.True(t, ok, "first load applies immediately, no debounce")
	assert.True(t, src.Loop)
	assert.True(t, src.Autoplay)
	assert.False(t, src.Muted)
}

func TestMachine_FullSequenceOnEndedEvents(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	m := newTestMachine(t, surface, resolver)

	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	sequenceURLs(resolver, h.ID)

	m.Start()
	activate(m, h, completePlaylist(h.ID))

	require.Equal(t, core.SequenceIdentity(core.StageDiveIn, h.ID), m.Current())
	settle()

	outcome(m, EventEnded, m.Current())
	require.Equal(t, core.SequenceIdentity(core.StageFloorLevel, h.ID), m.Current())
	settle()

	outcome(m, EventEnded, m.Current())
	require.Equal(t, core.SequenceIdentity(core.StageZoomOut, h.ID), m.Current())
	settle()

	outcome(m, EventEnded, m.Current())
	assert.Equal(t, core.KindAerial, m.Current().Kind)
}

func TestMachine_ErrorProducesSameSequenceAsEnded(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	rec := &recorderSpy{}
	m := newTestMachine(t, surface, resolver, WithRecorder(rec))

	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	sequenceURLs(resolver, h.ID)

	m.Start()
	activate(m, h, completePlaylist(h.ID))
	settle()

	// Every stage fails, yet the walk visits every state in order.
	outcome(m, EventError, m.Current())
	require.Equal(t, core.StageFloorLevel, m.Current().Stage)
	settle()
	outcome(m, EventLoadTimeout, m.Current())
	require.Equal(t, core.StageZoomOut, m.Current().Stage)
	settle()
	outcome(m, EventError, m.Current())
	assert.Equal(t, core.KindAerial, m.Current().Kind)

	got := rec.all()
	require.Len(t, got, 4)
	assert.Contains(t, got[1], "floorLevel")
	assert.Contains(t, got[1], string(CauseError))
	assert.Contains(t, got[2], string(CauseTimeout))
}

func TestMachine_DuplicateOutcomeIsIdempotent(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	m := newTestMachine(t, surface, resolver)

	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	sequenceURLs(resolver, h.ID)

	m.Start()
	activate(m, h, completePlaylist(h.ID))
	settle()

	diveIn := m.Current()
	outcome(m, EventEnded, diveIn)
	// The error event for the same finished video must not double-advance.
	outcome(m, EventError, diveIn)

	assert.Equal(t, core.StageFloorLevel, m.Current().Stage, "stale duplicate must be ignored")
}

func TestMachine_SecondaryHotspotKeepsAerial(t *testing.T) {
	surface := &mockSurface{}
	var panels []core.Hotspot
	var mu sync.Mutex
	m := newTestMachine(t, surface, newMapResolver(), WithInfoPanelFunc(func(h core.Hotspot) {
		mu.Lock()
		panels = append(panels, h)
		mu.Unlock()
	}))

	m.Start()
	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotSecondary}
	activate(m, h, nil)

	assert.Equal(t, core.KindAerial, m.Current().Kind, "secondary activation never changes video state")
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, panels, 1)
	assert.Equal(t, h.ID, panels[0].ID)
}

func TestMachine_IncompletePlaylistIgnored(t *testing.T) {
	surface := &mockSurface{}
	m := newTestMachine(t, surface, newMapResolver())
	m.Start()

	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	p := completePlaylist(h.ID)
	p.FloorLevelID = nil
	activate(m, h, p)

	assert.Equal(t, core.KindAerial, m.Current().Kind)
}

func TestMachine_ActivationIgnoredMidSequence(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	m := newTestMachine(t, surface, resolver)

	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	sequenceURLs(resolver, h.ID)
	m.Start()
	activate(m, h, completePlaylist(h.ID))
	require.Equal(t, core.StageDiveIn, m.Current().Stage)

	other := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	sequenceURLs(resolver, other.ID)
	activate(m, other, completePlaylist(other.ID))

	assert.Equal(t, h.ID, m.Current().HotspotID, "second activation mid-sequence is ignored")
}

func TestMachine_LocationChange(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	var navigated []uuid.UUID
	var mu sync.Mutex
	m := newTestMachine(t, surface, resolver, WithLocationChangeFunc(func(id uuid.UUID) {
		mu.Lock()
		navigated = append(navigated, id)
		mu.Unlock()
	}))

	m.Start()
	dest := uuid.New()
	m.Advance(Event{Kind: EventLocationChange, LocationID: dest})

	require.Equal(t, core.KindTransition, m.Current().Kind)
	settle()

	src, ok := surface.last()
	require.True(t, ok)
	assert.True(t, src.Muted, "transition video always plays muted")
	assert.True(t, src.Autoplay)

	outcome(m, EventEnded, core.TransitionIdentity())
	assert.Equal(t, core.KindAerial, m.Current().Kind)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, navigated, 1)
	assert.Equal(t, dest, navigated[0])
}

func TestMachine_LoadTimeoutAdvancesSequence(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	m := newTestMachine(t, surface, resolver, WithLoadTimeout(25*time.Millisecond))

	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	sequenceURLs(resolver, h.ID)
	m.Start()
	activate(m, h, completePlaylist(h.ID))
	settle()
	require.Equal(t, core.StageDiveIn, m.Current().Stage)

	// No ended/error ever arrives; the watchdog must advance on its own.
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, core.StageFloorLevel, m.Current().Stage)
}

func TestMachine_LoadedDisarmsWatchdog(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	m := newTestMachine(t, surface, resolver)

	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	sequenceURLs(resolver, h.ID)
	m.Start()
	activate(m, h, completePlaylist(h.ID))
	settle()
	require.Equal(t, core.StageDiveIn, m.Current().Stage)

	// The surface reports the video playing. A video longer than the
	// watchdog window must play to its own ended, not get cut short.
	outcome(m, EventLoaded, m.Current())
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, core.SequenceIdentity(core.StageDiveIn, h.ID), m.Current(),
		"watchdog must not advance a loaded video")
}

func TestMachine_StaleLoadedKeepsWatchdog(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	m := newTestMachine(t, surface, resolver)

	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	sequenceURLs(resolver, h.ID)
	m.Start()
	activate(m, h, completePlaylist(h.ID))
	settle()

	// Loaded for a different identity must not disarm the dive-in watchdog.
	outcome(m, EventLoaded, core.AerialIdentity())
	time.Sleep(120 * time.Millisecond)
	assert.NotEqual(t, core.StageDiveIn, m.Current().Stage,
		"stale loaded must leave the watchdog armed")
}

func TestMachine_BlockedMutedTransitionCompletesNavigation(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	locCh := make(chan uuid.UUID, 1)
	m := newTestMachine(t, surface, resolver,
		WithLocationChangeFunc(func(id uuid.UUID) { locCh <- id }))

	locID := uuid.New()
	m.Start()
	m.Advance(Event{Kind: EventLocationChange, LocationID: locID})
	require.Equal(t, core.KindTransition, m.Current().Kind)
	settle()

	// Transitions are muted from the first load, so a blocked play() has
	// no quieter retry left. It must finish the navigation, never park.
	outcome(m, EventAutoplayBlocked, m.Current())

	assert.False(t, m.AwaitingGesture(), "transition must not wait for a gesture")
	assert.Equal(t, core.KindAerial, m.Current().Kind)
	select {
	case id := <-locCh:
		assert.Equal(t, locID, id)
	case <-time.After(time.Second):
		t.Fatal("location change callback never fired")
	}
}

func TestMachine_MissingSequenceSourceSkipsStage(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	m := newTestMachine(t, surface, resolver)

	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	// Only floorLevel and zoomOut have sources; diveIn is missing.
	r := resolver
	r.set(core.SequenceIdentity(core.StageFloorLevel, h.ID), "http://assets/floor.mp4")
	r.set(core.SequenceIdentity(core.StageZoomOut, h.ID), "http://assets/zoom.mp4")

	m.Start()
	activate(m, h, completePlaylist(h.ID))
	settle()

	assert.Equal(t, core.StageFloorLevel, m.Current().Stage,
		"unresolvable stage must be skipped like a playback error")
}

func TestMachine_AerialErrorSurfacedRetryable(t *testing.T) {
	surface := &mockSurface{}
	var surfaced []error
	var mu sync.Mutex
	m := newTestMachine(t, surface, newMapResolver(), WithAerialErrorFunc(func(err error) {
		mu.Lock()
		surfaced = append(surfaced, err)
		mu.Unlock()
	}))

	m.Start()
	outcome(m, EventError, core.AerialIdentity())

	assert.Equal(t, core.KindAerial, m.Current().Kind, "machine stays usable")
	mu.Lock()
	require.Len(t, surfaced, 1)
	mu.Unlock()

	before := len(surface.all())
	m.Retry()
	assert.Greater(t, len(surface.all()), before, "retry re-applies the aerial source")
}

func TestMachine_AutoplayBlockedRetriesMuted(t *testing.T) {
	surface := &mockSurface{}
	m := newTestMachine(t, surface, newMapResolver())
	m.Start()

	m.Advance(Event{Kind: EventAutoplayBlocked, Identity: core.AerialIdentity()})

	src, ok := surface.last()
	require.True(t, ok)
	assert.True(t, src.Muted, "blocked autoplay retries muted")
	assert.False(t, m.AwaitingGesture())
}

func TestMachine_MutedRetryBlockedWaitsForGesture(t *testing.T) {
	surface := &mockSurface{}
	m := newTestMachine(t, surface, newMapResolver())
	m.Start()

	m.Advance(Event{Kind: EventAutoplayBlocked, Identity: core.AerialIdentity()})
	m.Advance(Event{Kind: EventAutoplayBlocked, Identity: core.AerialIdentity()})
	assert.True(t, m.AwaitingGesture())

	before := len(surface.all())
	m.Advance(Event{Kind: EventUserInteraction})
	assert.False(t, m.AwaitingGesture())
	assert.Greater(t, len(surface.all()), before, "gesture re-applies the source")
}

func TestMachine_TransitioningGraceWindow(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	m := newTestMachine(t, surface, resolver, WithGraceWindow(30*time.Millisecond))

	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	sequenceURLs(resolver, h.ID)
	m.Start()
	activate(m, h, completePlaylist(h.ID))

	assert.True(t, m.Transitioning(), "flag raised at the boundary")
	time.Sleep(60 * time.Millisecond)
	assert.False(t, m.Transitioning(), "flag clears after the grace window")
}

func TestMachine_SourceDebounceCollapsesRapidChanges(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	m := newTestMachine(t, surface, resolver,
		WithDebounce(30*time.Millisecond), WithLoadTimeout(time.Second))

	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	sequenceURLs(resolver, h.ID)
	m.Start()
	require.Len(t, surface.all(), 1, "first load applied immediately")

	// Walk two stages inside one debounce window: only the final stage's
	// source may reach the surface.
	activate(m, h, completePlaylist(h.ID))
	outcome(m, EventEnded, m.Current())

	time.Sleep(80 * time.Millisecond)
	sources := surface.all()
	require.Len(t, sources, 2, "intermediate source change must be debounced away")
	assert.Equal(t, core.StageFloorLevel, sources[1].Identity.Stage)
}

func TestMachine_CloseInvalidatesTimers(t *testing.T) {
	surface := &mockSurface{}
	resolver := newMapResolver()
	m := newTestMachine(t, surface, resolver, WithLoadTimeout(10*time.Millisecond))

	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	sequenceURLs(resolver, h.ID)
	m.Start()
	activate(m, h, completePlaylist(h.ID))
	settle()

	m.Close()
	current := m.Current()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, current, m.Current(), "no timer may advance a closed machine")
}

func TestMachine_EventsBeforeStartIgnored(t *testing.T) {
	surface := &mockSurface{}
	m := newTestMachine(t, surface, newMapResolver())

	outcome(m, EventEnded, core.AerialIdentity())
	h := core.Hotspot{ID: uuid.New(), Type: core.HotspotPrimary}
	activate(m, h, completePlaylist(h.ID))

	assert.Empty(t, surface.all())
}
