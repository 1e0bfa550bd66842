package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyloop/engine/internal/dataclient"
	"github.com/skyloop/engine/internal/dispatcher"
	"github.com/skyloop/engine/internal/geometry"
	"github.com/skyloop/engine/internal/logging"
	"github.com/skyloop/engine/internal/preload"
	"github.com/skyloop/engine/internal/sequencer"
	"github.com/skyloop/engine/internal/session"
	"github.com/skyloop/engine/pkg/core"
	"github.com/skyloop/engine/pkg/streaming"
)

// Dispatcher command names accepted from viewer and admin clients.
const (
	CmdLocationChange  = "location.change"
	CmdHotspotActivate = "hotspot.activate"
	CmdHotspotHover    = "hotspot.hover"
	CmdSurfaceLoaded   = "surface.loaded"
	CmdSurfaceEnded    = "surface.ended"
	CmdSurfaceError    = "surface.error"
	CmdAutoplayBlocked = "surface.autoplayBlocked"
	CmdUserInteraction = "user.interaction"
	CmdDataRefresh     = "data.refresh"
)

const loadTimeout = 30 * time.Second

// Warmer pushes assets to the byte cache service ahead of playback.
type Warmer interface {
	WarmVideos(items []streaming.CacheItem, timeout time.Duration) (streaming.CacheComplete, error)
}

// PreloadRecorder receives preload batch telemetry.
type PreloadRecorder interface {
	RecordPreloadBatch(locationID string, total, loaded, failed int, elapsed time.Duration)
}

// Dependencies holds everything the experience service needs.
type Dependencies struct {
	Data       *dataclient.Client
	Session    *session.Context
	Preload    *preload.Cache
	Surface    sequencer.Surface
	LogManager *logging.SlogManager

	// Optional collaborators.
	Warmer   Warmer
	Recorder sequencer.Recorder
	Preloads PreloadRecorder
}

// Service glues dispatcher commands to the sequencing machine, the
// session context and the preload cache. One Service drives one viewer.
type Service struct {
	deps    Dependencies
	machine *sequencer.Machine
	log     *logging.DispatcherLogger

	mu         sync.RWMutex
	assets     map[uuid.UUID]core.Asset
	aerialURL  string
	transition string
	settled    bool
	gen        uint64
}

// NewService creates the experience service and its sequencing machine.
func NewService(deps Dependencies, opts ...sequencer.Option) (*Service, error) {
	s := &Service{
		deps:   deps,
		assets: make(map[uuid.UUID]core.Asset),
		log:    logging.NewDispatcherLogger(deps.LogManager.Logger()),
	}

	mopts := []sequencer.Option{
		sequencer.WithLogger(s.log),
		sequencer.WithLocationChangeFunc(s.onLocationChange),
	}
	if deps.Recorder != nil {
		mopts = append(mopts, sequencer.WithRecorder(deps.Recorder))
	}
	mopts = append(mopts, opts...)

	m, err := sequencer.New(deps.Surface, s, mopts...)
	if err != nil {
		return nil, fmt.Errorf("creating sequencer: %w", err)
	}
	s.machine = m
	return s, nil
}

// Machine exposes the sequencing machine for surface event feedback.
func (s *Service) Machine() *sequencer.Machine {
	return s.machine
}

// Start loads the initial location and enters the aerial state.
func (s *Service) Start(ctx context.Context, locationID uuid.UUID) error {
	if err := s.loadLocation(ctx, locationID, false); err != nil {
		return err
	}
	s.machine.Start()
	return nil
}

// Close tears down the machine and the session.
func (s *Service) Close() {
	s.machine.Close()
	s.deps.Session.Clear()
}

// RegisterHandlers registers all experience commands with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CmdLocationChange, s.handleLocationChange, dispatcher.Logged())
	d.Register(CmdHotspotActivate, s.handleHotspotActivate, dispatcher.Logged())

	// Hover fires on every pointer move; buffered so a burst never stalls
	// the surface event path.
	d.Register(CmdHotspotHover, s.handleHotspotHover, dispatcher.Buffered(256))

	d.Register(CmdSurfaceLoaded, s.surfaceOutcome(sequencer.EventLoaded), dispatcher.Logged())
	d.Register(CmdSurfaceEnded, s.surfaceOutcome(sequencer.EventEnded), dispatcher.Logged())
	d.Register(CmdSurfaceError, s.surfaceOutcome(sequencer.EventError), dispatcher.Logged())
	d.Register(CmdAutoplayBlocked, s.surfaceOutcome(sequencer.EventAutoplayBlocked), dispatcher.Logged())
	d.Register(CmdUserInteraction, s.handleUserInteraction)
	d.Register(CmdDataRefresh, s.handleDataRefresh, dispatcher.Logged())
}

type locationPayload struct {
	Location uuid.UUID `json:"location"`
}

type hotspotPayload struct {
	Hotspot uuid.UUID `json:"hotspot"`
}

type hoverPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// surfacePayload identifies the video a lifecycle event refers to.
type surfacePayload struct {
	Kind    string    `json:"kind"`
	Stage   string    `json:"stage,omitempty"`
	Hotspot uuid.UUID `json:"hotspot,omitempty"`
}

func (p surfacePayload) identity() core.VideoIdentity {
	switch core.IdentityKind(p.Kind) {
	case core.KindTransition:
		return core.TransitionIdentity()
	case core.KindSequence:
		return core.SequenceIdentity(core.SequenceStage(p.Stage), p.Hotspot)
	}
	return core.AerialIdentity()
}

func (s *Service) handleLocationChange(e dispatcher.Event) (any, error) {
	var p locationPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decoding location payload: %w", err)
	}
	if p.Location == uuid.Nil {
		return nil, fmt.Errorf("location change without location id")
	}

	s.machine.Advance(sequencer.Event{
		Kind:       sequencer.EventLocationChange,
		LocationID: p.Location,
		Timestamp:  e.Timestamp,
	})
	return "transitioning", nil
}

func (s *Service) handleHotspotActivate(e dispatcher.Event) (any, error) {
	var p hotspotPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decoding hotspot payload: %w", err)
	}

	h, ok := s.deps.Session.Hotspot(p.Hotspot)
	if !ok {
		return nil, fmt.Errorf("hotspot %s not in active location", p.Hotspot)
	}

	ev := sequencer.Event{
		Kind:      sequencer.EventActivate,
		Hotspot:   h,
		Timestamp: e.Timestamp,
	}

	if h.Type == core.HotspotPrimary {
		if !s.preloadSettled() {
			s.logger().Info("activation deferred until preload settles", "hotspot", h.ID)
			return "preloading", nil
		}
		pl, err := s.playlistFor(h.ID)
		if err != nil {
			return nil, err
		}
		ev.Playlist = pl
	}

	s.machine.Advance(ev)
	return "activated", nil
}

// handleHotspotHover hit-tests a normalized pointer position against the
// active location's hotspots. Topmost wins, matching creation order in
// reverse.
func (s *Service) handleHotspotHover(e dispatcher.Event) (any, error) {
	var p hoverPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decoding hover payload: %w", err)
	}

	hotspots := s.deps.Session.Hotspots()
	pt := core.Point{X: p.X, Y: p.Y}
	for i := len(hotspots) - 1; i >= 0; i-- {
		if geometry.PointInPolygon(pt, hotspots[i].Coordinates) {
			return hotspots[i].ID, nil
		}
	}
	return nil, nil
}

func (s *Service) surfaceOutcome(kind sequencer.EventKind) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		var p surfacePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decoding surface payload: %w", err)
		}
		s.machine.Advance(sequencer.Event{
			Kind:      kind,
			Identity:  p.identity(),
			Timestamp: e.Timestamp,
		})
		return nil, nil
	}
}

func (s *Service) handleUserInteraction(e dispatcher.Event) (any, error) {
	s.machine.Advance(sequencer.Event{
		Kind:      sequencer.EventUserInteraction,
		Timestamp: e.Timestamp,
	})
	return nil, nil
}

// handleDataRefresh drops every cached read and reloads the active
// location with fresh data.
func (s *Service) handleDataRefresh(e dispatcher.Event) (any, error) {
	s.deps.Data.InvalidateAll()

	loc := s.deps.Session.Location()
	if loc == nil {
		return "refreshed", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	if err := s.loadLocation(ctx, loc.ID, true); err != nil {
		return nil, err
	}
	return "refreshed", nil
}

// onLocationChange fires when the transition video completes. The load
// runs off the machine's callback goroutine; failures leave the old
// session cleared and surface through the aerial error path on the next
// resolve.
func (s *Service) onLocationChange(locationID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	if err := s.loadLocation(ctx, locationID, false); err != nil {
		s.logger().Error("location load failed", "location", locationID, "error", err)
	}
}

// loadLocation fetches the location and its hotspots, swaps the session,
// rebuilds the asset index and kicks the preload batch.
func (s *Service) loadLocation(ctx context.Context, locationID uuid.UUID, force bool) error {
	loc, err := s.deps.Data.GetLocation(ctx, locationID, force)
	if err != nil {
		return fmt.Errorf("fetching location: %w", err)
	}
	hotspots, err := s.deps.Data.GetHotspotsByLocation(ctx, locationID, force)
	if err != nil {
		return fmt.Errorf("fetching hotspots: %w", err)
	}

	gen := s.deps.Session.SetLocation(loc, hotspots)

	index, aerialURL, transitionURL, err := s.buildAssetIndex(ctx, locationID, force)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.assets = index
	s.aerialURL = aerialURL
	s.transition = transitionURL
	s.settled = false
	s.gen = gen
	s.mu.Unlock()

	go s.preloadLocation(gen, loc, hotspots, force)
	return nil
}

// buildAssetIndex fetches every video asset for the location and indexes
// it by ID for identity resolution.
func (s *Service) buildAssetIndex(ctx context.Context, locationID uuid.UUID, force bool) (map[uuid.UUID]core.Asset, string, string, error) {
	index := make(map[uuid.UUID]core.Asset)
	var aerialURL, transitionURL string

	for _, t := range []core.AssetType{
		core.AssetAerial, core.AssetTransition,
		core.AssetDiveIn, core.AssetFloorLevel, core.AssetZoomOut,
	} {
		assets, err := s.deps.Data.GetAssetsByType(ctx, t, &locationID, force)
		if err != nil {
			return nil, "", "", fmt.Errorf("fetching %s assets: %w", t, err)
		}
		for _, a := range assets {
			index[a.ID] = a
			url := s.deps.Data.ResolveAccessURL(a.AccessURL)
			switch {
			case t == core.AssetAerial && aerialURL == "":
				aerialURL = url
			case t == core.AssetTransition && transitionURL == "":
				transitionURL = url
			}
		}
	}
	return index, aerialURL, transitionURL, nil
}

// preloadLocation warms every video the new location can play, then
// marks the session sequence-eligible. Partial failures settle too: a
// missing floor-level video must not block the dive-in.
func (s *Service) preloadLocation(gen uint64, loc *core.Location, hotspots []core.Hotspot, force bool) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	s.deps.Preload.Clear()

	var items []streaming.CacheItem
	add := func(key, url string) {
		if url == "" {
			return
		}
		s.deps.Preload.Add(key, url)
		items = append(items, streaming.CacheItem{ID: key, URL: url})
	}

	s.mu.RLock()
	add(core.AerialIdentity().Key(), s.aerialURL)
	add(core.TransitionIdentity().Key(), s.transition)
	s.mu.RUnlock()

	for _, h := range hotspots {
		if h.Type != core.HotspotPrimary {
			continue
		}
		pl, err := s.deps.Data.GetPlaylistByHotspot(ctx, h.ID, force)
		if err != nil {
			s.logger().Error("playlist fetch failed", "hotspot", h.ID, "error", err)
			continue
		}
		s.deps.Session.SetPlaylist(gen, h.ID, pl)

		for _, stage := range []core.SequenceStage{core.StageDiveIn, core.StageFloorLevel, core.StageZoomOut} {
			ref := pl.AssetFor(stage)
			if ref == nil {
				continue
			}
			if a, ok := s.asset(*ref); ok {
				add(core.SequenceIdentity(stage, h.ID).Key(), s.deps.Data.ResolveAccessURL(a.AccessURL))
			}
		}
	}

	total := s.deps.Preload.Len()
	err := s.deps.Preload.PreloadAll(ctx)
	if err != nil {
		s.logger().Error("preload batch finished with failures", "location", loc.ID, "error", err)
	}

	if w := s.deps.Warmer; w != nil && len(items) > 0 {
		if _, werr := w.WarmVideos(items, loadTimeout); werr != nil {
			s.logger().Error("byte cache warm failed", "location", loc.ID, "error", werr)
		}
	}

	if !s.deps.Session.Current(gen) {
		return
	}

	loaded := s.loadedCount(hotspots)

	s.mu.Lock()
	if s.gen == gen {
		s.settled = true
	}
	s.mu.Unlock()

	if rec := s.deps.Preloads; rec != nil {
		rec.RecordPreloadBatch(loc.ID.String(), total, loaded, total-loaded, time.Since(start))
	}
	s.logger().Info("preload settled",
		"location", loc.Name, "total", total, "loaded", loaded, "elapsed", time.Since(start))
}

func (s *Service) loadedCount(hotspots []core.Hotspot) int {
	keys := []string{core.AerialIdentity().Key(), core.TransitionIdentity().Key()}
	for _, h := range hotspots {
		if h.Type != core.HotspotPrimary {
			continue
		}
		for _, stage := range []core.SequenceStage{core.StageDiveIn, core.StageFloorLevel, core.StageZoomOut} {
			keys = append(keys, core.SequenceIdentity(stage, h.ID).Key())
		}
	}
	n := 0
	for _, k := range keys {
		if s.deps.Preload.IsLoaded(k) {
			n++
		}
	}
	return n
}

// playlistFor returns the session-cached playlist, falling back to a
// synchronous fetch when preload skipped the hotspot.
func (s *Service) playlistFor(hotspotID uuid.UUID) (*core.Playlist, error) {
	if pl, ok := s.deps.Session.Playlist(hotspotID); ok {
		return pl, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	pl, err := s.deps.Data.GetPlaylistByHotspot(ctx, hotspotID, false)
	if err != nil {
		return nil, fmt.Errorf("fetching playlist: %w", err)
	}
	s.deps.Session.SetPlaylist(s.deps.Session.Generation(), hotspotID, pl)
	return pl, nil
}

func (s *Service) preloadSettled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settled
}

func (s *Service) asset(id uuid.UUID) (core.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	return a, ok
}

func (s *Service) logger() *logging.DispatcherLogger {
	return s.log
}
