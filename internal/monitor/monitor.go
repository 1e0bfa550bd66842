package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/skyloop/engine/internal/logging"
	"github.com/skyloop/engine/internal/preload"
	"github.com/skyloop/engine/internal/queue"
	"github.com/skyloop/engine/internal/session"
)

// backlogLimit bounds snapshots held while no recorder is reachable.
const backlogLimit = 600

// Snapshot is one periodic status observation of the running engine.
type Snapshot struct {
	Time           time.Time `json:"time"`
	Location       string    `json:"location"`
	Hotspots       int       `json:"hotspots"`
	PreloadEntries int       `json:"preloadEntries"`
	CacheEntries   int       `json:"cacheEntries"`
	CacheBytes     int64     `json:"cacheBytes"`
}

// CacheStats reports byte cache occupancy.
type CacheStats interface {
	Len() int
	TotalBytes() int64
}

// SnapshotRecorder persists cache occupancy telemetry.
type SnapshotRecorder interface {
	RecordCacheSnapshot(entries int, totalBytes int64)
}

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	LogManager *logging.SlogManager
	Session    *session.Context
	Preload    *preload.Cache

	// Optional collaborators.
	Cache    CacheStats
	Recorder SnapshotRecorder

	StatusDir string
	Interval  time.Duration
}

// Service takes periodic status snapshots, writes the latest one to a
// status file and forwards it to the telemetry recorder. Snapshots taken
// while no recorder is wired queue up and drain once one records again.
type Service struct {
	deps      Dependencies
	backlog   *queue.Queue[Snapshot]
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		backlog:  queue.New[Snapshot](),
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Backlog returns the number of snapshots waiting for a recorder.
func (s *Service) Backlog() int {
	return s.backlog.Len()
}

// Take captures one snapshot of the current engine state.
func (s *Service) Take() Snapshot {
	snap := Snapshot{
		Time:           time.Now(),
		PreloadEntries: s.deps.Preload.Len(),
	}
	if loc := s.deps.Session.Location(); loc != nil {
		snap.Location = loc.Name
		snap.Hotspots = len(s.deps.Session.Hotspots())
	}
	if c := s.deps.Cache; c != nil {
		snap.CacheEntries = c.Len()
		snap.CacheBytes = c.TotalBytes()
	}
	return snap
}

// record forwards the snapshot, draining any backlog first. Without a
// recorder the snapshot queues up, oldest dropped beyond the limit.
func (s *Service) record(snap Snapshot) {
	rec := s.deps.Recorder
	if rec == nil {
		s.backlog.Push(snap)
		for s.backlog.Len() > backlogLimit {
			s.backlog.TryPop()
		}
		return
	}

	for {
		queued, ok := s.backlog.TryPop()
		if !ok {
			break
		}
		rec.RecordCacheSnapshot(queued.CacheEntries, queued.CacheBytes)
	}
	rec.RecordCacheSnapshot(snap.CacheEntries, snap.CacheBytes)
}

// writeStatusFile replaces the status file with the latest snapshot.
func (s *Service) writeStatusFile(f *os.File, snap Snapshot) {
	if f == nil {
		return
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	f.Truncate(0)
	f.Seek(0, 0)
	f.Write(append(data, '\n'))
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		var statusFile *os.File
		if s.deps.StatusDir != "" {
			var err error
			statusFile, err = os.Create(filepath.Join(s.deps.StatusDir, "status.json"))
			if err != nil {
				logger.Error("Error creating status file", "error", err)
			} else {
				defer statusFile.Close()
			}
		}

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				snap := s.Take()
				s.writeStatusFile(statusFile, snap)
				s.record(snap)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
