package influx

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/skyloop/engine/internal/sequencer"
	"github.com/skyloop/engine/pkg/core"
)

// Telemetry translates experience events into Influx points. It
// implements sequencer.Recorder; writes go through the manager's async
// write API so recording never blocks playback.
type Telemetry struct {
	manager *Manager
}

// NewTelemetry creates a recorder over a connected manager.
func NewTelemetry(m *Manager) *Telemetry {
	return &Telemetry{manager: m}
}

// RecordTransition writes one playback state transition.
func (t *Telemetry) RecordTransition(from, to core.VideoIdentity, cause sequencer.Cause, dwellMillis int64) {
	point := influxdb2.NewPointWithMeasurement("state_transition").
		AddTag("from", from.Key()).
		AddTag("to", to.Key()).
		AddTag("cause", string(cause)).
		AddField("dwell_ms", dwellMillis).
		SetTime(time.Now())

	if err := t.manager.WritePoint(context.Background(), BucketPlayback, point); err != nil {
		t.manager.Logger.Error().Err(err).Msg("Error recording state transition")
	}
}

// RecordPreloadBatch writes the outcome of one location preload pass.
func (t *Telemetry) RecordPreloadBatch(locationID string, total, loaded, failed int, elapsed time.Duration) {
	point := influxdb2.NewPointWithMeasurement("preload_batch").
		AddTag("location", locationID).
		AddField("total", total).
		AddField("loaded", loaded).
		AddField("failed", failed).
		AddField("elapsed_ms", elapsed.Milliseconds()).
		SetTime(time.Now())

	if err := t.manager.WritePoint(context.Background(), BucketPreload, point); err != nil {
		t.manager.Logger.Error().Err(err).Msg("Error recording preload batch")
	}
}

// RecordCacheSnapshot writes byte-cache occupancy.
func (t *Telemetry) RecordCacheSnapshot(entries int, totalBytes int64) {
	point := influxdb2.NewPointWithMeasurement("cache_snapshot").
		AddField("entries", entries).
		AddField("total_bytes", totalBytes).
		SetTime(time.Now())

	if err := t.manager.WritePoint(context.Background(), BucketCache, point); err != nil {
		t.manager.Logger.Error().Err(err).Msg("Error recording cache snapshot")
	}
}
