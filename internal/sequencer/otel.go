package sequencer

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/skyloop/engine/internal/sequencer"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
