package preload

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/skyloop/engine/internal/preload"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
