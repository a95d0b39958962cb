// Package telemetry provides the shared tracer handle for the runtime.
//
// The module only depends on the OpenTelemetry API: spans are no-ops unless
// the embedding process registers a tracer provider. Correlation and
// causation identifiers live on events themselves and do not depend on
// tracing being enabled.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/cebartling/otherworlds-rpg"

// Tracer returns the tracer used across the engine packages.
func Tracer() trace.Tracer {
	return otel.Tracer(scopeName)
}
