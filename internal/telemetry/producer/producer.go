// Package producer defines the interface for emitting telemetry events to a broker (Kafka).
package producer

import "pushauth/backend/internal/telemetry"

// Producer emits telemetry events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	telemetry.EventEmitter
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
