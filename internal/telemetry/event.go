package telemetry

import (
	"encoding/json"
	"time"
)

// Event types for the challenge lifecycle and device registry.
const (
	EventChallengeCreated        = "challenge.created"
	EventChallengeDispatchFailed = "challenge.dispatch_failed"
	EventChallengeApproved       = "challenge.approved"
	EventChallengeDenied         = "challenge.denied"
	EventChallengeExpired        = "challenge.expired"
	EventChallengeKeyMismatch    = "challenge.key_mismatch"
	EventDeviceLinked            = "device.linked"
	EventDevicePushRegistered    = "device.push_registered"
	EventHTTPRequest             = "http_request"
)

// Event is a lifecycle event. The JSON form is what the Kafka producer writes and the Loki worker parses.
type Event struct {
	EventType   string          `json:"eventType"`
	Source      string          `json:"source"`
	UserID      string          `json:"userId,omitempty"`
	DeviceID    string          `json:"deviceId,omitempty"`
	ChallengeID string          `json:"challengeId,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// NewEvent returns an event stamped with the current UTC time. metadata is marshalled to JSON
// and dropped if it cannot be encoded.
func NewEvent(eventType, source string, metadata any) *Event {
	ev := &Event{EventType: eventType, Source: source, CreatedAt: time.Now().UTC()}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			ev.Metadata = raw
		}
	}
	return ev
}
