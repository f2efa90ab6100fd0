// Package notify delivers challenge notifications to device push addresses.
package notify

import (
	"context"
	"errors"
	"log"
)

// Payload is a push message. Data values are strings so every transport can carry them unchanged.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Dispatcher delivers a payload to a push address.
type Dispatcher interface {
	Send(ctx context.Context, address string, p Payload) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, address string, p Payload) error

func (f DispatcherFunc) Send(ctx context.Context, address string, p Payload) error {
	return f(ctx, address, p)
}

var (
	// ErrUnsupportedAddress is returned when no configured transport can handle an address.
	ErrUnsupportedAddress = errors.New("notify: no transport for push address")
	// ErrSubscriptionGone is returned when the push service reports the address no longer exists.
	ErrSubscriptionGone = errors.New("notify: push subscription gone")
)

// LogDispatcher logs payloads instead of sending them. For development without push credentials.
type LogDispatcher struct{}

func (LogDispatcher) Send(_ context.Context, address string, p Payload) error {
	log.Printf("notify: (log only) to=%s title=%q data=%v", truncate(address, 24), p.Title, p.Data)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
