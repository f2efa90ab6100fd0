package notify

import (
	"context"
	"errors"
	"strings"
)

// Router picks a transport from the shape of the address: a JSON object is a Web Push subscription,
// anything else is an FCM registration token. A nil transport makes those addresses unsupported.
type Router struct {
	FCM     Dispatcher
	WebPush Dispatcher
}

func (r *Router) Send(ctx context.Context, address string, p Payload) error {
	d := r.FCM
	if isSubscription(address) {
		d = r.WebPush
	}
	if d == nil {
		return ErrUnsupportedAddress
	}
	return d.Send(ctx, address, p)
}

// ValidateAddress checks that address is a well-formed Web Push subscription or FCM token.
func ValidateAddress(address string) error {
	if isSubscription(address) {
		_, err := ParseSubscription(address)
		return err
	}
	if strings.ContainsAny(address, " \t\r\n") || len(address) > 4096 {
		return errors.New("push token must be a single token without whitespace")
	}
	return nil
}

func isSubscription(address string) bool {
	return strings.HasPrefix(strings.TrimSpace(address), "{")
}
