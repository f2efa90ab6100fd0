package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// Subscription is a browser PushSubscription as serialised by PushSubscription.toJSON().
// Its JSON text is what a Web Push device registers as its push address.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// ParseSubscription decodes and checks a Web Push address.
func ParseSubscription(address string) (*Subscription, error) {
	var sub Subscription
	if err := json.Unmarshal([]byte(address), &sub); err != nil {
		return nil, fmt.Errorf("web push subscription: %w", err)
	}
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		return nil, errors.New("web push subscription: endpoint, keys.p256dh and keys.auth are required")
	}
	u, err := url.Parse(sub.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, fmt.Errorf("web push subscription: invalid endpoint %q", sub.Endpoint)
	}
	return &sub, nil
}

// VAPIDConfig holds the application server keys (base64url, as produced by webpush.GenerateVAPIDKeys).
type VAPIDConfig struct {
	PublicKey  string
	PrivateKey string
	Subscriber string // contact e-mail or https: URL for the push service
}

// WebPushDispatcher sends encrypted Web Push messages signed with VAPID.
type WebPushDispatcher struct {
	vapid      VAPIDConfig
	ttl        time.Duration
	httpClient webpush.HTTPClient
}

// NewWebPushDispatcher returns a dispatcher for VAPID keys. httpClient may be nil.
func NewWebPushDispatcher(vapid VAPIDConfig, ttl time.Duration, httpClient webpush.HTTPClient) (*WebPushDispatcher, error) {
	if vapid.PublicKey == "" || vapid.PrivateKey == "" {
		return nil, errors.New("notify: VAPID public and private keys are required")
	}
	if vapid.Subscriber == "" {
		vapid.Subscriber = "ops@pushauth.local"
	}
	return &WebPushDispatcher{vapid: vapid, ttl: ttl, httpClient: httpClient}, nil
}

func (d *WebPushDispatcher) Send(ctx context.Context, address string, p Payload) error {
	sub, err := ParseSubscription(address)
	if err != nil {
		return err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
	}, &webpush.Options{
		HTTPClient:      d.httpClient,
		Subscriber:      d.vapid.Subscriber,
		VAPIDPublicKey:  d.vapid.PublicKey,
		VAPIDPrivateKey: d.vapid.PrivateKey,
		TTL:             int(d.ttl.Seconds()),
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("notify: web push send: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return ErrSubscriptionGone
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("notify: web push service returned %s", resp.Status)
	}
	return nil
}
